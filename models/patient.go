package models

import "time"

type Patient struct {
	Id              uint       `json:"id" gorm:"primaryKey"`
	FirstName       string     `json:"first_name" gorm:"not null"`
	LastName        string     `json:"last_name" gorm:"not null"`
	BirthDate       *time.Time `json:"birth_date"`
	Salutation      string     `json:"salutation"`
	Address         string     `json:"address" gorm:"not null"`
	City            string     `json:"city" gorm:"not null"`
	Country         string     `json:"country" gorm:"not null"`
	Zip             string     `json:"zip" gorm:"not null"`
	Email           string     `json:"email" gorm:"index"`
	PhoneNumber     string     `json:"phone_number"`
	InsurerId       *uint      `json:"insurer_id"`
	Insurer         *Insurer   `json:"insurer,omitempty" gorm:"foreignKey:InsurerId;references:Id"`
	InsuranceNumber string     `json:"insurance_number"`
	Active          bool       `json:"active"`
	CreatedAt       time.Time  `json:"created_at"`
}

// FullName is used on invoices and in mail subjects.
func (p Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}
