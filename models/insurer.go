package models

// Insurer is a health insurer receiving tiers-payant invoices.
type Insurer struct {
	Id          uint   `json:"id" gorm:"primaryKey"`
	Name        string `json:"name" gorm:"not null;unique"`
	Address     string `json:"address" gorm:"not null"`
	City        string `json:"city" gorm:"not null"`
	Country     string `json:"country" gorm:"not null"`
	Zip         string `json:"zip" gorm:"not null"`
	Homepage    string `json:"homepage" gorm:"null"`
	GLN         string `json:"gln" gorm:"null"`
	Email       string `json:"email" gorm:"unique;not null"`
	PhoneNumber string `json:"phone_number" gorm:"not null"`
}
