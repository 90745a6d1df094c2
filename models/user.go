package models

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const passwordCost = 12

// User is a clinic staff account. SchemaName pins the user to one clinic.
type User struct {
	Id         string    `json:"id" gorm:"primaryKey"`
	FirstName  string    `json:"first_name" gorm:"not null"`
	LastName   string    `json:"last_name" gorm:"not null"`
	Password   []byte    `json:"-" gorm:"not null"`
	Email      string    `json:"email" gorm:"unique;not null"`
	Role       string    `json:"role" gorm:"size:20;not null;default:'staff'"` // "physician" | "staff"
	SchemaName string    `json:"-" gorm:"index;not null"`
	CreatedAt  time.Time `json:"created_at"`
}

func (user *User) BeforeCreate(tx *gorm.DB) (err error) {
	// UUID version 4
	user.Id = uuid.NewString()
	return
}

func (user *User) SetPassword(password string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return err
	}
	user.Password = hashed
	return nil
}

func (user *User) ComparePassword(password string) error {
	return bcrypt.CompareHashAndPassword(user.Password, []byte(password))
}

func (user *User) FullName() string {
	return user.FirstName + " " + user.LastName
}
