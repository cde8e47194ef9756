package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

type User struct {
	ID           uint      `gorm:"column:user_id;primaryKey" json:"user_id"`
	Username     string    `gorm:"uniqueIndex;size:100;not null" json:"username"`
	Email        *string   `gorm:"uniqueIndex;size:255" json:"email"`
	PasswordHash string    `gorm:"column:hashed_password;size:255;not null" json:"-"`
	FullName     *string   `gorm:"size:255" json:"full_name"`
	IsActive     bool      `gorm:"not null" json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"-"`
}

func (u *User) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword compares in constant time via bcrypt.
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}
