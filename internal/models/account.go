package models

import (
	"errors"
	"strings"
	"time"
)

type Account struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"` // "user" | "staff"
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (a *Account) Validate() error {
	if len(strings.TrimSpace(a.Username)) < 3 {
		return errors.New("username too short")
	}
	if !strings.Contains(a.Email, "@") {
		return errors.New("invalid email")
	}
	if a.Role == "" {
		a.Role = "user"
	}
	return nil
}
