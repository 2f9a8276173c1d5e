package models

import (
	"errors"
	"strings"
	"time"
)

type Account struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

func (a *Account) Validate() error {
	name := strings.TrimSpace(a.Username)
	if len(name) < 3 {
		return errors.New("username too short")
	}
	if len(name) > 32 {
		return errors.New("username too long")
	}
	return nil
}
