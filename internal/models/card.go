package models

import "time"

// Card carries only the irreversible token and the display digits; raw card
// details never leave the generator.
type Card struct {
	ID             string    `json:"id"`
	AccountID      string    `json:"account_id"`
	CardToken      string    `json:"card_token"`
	LastFourDigits string    `json:"last_four_digits"`
	CreatedAt      time.Time `json:"created_at"`
}
