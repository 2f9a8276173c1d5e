// Package cards generates card details and the opaque token presented by
// purchase transactions. Raw number, cvc and expiry exist only for the
// lifetime of the generating call; only the sha256 token and the last four
// digits are ever persisted.
package cards

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"math/big"
	"time"
)

type Details struct {
	Number      string
	CVC         string
	ExpiryMonth string
	ExpiryYear  string
}

func GenerateDetails() (Details, error) {
	number, err := randDigits(999999999999, "%012d")
	if err != nil {
		return Details{}, fmt.Errorf("generate card number: %w", err)
	}
	cvc, err := randDigits(999, "%03d")
	if err != nil {
		return Details{}, fmt.Errorf("generate cvc: %w", err)
	}

	years, err := rand.Int(rand.Reader, big.NewInt(5))
	if err != nil {
		return Details{}, fmt.Errorf("generate expiry: %w", err)
	}
	expiry := time.Now().AddDate(int(years.Int64())+1, 0, 0)

	return Details{
		Number:      number,
		CVC:         cvc,
		ExpiryMonth: expiry.Format("01"),
		ExpiryYear:  expiry.Format("06"),
	}, nil
}

// Token derives the irreversible card token from the full card details.
func Token(d Details) string {
	sum := sha256.Sum256([]byte(d.Number + d.CVC + d.ExpiryMonth + d.ExpiryYear))
	return fmt.Sprintf("%x", sum)
}

func (d Details) LastFour() string {
	return d.Number[len(d.Number)-4:]
}

func randDigits(max int64, format string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(max))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(format, n), nil
}
