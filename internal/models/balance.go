package models

type BalanceStatus string

const (
	BalanceCalculated BalanceStatus = "CALCULATED"
	BalanceProcessing BalanceStatus = "PROCESSING"
)

// Balance is derived, never stored on the account. While transactions for
// the account are still pending the materializer answers PROCESSING instead
// of a number that could be immediately invalidated.
type Balance struct {
	AccountID    string        `json:"account_id"`
	BalanceCents int64         `json:"balance_cents"`
	Status       BalanceStatus `json:"-"`
	Message      string        `json:"-"`
}
