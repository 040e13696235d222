package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the kind of ledger entry.
type TransactionType string

const (
	// TransactionInitial seeds a debt's ledger with its starting balance.
	TransactionInitial TransactionType = "initial"
	// TransactionBorrow increases the balance, plus any interest charged.
	TransactionBorrow TransactionType = "borrow"
	// TransactionPayment decreases the balance, never below zero.
	TransactionPayment TransactionType = "payment"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionInitial, TransactionBorrow, TransactionPayment:
		return true
	}
	return false
}

// Transaction is one ledger entry against a debt. It is immutable once
// created; deleting it reverses its effect on the parent debt's balance.
type Transaction struct {
	ID     string          `json:"id"`
	DebtID string          `json:"debtId"`
	Type   TransactionType `json:"type"`
	Amount decimal.Decimal `json:"amount"`

	// InterestAmount is the interest charged with a borrow. Always zero for
	// payments and initial entries.
	InterestAmount decimal.Decimal `json:"interestAmount"`

	// NewBalance is the debt balance right after this entry was applied.
	NewBalance decimal.NullDecimal `json:"newBalance"`

	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
