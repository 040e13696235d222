package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Frequency is how often an income source pays out.
type Frequency string

const (
	FrequencyWeekly   Frequency = "weekly"
	FrequencyBiweekly Frequency = "biweekly"
	FrequencyMonthly  Frequency = "monthly"
	FrequencyYearly   Frequency = "yearly"
	FrequencyOneTime  Frequency = "one_time"
)

// Valid reports whether f is a known frequency.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly, FrequencyYearly, FrequencyOneTime:
		return true
	}
	return false
}

// IncomeSource is a source of income. It has no cross-entity invariants.
type IncomeSource struct {
	ID           string          `json:"id"`
	SourceName   string          `json:"sourceName"`
	Amount       decimal.Decimal `json:"amount"`
	CurrencyCode string          `json:"currencyCode"`
	Frequency    Frequency       `json:"frequency"`
	IsPrimary    bool            `json:"isPrimary"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// Validate checks the fields a caller must provide when creating an income source.
func (s *IncomeSource) Validate() error {
	if s.SourceName == "" {
		return invalidf("source name is required")
	}
	if s.Amount.IsNegative() {
		return invalidf("amount cannot be negative")
	}
	if !s.Frequency.Valid() {
		return invalidf("unknown frequency %q", s.Frequency)
	}
	if s.CurrencyCode == "" {
		return invalidf("currency code is required")
	}
	return nil
}

// IncomeSourcePatch holds a partial update for an IncomeSource.
type IncomeSourcePatch struct {
	SourceName   *string          `json:"sourceName,omitempty"`
	Amount       *decimal.Decimal `json:"amount,omitempty"`
	CurrencyCode *string          `json:"currencyCode,omitempty"`
	Frequency    *Frequency       `json:"frequency,omitempty"`
	IsPrimary    *bool            `json:"isPrimary,omitempty"`
}

// Apply merges the patch into s. It does not touch UpdatedAt.
func (p IncomeSourcePatch) Apply(s *IncomeSource) {
	if p.SourceName != nil {
		s.SourceName = *p.SourceName
	}
	if p.Amount != nil {
		s.Amount = *p.Amount
	}
	if p.CurrencyCode != nil {
		s.CurrencyCode = *p.CurrencyCode
	}
	if p.Frequency != nil {
		s.Frequency = *p.Frequency
	}
	if p.IsPrimary != nil {
		s.IsPrimary = *p.IsPrimary
	}
}

// Validate checks the fields the patch sets.
func (p IncomeSourcePatch) Validate() error {
	if p.Frequency != nil && !p.Frequency.Valid() {
		return invalidf("unknown frequency %q", *p.Frequency)
	}
	if p.Amount != nil && p.Amount.IsNegative() {
		return invalidf("amount cannot be negative")
	}
	return nil
}
