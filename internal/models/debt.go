package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DebtType classifies a debt.
type DebtType string

const (
	DebtTypeCreditCard   DebtType = "credit_card"
	DebtTypePersonalLoan DebtType = "personal_loan"
	DebtTypeMortgage     DebtType = "mortgage"
	DebtTypeAutoLoan     DebtType = "auto_loan"
	DebtTypeStudentLoan  DebtType = "student_loan"
	DebtTypeMedical      DebtType = "medical"
	DebtTypeFamilyFriend DebtType = "family_friend"
	DebtTypeOther        DebtType = "other"
)

// Valid reports whether t is a known debt type.
func (t DebtType) Valid() bool {
	switch t {
	case DebtTypeCreditCard, DebtTypePersonalLoan, DebtTypeMortgage, DebtTypeAutoLoan,
		DebtTypeStudentLoan, DebtTypeMedical, DebtTypeFamilyFriend, DebtTypeOther:
		return true
	}
	return false
}

// DebtStatus is the lifecycle state of a debt.
type DebtStatus string

const (
	DebtStatusActive   DebtStatus = "active"
	DebtStatusPaidOff  DebtStatus = "paid_off"
	DebtStatusArchived DebtStatus = "archived"
)

// Valid reports whether s is a known status.
func (s DebtStatus) Valid() bool {
	switch s {
	case DebtStatusActive, DebtStatusPaidOff, DebtStatusArchived:
		return true
	}
	return false
}

// Debt is an amount owed to a creditor.
//
// CurrentBalance must always equal the fold of the debt's transactions,
// starting with its initial transaction.
type Debt struct {
	// ID is a local ID in guest mode and a UUID in the cloud store.
	ID string `json:"id"`

	Name         string   `json:"name"`
	DebtType     DebtType `json:"debtType"`
	CreditorName string   `json:"creditorName,omitempty"`

	// CurrencyCode is an ISO 4217 code such as "USD".
	CurrencyCode string `json:"currencyCode"`

	// Principal is the starting balance. It seeds the initial transaction.
	Principal      decimal.Decimal `json:"principal"`
	CurrentBalance decimal.Decimal `json:"currentBalance"`

	// InterestRate is an annual percentage rate, e.g. 12 for 12%.
	InterestRate   decimal.NullDecimal `json:"interestRate"`
	MinimumPayment decimal.NullDecimal `json:"minimumPayment"`
	DueDate        *time.Time          `json:"dueDate,omitempty"`

	Status   DebtStatus `json:"status"`
	Priority int        `json:"priority"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Validate checks the fields a caller must provide when creating a debt.
func (d *Debt) Validate() error {
	if d.Name == "" {
		return invalidf("debt name is required")
	}
	if !d.DebtType.Valid() {
		return invalidf("unknown debt type %q", d.DebtType)
	}
	if d.CurrencyCode == "" {
		return invalidf("currency code is required")
	}
	if d.Principal.IsNegative() {
		return invalidf("principal cannot be negative")
	}
	if d.InterestRate.Valid && d.InterestRate.Decimal.IsNegative() {
		return invalidf("interest rate cannot be negative")
	}
	if d.Status != "" && !d.Status.Valid() {
		return invalidf("unknown debt status %q", d.Status)
	}
	return nil
}

// DebtPatch holds a partial update for a Debt. Nil fields are left unchanged.
type DebtPatch struct {
	Name           *string              `json:"name,omitempty"`
	DebtType       *DebtType            `json:"debtType,omitempty"`
	CreditorName   *string              `json:"creditorName,omitempty"`
	CurrencyCode   *string              `json:"currencyCode,omitempty"`
	CurrentBalance *decimal.Decimal     `json:"currentBalance,omitempty"`
	InterestRate   *decimal.NullDecimal `json:"interestRate,omitempty"`
	MinimumPayment *decimal.NullDecimal `json:"minimumPayment,omitempty"`
	DueDate        *time.Time           `json:"dueDate,omitempty"`
	Status         *DebtStatus          `json:"status,omitempty"`
	Priority       *int                 `json:"priority,omitempty"`
}

// Apply merges the patch into d. It does not touch UpdatedAt.
func (p DebtPatch) Apply(d *Debt) {
	if p.Name != nil {
		d.Name = *p.Name
	}
	if p.DebtType != nil {
		d.DebtType = *p.DebtType
	}
	if p.CreditorName != nil {
		d.CreditorName = *p.CreditorName
	}
	if p.CurrencyCode != nil {
		d.CurrencyCode = *p.CurrencyCode
	}
	if p.CurrentBalance != nil {
		d.CurrentBalance = *p.CurrentBalance
	}
	if p.InterestRate != nil {
		d.InterestRate = *p.InterestRate
	}
	if p.MinimumPayment != nil {
		d.MinimumPayment = *p.MinimumPayment
	}
	if p.DueDate != nil {
		due := *p.DueDate
		d.DueDate = &due
	}
	if p.Status != nil {
		d.Status = *p.Status
	}
	if p.Priority != nil {
		d.Priority = *p.Priority
	}
}

// Validate checks the enum fields the patch sets.
func (p DebtPatch) Validate() error {
	if p.DebtType != nil && !p.DebtType.Valid() {
		return invalidf("unknown debt type %q", *p.DebtType)
	}
	if p.Status != nil && !p.Status.Valid() {
		return invalidf("unknown debt status %q", *p.Status)
	}
	if p.InterestRate != nil && p.InterestRate.Valid && p.InterestRate.Decimal.IsNegative() {
		return invalidf("interest rate cannot be negative")
	}
	return nil
}

// BalancePatch is a DebtPatch that only sets the current balance.
func BalancePatch(balance decimal.Decimal) DebtPatch {
	return DebtPatch{CurrentBalance: &balance}
}
