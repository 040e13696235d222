// Package ledger computes debt balances from transactions.
//
// Every function here is pure: it reads a debt and a transaction (or the
// intent to create one) and returns numbers. Persisting the results is the
// caller's job. Nothing in this package returns an error; out-of-range
// inputs are clamped instead.
package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/mmynk/debtbook/internal/models"
)

var (
	hundred      = decimal.NewFromInt(100)
	monthsInYear = decimal.NewFromInt(12)
)

// Result is the outcome of applying a transaction to a debt.
type Result struct {
	NewBalance     decimal.Decimal
	InterestAmount decimal.Decimal
}

// MonthlyInterest returns one month of simple interest on amount at an
// annual percentage rate: amount * (rate / 100) / 12. There is no
// compounding and no day-count convention.
func MonthlyInterest(amount, annualRatePercent decimal.Decimal) decimal.Decimal {
	if !amount.IsPositive() || !annualRatePercent.IsPositive() {
		return decimal.Zero
	}
	return amount.Mul(annualRatePercent).Div(hundred).Div(monthsInYear)
}

// Apply computes the balance after a transaction of the given type and
// amount is appended to the debt's ledger.
//
//   - payment: balance - amount, floored at zero; no interest.
//   - borrow: balance + amount + interest. Interest is explicitInterest when
//     given, otherwise one month of interest at the debt's rate.
//   - initial: the balance becomes amount; no interest.
//
// Negative amounts are treated as zero. An unknown type leaves the balance
// unchanged.
func Apply(debt *models.Debt, typ models.TransactionType, amount decimal.Decimal, explicitInterest *decimal.Decimal) Result {
	amount = clamp(amount)
	balance := debt.CurrentBalance

	switch typ {
	case models.TransactionPayment:
		return Result{NewBalance: clamp(balance.Sub(amount)), InterestAmount: decimal.Zero}

	case models.TransactionBorrow:
		var interest decimal.Decimal
		switch {
		case explicitInterest != nil:
			interest = clamp(*explicitInterest)
		case debt.InterestRate.Valid:
			interest = MonthlyInterest(amount, debt.InterestRate.Decimal)
		default:
			interest = decimal.Zero
		}
		return Result{NewBalance: balance.Add(amount).Add(interest), InterestAmount: interest}

	case models.TransactionInitial:
		return Result{NewBalance: amount, InterestAmount: decimal.Zero}
	}

	return Result{NewBalance: balance, InterestAmount: decimal.Zero}
}

// Reverse computes the balance after txn is removed from the debt's ledger.
//
//   - payment: the amount is added back.
//   - borrow or initial: amount and interest are subtracted, floored at zero.
//
// This undoes a single Apply exactly unless Apply had to clamp: a payment
// larger than the balance floors at zero, and reversing it restores the
// full payment amount rather than the smaller pre-payment balance.
func Reverse(debt *models.Debt, txn *models.Transaction) decimal.Decimal {
	balance := debt.CurrentBalance
	amount := clamp(txn.Amount)

	switch txn.Type {
	case models.TransactionPayment:
		return balance.Add(amount)
	case models.TransactionBorrow, models.TransactionInitial:
		return clamp(balance.Sub(amount).Sub(clamp(txn.InterestAmount)))
	}
	return balance
}

// Replay folds a ledger, in creation order, starting from principal. Stored
// interest amounts are used as recorded rather than recomputed, so the
// result does not depend on the debt's current rate.
func Replay(principal decimal.Decimal, txns []models.Transaction) decimal.Decimal {
	debt := &models.Debt{CurrentBalance: principal}
	for i := range txns {
		txn := &txns[i]
		interest := txn.InterestAmount
		debt.CurrentBalance = Apply(debt, txn.Type, txn.Amount, &interest).NewBalance
	}
	return debt.CurrentBalance
}

func clamp(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
