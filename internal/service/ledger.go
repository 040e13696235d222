package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/mmynk/debtbook/internal/ledger"
	"github.com/mmynk/debtbook/internal/metrics"
	"github.com/mmynk/debtbook/internal/mode"
	"github.com/mmynk/debtbook/internal/models"
	"github.com/mmynk/debtbook/internal/storage"
)

var (
	ErrInvalidAmount          = fmt.Errorf("%w: amount must be positive", models.ErrInvalid)
	ErrInvalidTransactionType = fmt.Errorf("%w: transaction type must be borrow or payment", models.ErrInvalid)
	ErrInitialTransaction     = errors.New("the initial transaction of a debt cannot be deleted")
)

// Repositories hands out the entity store for a mode.
type Repositories interface {
	Repository(ctx context.Context, m mode.Mode) (storage.Repository, error)
}

// Ledger is the mode-agnostic data layer used by the RPC handlers. Each
// call takes the caller's Mode and works against whichever store it maps
// to.
//
// Balance-affecting writes always persist the transaction first and the
// debt balance second. If the second write fails, RecalculateBalance
// re-derives the balance from the ledger.
type Ledger struct {
	repos   Repositories
	metrics *metrics.Metrics
}

// NewLedger creates a Ledger.
func NewLedger(repos Repositories, m *metrics.Metrics) *Ledger {
	return &Ledger{repos: repos, metrics: m}
}

// TransactionInput is the intent to add a borrow or payment.
type TransactionInput struct {
	Type   models.TransactionType
	Amount decimal.Decimal
	// InterestAmount overrides the interest computed from the debt's rate.
	// Ignored for payments.
	InterestAmount *decimal.Decimal
	Notes          string
}

// ListDebts returns the caller's debts.
func (l *Ledger) ListDebts(ctx context.Context, m mode.Mode) ([]models.Debt, error) {
	repo, err := l.repos.Repository(ctx, m)
	if err != nil {
		return nil, err
	}
	return repo.ListDebts(ctx)
}

// GetDebt returns one debt.
func (l *Ledger) GetDebt(ctx context.Context, m mode.Mode, id string) (*models.Debt, error) {
	repo, err := l.repos.Repository(ctx, m)
	if err != nil {
		return nil, err
	}
	return repo.GetDebt(ctx, id)
}

// CreateDebt stores a new debt with its balance set to the principal and
// seeds its ledger with the matching initial transaction. If the initial
// transaction cannot be written the debt is deleted again, so a debt never
// exists without one.
func (l *Ledger) CreateDebt(ctx context.Context, m mode.Mode, debt *models.Debt) (*models.Transaction, error) {
	repo, err := l.repos.Repository(ctx, m)
	if err != nil {
		return nil, err
	}
	if debt.Status == "" {
		debt.Status = models.DebtStatusActive
	}
	if err := debt.Validate(); err != nil {
		return nil, err
	}

	seed := ledger.Apply(debt, models.TransactionInitial, debt.Principal, nil)
	debt.CurrentBalance = seed.NewBalance
	if err := repo.CreateDebt(ctx, debt); err != nil {
		return nil, fmt.Errorf("failed to create debt: %w", err)
	}

	initial := &models.Transaction{
		DebtID:         debt.ID,
		Type:           models.TransactionInitial,
		Amount:         debt.Principal,
		InterestAmount: seed.InterestAmount,
		NewBalance:     decimal.NewNullDecimal(seed.NewBalance),
	}
	if err := repo.CreateTransaction(ctx, initial); err != nil {
		slog.Error("Debt created but initial transaction failed", "debt_id", debt.ID, "mode", m, "error", err)
		err = fmt.Errorf("failed to record initial transaction: %w", err)
		if delErr := repo.DeleteDebt(ctx, debt.ID); delErr != nil {
			slog.Error("Failed to roll back debt without initial transaction", "debt_id", debt.ID, "error", delErr)
			return nil, errors.Join(err, fmt.Errorf("failed to roll back debt %s: %w", debt.ID, delErr))
		}
		return nil, err
	}
	l.count(initial.Type, m)

	slog.Info("Debt created", "debt_id", debt.ID, "mode", m, "principal", debt.Principal)
	return initial, nil
}

// UpdateDebt applies a patch to a debt's descriptive fields. The balance
// is owned by the ledger and cannot be patched directly.
func (l *Ledger) UpdateDebt(ctx context.Context, m mode.Mode, id string, patch models.DebtPatch) (*models.Debt, error) {
	repo, err := l.repos.Repository(ctx, m)
	if err != nil {
		return nil, err
	}
	patch.CurrentBalance = nil
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	return repo.UpdateDebt(ctx, id, patch)
}

// DeleteDebt deletes a debt and its ledger.
func (l *Ledger) DeleteDebt(ctx context.Context, m mode.Mode, id string) error {
	repo, err := l.repos.Repository(ctx, m)
	if err != nil {
		return err
	}
	if err := repo.DeleteDebt(ctx, id); err != nil {
		return err
	}
	slog.Info("Debt deleted", "debt_id", id, "mode", m)
	return nil
}

// ListTransactions returns a debt's ledger in creation order.
func (l *Ledger) ListTransactions(ctx context.Context, m mode.Mode, debtID string) ([]models.Transaction, error) {
	repo, err := l.repos.Repository(ctx, m)
	if err != nil {
		return nil, err
	}
	if _, err := repo.GetDebt(ctx, debtID); err != nil {
		return nil, err
	}
	return repo.ListTransactions(ctx, debtID)
}

// AddTransaction records a borrow or payment and moves the debt balance.
// A payment that clears the balance marks the debt paid off.
func (l *Ledger) AddTransaction(ctx context.Context, m mode.Mode, debtID string, in TransactionInput) (*models.Transaction, *models.Debt, error) {
	if in.Type != models.TransactionBorrow && in.Type != models.TransactionPayment {
		return nil, nil, ErrInvalidTransactionType
	}
	if !in.Amount.IsPositive() {
		return nil, nil, ErrInvalidAmount
	}
	repo, err := l.repos.Repository(ctx, m)
	if err != nil {
		return nil, nil, err
	}

	debt, err := repo.GetDebt(ctx, debtID)
	if err != nil {
		return nil, nil, err
	}

	res := ledger.Apply(debt, in.Type, in.Amount, in.InterestAmount)
	txn := &models.Transaction{
		DebtID:         debt.ID,
		Type:           in.Type,
		Amount:         in.Amount,
		InterestAmount: res.InterestAmount,
		NewBalance:     decimal.NewNullDecimal(res.NewBalance),
		Notes:          in.Notes,
	}
	if err := repo.CreateTransaction(ctx, txn); err != nil {
		return nil, nil, fmt.Errorf("failed to record transaction: %w", err)
	}
	l.count(txn.Type, m)

	updated, err := repo.UpdateDebt(ctx, debt.ID, balancePatch(debt, res.NewBalance))
	if err != nil {
		slog.Error("Transaction recorded but balance update failed", "debt_id", debt.ID, "transaction_id", txn.ID, "error", err)
		return txn, nil, fmt.Errorf("failed to update debt balance: %w", err)
	}

	slog.Info("Transaction added",
		"debt_id", debt.ID,
		"transaction_id", txn.ID,
		"type", txn.Type,
		"amount", txn.Amount,
		"interest", txn.InterestAmount,
		"new_balance", updated.CurrentBalance,
		"mode", m,
	)
	return txn, updated, nil
}

// DeleteTransaction removes a borrow or payment and reverses its effect on
// the debt balance.
func (l *Ledger) DeleteTransaction(ctx context.Context, m mode.Mode, id string) (*models.Debt, error) {
	repo, err := l.repos.Repository(ctx, m)
	if err != nil {
		return nil, err
	}

	txn, err := repo.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if txn.Type == models.TransactionInitial {
		return nil, ErrInitialTransaction
	}
	debt, err := repo.GetDebt(ctx, txn.DebtID)
	if err != nil {
		return nil, err
	}

	balance := ledger.Reverse(debt, txn)
	if err := repo.DeleteTransaction(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to delete transaction: %w", err)
	}

	updated, err := repo.UpdateDebt(ctx, debt.ID, balancePatch(debt, balance))
	if err != nil {
		slog.Error("Transaction deleted but balance update failed", "debt_id", debt.ID, "transaction_id", id, "error", err)
		return nil, fmt.Errorf("failed to update debt balance: %w", err)
	}

	slog.Info("Transaction deleted", "debt_id", debt.ID, "transaction_id", id, "new_balance", updated.CurrentBalance, "mode", m)
	return updated, nil
}

// RecalculateBalance re-derives a debt's balance by replaying its ledger
// and stores it if it differs.
func (l *Ledger) RecalculateBalance(ctx context.Context, m mode.Mode, debtID string) (*models.Debt, error) {
	repo, err := l.repos.Repository(ctx, m)
	if err != nil {
		return nil, err
	}

	debt, err := repo.GetDebt(ctx, debtID)
	if err != nil {
		return nil, err
	}
	txns, err := repo.ListTransactions(ctx, debtID)
	if err != nil {
		return nil, err
	}

	balance := ledger.Replay(debt.Principal, txns)
	if balance.Equal(debt.CurrentBalance) {
		return debt, nil
	}

	slog.Warn("Debt balance drifted from ledger",
		"debt_id", debtID,
		"stored", debt.CurrentBalance,
		"replayed", balance,
		"transactions", len(txns),
	)
	return repo.UpdateDebt(ctx, debtID, balancePatch(debt, balance))
}

// ListIncomeSources returns the caller's income sources.
func (l *Ledger) ListIncomeSources(ctx context.Context, m mode.Mode) ([]models.IncomeSource, error) {
	repo, err := l.repos.Repository(ctx, m)
	if err != nil {
		return nil, err
	}
	return repo.ListIncomeSources(ctx)
}

// CreateIncomeSource stores a new income source.
func (l *Ledger) CreateIncomeSource(ctx context.Context, m mode.Mode, source *models.IncomeSource) error {
	repo, err := l.repos.Repository(ctx, m)
	if err != nil {
		return err
	}
	if err := source.Validate(); err != nil {
		return err
	}
	return repo.CreateIncomeSource(ctx, source)
}

// UpdateIncomeSource applies a patch to an income source.
func (l *Ledger) UpdateIncomeSource(ctx context.Context, m mode.Mode, id string, patch models.IncomeSourcePatch) (*models.IncomeSource, error) {
	repo, err := l.repos.Repository(ctx, m)
	if err != nil {
		return nil, err
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	return repo.UpdateIncomeSource(ctx, id, patch)
}

// DeleteIncomeSource deletes an income source.
func (l *Ledger) DeleteIncomeSource(ctx context.Context, m mode.Mode, id string) error {
	repo, err := l.repos.Repository(ctx, m)
	if err != nil {
		return err
	}
	return repo.DeleteIncomeSource(ctx, id)
}

func (l *Ledger) count(typ models.TransactionType, m mode.Mode) {
	if l.metrics == nil {
		return
	}
	l.metrics.LedgerTransactions.WithLabelValues(string(typ), m.String()).Inc()
}

// balancePatch sets the new balance and keeps the status in step with it:
// a debt at zero is paid off, and a paid-off debt with a balance again is
// active. Archived debts keep their status.
func balancePatch(debt *models.Debt, balance decimal.Decimal) models.DebtPatch {
	patch := models.BalancePatch(balance)
	var status models.DebtStatus
	switch {
	case balance.IsZero() && debt.Status == models.DebtStatusActive:
		status = models.DebtStatusPaidOff
	case balance.IsPositive() && debt.Status == models.DebtStatusPaidOff:
		status = models.DebtStatusActive
	default:
		return patch
	}
	patch.Status = &status
	return patch
}
