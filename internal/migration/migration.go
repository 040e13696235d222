// Package migration copies a guest's on-device data into the cloud store
// when the guest signs in or signs up.
//
// A migration pass is best effort per item: one failed insert does not stop
// the others. Only a failure to read guest data, or the context ending
// before the first insert, fails the pass as a whole. Once inserts begin
// the pass runs to completion regardless of cancellation. Guest data is
// cleared only after a successful pass, so a failed pass can be retried on
// the next sign-in.
package migration

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mmynk/debtbook/internal/metrics"
	"github.com/mmynk/debtbook/internal/models"
)

// GuestData is the guest namespace being migrated.
type GuestData interface {
	ListDebts(ctx context.Context) ([]models.Debt, error)
	ListIncomeSources(ctx context.Context) ([]models.IncomeSource, error)
	ListAllTransactions(ctx context.Context) ([]models.Transaction, error)
	Clear(ctx context.Context) error
}

// CloudWriter is the subset of storage.Store a migration writes to.
// Each create must assign a fresh server ID.
type CloudWriter interface {
	CreateDebt(ctx context.Context, userID string, debt *models.Debt) error
	CreateIncomeSource(ctx context.Context, userID string, source *models.IncomeSource) error
	CreateTransaction(ctx context.Context, userID string, txn *models.Transaction) error
}

// Result reports a migration pass.
type Result struct {
	// Success is true when the pass ran to completion. Individual items
	// may still have failed; they are simply not counted.
	Success bool `json:"success"`

	DebtsMigrated         int `json:"debtsMigrated"`
	IncomeSourcesMigrated int `json:"incomeSourcesMigrated"`
	TransactionsMigrated  int `json:"transactionsMigrated"`

	// Cleared is true once the guest namespace has been removed.
	Cleared bool `json:"cleared"`
}

// Coordinator runs migration passes.
type Coordinator struct {
	guest   GuestData
	cloud   CloudWriter
	metrics *metrics.Metrics
}

// New creates a Coordinator. If m is nil, metrics go to a private registry.
func New(guest GuestData, cloud CloudWriter, m *metrics.Metrics) *Coordinator {
	if m == nil {
		m = metrics.New(prometheus.NewRegistry())
	}
	return &Coordinator{guest: guest, cloud: cloud, metrics: m}
}

// Migrate copies every guest debt, income source and transaction into the
// cloud store under userID, then clears the guest namespace.
//
// Transactions are relinked through a map from guest debt ID to cloud debt
// ID that lives only for this call. A transaction whose debt did not
// migrate is skipped, never attached to another debt.
//
// The returned error is non-nil when the pass failed (Success is false and
// guest data is untouched) or when the final clear failed (Success is true,
// Cleared is false).
func (c *Coordinator) Migrate(ctx context.Context, userID string) (Result, error) {
	log := slog.With("user_id", userID)

	debts, err := c.guest.ListDebts(ctx)
	if err != nil {
		return c.fail(log, fmt.Errorf("failed to read guest debts: %w", err))
	}
	sources, err := c.guest.ListIncomeSources(ctx)
	if err != nil {
		return c.fail(log, fmt.Errorf("failed to read guest income sources: %w", err))
	}
	txns, err := c.guest.ListAllTransactions(ctx)
	if err != nil {
		return c.fail(log, fmt.Errorf("failed to read guest transactions: %w", err))
	}

	if len(debts) == 0 && len(sources) == 0 {
		log.Info("No guest data to migrate")
		if err := c.guest.Clear(ctx); err != nil {
			return c.fail(log, fmt.Errorf("failed to clear empty guest namespace: %w", err))
		}
		c.metrics.Migrations.WithLabelValues(metrics.OutcomeNoop).Inc()
		return Result{Success: true, Cleared: true}, nil
	}

	if err := ctx.Err(); err != nil {
		return c.fail(log, fmt.Errorf("migration not started: %w", err))
	}
	// Past this point the pass always runs to the end.
	ctx = context.WithoutCancel(ctx)

	log.Info("Migration started",
		"debts_count", len(debts),
		"income_sources_count", len(sources),
		"transactions_count", len(txns),
	)

	var result Result
	debtIDs := make(map[string]string, len(debts))

	for _, debt := range debts {
		guestID := debt.ID
		if err := c.cloud.CreateDebt(ctx, userID, &debt); err != nil {
			log.Warn("Failed to migrate debt", "guest_id", guestID, "error", err)
			c.metrics.MigrationFailures.WithLabelValues(metrics.KindDebt).Inc()
			continue
		}
		debtIDs[guestID] = debt.ID
		result.DebtsMigrated++
	}

	for _, source := range sources {
		guestID := source.ID
		if err := c.cloud.CreateIncomeSource(ctx, userID, &source); err != nil {
			log.Warn("Failed to migrate income source", "guest_id", guestID, "error", err)
			c.metrics.MigrationFailures.WithLabelValues(metrics.KindIncomeSource).Inc()
			continue
		}
		result.IncomeSourcesMigrated++
	}

	for _, txn := range txns {
		cloudDebtID, ok := debtIDs[txn.DebtID]
		if !ok {
			log.Warn("Skipping transaction of unmigrated debt", "guest_id", txn.ID, "guest_debt_id", txn.DebtID)
			c.metrics.MigrationFailures.WithLabelValues(metrics.KindTransaction).Inc()
			continue
		}
		guestID := txn.ID
		txn.DebtID = cloudDebtID
		if err := c.cloud.CreateTransaction(ctx, userID, &txn); err != nil {
			log.Warn("Failed to migrate transaction", "guest_id", guestID, "error", err)
			c.metrics.MigrationFailures.WithLabelValues(metrics.KindTransaction).Inc()
			continue
		}
		result.TransactionsMigrated++
	}

	result.Success = true
	c.metrics.Migrations.WithLabelValues(metrics.OutcomeSuccess).Inc()
	c.metrics.MigratedEntities.WithLabelValues(metrics.KindDebt).Add(float64(result.DebtsMigrated))
	c.metrics.MigratedEntities.WithLabelValues(metrics.KindIncomeSource).Add(float64(result.IncomeSourcesMigrated))
	c.metrics.MigratedEntities.WithLabelValues(metrics.KindTransaction).Add(float64(result.TransactionsMigrated))

	log.Info("Migration completed",
		"debts_migrated", result.DebtsMigrated,
		"income_sources_migrated", result.IncomeSourcesMigrated,
		"transactions_migrated", result.TransactionsMigrated,
	)

	if err := c.guest.Clear(ctx); err != nil {
		log.Error("Failed to clear guest data after migration", "error", err)
		return result, fmt.Errorf("failed to clear guest data after migration: %w", err)
	}
	result.Cleared = true
	return result, nil
}

func (c *Coordinator) fail(log *slog.Logger, err error) (Result, error) {
	log.Error("Migration failed", "error", err)
	c.metrics.Migrations.WithLabelValues(metrics.OutcomeFailure).Inc()
	return Result{}, err
}
