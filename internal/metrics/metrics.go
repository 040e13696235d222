// Package metrics defines the Prometheus collectors exported by debtbook.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Migration outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeNoop    = "noop"
)

// Entity kinds.
const (
	KindDebt         = "debt"
	KindIncomeSource = "income_source"
	KindTransaction  = "transaction"
)

// Metrics holds every collector. The zero value is not usable; build one
// with New.
type Metrics struct {
	Migrations         *prometheus.CounterVec
	MigratedEntities   *prometheus.CounterVec
	MigrationFailures  *prometheus.CounterVec
	LedgerTransactions *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Migrations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "debtbook_migrations_total",
			Help: "Guest-to-cloud migration runs by outcome.",
		}, []string{"outcome"}),
		MigratedEntities: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "debtbook_migrated_entities_total",
			Help: "Guest entities copied to the cloud store, by kind.",
		}, []string{"kind"}),
		MigrationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "debtbook_migration_failures_total",
			Help: "Guest entities that failed to migrate or were skipped as orphans, by kind.",
		}, []string{"kind"}),
		LedgerTransactions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "debtbook_ledger_transactions_total",
			Help: "Ledger transactions recorded, by type and storage mode.",
		}, []string{"type", "mode"}),
	}
}
