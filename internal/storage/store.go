// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"

	"github.com/mmynk/debtbook/internal/models"
)

// Repository is the entity CRUD surface shared by guest and cloud storage.
// Services work against a Repository and never need to know which mode is
// active; the mode controller decides which implementation they get.
type Repository interface {
	ListDebts(ctx context.Context) ([]models.Debt, error)
	GetDebt(ctx context.Context, id string) (*models.Debt, error)
	// CreateDebt assigns the ID and timestamps on the passed debt.
	CreateDebt(ctx context.Context, debt *models.Debt) error
	UpdateDebt(ctx context.Context, id string, patch models.DebtPatch) (*models.Debt, error)
	// DeleteDebt also deletes every transaction of the debt.
	DeleteDebt(ctx context.Context, id string) error

	ListIncomeSources(ctx context.Context) ([]models.IncomeSource, error)
	GetIncomeSource(ctx context.Context, id string) (*models.IncomeSource, error)
	CreateIncomeSource(ctx context.Context, source *models.IncomeSource) error
	UpdateIncomeSource(ctx context.Context, id string, patch models.IncomeSourcePatch) (*models.IncomeSource, error)
	DeleteIncomeSource(ctx context.Context, id string) error

	// ListTransactions returns the debt's ledger in creation order.
	ListTransactions(ctx context.Context, debtID string) ([]models.Transaction, error)
	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
	CreateTransaction(ctx context.Context, txn *models.Transaction) error
	DeleteTransaction(ctx context.Context, id string) error
}

// Store defines the remote table operations of the cloud backend.
// Every entity row is owned by a user; all reads and writes are scoped by
// userID. This abstraction allows swapping storage backends (SQLite,
// PostgreSQL, etc.) without changing the service layer.
type Store interface {
	// CreateDebt inserts a new debt row owned by userID.
	// The store always assigns a fresh ID, ignoring debt.ID.
	CreateDebt(ctx context.Context, userID string, debt *models.Debt) error
	GetDebt(ctx context.Context, userID, debtID string) (*models.Debt, error)
	ListDebts(ctx context.Context, userID string) ([]models.Debt, error)
	UpdateDebt(ctx context.Context, userID, debtID string, patch models.DebtPatch) (*models.Debt, error)
	DeleteDebt(ctx context.Context, userID, debtID string) error

	CreateIncomeSource(ctx context.Context, userID string, source *models.IncomeSource) error
	GetIncomeSource(ctx context.Context, userID, sourceID string) (*models.IncomeSource, error)
	ListIncomeSources(ctx context.Context, userID string) ([]models.IncomeSource, error)
	UpdateIncomeSource(ctx context.Context, userID, sourceID string, patch models.IncomeSourcePatch) (*models.IncomeSource, error)
	DeleteIncomeSource(ctx context.Context, userID, sourceID string) error

	CreateTransaction(ctx context.Context, userID string, txn *models.Transaction) error
	GetTransaction(ctx context.Context, userID, txnID string) (*models.Transaction, error)
	ListTransactions(ctx context.Context, userID, debtID string) ([]models.Transaction, error)
	DeleteTransaction(ctx context.Context, userID, txnID string) error

	// Close releases any resources held by the store.
	Close() error
}

// UserStore persists registered accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}
