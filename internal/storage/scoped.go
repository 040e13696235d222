package storage

import (
	"context"

	"github.com/mmynk/debtbook/internal/models"
)

// Ensure userRepository implements Repository
var _ Repository = (*userRepository)(nil)

// ForUser returns a Repository over the cloud store whose every call is
// scoped to userID.
func ForUser(store Store, userID string) Repository {
	return &userRepository{store: store, userID: userID}
}

type userRepository struct {
	store  Store
	userID string
}

func (r *userRepository) ListDebts(ctx context.Context) ([]models.Debt, error) {
	return r.store.ListDebts(ctx, r.userID)
}

func (r *userRepository) GetDebt(ctx context.Context, id string) (*models.Debt, error) {
	return r.store.GetDebt(ctx, r.userID, id)
}

func (r *userRepository) CreateDebt(ctx context.Context, debt *models.Debt) error {
	return r.store.CreateDebt(ctx, r.userID, debt)
}

func (r *userRepository) UpdateDebt(ctx context.Context, id string, patch models.DebtPatch) (*models.Debt, error) {
	return r.store.UpdateDebt(ctx, r.userID, id, patch)
}

func (r *userRepository) DeleteDebt(ctx context.Context, id string) error {
	return r.store.DeleteDebt(ctx, r.userID, id)
}

func (r *userRepository) ListIncomeSources(ctx context.Context) ([]models.IncomeSource, error) {
	return r.store.ListIncomeSources(ctx, r.userID)
}

func (r *userRepository) GetIncomeSource(ctx context.Context, id string) (*models.IncomeSource, error) {
	return r.store.GetIncomeSource(ctx, r.userID, id)
}

func (r *userRepository) CreateIncomeSource(ctx context.Context, source *models.IncomeSource) error {
	return r.store.CreateIncomeSource(ctx, r.userID, source)
}

func (r *userRepository) UpdateIncomeSource(ctx context.Context, id string, patch models.IncomeSourcePatch) (*models.IncomeSource, error) {
	return r.store.UpdateIncomeSource(ctx, r.userID, id, patch)
}

func (r *userRepository) DeleteIncomeSource(ctx context.Context, id string) error {
	return r.store.DeleteIncomeSource(ctx, r.userID, id)
}

func (r *userRepository) ListTransactions(ctx context.Context, debtID string) ([]models.Transaction, error) {
	return r.store.ListTransactions(ctx, r.userID, debtID)
}

func (r *userRepository) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	return r.store.GetTransaction(ctx, r.userID, id)
}

func (r *userRepository) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	return r.store.CreateTransaction(ctx, r.userID, txn)
}

func (r *userRepository) DeleteTransaction(ctx context.Context, id string) error {
	return r.store.DeleteTransaction(ctx, r.userID, id)
}
