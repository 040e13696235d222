package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mmynk/debtbook/internal/models"
	"github.com/mmynk/debtbook/internal/storage"
)

const debtColumns = `id, name, debt_type, creditor_name, currency_code, principal, current_balance,
	interest_rate, minimum_payment, due_date, status, priority, created_at, updated_at`

// CreateDebt inserts a new debt owned by userID. A fresh ID is always
// assigned, so guest IDs never reach the table. Timestamps already set on
// the debt are kept, which lets migrated records keep their history.
func (s *SQLiteStore) CreateDebt(ctx context.Context, userID string, debt *models.Debt) error {
	now := s.now().UTC()
	debt.ID = newID()
	if debt.CreatedAt.IsZero() {
		debt.CreatedAt = now
	}
	if debt.UpdatedAt.IsZero() {
		debt.UpdatedAt = now
	}
	if debt.Status == "" {
		debt.Status = models.DebtStatusActive
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO debts (id, user_id, name, debt_type, creditor_name, currency_code, principal,
			current_balance, interest_rate, minimum_payment, due_date, status, priority, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		debt.ID, userID, debt.Name, string(debt.DebtType), nullString(debt.CreditorName), debt.CurrencyCode,
		debt.Principal, debt.CurrentBalance, debt.InterestRate, debt.MinimumPayment, nullMillis(debt.DueDate),
		string(debt.Status), debt.Priority, toMillis(debt.CreatedAt), toMillis(debt.UpdatedAt),
	)
	if err != nil {
		return remoteErr("insert", "debts", fmt.Errorf("failed to insert debt: %w", err))
	}
	return nil
}

// GetDebt retrieves one of the user's debts by ID.
func (s *SQLiteStore) GetDebt(ctx context.Context, userID, debtID string) (*models.Debt, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+debtColumns+" FROM debts WHERE id = ? AND user_id = ?",
		debtID, userID,
	)
	debt, err := scanDebt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFound("debt", debtID)
	}
	if err != nil {
		return nil, remoteErr("select", "debts", fmt.Errorf("failed to get debt: %w", err))
	}
	return debt, nil
}

// ListDebts retrieves all of the user's debts, oldest first.
func (s *SQLiteStore) ListDebts(ctx context.Context, userID string) ([]models.Debt, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+debtColumns+" FROM debts WHERE user_id = ? ORDER BY created_at, rowid",
		userID,
	)
	if err != nil {
		return nil, remoteErr("select", "debts", fmt.Errorf("failed to list debts: %w", err))
	}
	defer rows.Close()

	var debts []models.Debt
	for rows.Next() {
		debt, err := scanDebt(rows)
		if err != nil {
			return nil, remoteErr("select", "debts", fmt.Errorf("failed to scan debt: %w", err))
		}
		debts = append(debts, *debt)
	}
	if err := rows.Err(); err != nil {
		return nil, remoteErr("select", "debts", fmt.Errorf("failed to iterate debts: %w", err))
	}
	return debts, nil
}

// UpdateDebt merges the patch into the stored debt and refreshes UpdatedAt.
func (s *SQLiteStore) UpdateDebt(ctx context.Context, userID, debtID string, patch models.DebtPatch) (*models.Debt, error) {
	debt, err := s.GetDebt(ctx, userID, debtID)
	if err != nil {
		return nil, err
	}
	patch.Apply(debt)
	debt.UpdatedAt = s.now().UTC()

	_, err = s.db.ExecContext(ctx,
		`UPDATE debts SET name = ?, debt_type = ?, creditor_name = ?, currency_code = ?, current_balance = ?,
			interest_rate = ?, minimum_payment = ?, due_date = ?, status = ?, priority = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		debt.Name, string(debt.DebtType), nullString(debt.CreditorName), debt.CurrencyCode, debt.CurrentBalance,
		debt.InterestRate, debt.MinimumPayment, nullMillis(debt.DueDate), string(debt.Status), debt.Priority,
		toMillis(debt.UpdatedAt), debtID, userID,
	)
	if err != nil {
		return nil, remoteErr("update", "debts", fmt.Errorf("failed to update debt: %w", err))
	}
	return debt, nil
}

// DeleteDebt removes a debt and all of its transactions.
func (s *SQLiteStore) DeleteDebt(ctx context.Context, userID, debtID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return remoteErr("delete", "debts", fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	// Cascade explicitly as well, so the contract holds even if the
	// connection was opened without foreign key enforcement.
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM transactions WHERE debt_id = ? AND user_id = ?", debtID, userID,
	); err != nil {
		return remoteErr("delete", "transactions", fmt.Errorf("failed to delete debt transactions: %w", err))
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM debts WHERE id = ? AND user_id = ?", debtID, userID)
	if err != nil {
		return remoteErr("delete", "debts", fmt.Errorf("failed to delete debt: %w", err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.NotFound("debt", debtID)
	}

	if err := tx.Commit(); err != nil {
		return remoteErr("delete", "debts", fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

func scanDebt(row rowScanner) (*models.Debt, error) {
	var (
		debt                 models.Debt
		debtType, status     string
		creditor             sql.NullString
		dueDate              sql.NullInt64
		createdAt, updatedAt int64
	)
	err := row.Scan(
		&debt.ID, &debt.Name, &debtType, &creditor, &debt.CurrencyCode, &debt.Principal, &debt.CurrentBalance,
		&debt.InterestRate, &debt.MinimumPayment, &dueDate, &status, &debt.Priority, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	debt.DebtType = models.DebtType(debtType)
	debt.Status = models.DebtStatus(status)
	if creditor.Valid {
		debt.CreditorName = creditor.String
	}
	if dueDate.Valid {
		due := fromMillis(dueDate.Int64)
		debt.DueDate = &due
	}
	debt.CreatedAt = fromMillis(createdAt)
	debt.UpdatedAt = fromMillis(updatedAt)
	return &debt, nil
}
