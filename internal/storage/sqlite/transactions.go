package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mmynk/debtbook/internal/models"
	"github.com/mmynk/debtbook/internal/storage"
)

const transactionColumns = `id, debt_id, type, amount, interest_amount, new_balance, notes, created_at`

// CreateTransaction persists a new ledger entry. The parent debt must exist
// and belong to the same user.
func (s *SQLiteStore) CreateTransaction(ctx context.Context, userID string, txn *models.Transaction) error {
	var exists int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM debts WHERE id = ? AND user_id = ?", txn.DebtID, userID,
	).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.NotFound("debt", txn.DebtID)
	}
	if err != nil {
		return remoteErr("select", "debts", fmt.Errorf("failed to check debt existence: %w", err))
	}

	txn.ID = newID()
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = s.now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO transactions (id, user_id, debt_id, type, amount, interest_amount, new_balance, notes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ID, userID, txn.DebtID, string(txn.Type), txn.Amount, txn.InterestAmount, txn.NewBalance,
		nullString(txn.Notes), toMillis(txn.CreatedAt),
	)
	if err != nil {
		return remoteErr("insert", "transactions", fmt.Errorf("failed to insert transaction: %w", err))
	}
	return nil
}

// GetTransaction retrieves a transaction by ID.
func (s *SQLiteStore) GetTransaction(ctx context.Context, userID, txnID string) (*models.Transaction, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE id = ? AND user_id = ?",
		txnID, userID,
	)
	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFound("transaction", txnID)
	}
	if err != nil {
		return nil, remoteErr("select", "transactions", fmt.Errorf("failed to get transaction: %w", err))
	}
	return txn, nil
}

// ListTransactions retrieves a debt's ledger in creation order.
func (s *SQLiteStore) ListTransactions(ctx context.Context, userID, debtID string) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE debt_id = ? AND user_id = ? ORDER BY created_at, rowid",
		debtID, userID,
	)
	if err != nil {
		return nil, remoteErr("select", "transactions", fmt.Errorf("failed to list transactions: %w", err))
	}
	defer rows.Close()

	var txns []models.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, remoteErr("select", "transactions", fmt.Errorf("failed to scan transaction: %w", err))
		}
		txns = append(txns, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, remoteErr("select", "transactions", fmt.Errorf("failed to iterate transactions: %w", err))
	}
	return txns, nil
}

// DeleteTransaction removes a transaction by ID.
func (s *SQLiteStore) DeleteTransaction(ctx context.Context, userID, txnID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM transactions WHERE id = ? AND user_id = ?", txnID, userID)
	if err != nil {
		return remoteErr("delete", "transactions", fmt.Errorf("failed to delete transaction: %w", err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.NotFound("transaction", txnID)
	}
	return nil
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var (
		txn       models.Transaction
		txnType   string
		notes     sql.NullString
		createdAt int64
	)
	if err := row.Scan(&txn.ID, &txn.DebtID, &txnType, &txn.Amount, &txn.InterestAmount, &txn.NewBalance,
		&notes, &createdAt); err != nil {
		return nil, err
	}
	txn.Type = models.TransactionType(txnType)
	if notes.Valid {
		txn.Notes = notes.String
	}
	txn.CreatedAt = fromMillis(createdAt)
	return &txn, nil
}
