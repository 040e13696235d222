package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mmynk/debtbook/internal/models"
	"github.com/mmynk/debtbook/internal/storage"
)

const incomeColumns = `id, source_name, amount, currency_code, frequency, is_primary, created_at, updated_at`

// CreateIncomeSource inserts a new income source owned by userID.
// Like CreateDebt, it always assigns the ID and keeps preset timestamps.
func (s *SQLiteStore) CreateIncomeSource(ctx context.Context, userID string, source *models.IncomeSource) error {
	now := s.now().UTC()
	source.ID = newID()
	if source.CreatedAt.IsZero() {
		source.CreatedAt = now
	}
	if source.UpdatedAt.IsZero() {
		source.UpdatedAt = now
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO income_sources (id, user_id, source_name, amount, currency_code, frequency, is_primary, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		source.ID, userID, source.SourceName, source.Amount, source.CurrencyCode, string(source.Frequency),
		source.IsPrimary, toMillis(source.CreatedAt), toMillis(source.UpdatedAt),
	)
	if err != nil {
		return remoteErr("insert", "income_sources", fmt.Errorf("failed to insert income source: %w", err))
	}
	return nil
}

// GetIncomeSource retrieves one of the user's income sources by ID.
func (s *SQLiteStore) GetIncomeSource(ctx context.Context, userID, sourceID string) (*models.IncomeSource, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+incomeColumns+" FROM income_sources WHERE id = ? AND user_id = ?",
		sourceID, userID,
	)
	source, err := scanIncomeSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFound("income source", sourceID)
	}
	if err != nil {
		return nil, remoteErr("select", "income_sources", fmt.Errorf("failed to get income source: %w", err))
	}
	return source, nil
}

// ListIncomeSources retrieves all of the user's income sources, oldest first.
func (s *SQLiteStore) ListIncomeSources(ctx context.Context, userID string) ([]models.IncomeSource, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+incomeColumns+" FROM income_sources WHERE user_id = ? ORDER BY created_at, rowid",
		userID,
	)
	if err != nil {
		return nil, remoteErr("select", "income_sources", fmt.Errorf("failed to list income sources: %w", err))
	}
	defer rows.Close()

	var sources []models.IncomeSource
	for rows.Next() {
		source, err := scanIncomeSource(rows)
		if err != nil {
			return nil, remoteErr("select", "income_sources", fmt.Errorf("failed to scan income source: %w", err))
		}
		sources = append(sources, *source)
	}
	if err := rows.Err(); err != nil {
		return nil, remoteErr("select", "income_sources", fmt.Errorf("failed to iterate income sources: %w", err))
	}
	return sources, nil
}

// UpdateIncomeSource merges the patch into the stored income source.
func (s *SQLiteStore) UpdateIncomeSource(ctx context.Context, userID, sourceID string, patch models.IncomeSourcePatch) (*models.IncomeSource, error) {
	source, err := s.GetIncomeSource(ctx, userID, sourceID)
	if err != nil {
		return nil, err
	}
	patch.Apply(source)
	source.UpdatedAt = s.now().UTC()

	_, err = s.db.ExecContext(ctx,
		`UPDATE income_sources SET source_name = ?, amount = ?, currency_code = ?, frequency = ?, is_primary = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		source.SourceName, source.Amount, source.CurrencyCode, string(source.Frequency), source.IsPrimary,
		toMillis(source.UpdatedAt), sourceID, userID,
	)
	if err != nil {
		return nil, remoteErr("update", "income_sources", fmt.Errorf("failed to update income source: %w", err))
	}
	return source, nil
}

// DeleteIncomeSource removes an income source by ID.
func (s *SQLiteStore) DeleteIncomeSource(ctx context.Context, userID, sourceID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM income_sources WHERE id = ? AND user_id = ?", sourceID, userID)
	if err != nil {
		return remoteErr("delete", "income_sources", fmt.Errorf("failed to delete income source: %w", err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.NotFound("income source", sourceID)
	}
	return nil
}

func scanIncomeSource(row rowScanner) (*models.IncomeSource, error) {
	var (
		source               models.IncomeSource
		frequency            string
		createdAt, updatedAt int64
	)
	if err := row.Scan(&source.ID, &source.SourceName, &source.Amount, &source.CurrencyCode, &frequency,
		&source.IsPrimary, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	source.Frequency = models.Frequency(frequency)
	source.CreatedAt = fromMillis(createdAt)
	source.UpdatedAt = fromMillis(updatedAt)
	return &source, nil
}
