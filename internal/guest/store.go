// Package guest holds guest-mode data: the Local Record Store, which keeps
// debts, income sources and transactions as JSON collections in a key-value
// store, and the SessionManager that time-boxes access to them.
package guest

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/mmynk/debtbook/internal/kv"
	"github.com/mmynk/debtbook/internal/models"
	"github.com/mmynk/debtbook/internal/storage"
)

// Keys of the guest namespace in the key-value store.
const (
	SessionKey      = "@debtbook/guest_session"
	DebtsKey        = "@debtbook/guest_debts"
	IncomeKey       = "@debtbook/guest_income"
	TransactionsKey = "@debtbook/guest_transactions"
)

// Ensure Store implements storage.Repository
var _ storage.Repository = (*Store)(nil)

// Store is the Local Record Store.
//
// Every operation is a read-modify-write of one whole collection value, so
// records are never partially written. Two concurrent writers to the same
// collection can overwrite each other; callers are expected to serialize
// writes (one device, one user).
type Store struct {
	kv  kv.Store
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a Local Record Store on top of the given key-value store.
func NewStore(store kv.Store, opts ...Option) *Store {
	s := &Store{kv: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Counts is the number of records in each guest collection.
type Counts struct {
	Debts         int `json:"debts"`
	IncomeSources int `json:"incomeSources"`
	Transactions  int `json:"transactions"`
}

// Empty reports whether there are no debts and no income sources.
// Transactions cannot exist without debts.
func (c Counts) Empty() bool {
	return c.Debts == 0 && c.IncomeSources == 0
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC()
}

// readCollection loads a JSON array. A missing key yields an empty
// collection; so does a corrupt value, which is logged and otherwise
// ignored. Failures of the key-value store itself are returned.
func readCollection[T any](ctx context.Context, s *Store, key string) ([]T, error) {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		slog.Error("Guest collection read failed", "key", key, "error", err)
		return nil, &storage.StorageError{Op: "read", Key: key, Err: err}
	}
	if !ok || raw == "" {
		return nil, nil
	}

	var items []T
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		slog.Warn("Guest collection is corrupt, treating as empty", "key", key, "error", err)
		return nil, nil
	}
	return items, nil
}

func writeCollection[T any](ctx context.Context, s *Store, key string, items []T) error {
	if items == nil {
		items = []T{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return &storage.StorageError{Op: "encode", Key: key, Err: err}
	}
	if err := s.kv.Set(ctx, key, string(raw)); err != nil {
		slog.Error("Guest collection write failed", "key", key, "error", err)
		return &storage.StorageError{Op: "write", Key: key, Err: err}
	}
	return nil
}

// ListDebts returns all guest debts in creation order.
func (s *Store) ListDebts(ctx context.Context) ([]models.Debt, error) {
	return readCollection[models.Debt](ctx, s, DebtsKey)
}

// GetDebt returns the guest debt with the given ID.
func (s *Store) GetDebt(ctx context.Context, id string) (*models.Debt, error) {
	debts, err := s.ListDebts(ctx)
	if err != nil {
		return nil, err
	}
	for i := range debts {
		if debts[i].ID == id {
			return &debts[i], nil
		}
	}
	return nil, storage.NotFound("debt", id)
}

// CreateDebt assigns a local ID and timestamps and appends the debt.
func (s *Store) CreateDebt(ctx context.Context, debt *models.Debt) error {
	debts, err := s.ListDebts(ctx)
	if err != nil {
		return err
	}

	now := s.timestamp()
	debt.ID = NewLocalID(now)
	debt.CreatedAt = now
	debt.UpdatedAt = now
	if debt.Status == "" {
		debt.Status = models.DebtStatusActive
	}

	return writeCollection(ctx, s, DebtsKey, append(debts, *debt))
}

// UpdateDebt merges the patch into the stored debt and refreshes UpdatedAt.
func (s *Store) UpdateDebt(ctx context.Context, id string, patch models.DebtPatch) (*models.Debt, error) {
	debts, err := s.ListDebts(ctx)
	if err != nil {
		return nil, err
	}
	for i := range debts {
		if debts[i].ID != id {
			continue
		}
		patch.Apply(&debts[i])
		debts[i].UpdatedAt = s.timestamp()
		if err := writeCollection(ctx, s, DebtsKey, debts); err != nil {
			return nil, err
		}
		updated := debts[i]
		return &updated, nil
	}
	return nil, storage.NotFound("debt", id)
}

// DeleteDebt removes the debt and then its transactions. The debt goes
// first: an interrupted delete leaves orphaned transactions, which nothing
// reads, rather than a debt whose ledger is missing entries.
func (s *Store) DeleteDebt(ctx context.Context, id string) error {
	debts, err := s.ListDebts(ctx)
	if err != nil {
		return err
	}
	kept := debts[:0]
	found := false
	for _, d := range debts {
		if d.ID == id {
			found = true
			continue
		}
		kept = append(kept, d)
	}
	if !found {
		return storage.NotFound("debt", id)
	}
	if err := writeCollection(ctx, s, DebtsKey, kept); err != nil {
		return err
	}

	txns, err := s.ListAllTransactions(ctx)
	if err != nil {
		return err
	}
	remaining := txns[:0]
	for _, t := range txns {
		if t.DebtID != id {
			remaining = append(remaining, t)
		}
	}
	return writeCollection(ctx, s, TransactionsKey, remaining)
}

// ListIncomeSources returns all guest income sources in creation order.
func (s *Store) ListIncomeSources(ctx context.Context) ([]models.IncomeSource, error) {
	return readCollection[models.IncomeSource](ctx, s, IncomeKey)
}

// GetIncomeSource returns the guest income source with the given ID.
func (s *Store) GetIncomeSource(ctx context.Context, id string) (*models.IncomeSource, error) {
	sources, err := s.ListIncomeSources(ctx)
	if err != nil {
		return nil, err
	}
	for i := range sources {
		if sources[i].ID == id {
			return &sources[i], nil
		}
	}
	return nil, storage.NotFound("income source", id)
}

// CreateIncomeSource assigns a local ID and timestamps and appends the source.
func (s *Store) CreateIncomeSource(ctx context.Context, source *models.IncomeSource) error {
	sources, err := s.ListIncomeSources(ctx)
	if err != nil {
		return err
	}

	now := s.timestamp()
	source.ID = NewLocalID(now)
	source.CreatedAt = now
	source.UpdatedAt = now

	return writeCollection(ctx, s, IncomeKey, append(sources, *source))
}

// UpdateIncomeSource merges the patch into the stored source.
func (s *Store) UpdateIncomeSource(ctx context.Context, id string, patch models.IncomeSourcePatch) (*models.IncomeSource, error) {
	sources, err := s.ListIncomeSources(ctx)
	if err != nil {
		return nil, err
	}
	for i := range sources {
		if sources[i].ID != id {
			continue
		}
		patch.Apply(&sources[i])
		sources[i].UpdatedAt = s.timestamp()
		if err := writeCollection(ctx, s, IncomeKey, sources); err != nil {
			return nil, err
		}
		updated := sources[i]
		return &updated, nil
	}
	return nil, storage.NotFound("income source", id)
}

// DeleteIncomeSource removes an income source.
func (s *Store) DeleteIncomeSource(ctx context.Context, id string) error {
	sources, err := s.ListIncomeSources(ctx)
	if err != nil {
		return err
	}
	kept := sources[:0]
	for _, src := range sources {
		if src.ID != id {
			kept = append(kept, src)
		}
	}
	if len(kept) == len(sources) {
		return storage.NotFound("income source", id)
	}
	return writeCollection(ctx, s, IncomeKey, kept)
}

// ListAllTransactions returns every guest transaction in creation order.
func (s *Store) ListAllTransactions(ctx context.Context) ([]models.Transaction, error) {
	return readCollection[models.Transaction](ctx, s, TransactionsKey)
}

// ListTransactions returns the ledger of one debt in creation order.
func (s *Store) ListTransactions(ctx context.Context, debtID string) ([]models.Transaction, error) {
	txns, err := s.ListAllTransactions(ctx)
	if err != nil {
		return nil, err
	}
	var ledger []models.Transaction
	for _, t := range txns {
		if t.DebtID == debtID {
			ledger = append(ledger, t)
		}
	}
	return ledger, nil
}

// GetTransaction returns the guest transaction with the given ID.
func (s *Store) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	txns, err := s.ListAllTransactions(ctx)
	if err != nil {
		return nil, err
	}
	for i := range txns {
		if txns[i].ID == id {
			return &txns[i], nil
		}
	}
	return nil, storage.NotFound("transaction", id)
}

// CreateTransaction appends a ledger entry. The parent debt must exist.
func (s *Store) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	if _, err := s.GetDebt(ctx, txn.DebtID); err != nil {
		return err
	}
	txns, err := s.ListAllTransactions(ctx)
	if err != nil {
		return err
	}

	now := s.timestamp()
	txn.ID = NewLocalID(now)
	txn.CreatedAt = now

	return writeCollection(ctx, s, TransactionsKey, append(txns, *txn))
}

// DeleteTransaction removes a transaction. It does not touch the debt
// balance; see service.Ledger for the reversing delete.
func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	txns, err := s.ListAllTransactions(ctx)
	if err != nil {
		return err
	}
	kept := txns[:0]
	for _, t := range txns {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	if len(kept) == len(txns) {
		return storage.NotFound("transaction", id)
	}
	return writeCollection(ctx, s, TransactionsKey, kept)
}

// Summary counts the records in each guest collection.
func (s *Store) Summary(ctx context.Context) (Counts, error) {
	debts, err := s.ListDebts(ctx)
	if err != nil {
		return Counts{}, err
	}
	sources, err := s.ListIncomeSources(ctx)
	if err != nil {
		return Counts{}, err
	}
	txns, err := s.ListAllTransactions(ctx)
	if err != nil {
		return Counts{}, err
	}
	return Counts{Debts: len(debts), IncomeSources: len(sources), Transactions: len(txns)}, nil
}

// Clear removes the whole guest namespace. The session key is removed last
// and on its own, so an interrupted clear still reads as "no session" only
// once the data is already gone.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.kv.MultiRemove(ctx, DebtsKey, IncomeKey, TransactionsKey); err != nil {
		slog.Error("Failed to clear guest collections", "error", err)
		return &storage.StorageError{Op: "remove", Key: "guest collections", Err: err}
	}
	if err := s.kv.MultiRemove(ctx, SessionKey); err != nil {
		slog.Error("Failed to clear guest session", "error", err)
		return &storage.StorageError{Op: "remove", Key: SessionKey, Err: err}
	}
	return nil
}

func (s *Store) loadSession(ctx context.Context) (*models.Session, error) {
	raw, ok, err := s.kv.Get(ctx, SessionKey)
	if err != nil {
		slog.Error("Guest session read failed", "error", err)
		return nil, &storage.StorageError{Op: "read", Key: SessionKey, Err: err}
	}
	if !ok || raw == "" {
		return nil, nil
	}

	var session models.Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		slog.Warn("Guest session is corrupt, treating as absent", "error", err)
		return nil, nil
	}
	return &session, nil
}

func (s *Store) saveSession(ctx context.Context, session *models.Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return &storage.StorageError{Op: "encode", Key: SessionKey, Err: err}
	}
	if err := s.kv.Set(ctx, SessionKey, string(raw)); err != nil {
		slog.Error("Guest session write failed", "error", err)
		return &storage.StorageError{Op: "write", Key: SessionKey, Err: err}
	}
	return nil
}
