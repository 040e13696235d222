package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/debtbook/internal/models"
	"github.com/mmynk/debtbook/internal/storage"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func createTestUser(t *testing.T, store *SQLiteStore, email string) *models.User {
	t.Helper()

	user := models.NewUser(email, "Test User", "hash")
	if err := store.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return user
}

func testDebt() *models.Debt {
	return &models.Debt{
		ID:             "local_1700000000000_abc",
		Name:           "Visa",
		DebtType:       models.DebtTypeCreditCard,
		CreditorName:   "Big Bank",
		CurrencyCode:   "USD",
		Principal:      decimal.NewFromInt(1000),
		CurrentBalance: decimal.NewFromInt(1000),
		InterestRate:   decimal.NewNullDecimal(decimal.NewFromInt(12)),
		Priority:       2,
	}
}

func TestSQLiteStoreDebts(t *testing.T) {
	store := newTestStore(t)
	user := createTestUser(t, store, "debts@example.com")
	ctx := context.Background()

	t.Run("CreateDebt assigns a server ID", func(t *testing.T) {
		debt := testDebt()
		if err := store.CreateDebt(ctx, user.ID, debt); err != nil {
			t.Fatalf("CreateDebt failed: %v", err)
		}

		if debt.ID == "" || debt.ID == "local_1700000000000_abc" {
			t.Errorf("Expected a fresh server ID, got %q", debt.ID)
		}
		if debt.Status != models.DebtStatusActive {
			t.Errorf("Status = %q, want %q", debt.Status, models.DebtStatusActive)
		}
		if debt.CreatedAt.IsZero() {
			t.Error("Expected CreatedAt to be set")
		}
	})

	t.Run("GetDebt round-trips every field", func(t *testing.T) {
		due := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
		original := testDebt()
		original.DueDate = &due
		original.MinimumPayment = decimal.NewNullDecimal(decimal.RequireFromString("25.50"))
		if err := store.CreateDebt(ctx, user.ID, original); err != nil {
			t.Fatalf("CreateDebt failed: %v", err)
		}

		got, err := store.GetDebt(ctx, user.ID, original.ID)
		if err != nil {
			t.Fatalf("GetDebt failed: %v", err)
		}

		if got.Name != original.Name || got.CreditorName != original.CreditorName {
			t.Errorf("Name/creditor mismatch: got %q/%q", got.Name, got.CreditorName)
		}
		if !got.Principal.Equal(original.Principal) {
			t.Errorf("Principal = %s, want %s", got.Principal, original.Principal)
		}
		if !got.InterestRate.Valid || !got.InterestRate.Decimal.Equal(decimal.NewFromInt(12)) {
			t.Errorf("InterestRate = %+v, want 12", got.InterestRate)
		}
		if !got.MinimumPayment.Decimal.Equal(decimal.RequireFromString("25.5")) {
			t.Errorf("MinimumPayment = %s, want 25.5", got.MinimumPayment.Decimal)
		}
		if got.DueDate == nil || !got.DueDate.Equal(due) {
			t.Errorf("DueDate = %v, want %v", got.DueDate, due)
		}
		if got.Priority != 2 {
			t.Errorf("Priority = %d, want 2", got.Priority)
		}
	})

	t.Run("GetDebt returns ErrNotFound for another user", func(t *testing.T) {
		other := createTestUser(t, store, "other@example.com")
		debt := testDebt()
		if err := store.CreateDebt(ctx, user.ID, debt); err != nil {
			t.Fatalf("CreateDebt failed: %v", err)
		}

		_, err := store.GetDebt(ctx, other.ID, debt.ID)
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("UpdateDebt merges the patch", func(t *testing.T) {
		debt := testDebt()
		if err := store.CreateDebt(ctx, user.ID, debt); err != nil {
			t.Fatalf("CreateDebt failed: %v", err)
		}

		name := "Visa Gold"
		updated, err := store.UpdateDebt(ctx, user.ID, debt.ID, models.DebtPatch{Name: &name})
		if err != nil {
			t.Fatalf("UpdateDebt failed: %v", err)
		}
		if updated.Name != "Visa Gold" {
			t.Errorf("Name = %q, want Visa Gold", updated.Name)
		}
		if !updated.CurrentBalance.Equal(decimal.NewFromInt(1000)) {
			t.Errorf("CurrentBalance changed unexpectedly: %s", updated.CurrentBalance)
		}
	})

	t.Run("UpdateDebt on missing debt", func(t *testing.T) {
		_, err := store.UpdateDebt(ctx, user.ID, "nonexistent-id", models.DebtPatch{})
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})
}

func TestSQLiteStoreTransactions(t *testing.T) {
	store := newTestStore(t)
	user := createTestUser(t, store, "txns@example.com")
	ctx := context.Background()

	debt := testDebt()
	if err := store.CreateDebt(ctx, user.ID, debt); err != nil {
		t.Fatalf("CreateDebt failed: %v", err)
	}

	amounts := []int64{1000, 100, 50}
	types := []models.TransactionType{models.TransactionInitial, models.TransactionBorrow, models.TransactionPayment}
	for i := range amounts {
		txn := &models.Transaction{
			DebtID: debt.ID,
			Type:   types[i],
			Amount: decimal.NewFromInt(amounts[i]),
			Notes:  "entry",
		}
		if err := store.CreateTransaction(ctx, user.ID, txn); err != nil {
			t.Fatalf("CreateTransaction %d failed: %v", i, err)
		}
	}

	t.Run("ListTransactions keeps creation order", func(t *testing.T) {
		txns, err := store.ListTransactions(ctx, user.ID, debt.ID)
		if err != nil {
			t.Fatalf("ListTransactions failed: %v", err)
		}
		if len(txns) != 3 {
			t.Fatalf("Expected 3 transactions, got %d", len(txns))
		}
		for i, txn := range txns {
			if txn.Type != types[i] {
				t.Errorf("Transaction %d type = %s, want %s", i, txn.Type, types[i])
			}
			if txn.NewBalance.Valid {
				t.Errorf("Transaction %d has unexpected NewBalance", i)
			}
		}
	})

	t.Run("CreateTransaction rejects unknown debt", func(t *testing.T) {
		err := store.CreateTransaction(ctx, user.ID, &models.Transaction{
			DebtID: "missing",
			Type:   models.TransactionPayment,
			Amount: decimal.NewFromInt(1),
		})
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("DeleteDebt cascades to transactions", func(t *testing.T) {
		txns, _ := store.ListTransactions(ctx, user.ID, debt.ID)

		if err := store.DeleteDebt(ctx, user.ID, debt.ID); err != nil {
			t.Fatalf("DeleteDebt failed: %v", err)
		}

		remaining, err := store.ListTransactions(ctx, user.ID, debt.ID)
		if err != nil {
			t.Fatalf("ListTransactions failed: %v", err)
		}
		if len(remaining) != 0 {
			t.Errorf("Expected 0 transactions after delete, got %d", len(remaining))
		}
		if _, err := store.GetTransaction(ctx, user.ID, txns[0].ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Expected ErrNotFound for cascaded transaction, got %v", err)
		}
	})

	t.Run("DeleteDebt on missing debt", func(t *testing.T) {
		if err := store.DeleteDebt(ctx, user.ID, debt.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})
}

func TestSQLiteStoreIncomeSources(t *testing.T) {
	store := newTestStore(t)
	user := createTestUser(t, store, "income@example.com")
	ctx := context.Background()

	source := &models.IncomeSource{
		SourceName:   "Salary",
		Amount:       decimal.NewFromInt(4200),
		CurrencyCode: "EUR",
		Frequency:    models.FrequencyMonthly,
		IsPrimary:    true,
	}
	if err := store.CreateIncomeSource(ctx, user.ID, source); err != nil {
		t.Fatalf("CreateIncomeSource failed: %v", err)
	}

	got, err := store.GetIncomeSource(ctx, user.ID, source.ID)
	if err != nil {
		t.Fatalf("GetIncomeSource failed: %v", err)
	}
	if !got.IsPrimary || got.Frequency != models.FrequencyMonthly || !got.Amount.Equal(source.Amount) {
		t.Errorf("Unexpected income source: %+v", got)
	}

	primary := false
	updated, err := store.UpdateIncomeSource(ctx, user.ID, source.ID, models.IncomeSourcePatch{IsPrimary: &primary})
	if err != nil {
		t.Fatalf("UpdateIncomeSource failed: %v", err)
	}
	if updated.IsPrimary {
		t.Error("Expected IsPrimary to be false after update")
	}

	if err := store.DeleteIncomeSource(ctx, user.ID, source.ID); err != nil {
		t.Fatalf("DeleteIncomeSource failed: %v", err)
	}
	sources, err := store.ListIncomeSources(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListIncomeSources failed: %v", err)
	}
	if len(sources) != 0 {
		t.Errorf("Expected 0 income sources, got %d", len(sources))
	}
}

func TestSQLiteStoreUsers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	user := createTestUser(t, store, "alice@example.com")

	got, err := store.GetUserByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("ID mismatch: got %s, want %s", got.ID, user.ID)
	}

	if _, err := store.GetUserByID(ctx, "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	if err := store.CreateUser(ctx, models.NewUser("alice@example.com", "Dup", "hash")); !storage.IsRemoteError(err) {
		t.Errorf("Expected RemoteError for duplicate email, got %v", err)
	}
}
