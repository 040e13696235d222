package mode

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/debtbook/internal/auth"
	"github.com/mmynk/debtbook/internal/guest"
	"github.com/mmynk/debtbook/internal/kv"
	"github.com/mmynk/debtbook/internal/migration"
	"github.com/mmynk/debtbook/internal/models"
	"github.com/mmynk/debtbook/internal/storage"
	"github.com/mmynk/debtbook/internal/storage/sqlite"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	clock      *clock
	backing    *kv.Memory
	local      *guest.Store
	sessions   *guest.SessionManager
	cloud      *sqlite.SQLiteStore
	controller *Controller
}

func newFixture(t *testing.T, migrator Migrator, identity Identity) *fixture {
	t.Helper()
	clk := &clock{t: time.Date(2028, 1, 1, 0, 0, 0, 0, time.UTC)}
	backing := kv.NewMemory()
	local := guest.NewStore(backing, guest.WithClock(clk.Now))
	sessions := guest.NewSessionManager(local)

	cloud, err := sqlite.New(filepath.Join(t.TempDir(), "cloud.db"))
	if err != nil {
		t.Fatalf("sqlite.New failed: %v", err)
	}
	t.Cleanup(func() { cloud.Close() })

	if migrator == nil {
		migrator = migration.New(local, cloud, nil)
	}
	return &fixture{
		clock:      clk,
		backing:    backing,
		local:      local,
		sessions:   sessions,
		cloud:      cloud,
		controller: NewController(local, sessions, cloud, migrator, identity),
	}
}

func (f *fixture) createUser(t *testing.T, email string) *models.User {
	t.Helper()
	user := models.NewUser(email, "Test", "hash")
	if err := f.cloud.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return user
}

func newDebt(name string) *models.Debt {
	return &models.Debt{
		Name:           name,
		DebtType:       models.DebtTypeCreditCard,
		CurrencyCode:   "USD",
		Principal:      decimal.NewFromInt(500),
		CurrentBalance: decimal.NewFromInt(500),
	}
}

// stubMigrator returns a canned result and counts calls.
type stubMigrator struct {
	calls   atomic.Int32
	result  migration.Result
	err     error
	release chan struct{}
	entered chan struct{}

	mu    sync.Mutex
	users []string
}

func (s *stubMigrator) Migrate(_ context.Context, userID string) (migration.Result, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.users = append(s.users, userID)
	s.mu.Unlock()
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.release != nil {
		<-s.release
	}
	return s.result, s.err
}

func TestResolve(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	t.Run("no session is unauthenticated", func(t *testing.T) {
		m, err := f.controller.Resolve(ctx, "")
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if m.Kind != Unauthenticated {
			t.Errorf("Kind = %s, want unauthenticated", m.Kind)
		}
	})

	t.Run("a user ID is authenticated", func(t *testing.T) {
		m, err := f.controller.Resolve(ctx, "user-1")
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if m != AuthenticatedMode("user-1") {
			t.Errorf("Mode = %+v, want authenticated user-1", m)
		}
	})

	t.Run("an active session is guest", func(t *testing.T) {
		if _, err := f.controller.StartGuest(ctx); err != nil {
			t.Fatalf("StartGuest failed: %v", err)
		}
		m, err := f.controller.Resolve(ctx, "")
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if m.Kind != Guest {
			t.Errorf("Kind = %s, want guest", m.Kind)
		}
	})

	t.Run("an expired session is cleared and unauthenticated", func(t *testing.T) {
		if err := f.local.CreateDebt(ctx, newDebt("Card")); err != nil {
			t.Fatalf("CreateDebt failed: %v", err)
		}
		f.clock.Advance(61 * 24 * time.Hour)

		m, err := f.controller.Resolve(ctx, "")
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if m.Kind != Unauthenticated {
			t.Errorf("Kind = %s, want unauthenticated", m.Kind)
		}
		if f.backing.Len() != 0 {
			t.Errorf("Expected guest data cleared, %d keys remain", f.backing.Len())
		}
	})
}

func TestRepository(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	t.Run("unauthenticated has no repository", func(t *testing.T) {
		if _, err := f.controller.Repository(ctx, Mode{}); !errors.Is(err, storage.ErrUnauthenticated) {
			t.Errorf("Expected ErrUnauthenticated, got %v", err)
		}
		if _, err := f.controller.Repository(ctx, GuestMode()); !errors.Is(err, storage.ErrUnauthenticated) {
			t.Errorf("guest without session: expected ErrUnauthenticated, got %v", err)
		}
	})

	t.Run("guest writes go to the local store", func(t *testing.T) {
		if _, err := f.controller.StartGuest(ctx); err != nil {
			t.Fatalf("StartGuest failed: %v", err)
		}
		repo, err := f.controller.Repository(ctx, GuestMode())
		if err != nil {
			t.Fatalf("Repository failed: %v", err)
		}
		debt := newDebt("Card")
		if err := repo.CreateDebt(ctx, debt); err != nil {
			t.Fatalf("CreateDebt failed: %v", err)
		}
		if !guest.IsLocalID(debt.ID) {
			t.Errorf("Expected a local ID, got %s", debt.ID)
		}
	})

	t.Run("authenticated writes go to the cloud store", func(t *testing.T) {
		user := f.createUser(t, "cloud@example.com")
		repo, err := f.controller.Repository(ctx, AuthenticatedMode(user.ID))
		if err != nil {
			t.Fatalf("Repository failed: %v", err)
		}
		debt := newDebt("Mortgage")
		if err := repo.CreateDebt(ctx, debt); err != nil {
			t.Fatalf("CreateDebt failed: %v", err)
		}
		debts, err := f.cloud.ListDebts(ctx, user.ID)
		if err != nil || len(debts) != 1 || debts[0].ID != debt.ID {
			t.Errorf("Cloud debts = %+v, %v", debts, err)
		}
	})

	t.Run("expired guest session is rejected and cleared", func(t *testing.T) {
		f.clock.Advance(61 * 24 * time.Hour)
		if _, err := f.controller.Repository(ctx, GuestMode()); !errors.Is(err, storage.ErrSessionExpired) {
			t.Errorf("Expected ErrSessionExpired, got %v", err)
		}
		if session, _ := f.sessions.Get(ctx); session != nil {
			t.Error("Expected expired session to be cleared")
		}
	})
}

func TestHandleSignInMigratesGuestData(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()
	user := f.createUser(t, "migrate@example.com")

	if _, err := f.controller.StartGuest(ctx); err != nil {
		t.Fatalf("StartGuest failed: %v", err)
	}
	for _, name := range []string{"Card", "Car"} {
		if err := f.local.CreateDebt(ctx, newDebt(name)); err != nil {
			t.Fatalf("CreateDebt failed: %v", err)
		}
	}

	result, err := f.controller.HandleSignIn(ctx, user.ID)
	if err != nil {
		t.Fatalf("HandleSignIn failed: %v", err)
	}
	if !result.Success || !result.Cleared || result.DebtsMigrated != 2 {
		t.Errorf("Unexpected result: %+v", result)
	}
	if session, _ := f.sessions.Get(ctx); session != nil {
		t.Error("Expected guest session to be cleared")
	}
	debts, _ := f.cloud.ListDebts(ctx, user.ID)
	if len(debts) != 2 {
		t.Errorf("Expected 2 cloud debts, got %d", len(debts))
	}

	t.Run("second sign-in has nothing to migrate", func(t *testing.T) {
		again, err := f.controller.HandleSignIn(ctx, user.ID)
		if err != nil {
			t.Fatalf("HandleSignIn failed: %v", err)
		}
		if again.DebtsMigrated != 0 {
			t.Errorf("Expected no-op, got %+v", again)
		}
		debts, _ := f.cloud.ListDebts(ctx, user.ID)
		if len(debts) != 2 {
			t.Errorf("Expected 2 cloud debts, got %d", len(debts))
		}
	})
}

func TestHandleSignInWithoutSessionSkipsMigration(t *testing.T) {
	stub := &stubMigrator{}
	f := newFixture(t, stub, nil)

	result, err := f.controller.HandleSignIn(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("HandleSignIn failed: %v", err)
	}
	if !result.Success || stub.calls.Load() != 0 {
		t.Errorf("result = %+v, migrator calls = %d", result, stub.calls.Load())
	}
}

func TestHandleSignInFailureKeepsSession(t *testing.T) {
	stub := &stubMigrator{err: errors.New("read failed")}
	f := newFixture(t, stub, nil)
	ctx := context.Background()

	if _, err := f.controller.StartGuest(ctx); err != nil {
		t.Fatalf("StartGuest failed: %v", err)
	}
	if _, err := f.controller.HandleSignIn(ctx, "user-1"); err == nil {
		t.Fatal("Expected migration error")
	}
	if expired, _ := f.sessions.IsExpired(ctx); expired {
		t.Error("Expected guest session to survive a failed migration")
	}
}

func TestHandleSignInRetriesCleanup(t *testing.T) {
	stub := &stubMigrator{
		result: migration.Result{Success: true, DebtsMigrated: 1},
		err:    errors.New("clear failed"),
	}
	f := newFixture(t, stub, nil)
	ctx := context.Background()

	if _, err := f.controller.StartGuest(ctx); err != nil {
		t.Fatalf("StartGuest failed: %v", err)
	}
	result, err := f.controller.HandleSignIn(ctx, "user-1")
	if err != nil {
		t.Fatalf("HandleSignIn failed: %v", err)
	}
	if !result.Cleared {
		t.Error("Expected cleanup retry to clear guest data")
	}
	if session, _ := f.sessions.Get(ctx); session != nil {
		t.Error("Expected guest session to be cleared")
	}
}

func TestHandleSignInSharesInFlightMigration(t *testing.T) {
	stub := &stubMigrator{
		result:  migration.Result{Success: true, Cleared: true},
		release: make(chan struct{}),
		entered: make(chan struct{}, 2),
	}
	f := newFixture(t, stub, nil)
	ctx := context.Background()

	if _, err := f.controller.StartGuest(ctx); err != nil {
		t.Fatalf("StartGuest failed: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		f.controller.HandleSignIn(ctx, "user-1")
	}()
	<-stub.entered
	go func() {
		defer wg.Done()
		f.controller.HandleSignIn(ctx, "user-1")
	}()
	time.Sleep(50 * time.Millisecond)
	close(stub.release)
	wg.Wait()

	if got := stub.calls.Load(); got != 1 {
		t.Errorf("Migrate called %d times, want 1", got)
	}
}

func TestHandleSignInDifferentAccountsNeverOverlap(t *testing.T) {
	stub := &stubMigrator{
		result:  migration.Result{Success: true, Cleared: true, DebtsMigrated: 2},
		release: make(chan struct{}),
		entered: make(chan struct{}, 2),
	}
	f := newFixture(t, stub, nil)
	ctx := context.Background()

	if _, err := f.controller.StartGuest(ctx); err != nil {
		t.Fatalf("StartGuest failed: %v", err)
	}

	var first, second migration.Result
	var firstErr, secondErr error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		first, firstErr = f.controller.HandleSignIn(ctx, "user-1")
	}()
	<-stub.entered
	go func() {
		defer wg.Done()
		second, secondErr = f.controller.HandleSignIn(ctx, "user-2")
	}()
	time.Sleep(50 * time.Millisecond)
	close(stub.release)
	wg.Wait()

	if got := stub.calls.Load(); got != 1 {
		t.Fatalf("Migrate called %d times, want 1", got)
	}
	if stub.users[0] != "user-1" {
		t.Errorf("Migrated into %q, want user-1", stub.users[0])
	}
	if firstErr != nil || first.DebtsMigrated != 2 {
		t.Errorf("First sign-in = %+v, %v; want 2 debts migrated", first, firstErr)
	}
	if secondErr != nil || !second.Success || second.DebtsMigrated != 0 {
		t.Errorf("Second sign-in = %+v, %v; want a successful pass with nothing migrated", second, secondErr)
	}
}

func TestAttachMigratesOnSignUp(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)
	provider := auth.NewProvider(auth.NewPasswordAuthenticator(f.cloud), auth.NewJWTManager("secret", time.Hour))
	f.controller.identity = provider
	unsubscribe := f.controller.Attach()
	defer unsubscribe()

	if _, err := f.controller.StartGuest(ctx); err != nil {
		t.Fatalf("StartGuest failed: %v", err)
	}
	if err := f.local.CreateIncomeSource(ctx, &models.IncomeSource{
		SourceName:   "Salary",
		Amount:       decimal.NewFromInt(3000),
		CurrencyCode: "USD",
		Frequency:    models.FrequencyMonthly,
	}); err != nil {
		t.Fatalf("CreateIncomeSource failed: %v", err)
	}

	user, _, err := provider.SignUp(ctx, "new@example.com", "password123", "New")
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}

	m, err := f.controller.Resolve(ctx, provider.CurrentUserID())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if m != AuthenticatedMode(user.ID) {
		t.Errorf("Mode = %+v, want authenticated", m)
	}
	sources, err := f.cloud.ListIncomeSources(ctx, user.ID)
	if err != nil || len(sources) != 1 {
		t.Errorf("Cloud income sources = %d, %v", len(sources), err)
	}
	if session, _ := f.sessions.Get(ctx); session != nil {
		t.Error("Expected guest session to be cleared")
	}

	if err := provider.SignOut(ctx, user.ID); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}
	if m, _ := f.controller.Resolve(ctx, provider.CurrentUserID()); m.Kind != Unauthenticated {
		t.Errorf("Kind after sign-out = %s, want unauthenticated", m.Kind)
	}
}

func TestGuestStatus(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	status, err := f.controller.GuestStatus(ctx)
	if err != nil {
		t.Fatalf("GuestStatus failed: %v", err)
	}
	if status.Active || status.Session != nil {
		t.Errorf("Expected inactive status, got %+v", status)
	}

	if _, err := f.controller.StartGuest(ctx); err != nil {
		t.Fatalf("StartGuest failed: %v", err)
	}
	if err := f.local.CreateDebt(ctx, newDebt("Card")); err != nil {
		t.Fatalf("CreateDebt failed: %v", err)
	}

	status, err = f.controller.GuestStatus(ctx)
	if err != nil {
		t.Fatalf("GuestStatus failed: %v", err)
	}
	want := guest.Counts{Debts: 1}
	if !status.Active || status.DaysRemaining != 60 || status.Counts != want {
		t.Errorf("Unexpected status: %+v", status)
	}
}
