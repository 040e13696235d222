package guest

import (
	"context"
	"errors"
	"time"

	"github.com/mmynk/debtbook/internal/kv"
)

var errInjected = errors.New("injected failure")

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// faultyKV wraps kv.Memory and can be told to fail, and records the order
// in which keys are removed.
type faultyKV struct {
	*kv.Memory
	failGet bool
	failSet bool
	removed []string
}

func newFaultyKV() *faultyKV {
	return &faultyKV{Memory: kv.NewMemory()}
}

func (f *faultyKV) Get(ctx context.Context, key string) (string, bool, error) {
	if f.failGet {
		return "", false, errInjected
	}
	return f.Memory.Get(ctx, key)
}

func (f *faultyKV) Set(ctx context.Context, key, value string) error {
	if f.failSet {
		return errInjected
	}
	return f.Memory.Set(ctx, key, value)
}

func (f *faultyKV) MultiRemove(ctx context.Context, keys ...string) error {
	f.removed = append(f.removed, keys...)
	return f.Memory.MultiRemove(ctx, keys...)
}
