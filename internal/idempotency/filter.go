// Package idempotency keeps track of which items were already handled so a
// restarted run does not act on them twice.
package idempotency

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/phrazzld/mailtriage/internal/logstore"
	"github.com/phrazzld/mailtriage/internal/task"
)

const (
	// ProcessedValue is stored under the key of every handled item.
	ProcessedValue = "true"

	// IntentPrefix namespaces write-ahead intents in the store.
	IntentPrefix = "intent/"
)

// ErrReservedKey is returned for item keys that collide with the intent namespace.
var ErrReservedKey = errors.New("key uses reserved prefix")

// Store is the subset of the log store the filter needs.
type Store interface {
	Has(key string) bool
	Get(key string) (string, bool)
	Put(key, value string) error
	Delete(key string) error
	Keys(prefix string) []string
}

var _ Store = (*logstore.Store)(nil)

// Filter separates new items from processed ones and records outcomes.
//
// Side effects are bracketed by a write-ahead intent: BeginAction records what
// is about to happen, CompleteAction marks the item processed and clears the
// intent. An intent that survives a crash shows up in Unfinished and the item
// stays pending, so the next run repeats the action. Sinks are expected to
// deduplicate on the item key.
type Filter struct {
	store  Store
	logger *slog.Logger
}

// NewFilter returns a filter backed by store.
func NewFilter(store Store, logger *slog.Logger) *Filter {
	return &Filter{
		store:  store,
		logger: logger.With("component", "idempotency_filter"),
	}
}

// IsProcessed reports whether key was marked processed.
func (f *Filter) IsProcessed(key string) bool {
	return f.store.Has(key)
}

// MarkProcessed durably records key as handled.
func (f *Filter) MarkProcessed(key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := f.store.Put(key, ProcessedValue); err != nil {
		return fmt.Errorf("mark %q processed: %w", key, err)
	}
	return nil
}

// Forget removes key so the item is processed again on the next run.
func (f *Filter) Forget(key string) error {
	if err := f.store.Delete(IntentPrefix + key); err != nil {
		return fmt.Errorf("forget intent for %q: %w", key, err)
	}
	if err := f.store.Delete(key); err != nil {
		return fmt.Errorf("forget %q: %w", key, err)
	}
	return nil
}

// BeginAction records that a side effect described by ref is about to be
// performed for key.
func (f *Filter) BeginAction(key, ref string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := f.store.Put(IntentPrefix+key, ref); err != nil {
		return fmt.Errorf("record intent for %q: %w", key, err)
	}
	return nil
}

// CompleteAction marks key processed and clears its intent.
func (f *Filter) CompleteAction(key string) error {
	if err := f.MarkProcessed(key); err != nil {
		return err
	}
	if err := f.store.Delete(IntentPrefix + key); err != nil {
		return fmt.Errorf("clear intent for %q: %w", key, err)
	}
	return nil
}

// Intent is a side effect that was started but never confirmed.
type Intent struct {
	Key string
	Ref string
}

// Unfinished lists the intents left behind by an interrupted run.
func (f *Filter) Unfinished() []Intent {
	keys := f.store.Keys(IntentPrefix)
	intents := make([]Intent, 0, len(keys))
	for _, k := range keys {
		ref, ok := f.store.Get(k)
		if !ok {
			continue
		}
		intents = append(intents, Intent{Key: strings.TrimPrefix(k, IntentPrefix), Ref: ref})
	}
	return intents
}

// Pending returns the items of batch that have not been processed, in their
// original order.
func Pending[I task.Item](f *Filter, batch []I) []I {
	pending := make([]I, 0, len(batch))
	skipped := 0
	for _, item := range batch {
		if f.IsProcessed(item.Key()) {
			skipped++
			continue
		}
		pending = append(pending, item)
	}

	if skipped > 0 {
		f.logger.Info("skipping processed items",
			"skipped", skipped,
			"pending", len(pending))
	}
	return pending
}

func checkKey(key string) error {
	if strings.HasPrefix(key, IntentPrefix) {
		return fmt.Errorf("%w: %q", ErrReservedKey, key)
	}
	return nil
}
