package reactive

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// resultCacheSize bounds how many subscriptions' last-evaluated results the
// bus remembers for introspection (e.g. a status command listing what every
// active subscription currently sees). It is not the correctness path —
// each Handle already holds its own last result.
const resultCacheSize = 512

// subscription is the untyped bookkeeping shared by every typed Handle.
// evaluate is supplied by Subscribe and closes over the caller's query and
// result slot.
type subscription struct {
	id     string
	tables []string

	mu    sync.Mutex
	dirty bool
	skip  bool
	token Token

	evaluate func() (value any, changed bool, err error)
}

func (s *subscription) markDirty(tok Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = tok
	if !s.skip {
		s.dirty = true
	}
}

func (s *subscription) isDirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// setSkip disables or re-enables re-evaluation without unregistering the
// subscription. Re-enabling marks it dirty so the next Flush catches up on
// whatever notifications arrived while it was skipped.
func (s *subscription) setSkip(skip bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skip = skip
	if !skip {
		s.dirty = true
	}
}

// Bus fans out table-level change notifications to subscriptions. Notify
// only marks dependents dirty; Flush resolves each dirty subscription
// exactly once per call, which is what gives the Reactive Layer its
// at-most-once-per-batch guarantee even when several writes touching the
// same table land before the next tick.
type Bus struct {
	mu      sync.Mutex
	byTable map[string]map[string]*subscription
	subs    map[string]*subscription
	tokens  tokenSource
	group   singleflight.Group
	results *lru.Cache[string, any]
}

func NewBus() *Bus {
	results, err := lru.New[string, any](resultCacheSize)
	if err != nil {
		// Only returns an error for size <= 0, which resultCacheSize never is.
		panic(err)
	}
	return &Bus{
		byTable: make(map[string]map[string]*subscription),
		subs:    make(map[string]*subscription),
		results: results,
	}
}

// Notify marks every subscription depending on any of tables dirty and
// advances the bus's change token. Commits must already be durable by the
// time Notify is called; the Reactive Layer never fires a notification
// ahead of the write it describes.
func (b *Bus) Notify(tables ...string) Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	tok := b.tokens.next()
	for _, table := range tables {
		for _, sub := range b.byTable[table] {
			sub.markDirty(tok)
		}
	}
	return tok
}

// Flush re-evaluates every dirty, non-skipped subscription exactly once and
// returns the ids whose result actually changed.
func (b *Bus) Flush() []string {
	b.mu.Lock()
	dirty := make([]*subscription, 0)
	for _, sub := range b.subs {
		if sub.isDirty() {
			dirty = append(dirty, sub)
		}
	}
	b.mu.Unlock()

	changed := make([]string, 0, len(dirty))
	for _, sub := range dirty {
		if b.resolve(sub) {
			changed = append(changed, sub.id)
		}
	}
	return changed
}

// resolve runs sub's query at most once even if concurrent writers raced to
// mark it dirty from different goroutines within the same tick.
func (b *Bus) resolve(sub *subscription) bool {
	v, err, _ := b.group.Do(sub.id, func() (any, error) {
		sub.mu.Lock()
		sub.dirty = false
		sub.mu.Unlock()
		value, changed, err := sub.evaluate()
		if err != nil {
			return false, err
		}
		b.results.Add(sub.id, value)
		return changed, nil
	})
	if err != nil {
		return false
	}
	return v.(bool)
}

func (b *Bus) register(sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[sub.id] = sub
	for _, table := range sub.tables {
		if b.byTable[table] == nil {
			b.byTable[table] = make(map[string]*subscription)
		}
		b.byTable[table][sub.id] = sub
	}
}

// Unsubscribe removes a subscription by id so it no longer receives
// notifications or Flush re-evaluation.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub, ok := b.subs[id]
	if !ok {
		return
	}
	delete(b.subs, id)
	for _, table := range sub.tables {
		delete(b.byTable[table], id)
	}
	b.results.Remove(id)
}

// LastResult returns the most recent value the bus observed for a
// subscription id, for debug/introspection callers (e.g. `smithers status`).
func (b *Bus) LastResult(id string) (any, bool) {
	return b.results.Get(id)
}
