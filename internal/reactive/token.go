// Package reactive implements the Reactive Layer: it wraps the Persistent
// Store so that every write is tagged with a change token and any
// subscription that depends on the written table is re-evaluated at least
// once before its result is trusted again.
package reactive

import "sync/atomic"

// Token is a monotonically increasing marker assigned to each notification
// batch. Tokens let a subscriber tell "resolved before my last write" from
// "resolved after" without re-running its query.
type Token uint64

type tokenSource struct{ n uint64 }

func (t *tokenSource) next() Token {
	return Token(atomic.AddUint64(&t.n, 1))
}
