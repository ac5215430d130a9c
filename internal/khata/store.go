package khata

import "context"

// Store is the persistence boundary for the ledger.
//
// Apply must execute its read-check-write as one atomic unit: the summary
// update, the rollup update, and the transaction append all become visible
// together or not at all, and the stock-floor check for SELL happens inside
// the same unit so that two concurrent sells can never both pass it against
// a stale balance.
type Store interface {
	// Dashboard resolves the summary and the rollup for date, lazily creating
	// either if absent, and returns the transaction log newest-first.
	Dashboard(ctx context.Context, date string) (*Dashboard, error)

	// Apply atomically applies a MAKE or SELL of amount against date and
	// appends the transaction record. Returns ErrInsufficientStock for a
	// SELL that would take the summary below zero; nothing is mutated then.
	Apply(ctx context.Context, date string, typ TxType, amount int64) (*Result, error)

	// Reset deletes all summary, rollup, and transaction records.
	Reset(ctx context.Context) error

	Close()
}
