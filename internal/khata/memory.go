package khata

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store used by unit tests and dev mode. A single
// mutex serializes every operation, which trivially gives Apply the atomicity
// the interface demands.
type MemoryStore struct {
	mu      sync.Mutex
	summary StockSummary
	rollups map[string]*DailyRollup
	log     []Transaction

	now func() time.Time
}

// NewMemoryStore creates an empty in-memory ledger store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rollups: make(map[string]*DailyRollup),
		now:     time.Now,
	}
}

func (m *MemoryStore) rollupFor(date string) *DailyRollup {
	r, ok := m.rollups[date]
	if !ok {
		r = &DailyRollup{Date: date}
		m.rollups[date] = r
	}
	return r
}

func (m *MemoryStore) Dashboard(ctx context.Context, date string) (*Dashboard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	today := *m.rollupFor(date)

	// Newest-first copy of the append-only log.
	txs := make([]Transaction, len(m.log))
	for i, tx := range m.log {
		txs[len(m.log)-1-i] = tx
	}

	return &Dashboard{
		Summary:      m.summary,
		Today:        today,
		Transactions: txs,
	}, nil
}

func (m *MemoryStore) Apply(ctx context.Context, date string, typ TxType, amount int64) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if typ == TxSell && amount > m.summary.Stock {
		return nil, ErrInsufficientStock
	}

	rollup := m.rollupFor(date)
	switch typ {
	case TxSell:
		m.summary.Stock -= amount
		rollup.Sold += amount
	default:
		m.summary.Stock += amount
		rollup.Made += amount
	}

	tx := Transaction{
		ID:        uuid.NewString(),
		Type:      typ,
		Amount:    amount,
		Balance:   m.summary.Stock,
		Timestamp: m.now().UTC().Format(time.RFC3339),
	}
	m.log = append(m.log, tx)

	return &Result{Summary: m.summary, Today: *rollup, Tx: tx}, nil
}

func (m *MemoryStore) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.summary = StockSummary{}
	m.rollups = make(map[string]*DailyRollup)
	m.log = nil
	return nil
}

func (m *MemoryStore) Close() {}
