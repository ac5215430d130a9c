package khata

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() (*Service, *MemoryStore) {
	store := NewMemoryStore()
	return NewService(store, nil), store
}

func TestDashboardLazyCreate(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService()

	d, err := svc.Dashboard(ctx, "2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, int64(0), d.Summary.Stock)
	assert.Equal(t, "2024-05-01", d.Today.Date)
	assert.Equal(t, int64(0), d.Today.Made)
	assert.Equal(t, int64(0), d.Today.Sold)
	assert.Empty(t, d.Transactions)

	// A second access must not create a second rollup for the date.
	_, err = svc.Dashboard(ctx, "2024-05-01")
	require.NoError(t, err)
	assert.Len(t, store.rollups, 1)
}

func TestDashboardRequiresDate(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Dashboard(context.Background(), "")
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Contains(t, err.Error(), "date is required")

	_, err = svc.Dashboard(context.Background(), "01-05-2024")
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestAddSellScenario(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	res, err := svc.AddStock(ctx, "2024-05-01", 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), res.Summary.Stock)
	assert.Equal(t, int64(100), res.Today.Made)
	assert.Equal(t, TxMake, res.Tx.Type)
	assert.Equal(t, int64(100), res.Tx.Amount)

	res, err = svc.SellStock(ctx, "2024-05-01", 30)
	require.NoError(t, err)
	assert.Equal(t, int64(70), res.Summary.Stock)
	assert.Equal(t, int64(30), res.Today.Sold)
	assert.Equal(t, TxSell, res.Tx.Type)

	d, err := svc.Dashboard(ctx, "2024-05-01")
	require.NoError(t, err)
	require.Len(t, d.Transactions, 2)
	assert.Equal(t, TxSell, d.Transactions[0].Type)
	assert.Equal(t, int64(30), d.Transactions[0].Amount)
	assert.Equal(t, TxMake, d.Transactions[1].Type)

	// Overdraft refused, nothing mutated.
	_, err = svc.SellStock(ctx, "2024-05-01", 1000)
	require.ErrorIs(t, err, ErrInsufficientStock)

	d, err = svc.Dashboard(ctx, "2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, int64(70), d.Summary.Stock)
	assert.Equal(t, int64(30), d.Today.Sold)
	assert.Len(t, d.Transactions, 2)
}

func TestAmountValidation(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService()

	for _, amount := range []int64{0, -5} {
		_, err := svc.AddStock(ctx, "2024-05-01", amount)
		require.Error(t, err)
		assert.True(t, IsValidation(err))
		assert.Contains(t, err.Error(), "amount must be a positive number")

		_, err = svc.SellStock(ctx, "2024-05-01", amount)
		require.Error(t, err)
		assert.True(t, IsValidation(err))
	}

	// Rejected calls leave no trace in the log.
	assert.Empty(t, store.log)
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		name    string
		in      any
		want    int64
		wantErr bool
	}{
		{"json number", json.Number("25"), 25, false},
		{"string", "10", 10, false},
		{"float integral", float64(40), 40, false},
		{"float fractional", 10.5, 0, true},
		{"json number fractional", json.Number("10.5"), 0, true},
		{"non numeric string", "ten", 0, true},
		{"zero", json.Number("0"), 0, true},
		{"negative", json.Number("-3"), 0, true},
		{"nil", nil, 0, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseAmount(tc.in)
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService()

	_, err := svc.AddStock(ctx, "2024-05-01", 10)
	require.NoError(t, err)
	require.NoError(t, svc.Reset(ctx))

	d, err := svc.Dashboard(ctx, "2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, int64(0), d.Summary.Stock)
	assert.Empty(t, d.Transactions)
	assert.Len(t, store.rollups, 1)
}

// Two concurrent sells of 40 against a stock of 50: exactly one may pass the
// floor check, and the survivor's balance must be 10.
func TestConcurrentSellOverdraft(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	_, err := svc.AddStock(ctx, "2024-05-01", 50)
	require.NoError(t, err)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.SellStock(ctx, "2024-05-01", 40)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var failures int
	for err := range errs {
		if err != nil {
			require.ErrorIs(t, err, ErrInsufficientStock)
			failures++
		}
	}
	assert.Equal(t, 1, failures)

	d, err := svc.Dashboard(ctx, "2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, int64(10), d.Summary.Stock)
	assert.Equal(t, int64(40), d.Today.Sold)
}

// Conservation under arbitrary interleaving: final stock is the initial stock
// plus all adds minus all successful sells, and never negative along the way.
func TestConcurrentConservation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	_, err := svc.AddStock(ctx, "2024-05-01", 200)
	require.NoError(t, err)

	const workers = 8
	const opsPerWorker = 50

	var mu sync.Mutex
	var added, sold int64

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < opsPerWorker; i++ {
				amount := int64(i%7 + 1)
				if (w+i)%2 == 0 {
					if _, err := svc.AddStock(ctx, "2024-05-01", amount); err == nil {
						mu.Lock()
						added += amount
						mu.Unlock()
					}
				} else {
					if _, err := svc.SellStock(ctx, "2024-05-01", amount); err == nil {
						mu.Lock()
						sold += amount
						mu.Unlock()
					}
				}
			}
		}(w)
	}
	wg.Wait()

	d, err := svc.Dashboard(ctx, "2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, 200+added-sold, d.Summary.Stock)
	assert.GreaterOrEqual(t, d.Summary.Stock, int64(0))
	assert.Equal(t, 200+added, d.Today.Made)
	assert.Equal(t, sold, d.Today.Sold)

	// Every transaction in the log carries a non-negative balance.
	for _, tx := range d.Transactions {
		assert.GreaterOrEqual(t, tx.Balance, int64(0))
	}
}
