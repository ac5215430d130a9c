package khata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"
)

// Service is the authoritative ledger engine. All invariant enforcement lives
// here and in the Store's atomic Apply; clients are thin callers and never
// re-derive the rules locally.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a ledger service over the given store.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

const dateLayout = "2006-01-02"

func checkDate(date string) error {
	if date == "" {
		return validationErr("date is required")
	}
	if _, err := time.Parse(dateLayout, date); err != nil {
		return validationErr("date must be formatted YYYY-MM-DD")
	}
	return nil
}

// ParseAmount converts a decoded JSON value into a positive integer quantity.
// Clients send amounts as numbers or as form-sourced strings; anything that is
// not a whole number greater than zero is a ValidationError.
func ParseAmount(v any) (int64, error) {
	invalid := validationErr("amount must be a positive number")

	var n int64
	switch t := v.(type) {
	case json.Number:
		i, err := t.Int64()
		if err != nil {
			return 0, invalid
		}
		n = i
	case string:
		i, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return 0, invalid
		}
		n = i
	case float64:
		if t != math.Trunc(t) {
			return 0, invalid
		}
		n = int64(t)
	case int64:
		n = t
	case int:
		n = int64(t)
	default:
		return 0, invalid
	}

	if n <= 0 {
		return 0, invalid
	}
	return n, nil
}

// Dashboard returns the summary, the rollup for date, and the transaction log
// newest-first, lazily creating the summary and rollup on first access.
func (s *Service) Dashboard(ctx context.Context, date string) (*Dashboard, error) {
	if err := checkDate(date); err != nil {
		return nil, err
	}
	d, err := s.store.Dashboard(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to load dashboard: %w", err)
	}
	return d, nil
}

// AddStock records production of amount units on date: the summary and the
// rollup's made counter both grow by amount and a MAKE transaction is
// appended, all within one store write.
func (s *Service) AddStock(ctx context.Context, date string, amount int64) (*Result, error) {
	if err := checkDate(date); err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, validationErr("amount must be a positive number")
	}

	res, err := s.store.Apply(ctx, date, TxMake, amount)
	if err != nil {
		return nil, err
	}

	s.logger.Info("stock_added", "date", date, "amount", amount, "stock", res.Summary.Stock)
	return res, nil
}

// SellStock records a sale of amount units on date. The sale is refused with
// ErrInsufficientStock when amount exceeds the current total stock; the check
// runs inside the store's atomic boundary, so the summary can never go
// negative under concurrent sells.
func (s *Service) SellStock(ctx context.Context, date string, amount int64) (*Result, error) {
	if err := checkDate(date); err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, validationErr("amount must be a positive number")
	}

	res, err := s.store.Apply(ctx, date, TxSell, amount)
	if err != nil {
		return nil, err
	}

	s.logger.Info("stock_sold", "date", date, "amount", amount, "stock", res.Summary.Stock)
	return res, nil
}

// Reset irreversibly deletes every ledger record. Used only for wealth-center
// resets; callers are expected to gate and audit it.
func (s *Service) Reset(ctx context.Context) error {
	if err := s.store.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset ledger: %w", err)
	}
	s.logger.Warn("ledger_reset")
	return nil
}
