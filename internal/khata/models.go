package khata

// TxType identifies a stock-affecting operation.
type TxType string

const (
	TxMake TxType = "MAKE"
	TxSell TxType = "SELL"
)

// StockSummary is the singleton running balance of khata stock for the
// wealth center. It is never negative and is only written through Store.Apply.
type StockSummary struct {
	Stock int64 `json:"stock"`
}

// DailyRollup aggregates one calendar day's production and sales. Exactly one
// rollup exists per date; made and sold only ever grow within a day.
type DailyRollup struct {
	Date string `json:"date"`
	Made int64  `json:"made"`
	Sold int64  `json:"sold"`
}

// Transaction is one immutable entry in the append-only ledger log. Balance is
// the stock level immediately after the operation was applied.
type Transaction struct {
	ID        string `json:"id"`
	Type      TxType `json:"type"`
	Amount    int64  `json:"amount"`
	Balance   int64  `json:"balance"`
	Timestamp string `json:"timestamp"`
}

// Dashboard is the read view served to clients: the current summary, the
// rollup for the requested date, and the full transaction log newest-first.
type Dashboard struct {
	Summary      StockSummary  `json:"summary"`
	Today        DailyRollup   `json:"today"`
	Transactions []Transaction `json:"transactions"`
}

// Result is the post-operation state returned by Store.Apply.
type Result struct {
	Summary StockSummary `json:"summary"`
	Today   DailyRollup  `json:"today"`
	Tx      Transaction  `json:"tx"`
}
