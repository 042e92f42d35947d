package domain

import "time"

// BarRecord is a stored bar of one instrument.
// Corresponds to ohlcv_bars (PostgreSQL) and bars (ClickHouse) tables.
type BarRecord struct {
	Instrument string
	Resolution Resolution
	Bar
}

// EarningsEvent is one scheduled corporate event of an instrument.
// Corresponds to earnings table.
type EarningsEvent struct {
	Instrument string
	Date       time.Time // civil date, UTC midnight
}
