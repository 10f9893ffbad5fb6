package stats

import (
	"time"

	"github.com/manifest-network/lens/common"
)

// ChainSummary is the headline statistics block.
type ChainSummary struct {
	LatestHeight     int64     `json:"latest_height"`
	LatestBlockTime  time.Time `json:"latest_block_time"`
	TxCount24h       uint64    `json:"tx_count_24h"`
	AvgBlockTimeSecs float64   `json:"avg_block_time_secs"`
	SuccessRate      float64   `json:"success_rate"`
}

// VolumePoint is one bucket of a transaction-volume series. Bucket is a
// date ("2006-01-02") for daily series and a date-hour ("2006-01-02T15")
// for hourly series.
type VolumePoint struct {
	Bucket string `json:"bucket"`
	Count  uint64 `json:"count"`
}

// TypeCount is one entry of the message-type distribution.
type TypeCount struct {
	Type  string `json:"type"`
	Count uint64 `json:"count"`
}

// DenomRevenue is the summed fee amount for one denomination. Amount
// marshals as a decimal string; fee sums routinely exceed 64 bits.
type DenomRevenue struct {
	Denom  string        `json:"denom"`
	Amount common.BigInt `json:"amount"`
}

// BlockTimeStats summarizes successive-block timestamp deltas, in seconds.
// All-zero means no usable samples, never a division by zero.
type BlockTimeStats struct {
	Avg     float64 `json:"avg"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Samples int     `json:"samples"`
}

// GasBucket is one range bucket of the gas distribution.
type GasBucket struct {
	Label string `json:"label"`
	Count uint64 `json:"count"`
}

// SuccessRate reports transaction outcomes over the whole table.
type SuccessRate struct {
	Success uint64  `json:"success"`
	Failed  uint64  `json:"failed"`
	Rate    float64 `json:"rate"`
}
