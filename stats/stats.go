// Package stats derives chain statistics with a two-rung ladder: each
// statistic first asks the table service for its pre-aggregated view via
// /rpc, and only when that call fails or returns nothing computes the
// statistic client-side from raw rows, bounded by a fixed per-statistic
// scan cap. The fallback is never an unbounded scan.
package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/manifest-network/lens/common"
	"github.com/manifest-network/lens/log"
	"github.com/manifest-network/lens/storage/tablesvc"
)

const moduleName = "stats"

// Per-statistic fallback scan caps. Raw-row fallbacks never read more than
// this many rows.
const (
	volumeScanCap  = 10000
	typeScanCap    = 10000
	feeScanCap     = 5000
	gasScanCap     = 5000
	blockScanCap   = 1000
	summaryScanCap = 1000
)

// blockTimeAnomalyCutoff discards timestamp deltas at or above this many
// seconds (chain restarts, clock skew). Non-positive deltas are discarded
// too.
const blockTimeAnomalyCutoff = 100.0

// Service computes derived statistics over the table service.
type Service struct {
	ts     *tablesvc.Client
	logger *log.Logger
}

func NewService(ts *tablesvc.Client, logger *log.Logger) *Service {
	return &Service{
		ts:     ts,
		logger: logger.WithModule(moduleName),
	}
}

// fromView calls the pre-aggregated view fn and unmarshals into out.
// Returns false when the call fails, the shape does not parse, or the view
// reports zero rows, in which case the caller runs its fallback.
func (s *Service) fromView(ctx context.Context, fn string, params map[string]string, out interface{}) bool {
	raw, err := s.ts.RPC(ctx, fn, params)
	if err != nil {
		s.logger.Debug("aggregated view unavailable", "fn", fn, "err", err)
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		s.logger.Debug("aggregated view shape mismatch", "fn", fn, "err", err)
		return false
	}
	switch v := out.(type) {
	case *[]VolumePoint:
		return len(*v) > 0
	case *[]TypeCount:
		return len(*v) > 0
	case *[]DenomRevenue:
		return len(*v) > 0
	case *[]GasBucket:
		return len(*v) > 0
	}
	return true
}

// DailyTxVolume returns transaction counts per day over the last `days`
// days, oldest bucket first.
func (s *Service) DailyTxVolume(ctx context.Context, days int) ([]VolumePoint, error) {
	var points []VolumePoint
	if s.fromView(ctx, "daily_tx_volume", map[string]string{"days": strconv.Itoa(days)}, &points) {
		return points, nil
	}
	return s.volumeFallback(ctx, time.Duration(days)*24*time.Hour, "2006-01-02")
}

// HourlyTxVolume returns transaction counts per hour over the last `hours`
// hours, oldest bucket first.
func (s *Service) HourlyTxVolume(ctx context.Context, hours int) ([]VolumePoint, error) {
	var points []VolumePoint
	if s.fromView(ctx, "hourly_tx_volume", map[string]string{"hours": strconv.Itoa(hours)}, &points) {
		return points, nil
	}
	return s.volumeFallback(ctx, time.Duration(hours)*time.Hour, "2006-01-02T15")
}

func (s *Service) volumeFallback(ctx context.Context, window time.Duration, bucketLayout string) ([]VolumePoint, error) {
	since := time.Now().UTC().Add(-window)
	res, err := s.ts.Query(ctx, "transactions", tablesvc.QueryParams{
		Select:  "timestamp",
		Conds:   []tablesvc.Cond{tablesvc.C("timestamp", tablesvc.Gte(since.Format(time.RFC3339)))},
		OrderBy: []tablesvc.Order{{Column: "timestamp", Desc: true}},
		Limit:   volumeScanCap,
	})
	if err != nil {
		return nil, err
	}

	counts := make(map[string]uint64)
	var order []string
	for _, row := range res.Rows {
		var tx struct {
			Timestamp time.Time `json:"timestamp"`
		}
		if json.Unmarshal(row, &tx) != nil {
			continue
		}
		bucket := tx.Timestamp.UTC().Format(bucketLayout)
		if _, ok := counts[bucket]; !ok {
			order = append(order, bucket)
		}
		counts[bucket]++
	}

	// Rows arrive newest first; emit buckets oldest first.
	points := make([]VolumePoint, 0, len(order))
	for i := len(order) - 1; i >= 0; i-- {
		points = append(points, VolumePoint{Bucket: order[i], Count: counts[order[i]]})
	}
	return points, nil
}

// MessageTypeDistribution returns per-type message counts over the most
// recent messages, largest first.
func (s *Service) MessageTypeDistribution(ctx context.Context) ([]TypeCount, error) {
	var dist []TypeCount
	if s.fromView(ctx, "message_type_distribution", nil, &dist) {
		return dist, nil
	}

	res, err := s.ts.Query(ctx, "messages", tablesvc.QueryParams{
		Select:  "type",
		OrderBy: []tablesvc.Order{{Column: "height", Desc: true}},
		Limit:   typeScanCap,
	})
	if err != nil {
		return nil, err
	}

	counts := make(map[string]uint64)
	for _, row := range res.Rows {
		var msg struct {
			Type string `json:"type"`
		}
		if json.Unmarshal(row, &msg) != nil || msg.Type == "" {
			continue
		}
		counts[msg.Type]++
	}
	dist = make([]TypeCount, 0, len(counts))
	for typ, n := range counts {
		dist = append(dist, TypeCount{Type: typ, Count: n})
	}
	sortTypeCounts(dist)
	return dist, nil
}

// FeeRevenue sums declared fees per denomination over the most recent
// transactions.
func (s *Service) FeeRevenue(ctx context.Context) ([]DenomRevenue, error) {
	var revenue []DenomRevenue
	if s.fromView(ctx, "fee_revenue", nil, &revenue) {
		return revenue, nil
	}

	res, err := s.ts.Query(ctx, "transactions", tablesvc.QueryParams{
		Select:  "fee",
		OrderBy: []tablesvc.Order{{Column: "height", Desc: true}},
		Limit:   feeScanCap,
	})
	if err != nil {
		return nil, err
	}

	sums := make(map[string]*common.BigInt)
	var order []string
	for _, row := range res.Rows {
		var tx struct {
			Fee struct {
				Amount []struct {
					Denom  string `json:"denom"`
					Amount string `json:"amount"`
				} `json:"amount"`
			} `json:"fee"`
		}
		if json.Unmarshal(row, &tx) != nil {
			continue
		}
		for _, coin := range tx.Fee.Amount {
			amount, err := common.BigIntFromString(coin.Amount)
			if err != nil {
				continue
			}
			if _, seen := sums[coin.Denom]; !seen {
				sums[coin.Denom] = &common.BigInt{}
				order = append(order, coin.Denom)
			}
			sums[coin.Denom].Add(&sums[coin.Denom].Int, &amount.Int)
		}
	}
	revenue = make([]DenomRevenue, 0, len(order))
	for _, denom := range order {
		revenue = append(revenue, DenomRevenue{Denom: denom, Amount: *sums[denom]})
	}
	return revenue, nil
}

// BlockTimeStats reports average/min/max successive-block timestamp deltas
// over the most recent blocks. Deltas outside (0, 100) seconds are
// anomalies (restarts, skew) and are discarded; an empty filtered set
// reports all zeros.
func (s *Service) BlockTimeStats(ctx context.Context) (*BlockTimeStats, error) {
	var viewStats BlockTimeStats
	if s.fromView(ctx, "block_time_stats", nil, &viewStats) && viewStats.Samples > 0 {
		return &viewStats, nil
	}

	res, err := s.ts.Query(ctx, "blocks", tablesvc.QueryParams{
		Select:  "height,timestamp",
		OrderBy: []tablesvc.Order{{Column: "height", Desc: true}},
		Limit:   blockScanCap,
	})
	if err != nil {
		return nil, err
	}

	timestamps := make([]time.Time, 0, len(res.Rows))
	for _, row := range res.Rows {
		var b struct {
			Timestamp time.Time `json:"timestamp"`
		}
		if json.Unmarshal(row, &b) != nil {
			continue
		}
		timestamps = append(timestamps, b.Timestamp)
	}
	return computeBlockTimeStats(timestamps), nil
}

// computeBlockTimeStats takes timestamps in descending height order.
func computeBlockTimeStats(timestamps []time.Time) *BlockTimeStats {
	stats := &BlockTimeStats{}
	for i := 0; i+1 < len(timestamps); i++ {
		delta := timestamps[i].Sub(timestamps[i+1]).Seconds()
		if delta <= 0 || delta >= blockTimeAnomalyCutoff {
			continue
		}
		if stats.Samples == 0 || delta < stats.Min {
			stats.Min = delta
		}
		if delta > stats.Max {
			stats.Max = delta
		}
		stats.Avg += delta
		stats.Samples++
	}
	if stats.Samples > 0 {
		stats.Avg /= float64(stats.Samples)
	}
	return stats
}

// GasDistribution buckets recent transactions by declared gas limit.
func (s *Service) GasDistribution(ctx context.Context) ([]GasBucket, error) {
	var buckets []GasBucket
	if s.fromView(ctx, "gas_distribution", nil, &buckets) {
		return buckets, nil
	}

	res, err := s.ts.Query(ctx, "transactions", tablesvc.QueryParams{
		Select:  "fee",
		OrderBy: []tablesvc.Order{{Column: "height", Desc: true}},
		Limit:   gasScanCap,
	})
	if err != nil {
		return nil, err
	}

	bounds := []struct {
		label string
		upper uint64
	}{
		{"0-100k", 100_000},
		{"100k-250k", 250_000},
		{"250k-500k", 500_000},
		{"500k-1M", 1_000_000},
		{"1M+", 0},
	}
	counts := make([]uint64, len(bounds))
	for _, row := range res.Rows {
		var tx struct {
			Fee struct {
				GasLimit string `json:"gas_limit"`
			} `json:"fee"`
		}
		if json.Unmarshal(row, &tx) != nil {
			continue
		}
		gas, err := strconv.ParseUint(tx.Fee.GasLimit, 10, 64)
		if err != nil {
			continue
		}
		idx := len(bounds) - 1
		for i, b := range bounds[:len(bounds)-1] {
			if gas < b.upper {
				idx = i
				break
			}
		}
		counts[idx]++
	}
	buckets = make([]GasBucket, len(bounds))
	for i, b := range bounds {
		buckets[i] = GasBucket{Label: b.label, Count: counts[i]}
	}
	return buckets, nil
}

// SuccessRate reports success/failure counts over the whole transaction
// table. The fallback uses two exact-count queries rather than a row scan,
// so it stays bounded regardless of table size.
func (s *Service) SuccessRate(ctx context.Context) (*SuccessRate, error) {
	var viewRate SuccessRate
	if s.fromView(ctx, "success_rate", nil, &viewRate) && viewRate.Success+viewRate.Failed > 0 {
		return &viewRate, nil
	}

	var success, failed uint64
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		n, err := s.countTxs(egCtx, tablesvc.C("error", tablesvc.IsNull()))
		success = n
		return err
	})
	eg.Go(func() error {
		n, err := s.countTxs(egCtx, tablesvc.C("error", tablesvc.NotNull()))
		failed = n
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	rate := &SuccessRate{Success: success, Failed: failed}
	if total := success + failed; total > 0 {
		rate.Rate = float64(success) / float64(total)
	}
	return rate, nil
}

// TxCountSince returns the number of transactions with a timestamp at or
// after `since`.
func (s *Service) TxCountSince(ctx context.Context, since time.Time) (uint64, error) {
	var viewCount struct {
		Count uint64 `json:"count"`
	}
	params := map[string]string{"since": since.UTC().Format(time.RFC3339)}
	if s.fromView(ctx, "tx_count_since", params, &viewCount) && viewCount.Count > 0 {
		return viewCount.Count, nil
	}
	return s.countTxs(ctx, tablesvc.C("timestamp", tablesvc.Gte(since.UTC().Format(time.RFC3339))))
}

// countTxs issues an exact-count query returning a single row; only the
// Content-Range total is of interest.
func (s *Service) countTxs(ctx context.Context, conds ...tablesvc.Cond) (uint64, error) {
	res, err := s.ts.Query(ctx, "transactions", tablesvc.QueryParams{
		Select:     "hash",
		Conds:      conds,
		Limit:      1,
		ExactCount: true,
	})
	if err != nil {
		return 0, err
	}
	return res.Total, nil
}

// ChainSummary composes the headline block: latest height and time, 24h
// transaction count, average block time, and success rate. Sub-statistics
// are gathered concurrently; each applies its own ladder.
func (s *Service) ChainSummary(ctx context.Context) (*ChainSummary, error) {
	var viewSummary ChainSummary
	if s.fromView(ctx, "chain_summary", nil, &viewSummary) && viewSummary.LatestHeight > 0 {
		return &viewSummary, nil
	}

	summary := &ChainSummary{}
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		res, err := s.ts.Query(egCtx, "blocks", tablesvc.QueryParams{
			Select:  "height,timestamp",
			OrderBy: []tablesvc.Order{{Column: "height", Desc: true}},
			Limit:   1,
		})
		if err != nil {
			return fmt.Errorf("latest block: %w", err)
		}
		if len(res.Rows) == 0 {
			return nil
		}
		var b struct {
			Height    int64     `json:"height"`
			Timestamp time.Time `json:"timestamp"`
		}
		if err := json.Unmarshal(res.Rows[0], &b); err != nil {
			return fmt.Errorf("latest block: %w", err)
		}
		summary.LatestHeight = b.Height
		summary.LatestBlockTime = b.Timestamp
		return nil
	})
	eg.Go(func() error {
		n, err := s.TxCountSince(egCtx, time.Now().UTC().Add(-24*time.Hour))
		if err != nil {
			return fmt.Errorf("24h count: %w", err)
		}
		summary.TxCount24h = n
		return nil
	})
	eg.Go(func() error {
		bt, err := s.BlockTimeStats(egCtx)
		if err != nil {
			return fmt.Errorf("block times: %w", err)
		}
		summary.AvgBlockTimeSecs = bt.Avg
		return nil
	})
	eg.Go(func() error {
		sr, err := s.SuccessRate(egCtx)
		if err != nil {
			return fmt.Errorf("success rate: %w", err)
		}
		summary.SuccessRate = sr.Rate
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return summary, nil
}

// sortTypeCounts orders by descending count, then type for stability.
func sortTypeCounts(dist []TypeCount) {
	sort.Slice(dist, func(i, j int) bool {
		if dist[i].Count != dist[j].Count {
			return dist[i].Count > dist[j].Count
		}
		return dist[i].Type < dist[j].Type
	})
}
