package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/manifest-network/lens/common"
	"github.com/manifest-network/lens/log"
	"github.com/manifest-network/lens/storage/tablesvc"
)

// fakeUpstream serves /rpc/{fn} and /{table} from canned bodies and records
// the table queries it saw.
type fakeUpstream struct {
	rpc     map[string]string
	tables  map[string]string
	queries []string
}

func (f *fakeUpstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if fn, ok := strings.CutPrefix(r.URL.Path, "/rpc/"); ok {
		if body, ok := f.rpc[fn]; ok {
			fmt.Fprint(w, body)
			return
		}
		w.WriteHeader(http.StatusNotFound)
		return
	}
	table := r.URL.Path[1:]
	f.queries = append(f.queries, table+"?"+r.URL.RawQuery)
	if body, ok := f.tables[table]; ok {
		fmt.Fprint(w, body)
		return
	}
	fmt.Fprint(w, "[]")
}

func newTestService(t *testing.T, fake *fakeUpstream) (*Service, func()) {
	if fake.rpc == nil {
		fake.rpc = map[string]string{}
	}
	if fake.tables == nil {
		fake.tables = map[string]string{}
	}
	srv := httptest.NewServer(fake)
	logger := log.NewDefaultLogger("test")
	return NewService(tablesvc.NewClient(srv.URL, time.Second, logger), logger), srv.Close
}

func TestDailyTxVolumePrefersView(t *testing.T) {
	fake := &fakeUpstream{rpc: map[string]string{
		"daily_tx_volume": `[{"bucket": "2025-06-01", "count": 12}, {"bucket": "2025-06-02", "count": 7}]`,
	}}
	s, cleanup := newTestService(t, fake)
	defer cleanup()

	points, err := s.DailyTxVolume(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, []VolumePoint{{Bucket: "2025-06-01", Count: 12}, {Bucket: "2025-06-02", Count: 7}}, points)
	// No raw-row query was issued.
	require.Empty(t, fake.queries)
}

func TestDailyTxVolumeFallsBackWhenViewEmpty(t *testing.T) {
	fake := &fakeUpstream{
		rpc: map[string]string{"daily_tx_volume": "[]"},
		tables: map[string]string{
			"transactions": `[
				{"timestamp": "2025-06-02T10:00:00Z"},
				{"timestamp": "2025-06-02T09:00:00Z"},
				{"timestamp": "2025-06-01T23:00:00Z"}
			]`,
		},
	}
	s, cleanup := newTestService(t, fake)
	defer cleanup()

	points, err := s.DailyTxVolume(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, []VolumePoint{{Bucket: "2025-06-01", Count: 1}, {Bucket: "2025-06-02", Count: 2}}, points)
	// The fallback scan is capped.
	require.Len(t, fake.queries, 1)
	require.Contains(t, fake.queries[0], fmt.Sprintf("limit=%d", volumeScanCap))
}

func TestDailyTxVolumeFallsBackWhenViewErrors(t *testing.T) {
	fake := &fakeUpstream{} // no rpc entry: /rpc 404s
	s, cleanup := newTestService(t, fake)
	defer cleanup()

	points, err := s.DailyTxVolume(context.Background(), 7)
	require.NoError(t, err)
	require.Empty(t, points)
	require.Len(t, fake.queries, 1)
}

func TestMessageTypeDistributionFallback(t *testing.T) {
	fake := &fakeUpstream{
		tables: map[string]string{
			"messages": `[
				{"type": "/cosmos.bank.v1beta1.MsgSend"},
				{"type": "/cosmos.bank.v1beta1.MsgSend"},
				{"type": "/cosmos.gov.v1.MsgVote"}
			]`,
		},
	}
	s, cleanup := newTestService(t, fake)
	defer cleanup()

	dist, err := s.MessageTypeDistribution(context.Background())
	require.NoError(t, err)
	require.Equal(t, []TypeCount{
		{Type: "/cosmos.bank.v1beta1.MsgSend", Count: 2},
		{Type: "/cosmos.gov.v1.MsgVote", Count: 1},
	}, dist)
}

func TestFeeRevenueFallbackSumsBigAmounts(t *testing.T) {
	fake := &fakeUpstream{
		tables: map[string]string{
			"transactions": `[
				{"fee": {"amount": [{"denom": "umfx", "amount": "9000000000000000000"}]}},
				{"fee": {"amount": [{"denom": "umfx", "amount": "9000000000000000000"}, {"denom": "upoa", "amount": "5"}]}}
			]`,
		},
	}
	s, cleanup := newTestService(t, fake)
	defer cleanup()

	revenue, err := s.FeeRevenue(context.Background())
	require.NoError(t, err)
	// The umfx sum exceeds int64 and must survive as an exact decimal string.
	umfx, err := common.BigIntFromString("18000000000000000000")
	require.NoError(t, err)
	require.Equal(t, []DenomRevenue{
		{Denom: "umfx", Amount: umfx},
		{Denom: "upoa", Amount: common.NewBigInt(5)},
	}, revenue)

	raw, err := json.Marshal(revenue[0])
	require.NoError(t, err)
	require.JSONEq(t, `{"denom": "umfx", "amount": "18000000000000000000"}`, string(raw))
}

func TestComputeBlockTimeStatsFiltersAnomalies(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	// Descending height order. Deltas: 5s, 200s (anomaly), 7s, 0s (anomaly).
	timestamps := []time.Time{
		base.Add(212 * time.Second),
		base.Add(207 * time.Second),
		base.Add(7 * time.Second),
		base,
		base,
	}
	stats := computeBlockTimeStats(timestamps)
	require.Equal(t, 2, stats.Samples)
	require.InDelta(t, 6.0, stats.Avg, 1e-9)
	require.InDelta(t, 5.0, stats.Min, 1e-9)
	require.InDelta(t, 7.0, stats.Max, 1e-9)
}

func TestComputeBlockTimeStatsEmptySetIsZero(t *testing.T) {
	stats := computeBlockTimeStats(nil)
	require.Equal(t, &BlockTimeStats{}, stats)

	// All deltas anomalous also yields zeros.
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	stats = computeBlockTimeStats([]time.Time{base.Add(500 * time.Second), base, base})
	require.Equal(t, &BlockTimeStats{}, stats)
}

func TestGasDistributionFallbackBuckets(t *testing.T) {
	fake := &fakeUpstream{
		tables: map[string]string{
			"transactions": `[
				{"fee": {"gas_limit": "50000"}},
				{"fee": {"gas_limit": "200000"}},
				{"fee": {"gas_limit": "200000"}},
				{"fee": {"gas_limit": "2000000"}},
				{"fee": {"gas_limit": "garbage"}}
			]`,
		},
	}
	s, cleanup := newTestService(t, fake)
	defer cleanup()

	buckets, err := s.GasDistribution(context.Background())
	require.NoError(t, err)
	require.Equal(t, []GasBucket{
		{Label: "0-100k", Count: 1},
		{Label: "100k-250k", Count: 2},
		{Label: "250k-500k", Count: 0},
		{Label: "500k-1M", Count: 0},
		{Label: "1M+", Count: 1},
	}, buckets)
}

func TestSuccessRateFallbackUsesExactCounts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/rpc/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		require.Equal(t, "count=exact", r.Header.Get("Prefer"))
		if strings.Contains(r.URL.RawQuery, "error=is.null") {
			w.Header().Set("Content-Range", "0-0/90")
		} else {
			w.Header().Set("Content-Range", "0-0/10")
		}
		fmt.Fprint(w, `[{"hash": "X"}]`)
	}))
	defer srv.Close()

	logger := log.NewDefaultLogger("test")
	s := NewService(tablesvc.NewClient(srv.URL, time.Second, logger), logger)

	rate, err := s.SuccessRate(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(90), rate.Success)
	require.Equal(t, uint64(10), rate.Failed)
	require.InDelta(t, 0.9, rate.Rate, 1e-9)
}

func TestChainSummaryPrefersView(t *testing.T) {
	fake := &fakeUpstream{rpc: map[string]string{
		"chain_summary": `{"latest_height": 30587, "latest_block_time": "2025-06-01T12:00:00Z", "tx_count_24h": 42, "avg_block_time_secs": 5.5, "success_rate": 0.98}`,
	}}
	s, cleanup := newTestService(t, fake)
	defer cleanup()

	summary, err := s.ChainSummary(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(30587), summary.LatestHeight)
	require.Equal(t, uint64(42), summary.TxCount24h)
	require.Empty(t, fake.queries)
}
