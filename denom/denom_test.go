package denom

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/manifest-network/lens/cache/kvstore"
	"github.com/manifest-network/lens/log"
	"github.com/manifest-network/lens/storage/tablesvc"
)

func newTestResolver(t *testing.T, tableHandler http.Handler, nodeEndpoint string) *Resolver {
	if tableHandler == nil {
		tableHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "[]")
		})
	}
	srv := httptest.NewServer(tableHandler)
	t.Cleanup(srv.Close)

	logger := log.NewDefaultLogger("test")
	store, err := kvstore.OpenKVStore(logger, t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ts := tablesvc.NewClient(srv.URL, time.Second, logger)
	return NewResolver(ts, nodeEndpoint, store, nil, logger)
}

func TestIBCDenomHashKnownVector(t *testing.T) {
	// uatom over the hub's canonical transfer channel.
	require.Equal(t,
		"27394FB092D2ECCD56123C74F36E4C1F926001CEADA9CA97EA622B25F41E5EB2",
		IBCDenomHash("transfer", "channel-0", "uatom"))
}

func TestResolveDatabaseTier(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/denom_metadata", r.URL.Path)
		fmt.Fprint(w, `[{"denom": "umfx", "symbol": "MFX", "name": "Manifest Coin", "decimals": 6}]`)
	})
	r := newTestResolver(t, handler, "")

	resolved := r.Resolve(context.Background(), "umfx")
	require.Equal(t, SourceDatabase, resolved.Source)
	require.Equal(t, "Manifest Coin", resolved.Name)
	require.Equal(t, 6, resolved.Decimals)
	require.False(t, resolved.IsIBC)
}

func TestResolveDatabaseTierCachedUntilClear(t *testing.T) {
	var hits int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		fmt.Fprint(w, `[{"denom": "umfx", "symbol": "MFX", "name": "Manifest Coin", "decimals": 6}]`)
	})
	r := newTestResolver(t, handler, "")
	ctx := context.Background()

	resolved := r.Resolve(ctx, "umfx")
	require.Equal(t, SourceDatabase, resolved.Source)
	require.Equal(t, 1, hits)

	// Second resolve is served from the persistent store, not the upstream.
	resolved = r.Resolve(ctx, "umfx")
	require.Equal(t, SourceDatabase, resolved.Source)
	require.Equal(t, "Manifest Coin", resolved.Name)
	require.Equal(t, 1, hits)

	// A clear drops the entry; the next resolve queries again.
	require.NoError(t, r.Clear())
	resolved = r.Resolve(ctx, "umfx")
	require.Equal(t, SourceDatabase, resolved.Source)
	require.Equal(t, 2, hits)
}

func TestResolveDatabaseTierMissNotCached(t *testing.T) {
	var found bool
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if found {
			fmt.Fprint(w, `[{"denom": "uxyz", "symbol": "XYZ", "name": "Xyz", "decimals": 6}]`)
			return
		}
		fmt.Fprint(w, "[]")
	})
	r := newTestResolver(t, handler, "")
	ctx := context.Background()

	resolved := r.Resolve(ctx, "uxyz")
	require.Equal(t, SourceInferred, resolved.Source)

	// A metadata row added later must become visible.
	found = true
	resolved = r.Resolve(ctx, "uxyz")
	require.Equal(t, SourceDatabase, resolved.Source)
	require.Equal(t, "Xyz", resolved.Name)
}

func TestResolveIBCCacheTier(t *testing.T) {
	r := newTestResolver(t, nil, "")

	ibcDenom, err := r.StoreIBCTrace("transfer", "channel-0", "uatom")
	require.NoError(t, err)
	require.Equal(t, "ibc/27394FB092D2ECCD56123C74F36E4C1F926001CEADA9CA97EA622B25F41E5EB2", ibcDenom)

	resolved := r.Resolve(context.Background(), ibcDenom)
	require.Equal(t, SourceIBCCache, resolved.Source)
	require.True(t, resolved.IsIBC)
	require.Equal(t, "uatom", resolved.BaseDenom)
	require.Equal(t, "ATOM", resolved.Symbol)
	require.Equal(t, 6, resolved.Decimals)

	// After a clear the cache tier misses and the denom falls through to
	// inference.
	require.NoError(t, r.Clear())
	resolved = r.Resolve(context.Background(), ibcDenom)
	require.Equal(t, SourceInferred, resolved.Source)
}

func TestResolveStaticTier(t *testing.T) {
	r := newTestResolver(t, nil, "")

	resolved := r.Resolve(context.Background(), "uosmo")
	require.Equal(t, SourceStatic, resolved.Source)
	require.Equal(t, "OSMO", resolved.Symbol)
	require.Equal(t, 6, resolved.Decimals)
}

func TestResolveInferredTier(t *testing.T) {
	r := newTestResolver(t, nil, "")
	ctx := context.Background()

	resolved := r.Resolve(ctx, "ufoo")
	require.Equal(t, SourceInferred, resolved.Source)
	require.Equal(t, "FOO", resolved.Symbol)
	require.Equal(t, 6, resolved.Decimals)

	resolved = r.Resolve(ctx, "awei")
	require.Equal(t, 18, resolved.Decimals)

	resolved = r.Resolve(ctx, "foo")
	require.Equal(t, 0, resolved.Decimals)
	require.Equal(t, "FOO", resolved.Symbol)
}

func TestChannelInfoWithoutNodeDegrades(t *testing.T) {
	r := newTestResolver(t, nil, "")

	_, err := r.ChannelInfo(context.Background(), "transfer", "channel-0")
	require.ErrorIs(t, err, ErrNoNodeEndpoint)
}

func TestChannelInfoFetchesAndCachesForever(t *testing.T) {
	var hits int
	node := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		switch r.URL.Path {
		case "/ibc/core/channel/v1/channels/channel-0/ports/transfer":
			fmt.Fprint(w, `{"channel": {"state": "STATE_OPEN"}}`)
		case "/ibc/core/channel/v1/channels/channel-0/ports/transfer/client_state":
			fmt.Fprint(w, `{"identified_client_state": {"client_state": {"chain_id": "cosmoshub-4"}}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer node.Close()

	r := newTestResolver(t, nil, node.URL)
	ctx := context.Background()

	info, err := r.ChannelInfo(ctx, "transfer", "channel-0")
	require.NoError(t, err)
	require.Equal(t, "STATE_OPEN", info.State)
	require.Equal(t, "cosmoshub-4", info.CounterpartyChainID)
	require.Equal(t, 2, hits)

	// Second call comes from the persistent cache.
	info, err = r.ChannelInfo(ctx, "transfer", "channel-0")
	require.NoError(t, err)
	require.Equal(t, "cosmoshub-4", info.CounterpartyChainID)
	require.Equal(t, 2, hits)
}
