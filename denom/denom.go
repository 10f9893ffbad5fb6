// Package denom resolves token denominations to display metadata through a
// fixed four-tier precedence: authoritative database metadata, the
// persistent resolved-IBC cache, a static table of well-known denoms, and
// prefix-based inference. Resolution never fails; the last tier is total.
package denom

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/manifest-network/lens/cache/kvstore"
	"github.com/manifest-network/lens/log"
	"github.com/manifest-network/lens/metrics"
	"github.com/manifest-network/lens/storage/tablesvc"
)

const moduleName = "denom"

// Provenance of a resolved denomination.
const (
	SourceDatabase = "database"
	SourceIBCCache = "ibc-cache"
	SourceStatic   = "static"
	SourceInferred = "inferred"
)

// ResolvedDenom is the display metadata for one denomination.
type ResolvedDenom struct {
	Denom    string `json:"denom"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals int    `json:"decimals"`
	IsIBC    bool   `json:"is_ibc"`
	// BaseDenom is the origin-chain denom for IBC entries, empty otherwise.
	BaseDenom string `json:"base_denom,omitempty"`
	Source    string `json:"source"`
}

// IBCTrace is a persisted denom trace, keyed in the store by the denom's
// derived hash.
type IBCTrace struct {
	Port      string `json:"port"`
	Channel   string `json:"channel"`
	BaseDenom string `json:"base_denom"`
}

// staticDenoms are well-known denominations resolvable without any lookup.
var staticDenoms = map[string]ResolvedDenom{
	"umfx":  {Symbol: "MFX", Name: "Manifest", Decimals: 6},
	"upoa":  {Symbol: "POA", Name: "Proof of Authority", Decimals: 6},
	"uatom": {Symbol: "ATOM", Name: "Cosmos Hub", Decimals: 6},
	"uosmo": {Symbol: "OSMO", Name: "Osmosis", Decimals: 6},
}

// Resolver implements the four-tier precedence. The node endpoint is
// optional; without it channel metadata is unavailable and resolution
// falls through the static and inferred tiers.
type Resolver struct {
	ts           *tablesvc.Client
	node         *nodeClient // nil when no node endpoint is configured
	store        kvstore.KVStore
	cacheMetrics *metrics.CacheMetrics
	logger       *log.Logger
}

// NewResolver creates a resolver. nodeEndpoint may be empty; cacheMetrics
// may be nil.
func NewResolver(ts *tablesvc.Client, nodeEndpoint string, store kvstore.KVStore, cacheMetrics *metrics.CacheMetrics, logger *log.Logger) *Resolver {
	r := &Resolver{
		ts:           ts,
		store:        store,
		cacheMetrics: cacheMetrics,
		logger:       logger.WithModule(moduleName),
	}
	if nodeEndpoint != "" {
		r.node = newNodeClient(nodeEndpoint, r.logger)
	}
	return r
}

// IBCDenomHash derives the canonical hash for a denom trace: SHA-256 of
// "{port}/{channel}/{baseDenom}", hex, uppercase. Cache keys use this
// exact form; any deviation makes the entry unfindable.
func IBCDenomHash(port, channel, baseDenom string) string {
	sum := sha256.Sum256([]byte(port + "/" + channel + "/" + baseDenom))
	return strings.ToUpper(fmt.Sprintf("%x", sum))
}

// Resolve maps a denomination to display metadata. It is total: every
// input resolves, at worst to an inferred entry with the tier-4 defaults.
func (r *Resolver) Resolve(ctx context.Context, denom string) *ResolvedDenom {
	// Tier 1: authoritative metadata from the database, held in the
	// persistent store once fetched. Clear drops it.
	if resolved := r.fromDatabase(ctx, denom); resolved != nil {
		return resolved
	}

	// Tier 2: the persistent resolved-IBC cache, keyed by the hash portion.
	if hash, ok := strings.CutPrefix(denom, "ibc/"); ok {
		if resolved := r.fromIBCCache(denom, hash); resolved != nil {
			return resolved
		}
	}

	// Tier 3: static table.
	if entry, ok := staticDenoms[denom]; ok {
		entry.Denom = denom
		entry.Source = SourceStatic
		return &entry
	}

	// Tier 4: prefix inference.
	return inferDenom(denom)
}

// errNoMetadataRow marks a denom the database has no metadata for.
// Absence is never written to the store; a row added later must become
// visible on the next resolve.
var errNoMetadataRow = errors.New("no metadata row")

func (r *Resolver) fromDatabase(ctx context.Context, denom string) *ResolvedDenom {
	resolved, err := kvstore.GetFromCacheOrCall(r.store, false, metadataCacheKey(denom),
		r.cacheMetrics, "denom_metadata", func() (*ResolvedDenom, error) {
			return r.queryMetadata(ctx, denom)
		})
	if err != nil {
		if !errors.Is(err, errNoMetadataRow) {
			r.logger.Debug("denom metadata lookup failed", "denom", denom, "err", err)
		}
		return nil
	}
	return resolved
}

func (r *Resolver) queryMetadata(ctx context.Context, denom string) (*ResolvedDenom, error) {
	res, err := r.ts.Query(ctx, "denom_metadata", tablesvc.QueryParams{
		Conds: []tablesvc.Cond{tablesvc.C("denom", tablesvc.Eq(denom))},
		Limit: 1,
	})
	if err != nil {
		return nil, err
	}
	if len(res.Rows) == 0 {
		return nil, errNoMetadataRow
	}
	var row struct {
		Denom    string `json:"denom"`
		Symbol   string `json:"symbol"`
		Name     string `json:"name"`
		Decimals int    `json:"decimals"`
	}
	if err := json.Unmarshal(res.Rows[0], &row); err != nil {
		return nil, fmt.Errorf("malformed denom metadata row: %w", err)
	}
	return &ResolvedDenom{
		Denom:    denom,
		Symbol:   row.Symbol,
		Name:     row.Name,
		Decimals: row.Decimals,
		IsIBC:    strings.HasPrefix(denom, "ibc/"),
		Source:   SourceDatabase,
	}, nil
}

func (r *Resolver) fromIBCCache(denom, hash string) *ResolvedDenom {
	observe := func(status metrics.CacheReadStatus) {
		if r.cacheMetrics != nil {
			r.cacheMetrics.CacheReads("ibc_denom", status).Inc()
		}
	}

	raw, err := r.store.Get(ibcCacheKey(hash))
	if err != nil || raw == nil {
		observe(metrics.CacheReadStatusMiss)
		return nil
	}
	var trace IBCTrace
	if err := json.Unmarshal(raw, &trace); err != nil {
		observe(metrics.CacheReadStatusBadValue)
		return nil
	}
	observe(metrics.CacheReadStatusHit)

	// The trace names the origin denom; its display metadata comes from the
	// lower tiers.
	base := inferDenom(trace.BaseDenom)
	if entry, ok := staticDenoms[trace.BaseDenom]; ok {
		entry.Denom = trace.BaseDenom
		base = &entry
	}
	return &ResolvedDenom{
		Denom:     denom,
		Symbol:    base.Symbol,
		Name:      base.Name,
		Decimals:  base.Decimals,
		IsIBC:     true,
		BaseDenom: trace.BaseDenom,
		Source:    SourceIBCCache,
	}
}

// StoreIBCTrace records a resolved trace under its derived hash and
// returns the hash-addressed denom string.
func (r *Resolver) StoreIBCTrace(port, channel, baseDenom string) (string, error) {
	hash := IBCDenomHash(port, channel, baseDenom)
	raw, err := json.Marshal(IBCTrace{Port: port, Channel: channel, BaseDenom: baseDenom})
	if err != nil {
		return "", err
	}
	if err := r.store.Put(ibcCacheKey(hash), raw); err != nil {
		return "", err
	}
	return "ibc/" + hash, nil
}

// Clear drops all persisted denom and channel entries. For chain resets.
func (r *Resolver) Clear() error {
	return r.store.Clear()
}

func ibcCacheKey(hash string) []byte {
	return kvstore.GenerateCacheKey("ibc_denom", hash)
}

func metadataCacheKey(denom string) kvstore.CacheKey {
	return kvstore.GenerateCacheKey("denom_metadata", denom)
}

// inferDenom is the tier-4 fallback: micro (u) prefixes imply 6 decimals,
// atto (a) prefixes imply 18, anything else 0.
func inferDenom(denom string) *ResolvedDenom {
	resolved := &ResolvedDenom{
		Denom:  denom,
		Symbol: strings.ToUpper(denom),
		Name:   denom,
		Source: SourceInferred,
	}
	switch {
	case len(denom) > 1 && strings.HasPrefix(denom, "u"):
		resolved.Symbol = strings.ToUpper(denom[1:])
		resolved.Decimals = 6
	case len(denom) > 1 && strings.HasPrefix(denom, "a"):
		resolved.Symbol = strings.ToUpper(denom[1:])
		resolved.Decimals = 18
	}
	return resolved
}
