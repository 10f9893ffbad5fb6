// Package client implements the read-only data-access client: it assembles
// fully decoded chain records from the raw tables exposed by the upstream
// table service. It is the single source of truth for enrichment; every
// consumer goes through it.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	apiCommon "github.com/manifest-network/lens/api/common"
	"github.com/manifest-network/lens/cache/ttlmap"
	"github.com/manifest-network/lens/evm"
	"github.com/manifest-network/lens/log"
	"github.com/manifest-network/lens/storage/tablesvc"
)

const moduleName = "storage-client"

// messageScanCap bounds the message pre-queries (message-type filter,
// address lookup) so a busy address or popular message type cannot turn
// into an unbounded scan.
const messageScanCap = 5000

// StorageClient is a wrapper around the table service client with
// knowledge of chain semantics.
type StorageClient struct {
	ts  *tablesvc.Client
	evm *evm.Reconstructor

	// blockCache is read-through for single-block lookups only; list
	// queries always go upstream.
	blockCache *ttlmap.Cache[*Block]

	logger *log.Logger
}

// NewStorageClient creates a new storage client. queryTTL is the expiry
// window for single-entity read-through caching; zero selects the default.
func NewStorageClient(ts *tablesvc.Client, reconstructor *evm.Reconstructor, queryTTL time.Duration, logger *log.Logger) *StorageClient {
	return &StorageClient{
		ts:         ts,
		evm:        reconstructor,
		blockCache: ttlmap.New[*Block](queryTTL),
		logger:     logger.WithModule(moduleName),
	}
}

// wrapError marks a table-service failure as a storage error so API layers
// can map it to a 5xx without inspecting transport details.
func wrapError(err error) error {
	return fmt.Errorf("%w: %v", apiCommon.ErrStorageError, err)
}

// decodeRows unmarshals raw result rows into typed rows, skipping (and
// logging) any row that does not conform.
func decodeRows[T any](rows []json.RawMessage, logger *log.Logger) []T {
	out := make([]T, 0, len(rows))
	for _, raw := range rows {
		var row T
		if err := json.Unmarshal(raw, &row); err != nil {
			logger.Warn("skipping malformed row", "err", err)
			continue
		}
		out = append(out, row)
	}
	return out
}

// GetBlock returns the block at the given height. Single-entity lookup:
// served from the TTL cache when fresh.
func (c *StorageClient) GetBlock(ctx context.Context, height int64) (*Block, error) {
	cacheKey := fmt.Sprintf("block/%d", height)
	if cached, ok := c.blockCache.Get(cacheKey); ok {
		return cached, nil
	}

	res, err := c.ts.Query(ctx, tableBlocks, tablesvc.QueryParams{
		Conds: []tablesvc.Cond{tablesvc.C("height", tablesvc.Eq(height))},
		Limit: 1,
	})
	if err != nil {
		return nil, wrapError(err)
	}
	blocks := decodeRows[Block](res.Rows, c.logger)
	if len(blocks) == 0 {
		return nil, apiCommon.ErrNotFound
	}

	block := &blocks[0]
	c.blockCache.Put(cacheKey, block)
	return block, nil
}

// GetLatestBlock returns the highest-height block. Not cached: "latest"
// changes with every block.
func (c *StorageClient) GetLatestBlock(ctx context.Context) (*Block, error) {
	res, err := c.ts.Query(ctx, tableBlocks, tablesvc.QueryParams{
		OrderBy: []tablesvc.Order{{Column: "height", Desc: true}},
		Limit:   1,
	})
	if err != nil {
		return nil, wrapError(err)
	}
	blocks := decodeRows[Block](res.Rows, c.logger)
	if len(blocks) == 0 {
		return nil, apiCommon.ErrNotFound
	}
	return &blocks[0], nil
}

// GetBlocks returns a page of blocks in descending height order. List
// queries are never cached; pages must stay fresh.
func (c *StorageClient) GetBlocks(ctx context.Context, limit, offset uint64) (*BlockList, error) {
	res, err := c.ts.Query(ctx, tableBlocks, tablesvc.QueryParams{
		OrderBy:    []tablesvc.Order{{Column: "height", Desc: true}},
		Limit:      limit,
		Offset:     offset,
		ExactCount: true,
	})
	if err != nil {
		return nil, wrapError(err)
	}
	return &BlockList{
		Data:       decodeRows[Block](res.Rows, c.logger),
		Pagination: NewPaginationInfo(res.Total, limit, offset),
	}, nil
}

// ClearCaches drops all in-memory cached entries. For chain resets.
func (c *StorageClient) ClearCaches() {
	c.blockCache.Clear()
}
