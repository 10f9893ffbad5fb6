package search

import (
	"context"
	"sort"
	"strconv"

	"github.com/manifest-network/lens/log"
	"github.com/manifest-network/lens/storage/client"
)

const moduleName = "search"

// Result priorities, descending. Callers take the top result for
// auto-navigation.
const (
	priorityExactMatch      = 100
	priorityEvmActivity     = 95
	priorityAddressActivity = 90
	priorityBareAddress     = 80
)

// DataSource is the slice of the storage client the dispatcher probes.
type DataSource interface {
	GetBlock(ctx context.Context, height int64) (*client.Block, error)
	GetTransaction(ctx context.Context, hash string) (*client.EnrichedTransaction, error)
	GetTransactionByEthHash(ctx context.Context, ethHash string) (*client.EnrichedTransaction, error)
	GetTransactionsByAddress(ctx context.Context, address string, limit, offset uint64) (*client.TransactionList, error)
}

// Result is one ranked search hit. Exactly one of Block, Transaction, or
// Address is populated, matching the category.
type Result struct {
	Category Category                    `json:"category"`
	Priority int                         `json:"priority"`
	Block    *client.Block               `json:"block,omitempty"`
	Tx       *client.EnrichedTransaction `json:"transaction,omitempty"`
	Address  string                      `json:"address,omitempty"`
}

// Dispatcher resolves query strings against the resource types their
// classification makes plausible.
type Dispatcher struct {
	classifier *Classifier
	data       DataSource
	logger     *log.Logger
}

func NewDispatcher(classifier *Classifier, data DataSource, logger *log.Logger) *Dispatcher {
	return &Dispatcher{
		classifier: classifier,
		data:       data,
		logger:     logger.WithModule(moduleName),
	}
}

// Search classifies the query and probes the matching resource types. A
// probe that errors is a non-match, never a search failure; Search itself
// returns only the ranked hits, possibly none.
func (d *Dispatcher) Search(ctx context.Context, query string) []Result {
	category := d.classifier.Classify(query)

	var results []Result
	switch category {
	case CategoryBlockHeight:
		if r, ok := d.probeBlock(ctx, query); ok {
			results = append(results, r)
		}
	case CategoryTxHash:
		if r, ok := d.probeTx(ctx, category, query); ok {
			results = append(results, r)
		}
	case CategoryEvmTxHash:
		if r, ok := d.probeEvmTx(ctx, query); ok {
			results = append(results, r)
		}
	case CategoryEvmAddress:
		results = append(results, d.probeAddress(ctx, category, query, priorityEvmActivity))
	case CategoryBech32Address, CategoryValidatorAddress:
		results = append(results, d.probeAddress(ctx, category, query, priorityAddressActivity))
	case CategoryUnknown:
		// Nothing plausible to probe.
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Priority > results[j].Priority
	})
	return results
}

func (d *Dispatcher) probeBlock(ctx context.Context, query string) (Result, bool) {
	height, err := strconv.ParseInt(query, 10, 64)
	if err != nil {
		return Result{}, false
	}
	block, err := d.data.GetBlock(ctx, height)
	if err != nil {
		d.logger.Debug("block probe missed", "height", height, "err", err)
		return Result{}, false
	}
	return Result{Category: CategoryBlockHeight, Priority: priorityExactMatch, Block: block}, true
}

func (d *Dispatcher) probeTx(ctx context.Context, category Category, hash string) (Result, bool) {
	tx, err := d.data.GetTransaction(ctx, hash)
	if err != nil {
		d.logger.Debug("tx probe missed", "tx_hash", hash, "err", err)
		return Result{}, false
	}
	return Result{Category: category, Priority: priorityExactMatch, Tx: tx}, true
}

func (d *Dispatcher) probeEvmTx(ctx context.Context, ethHash string) (Result, bool) {
	tx, err := d.data.GetTransactionByEthHash(ctx, ethHash)
	if err != nil {
		d.logger.Debug("evm tx probe missed", "eth_hash", ethHash, "err", err)
		return Result{}, false
	}
	return Result{Category: CategoryEvmTxHash, Priority: priorityExactMatch, Tx: tx}, true
}

// probeAddress checks for activity. An address is always a valid result;
// activity only lifts its priority above the bare-address floor.
func (d *Dispatcher) probeAddress(ctx context.Context, category Category, address string, activePriority int) Result {
	result := Result{Category: category, Priority: priorityBareAddress, Address: address}
	list, err := d.data.GetTransactionsByAddress(ctx, address, 1, 0)
	if err != nil {
		d.logger.Debug("address activity probe missed", "address", address, "err", err)
		return result
	}
	if list.Pagination.Total > 0 {
		result.Priority = activePriority
	}
	return result
}
