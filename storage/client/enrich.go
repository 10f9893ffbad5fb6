package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	apiCommon "github.com/manifest-network/lens/api/common"
	"github.com/manifest-network/lens/evm"
	"github.com/manifest-network/lens/storage/tablesvc"
)

// GetTransaction returns the fully enriched transaction for a hash.
//
// The canonical and raw rows are fetched concurrently. A missing canonical
// row with a raw error payload yields an ingest-error stand-in; a missing
// canonical row without one is a true not-found. Message/event fetches and
// EVM reconstruction are enrichment: their failures degrade the result,
// they never fail the call.
func (c *StorageClient) GetTransaction(ctx context.Context, hash string) (*EnrichedTransaction, error) {
	var canonical *Transaction
	var raw *RawTransaction

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		res, err := c.ts.Query(egCtx, tableTransactions, tablesvc.QueryParams{
			Conds: []tablesvc.Cond{tablesvc.C("hash", tablesvc.Eq(hash))},
			Limit: 1,
		})
		if err != nil {
			return wrapError(err)
		}
		if txs := decodeRows[Transaction](res.Rows, c.logger); len(txs) > 0 {
			canonical = &txs[0]
		}
		return nil
	})
	eg.Go(func() error {
		res, err := c.ts.Query(egCtx, tableRawTransactions, tablesvc.QueryParams{
			Conds: []tablesvc.Cond{tablesvc.C("hash", tablesvc.Eq(hash))},
			Limit: 1,
		})
		if err != nil {
			// The raw row is optional enrichment; absence degrades the view.
			c.logger.Warn("raw transaction fetch failed", "tx_hash", hash, "err", err)
			return nil
		}
		if raws := decodeRows[RawTransaction](res.Rows, c.logger); len(raws) > 0 {
			raw = &raws[0]
		}
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	if canonical == nil {
		if standIn := ingestErrorStandIn(hash, raw); standIn != nil {
			return standIn, nil
		}
		return nil, apiCommon.ErrNotFound
	}

	enriched := &EnrichedTransaction{
		Transaction: *canonical,
		Messages:    []Message{},
		Events:      []EventAttribute{},
	}
	if raw != nil {
		enriched.RawData = raw.Data
	}

	eg, egCtx = errgroup.WithContext(ctx)
	eg.Go(func() error {
		msgs, err := c.fetchMessages(egCtx, hash)
		if err != nil {
			c.logger.Warn("message fetch failed", "tx_hash", hash, "err", err)
			return nil
		}
		enriched.Messages = msgs
		return nil
	})
	eg.Go(func() error {
		events, err := c.fetchEvents(egCtx, hash)
		if err != nil {
			c.logger.Warn("event fetch failed", "tx_hash", hash, "err", err)
			return nil
		}
		enriched.Events = events
		return nil
	})
	_ = eg.Wait()

	c.assemble(enriched, raw)
	return enriched, nil
}

// assemble applies the in-place enrichment steps shared by all getters:
// error-field disambiguation, positional raw message attachment, and EVM
// reconstruction.
func (c *StorageClient) assemble(tx *EnrichedTransaction, raw *RawTransaction) {
	tx.Error = decodeErrorField(tx.Error)
	if raw != nil {
		attachRawMessages(tx.Messages, raw.Data)
	}

	typeURLs := make([]string, 0, len(tx.Messages))
	for _, m := range tx.Messages {
		typeURLs = append(typeURLs, m.TypeURL)
	}
	evmEvents := make([]evm.EventAttr, 0, len(tx.Events))
	for _, e := range tx.Events {
		evmEvents = append(evmEvents, evm.EventAttr{EventType: e.EventType, Key: e.Key, Value: e.Value})
	}
	var rawPayload json.RawMessage
	if raw != nil {
		rawPayload = raw.Data
	}
	tx.EvmData = c.evm.Reconstruct(evm.Input{
		CosmosHash:      tx.Hash,
		MessageTypeURLs: typeURLs,
		RawPayload:      rawPayload,
		Events:          evmEvents,
		Succeeded:       tx.Error == nil,
	})
}

// ingestErrorStandIn synthesizes a degraded transaction from a raw row's
// embedded error payload. Returns nil if the raw row is absent or carries
// no error object.
func ingestErrorStandIn(hash string, raw *RawTransaction) *EnrichedTransaction {
	if raw == nil || len(raw.Data) == 0 {
		return nil
	}
	var parsed ingestError
	if err := json.Unmarshal(raw.Data, &parsed); err != nil || parsed.Error == nil {
		return nil
	}

	errStr := fmt.Sprintf("%s: %s", parsed.Error.Message, parsed.Error.Reason)
	standIn := &EnrichedTransaction{
		Transaction: Transaction{
			Hash:   hash,
			Error:  &errStr,
			Height: parsed.Error.Height,
		},
		Degraded: true,
		Messages: []Message{},
		Events:   []EventAttribute{},
		RawData:  raw.Data,
	}
	if parsed.Error.Timestamp != nil {
		standIn.Timestamp = *parsed.Error.Timestamp
	}
	return standIn
}

// decodeErrorField disambiguates the canonical row's error column. Some
// ingesters mis-store base64-encoded event/log JSON there: if the value
// base64-decodes and then parses as JSON, it was never an error and the
// real error is nil. Any failure along the way means the original string
// is a genuine error message and is kept verbatim.
func decodeErrorField(errField *string) *string {
	if errField == nil {
		return nil
	}
	decoded, err := base64.StdEncoding.DecodeString(*errField)
	if err != nil {
		return errField
	}
	var probe interface{}
	if json.Unmarshal(decoded, &probe) != nil {
		return errField
	}
	return nil
}

// attachRawMessages pairs each message with the positionally matching
// entry of the raw payload's message list. Messages past the end of the
// raw list fall back to their own metadata.
func attachRawMessages(msgs []Message, rawData json.RawMessage) {
	if len(rawData) == 0 {
		return
	}
	var parsed ingestError
	if err := json.Unmarshal(rawData, &parsed); err != nil || parsed.Body == nil {
		return
	}
	rawMsgs := parsed.Body.Messages
	for i := range msgs {
		if int(msgs[i].Index) < len(rawMsgs) {
			msgs[i].Raw = rawMsgs[msgs[i].Index]
		} else {
			msgs[i].Raw = msgs[i].Metadata
		}
	}
}

func (c *StorageClient) fetchMessages(ctx context.Context, hash string) ([]Message, error) {
	res, err := c.ts.Query(ctx, tableMessages, tablesvc.QueryParams{
		Conds:   []tablesvc.Cond{tablesvc.C("tx_hash", tablesvc.Eq(hash))},
		OrderBy: []tablesvc.Order{{Column: "message_index"}},
	})
	if err != nil {
		return nil, err
	}
	return decodeRows[Message](res.Rows, c.logger), nil
}

func (c *StorageClient) fetchEvents(ctx context.Context, hash string) ([]EventAttribute, error) {
	res, err := c.ts.Query(ctx, tableEvents, tablesvc.QueryParams{
		Conds:   []tablesvc.Cond{tablesvc.C("tx_hash", tablesvc.Eq(hash))},
		OrderBy: []tablesvc.Order{{Column: "event_index"}, {Column: "attr_index"}},
	})
	if err != nil {
		return nil, err
	}
	return decodeRows[EventAttribute](res.Rows, c.logger), nil
}

// GetTransactionByEthHash resolves an Ethereum-style transaction hash to
// the enriched cosmos transaction that emitted it, via the ethereum_tx
// event attribute.
func (c *StorageClient) GetTransactionByEthHash(ctx context.Context, ethHash string) (*EnrichedTransaction, error) {
	res, err := c.ts.Query(ctx, tableEvents, tablesvc.QueryParams{
		Select: "tx_hash,event_index,attr_index,event_type,attr_key,attr_value",
		Conds: []tablesvc.Cond{
			tablesvc.C("event_type", tablesvc.Eq("ethereum_tx")),
			tablesvc.C("attr_key", tablesvc.Eq("ethereumTxHash")),
			tablesvc.C("attr_value", tablesvc.Eq(ethHash)),
		},
		Limit: 1,
	})
	if err != nil {
		return nil, wrapError(err)
	}
	attrs := decodeRows[EventAttribute](res.Rows, c.logger)
	if len(attrs) == 0 {
		return nil, apiCommon.ErrNotFound
	}
	return c.GetTransaction(ctx, attrs[0].TxHash)
}

// buildTxConds translates a TxFilter into table-service conditions. The
// message-type clause needs a pre-query and is handled separately.
func buildTxConds(filter TxFilter) []tablesvc.Cond {
	var conds []tablesvc.Cond
	if filter.Status != nil {
		switch *filter.Status {
		case TxStatusSuccess:
			conds = append(conds, tablesvc.C("error", tablesvc.IsNull()))
		case TxStatusFailed:
			conds = append(conds, tablesvc.C("error", tablesvc.NotNull()))
		}
	}
	if filter.Height != nil {
		conds = append(conds, tablesvc.C("height", tablesvc.Eq(*filter.Height)))
	}
	// Range bounds are separate entries on the same column; the table
	// service conjoins repeated keys.
	if filter.HeightMin != nil {
		conds = append(conds, tablesvc.C("height", tablesvc.Gte(*filter.HeightMin)))
	}
	if filter.HeightMax != nil {
		conds = append(conds, tablesvc.C("height", tablesvc.Lte(*filter.HeightMax)))
	}
	if filter.After != nil {
		conds = append(conds, tablesvc.C("timestamp", tablesvc.Gte(filter.After.UTC().Format(time.RFC3339))))
	}
	if filter.Before != nil {
		conds = append(conds, tablesvc.C("timestamp", tablesvc.Lte(filter.Before.UTC().Format(time.RFC3339))))
	}
	return conds
}

// GetTransactions returns a filtered page of enriched transactions.
func (c *StorageClient) GetTransactions(ctx context.Context, filter TxFilter, limit, offset uint64) (*TransactionList, error) {
	params := tablesvc.QueryParams{
		Conds:      buildTxConds(filter),
		OrderBy:    []tablesvc.Order{{Column: "height", Desc: true}},
		Limit:      limit,
		Offset:     offset,
		ExactCount: true,
	}

	// Message-type filtering goes through the messages table: collect the
	// matching hashes first, then restrict the transaction query to them.
	if filter.MessageType != nil {
		hashes, err := c.hashesByMessageType(ctx, *filter.MessageType)
		if err != nil {
			return nil, err
		}
		if len(hashes) == 0 {
			// No matching message, so no matching transaction. Skip the
			// vacuous query.
			return &TransactionList{
				Data:       []EnrichedTransaction{},
				Pagination: NewPaginationInfo(0, limit, offset),
			}, nil
		}
		or := make([]tablesvc.Cond, 0, len(hashes))
		for _, h := range hashes {
			or = append(or, tablesvc.C("hash", tablesvc.Eq(h)))
		}
		params.Or = or
	}

	res, err := c.ts.Query(ctx, tableTransactions, params)
	if err != nil {
		return nil, wrapError(err)
	}
	txs := decodeRows[Transaction](res.Rows, c.logger)

	enriched, err := c.enrichAll(ctx, txs)
	if err != nil {
		return nil, err
	}
	return &TransactionList{
		Data:       enriched,
		Pagination: NewPaginationInfo(res.Total, limit, offset),
	}, nil
}

// hashesByMessageType returns the distinct transaction hashes that carry a
// message of the given type, bounded by messageScanCap.
func (c *StorageClient) hashesByMessageType(ctx context.Context, typeURL string) ([]string, error) {
	res, err := c.ts.Query(ctx, tableMessages, tablesvc.QueryParams{
		Select:  "tx_hash",
		Conds:   []tablesvc.Cond{tablesvc.C("type", tablesvc.Eq(typeURL))},
		OrderBy: []tablesvc.Order{{Column: "height", Desc: true}},
		Limit:   messageScanCap,
	})
	if err != nil {
		return nil, wrapError(err)
	}
	return dedupeHashes(decodeRows[Message](res.Rows, c.logger)), nil
}

// GetTransactionsByAddress returns the page of enriched transactions that
// the address sent or is mentioned in, newest first.
//
// The hash list is paginated before any child fetch, and the page's
// transactions, messages and events are then batch-fetched in three
// concurrent queries; there is never a per-transaction lookup loop.
func (c *StorageClient) GetTransactionsByAddress(ctx context.Context, address string, limit, offset uint64) (*TransactionList, error) {
	res, err := c.ts.Query(ctx, tableMessages, tablesvc.QueryParams{
		Select: "tx_hash,height,message_index,type",
		Or: []tablesvc.Cond{
			tablesvc.C("sender", tablesvc.Eq(address)),
			tablesvc.C("mentions", tablesvc.Contains(address)),
		},
		OrderBy: []tablesvc.Order{{Column: "height", Desc: true}, {Column: "message_index"}},
		Limit:   messageScanCap,
	})
	if err != nil {
		return nil, wrapError(err)
	}
	hashes := dedupeHashes(decodeRows[Message](res.Rows, c.logger))

	total := uint64(len(hashes))
	page := pageOf(hashes, limit, offset)
	if len(page) == 0 {
		return &TransactionList{
			Data:       []EnrichedTransaction{},
			Pagination: NewPaginationInfo(total, limit, offset),
		}, nil
	}

	enriched, err := c.enrichHashes(ctx, page)
	if err != nil {
		return nil, err
	}
	return &TransactionList{
		Data:       enriched,
		Pagination: NewPaginationInfo(total, limit, offset),
	}, nil
}

// dedupeHashes extracts transaction hashes from messages, preserving first
// occurrence order (the query's reverse-chronological order).
func dedupeHashes(msgs []Message) []string {
	seen := make(map[string]struct{}, len(msgs))
	hashes := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if _, ok := seen[m.TxHash]; ok {
			continue
		}
		seen[m.TxHash] = struct{}{}
		hashes = append(hashes, m.TxHash)
	}
	return hashes
}

func pageOf(hashes []string, limit, offset uint64) []string {
	if offset >= uint64(len(hashes)) {
		return nil
	}
	end := offset + limit
	if end > uint64(len(hashes)) {
		end = uint64(len(hashes))
	}
	return hashes[offset:end]
}

// enrichAll fetches children and raw rows for the given transactions and
// assembles them, preserving input order.
func (c *StorageClient) enrichAll(ctx context.Context, txs []Transaction) ([]EnrichedTransaction, error) {
	if len(txs) == 0 {
		return []EnrichedTransaction{}, nil
	}
	hashes := make([]string, 0, len(txs))
	for _, tx := range txs {
		hashes = append(hashes, tx.Hash)
	}

	msgsByHash, eventsByHash, rawsByHash, err := c.fetchChildren(ctx, hashes)
	if err != nil {
		return nil, err
	}

	enriched := make([]EnrichedTransaction, 0, len(txs))
	for _, tx := range txs {
		e := EnrichedTransaction{
			Transaction: tx,
			Messages:    msgsByHash[tx.Hash],
			Events:      eventsByHash[tx.Hash],
		}
		if e.Messages == nil {
			e.Messages = []Message{}
		}
		if e.Events == nil {
			e.Events = []EventAttribute{}
		}
		raw := rawsByHash[tx.Hash]
		if raw != nil {
			e.RawData = raw.Data
		}
		c.assemble(&e, raw)
		enriched = append(enriched, e)
	}
	return enriched, nil
}

// enrichHashes is enrichAll for a page of hashes: the canonical rows are
// fetched as part of the same three-way batch, then reassembled in hash
// order.
func (c *StorageClient) enrichHashes(ctx context.Context, hashes []string) ([]EnrichedTransaction, error) {
	or := make([]tablesvc.Cond, 0, len(hashes))
	for _, h := range hashes {
		or = append(or, tablesvc.C("hash", tablesvc.Eq(h)))
	}

	var txs []Transaction
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		res, err := c.ts.Query(egCtx, tableTransactions, tablesvc.QueryParams{Or: or})
		if err != nil {
			return wrapError(err)
		}
		txs = decodeRows[Transaction](res.Rows, c.logger)
		return nil
	})

	var msgsByHash map[string][]Message
	var eventsByHash map[string][]EventAttribute
	var rawsByHash map[string]*RawTransaction
	eg.Go(func() error {
		var err error
		msgsByHash, eventsByHash, rawsByHash, err = c.fetchChildren(egCtx, hashes)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	byHash := make(map[string]Transaction, len(txs))
	for _, tx := range txs {
		byHash[tx.Hash] = tx
	}

	enriched := make([]EnrichedTransaction, 0, len(hashes))
	for _, h := range hashes {
		tx, ok := byHash[h]
		if !ok {
			// A message row referenced a hash with no canonical row; it may
			// be an ingest error. Degrade rather than drop silently.
			if standIn := ingestErrorStandIn(h, rawsByHash[h]); standIn != nil {
				enriched = append(enriched, *standIn)
			}
			continue
		}
		e := EnrichedTransaction{
			Transaction: tx,
			Messages:    msgsByHash[h],
			Events:      eventsByHash[h],
		}
		if e.Messages == nil {
			e.Messages = []Message{}
		}
		if e.Events == nil {
			e.Events = []EventAttribute{}
		}
		raw := rawsByHash[h]
		if raw != nil {
			e.RawData = raw.Data
		}
		c.assemble(&e, raw)
		enriched = append(enriched, e)
	}
	return enriched, nil
}

// fetchChildren batch-fetches messages, events and raw rows for a set of
// hashes in three concurrent queries and groups them by parent hash.
// Failures of any child query degrade to empty; the canonical rows carry
// the page.
func (c *StorageClient) fetchChildren(ctx context.Context, hashes []string) (map[string][]Message, map[string][]EventAttribute, map[string]*RawTransaction, error) {
	or := make([]tablesvc.Cond, 0, len(hashes))
	for _, h := range hashes {
		or = append(or, tablesvc.C("tx_hash", tablesvc.Eq(h)))
	}
	rawOr := make([]tablesvc.Cond, 0, len(hashes))
	for _, h := range hashes {
		rawOr = append(rawOr, tablesvc.C("hash", tablesvc.Eq(h)))
	}

	msgsByHash := make(map[string][]Message)
	eventsByHash := make(map[string][]EventAttribute)
	rawsByHash := make(map[string]*RawTransaction)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		res, err := c.ts.Query(egCtx, tableMessages, tablesvc.QueryParams{
			Or:      or,
			OrderBy: []tablesvc.Order{{Column: "tx_hash"}, {Column: "message_index"}},
		})
		if err != nil {
			c.logger.Warn("batch message fetch failed", "err", err)
			return nil
		}
		for _, m := range decodeRows[Message](res.Rows, c.logger) {
			msgsByHash[m.TxHash] = append(msgsByHash[m.TxHash], m)
		}
		return nil
	})
	eg.Go(func() error {
		res, err := c.ts.Query(egCtx, tableEvents, tablesvc.QueryParams{
			Or:      or,
			OrderBy: []tablesvc.Order{{Column: "tx_hash"}, {Column: "event_index"}, {Column: "attr_index"}},
		})
		if err != nil {
			c.logger.Warn("batch event fetch failed", "err", err)
			return nil
		}
		for _, e := range decodeRows[EventAttribute](res.Rows, c.logger) {
			eventsByHash[e.TxHash] = append(eventsByHash[e.TxHash], e)
		}
		return nil
	})
	eg.Go(func() error {
		res, err := c.ts.Query(egCtx, tableRawTransactions, tablesvc.QueryParams{Or: rawOr})
		if err != nil {
			c.logger.Warn("batch raw fetch failed", "err", err)
			return nil
		}
		for _, r := range decodeRows[RawTransaction](res.Rows, c.logger) {
			r := r
			rawsByHash[r.Hash] = &r
		}
		return nil
	})
	_ = eg.Wait()

	return msgsByHash, eventsByHash, rawsByHash, nil
}
