package client

import (
	"encoding/json"
	"time"

	"github.com/manifest-network/lens/evm"
)

// Table names exposed by the upstream table service.
const (
	tableBlocks          = "blocks"
	tableTransactions    = "transactions"
	tableRawTransactions = "transactions_raw"
	tableMessages        = "messages"
	tableEvents          = "message_event_attrs"
)

// Coin is one {denom, amount} pair. Amount is a decimal string.
type Coin struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

// Fee is a transaction's declared fee.
type Fee struct {
	Amount   []Coin `json:"amount"`
	GasLimit string `json:"gas_limit"`
}

// Block is a consensus block header plus its transaction blobs.
type Block struct {
	Height    int64     `json:"height"`
	ChainID   string    `json:"chain_id"`
	Timestamp time.Time `json:"timestamp"`
	Proposer  string    `json:"proposer_address"`
	BlockHash string    `json:"block_hash"`
	AppHash   string    `json:"app_hash"`
	// RawTxs are the block's transactions as received, base64 blobs.
	RawTxs []string `json:"raw_txs,omitempty"`
	// DecodedTxs are the decoded transaction objects, when the ingester
	// produced them. May be absent.
	DecodedTxs json.RawMessage `json:"decoded_txs,omitempty"`
	NumTxs     uint64          `json:"num_txs"`
}

// Transaction is the canonical transaction row.
type Transaction struct {
	Hash      string    `json:"hash"`
	Fee       Fee       `json:"fee"`
	Memo      string    `json:"memo"`
	Error     *string   `json:"error"`
	Height    int64     `json:"height"`
	Timestamp time.Time `json:"timestamp"`
	// ProposalIDs are governance proposals touched by this transaction.
	ProposalIDs []uint64 `json:"proposal_ids,omitempty"`
}

// RawTransaction is the raw ingested payload for a hash. It exists even
// when the canonical row does not (the ingest-error case).
type RawTransaction struct {
	Hash string          `json:"hash"`
	Data json.RawMessage `json:"data"`
}

// ingestError is the failure payload the ingester records in place of a
// decoded transaction.
type ingestError struct {
	Error *struct {
		Message   string     `json:"message"`
		Reason    string     `json:"reason"`
		Height    int64      `json:"height"`
		Timestamp *time.Time `json:"timestamp"`
	} `json:"error"`
	Body *struct {
		Messages []json.RawMessage `json:"messages"`
	} `json:"body"`
}

// Message is one message of a transaction. Index values are contiguous
// from 0 in fetch order.
type Message struct {
	TxHash   string   `json:"tx_hash"`
	Index    uint32   `json:"message_index"`
	TypeURL  string   `json:"type"`
	Sender   *string  `json:"sender"`
	Mentions []string `json:"mentions,omitempty"`
	Height   int64    `json:"height"`
	// Metadata is the decoded message body for known types, opaque bytes
	// otherwise.
	Metadata json.RawMessage `json:"metadata,omitempty"`
	// Raw is the positionally matching entry from the raw payload's message
	// list, when one exists. Falls back to Metadata.
	Raw json.RawMessage `json:"raw,omitempty"`
}

// EventAttribute is one attribute of one emitted event. (EventIndex,
// AttrIndex) is unique within a transaction.
type EventAttribute struct {
	TxHash     string `json:"tx_hash"`
	EventIndex uint32 `json:"event_index"`
	AttrIndex  uint32 `json:"attr_index"`
	EventType  string `json:"event_type"`
	Key        string `json:"attr_key"`
	Value      string `json:"attr_value"`
	// MsgIndex links the event to a message; nil means message 0 by
	// convention.
	MsgIndex *uint32 `json:"msg_index"`
}

// EnrichedTransaction is the fully assembled transaction view. Constructed
// fresh on every request, never persisted. Either the canonical fields are
// populated or Degraded is set with an ingest-error stand-in; never neither.
type EnrichedTransaction struct {
	Transaction
	// Degraded marks an ingest-error stand-in: the ingester could not fully
	// decode this transaction and only hash/height/timestamp/error are
	// meaningful.
	Degraded bool             `json:"degraded,omitempty"`
	Messages []Message        `json:"messages"`
	Events   []EventAttribute `json:"events"`
	// EvmData is the reconstructed Ethereum-style sub-transaction, when the
	// transaction is EVM-flavored and data could be recovered.
	EvmData *evm.SubTransaction `json:"evm_data,omitempty"`
	// RawData is the original ingested payload, the "show raw data" escape
	// hatch.
	RawData json.RawMessage `json:"raw_data,omitempty"`
}

// TxStatus filters transactions by outcome.
type TxStatus string

const (
	TxStatusSuccess TxStatus = "success"
	TxStatusFailed  TxStatus = "failed"
)

// TxFilter selects transactions for list queries. Zero-valued fields are
// ignored. HeightMin/HeightMax form a conjunctive range.
type TxFilter struct {
	Status      *TxStatus
	Height      *int64
	HeightMin   *int64
	HeightMax   *int64
	After       *time.Time
	Before      *time.Time
	MessageType *string
}

// PaginationInfo describes one page of a list response.
type PaginationInfo struct {
	Total   uint64 `json:"total"`
	Limit   uint64 `json:"limit"`
	Offset  uint64 `json:"offset"`
	HasNext bool   `json:"has_next"`
	HasPrev bool   `json:"has_prev"`
}

// NewPaginationInfo computes the page descriptor for a window into total rows.
func NewPaginationInfo(total, limit, offset uint64) PaginationInfo {
	return PaginationInfo{
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasNext: offset+limit < total,
		HasPrev: offset > 0,
	}
}

// BlockList is one page of blocks.
type BlockList struct {
	Data       []Block        `json:"data"`
	Pagination PaginationInfo `json:"pagination"`
}

// TransactionList is one page of enriched transactions.
type TransactionList struct {
	Data       []EnrichedTransaction `json:"data"`
	Pagination PaginationInfo        `json:"pagination"`
}
