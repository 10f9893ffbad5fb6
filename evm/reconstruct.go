// Package evm reconstructs Ethereum-style sub-transactions embedded in
// chain messages, from a mix of raw signed-transaction bytes and emitted
// event attributes, and decodes call input data against a table of known
// method signatures.
package evm

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	ethTypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/manifest-network/lens/log"
)

const moduleName = "evm"

// EventAttr is one event attribute row, flattened to what the
// reconstructor needs.
type EventAttr struct {
	EventType string
	Key       string
	Value     string
}

// Input carries everything known about one transaction that may embed an
// EVM sub-transaction. RawPayload and Events are both optional; the
// reconstructor merges whatever is available.
type Input struct {
	// CosmosHash is the enclosing transaction's hash, the fallback identity
	// when neither bytes nor events yield an Ethereum hash.
	CosmosHash string
	// MessageTypeURLs of the transaction's messages, for EVM detection.
	MessageTypeURLs []string
	// RawPayload is the raw ingested payload, if any.
	RawPayload json.RawMessage
	// Events are the transaction's event attributes.
	Events []EventAttr
	// Succeeded is the cosmos-level success flag.
	Succeeded bool
}

// SubTransaction is the reconstructed Ethereum-style view. Derived, never
// stored. Amount-like fields are decimal strings.
type SubTransaction struct {
	Hash         string              `json:"hash"`
	From         string              `json:"from,omitempty"`
	To           string              `json:"to,omitempty"`
	Value        string              `json:"value"`
	GasLimit     uint64              `json:"gas_limit"`
	GasUsed      uint64              `json:"gas_used"`
	GasPrice     string              `json:"gas_price,omitempty"`
	GasTipCap    string              `json:"gas_tip_cap,omitempty"`
	GasFeeCap    string              `json:"gas_fee_cap,omitempty"`
	Nonce        uint64              `json:"nonce"`
	Input        string              `json:"input,omitempty"`
	DecodedInput *DecodedInput       `json:"decoded_input,omitempty"`
	Type         uint8               `json:"type"`
	AccessList   ethTypes.AccessList `json:"access_list,omitempty"`
	Success      bool                `json:"success"`
}

// IsEvmTransaction reports whether any of the message type URLs marks the
// transaction as EVM-flavored.
func IsEvmTransaction(typeURLs []string) bool {
	for _, u := range typeURLs {
		if strings.Contains(u, EthereumTxTypeURL) || strings.Contains(strings.ToLower(u), "evm") {
			return true
		}
	}
	return false
}

// Reconstructor builds SubTransactions. It is stateless apart from the
// expected chain id and a logger.
type Reconstructor struct {
	chainID uint64
	logger  *log.Logger
}

// NewReconstructor creates a Reconstructor. chainID 0 disables the chain-id
// check on decoded bytes.
func NewReconstructor(chainID uint64, logger *log.Logger) *Reconstructor {
	return &Reconstructor{
		chainID: chainID,
		logger:  logger.WithModule(moduleName),
	}
}

// eventView is the ethereum_tx event data relevant to reconstruction.
type eventView struct {
	hash      string
	sender    string
	recipient string
	amount    string
	gasUsed   uint64
	txType    string
}

func scanEvents(events []EventAttr) eventView {
	var v eventView
	for _, e := range events {
		if e.EventType != "ethereum_tx" {
			continue
		}
		switch e.Key {
		case "ethereumTxHash":
			v.hash = e.Value
		case "sender":
			v.sender = e.Value
		case "recipient":
			v.recipient = e.Value
		case "amount":
			v.amount = e.Value
		case "txGasUsed":
			if n, err := strconv.ParseUint(e.Value, 10, 64); err == nil {
				v.gasUsed = n
			}
		case "txType":
			v.txType = e.Value
		}
	}
	return v
}

// Reconstruct merges the byte-decoded and event-sourced views of a
// transaction's EVM payload. It returns nil when the transaction is not
// EVM-flavored, or when neither source yields any data; callers must treat
// nil as "no EVM data" and skip EVM-specific behavior for that hash.
//
// Field precedence is applied independently per field: identity prefers the
// event hash (the bytes-derived hash can disagree with what the chain
// indexed), addresses prefer the byte payload, and a zero byte-decoded
// value yields to an event amount. Status comes from the cosmos-level
// success flag; it is not re-derived from EVM semantics.
func (r *Reconstructor) Reconstruct(in Input) *SubTransaction {
	if !IsEvmTransaction(in.MessageTypeURLs) {
		return nil
	}

	var decoded *DecodedRawTx
	if raw := ExtractRawTxBytes(in.RawPayload); raw != nil {
		var err error
		decoded, err = DecodeRawTx(raw, r.chainID)
		if err != nil {
			r.logger.Warn("failed to decode raw tx bytes", "tx_hash", in.CosmosHash, "err", err)
			decoded = nil
		}
	}
	ev := scanEvents(in.Events)

	// Without a byte payload, an event hash, or a gas-used figure there is
	// nothing real to report; an all-zero stub would be worse than absence.
	if decoded == nil && ev.hash == "" && ev.gasUsed == 0 {
		return nil
	}

	sub := &SubTransaction{
		GasUsed: ev.gasUsed,
		Success: in.Succeeded,
	}

	switch {
	case ev.hash != "":
		sub.Hash = ev.hash
	case decoded != nil:
		sub.Hash = decoded.Hash
	default:
		sub.Hash = in.CosmosHash
	}

	if decoded != nil && decoded.From != "" {
		sub.From = decoded.From
	} else {
		sub.From = ev.sender
	}
	if decoded != nil && decoded.To != "" {
		sub.To = decoded.To
	} else {
		sub.To = ev.recipient
	}

	sub.Value = "0"
	if decoded != nil && decoded.Value != nil {
		sub.Value = decoded.Value.String()
	}
	// Value-carrying messages sometimes encode zero in the raw bytes while
	// the emitted event reflects the real transferred amount.
	if sub.Value == "0" && ev.amount != "" {
		sub.Value = ev.amount
	}

	switch {
	case ev.txType != "":
		if n, err := strconv.ParseUint(ev.txType, 10, 8); err == nil {
			sub.Type = uint8(n)
		}
	case decoded != nil:
		sub.Type = decoded.Type
	}

	if decoded != nil {
		sub.GasLimit = decoded.GasLimit
		sub.Nonce = decoded.Nonce
		sub.AccessList = decoded.AccessList
		if decoded.GasPrice != nil && decoded.GasPrice.Sign() != 0 {
			sub.GasPrice = decoded.GasPrice.String()
		}
		if decoded.GasTipCap != nil && decoded.GasTipCap.Sign() != 0 {
			sub.GasTipCap = decoded.GasTipCap.String()
		}
		if decoded.GasFeeCap != nil && decoded.GasFeeCap.Sign() != 0 {
			sub.GasFeeCap = decoded.GasFeeCap.String()
		}
		sub.Input = hexutil.Encode(decoded.Input)
		sub.DecodedInput = DecodeInput(decoded.Input)
	}

	return sub
}
