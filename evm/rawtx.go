package evm

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	ethTypes "github.com/ethereum/go-ethereum/core/types"
)

// DecodedRawTx is the normalized view of a raw signed Ethereum-style
// transaction recovered from its wire bytes.
type DecodedRawTx struct {
	Hash       string
	From       string              // empty if signer recovery failed
	To         string              // empty for contract creation
	Value      *big.Int
	GasLimit   uint64
	GasPrice   *big.Int
	GasTipCap  *big.Int
	GasFeeCap  *big.Int
	Nonce      uint64
	Input      []byte
	Type       uint8
	AccessList ethTypes.AccessList
}

// DecodeRawTx decodes raw signed transaction bytes. The sender is recovered
// from the signature when possible; a failed recovery leaves From empty
// rather than failing the decode, since the event-sourced sender can still
// fill it in.
func DecodeRawTx(raw []byte, expectedChainID uint64) (*DecodedRawTx, error) {
	var ethTx ethTypes.Transaction
	if err := ethTx.UnmarshalBinary(raw); err != nil {
		return nil, fmt.Errorf("rlp decode bytes: %w", err)
	}

	chainID := ethTx.ChainId()
	if expectedChainID != 0 && (!chainID.IsUint64() || chainID.Uint64() != expectedChainID) {
		return nil, fmt.Errorf("chain ID %v, expected %v", chainID, expectedChainID)
	}

	decoded := &DecodedRawTx{
		Hash:       ethTx.Hash().Hex(),
		Value:      ethTx.Value(),
		GasLimit:   ethTx.Gas(),
		GasPrice:   ethTx.GasPrice(),
		GasTipCap:  ethTx.GasTipCap(),
		GasFeeCap:  ethTx.GasFeeCap(),
		Nonce:      ethTx.Nonce(),
		Input:      ethTx.Data(),
		Type:       ethTx.Type(),
		AccessList: ethTx.AccessList(),
	}
	if to := ethTx.To(); to != nil {
		decoded.To = to.Hex()
	}

	signer := ethTypes.LatestSignerForChainID(chainID)
	if from, err := ethTypes.Sender(signer, &ethTx); err == nil {
		decoded.From = from.Hex()
	}
	return decoded, nil
}

// EthereumTxTypeURL is the message type carrying an embedded raw signed
// transaction on cosmos-EVM chains.
const EthereumTxTypeURL = "MsgEthereumTx"

// rawMessage is the subset of a raw-payload message we understand. Messages
// of other types fall through as opaque blobs.
type rawMessage struct {
	Type string `json:"@type"`
	// Raw signed transaction bytes, base64 per proto JSON.
	Raw string `json:"raw"`
}

type rawPayloadBody struct {
	Body struct {
		Messages []rawMessage `json:"messages"`
	} `json:"body"`
	// Some ingesters store messages at the top level.
	Messages []rawMessage `json:"messages"`
}

// ExtractRawTxBytes locates an Ethereum-style message inside a raw ingested
// payload and returns its embedded signed-transaction bytes. Returns nil if
// the payload has no such message or the bytes do not decode.
func ExtractRawTxBytes(payload json.RawMessage) []byte {
	if len(payload) == 0 {
		return nil
	}
	var parsed rawPayloadBody
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil
	}
	msgs := parsed.Body.Messages
	if len(msgs) == 0 {
		msgs = parsed.Messages
	}
	for _, m := range msgs {
		if !strings.Contains(m.Type, EthereumTxTypeURL) || m.Raw == "" {
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(m.Raw)
		if err != nil {
			continue
		}
		return raw
	}
	return nil
}
