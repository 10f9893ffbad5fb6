package evm

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// NativeTransferMethod is the pseudo-method reported for calls with empty
// input data (plain value transfers).
const NativeTransferMethod = "Native Transfer"

// UnknownMethod is reported when the 4-byte selector is not in the table.
const UnknownMethod = "Unknown"

// DecodedParam is one decoded call parameter. Value is a JSON-friendly
// rendering: big integers are decimal strings, addresses and byte blobs are
// 0x-prefixed hex.
type DecodedParam struct {
	Name  string      `json:"name"`
	Type  string      `json:"type"`
	Value interface{} `json:"value"`
}

// DecodedInput is the result of decoding EVM call input data against the
// table of known method signatures.
type DecodedInput struct {
	Method string         `json:"method"`
	Params []DecodedParam `json:"params,omitempty"`
}

type methodSig struct {
	name   string
	params []abi.Argument
}

func arg(name, typ string) abi.Argument {
	t, err := abi.NewType(typ, "", nil)
	if err != nil {
		panic(fmt.Sprintf("evm: bad abi type %q: %v", typ, err))
	}
	return abi.Argument{Name: name, Type: t}
}

// knownSelectors maps 4-byte method selectors (lowercase hex, 0x-prefixed)
// to their signatures. Covers the common fungible- and non-fungible-token
// surface; anything else decodes as Unknown.
var knownSelectors = map[string]methodSig{
	"0xa9059cbb": {"transfer", []abi.Argument{arg("to", "address"), arg("amount", "uint256")}},
	"0x095ea7b3": {"approve", []abi.Argument{arg("spender", "address"), arg("amount", "uint256")}},
	"0x23b872dd": {"transferFrom", []abi.Argument{arg("from", "address"), arg("to", "address"), arg("amount", "uint256")}},
	"0x40c10f19": {"mint", []abi.Argument{arg("to", "address"), arg("amount", "uint256")}},
	"0x42966c68": {"burn", []abi.Argument{arg("amount", "uint256")}},
	"0x79cc6790": {"burnFrom", []abi.Argument{arg("account", "address"), arg("amount", "uint256")}},
	"0x39509351": {"increaseAllowance", []abi.Argument{arg("spender", "address"), arg("addedValue", "uint256")}},
	"0xa457c2d7": {"decreaseAllowance", []abi.Argument{arg("spender", "address"), arg("subtractedValue", "uint256")}},
	"0x70a08231": {"balanceOf", []abi.Argument{arg("account", "address")}},
	"0xdd62ed3e": {"allowance", []abi.Argument{arg("owner", "address"), arg("spender", "address")}},
	"0x18160ddd": {"totalSupply", nil},
	"0x06fdde03": {"name", nil},
	"0x95d89b41": {"symbol", nil},
	"0x313ce567": {"decimals", nil},
	"0x42842e0e": {"safeTransferFrom", []abi.Argument{arg("from", "address"), arg("to", "address"), arg("tokenId", "uint256")}},
	"0xb88d4fde": {"safeTransferFrom", []abi.Argument{arg("from", "address"), arg("to", "address"), arg("tokenId", "uint256"), arg("data", "bytes")}},
	"0x6352211e": {"ownerOf", []abi.Argument{arg("tokenId", "uint256")}},
	"0x081812fc": {"getApproved", []abi.Argument{arg("tokenId", "uint256")}},
	"0xa22cb465": {"setApprovalForAll", []abi.Argument{arg("operator", "address"), arg("approved", "bool")}},
	"0xe985e9c5": {"isApprovedForAll", []abi.Argument{arg("owner", "address"), arg("operator", "address")}},
	"0xc87b56dd": {"tokenURI", []abi.Argument{arg("tokenId", "uint256")}},
}

// DecodeInput decodes EVM call input data against the table of known method
// selectors. It never fails: unknown selectors yield UnknownMethod, and
// undecodable arguments for a known selector yield the method name with an
// empty parameter list.
func DecodeInput(input []byte) *DecodedInput {
	if len(input) == 0 {
		return &DecodedInput{Method: NativeTransferMethod}
	}
	if len(input) < 4 {
		return &DecodedInput{Method: UnknownMethod}
	}

	selector := strings.ToLower(hexutil.Encode(input[:4]))
	sig, ok := knownSelectors[selector]
	if !ok {
		return &DecodedInput{Method: UnknownMethod}
	}

	args := abi.Arguments(sig.params)
	values, err := args.Unpack(input[4:])
	if err != nil || len(values) != len(sig.params) {
		// Known method, undecodable payload. Report the method and move on;
		// a bad argument blob must not take down the whole transaction view.
		return &DecodedInput{Method: sig.name}
	}

	params := make([]DecodedParam, 0, len(sig.params))
	for i, a := range sig.params {
		params = append(params, DecodedParam{
			Name:  a.Name,
			Type:  a.Type.String(),
			Value: renderValue(values[i], a.Type),
		})
	}
	return &DecodedInput{Method: sig.name, Params: params}
}

// DecodeInputHex is DecodeInput for 0x-prefixed hex input. Undecodable hex
// is treated as an unknown method.
func DecodeInputHex(input string) *DecodedInput {
	if input == "" || input == "0x" {
		return &DecodedInput{Method: NativeTransferMethod}
	}
	raw, err := hexutil.Decode(input)
	if err != nil {
		return &DecodedInput{Method: UnknownMethod}
	}
	return DecodeInput(raw)
}

// renderValue converts a decoded ABI value to a JSON-friendly type: large
// integers become decimal strings (float64 cannot hold uint256), byte
// types become 0x hex, and composites recurse.
func renderValue(v interface{}, t abi.Type) interface{} {
	switch t.T {
	case abi.IntTy, abi.UintTy:
		return fmt.Sprint(v)
	case abi.AddressTy:
		return v.(ethCommon.Address).Hex()
	case abi.SliceTy, abi.ArrayTy:
		rv := reflect.ValueOf(v)
		slice := make([]interface{}, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			slice = append(slice, renderValue(rv.Index(i).Interface(), *t.Elem))
		}
		return slice
	case abi.FixedBytesTy, abi.FunctionTy:
		c := reflect.New(t.GetType()).Elem()
		c.Set(reflect.ValueOf(v))
		return hexutil.Encode(c.Bytes())
	case abi.BytesTy:
		return hexutil.Encode(reflect.ValueOf(v).Bytes())
	}
	return v
}
