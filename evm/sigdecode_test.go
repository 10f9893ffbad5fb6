package evm

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/require"
)

func packCall(t *testing.T, selector string, args abi.Arguments, values ...interface{}) []byte {
	t.Helper()
	sel, err := hexutil.Decode(selector)
	require.NoError(t, err)
	packed, err := args.Pack(values...)
	require.NoError(t, err)
	return append(sel, packed...)
}

func TestDecodeInputTransfer(t *testing.T) {
	to := ethCommon.HexToAddress("0x1111111111111111111111111111111111111111")
	amount, ok := new(big.Int).SetString("123456789012345678901234567890", 10)
	require.True(t, ok)

	input := packCall(t, "0xa9059cbb",
		abi.Arguments{arg("to", "address"), arg("amount", "uint256")},
		to, amount)

	decoded := DecodeInput(input)
	require.Equal(t, "transfer", decoded.Method)
	require.Len(t, decoded.Params, 2)
	require.Equal(t, "to", decoded.Params[0].Name)
	require.Equal(t, to.Hex(), decoded.Params[0].Value)
	require.Equal(t, "amount", decoded.Params[1].Name)
	require.Equal(t, "123456789012345678901234567890", decoded.Params[1].Value,
		"big integers render as decimal strings")
}

func TestDecodeInputNativeTransfer(t *testing.T) {
	require.Equal(t, NativeTransferMethod, DecodeInput(nil).Method)
	require.Empty(t, DecodeInput(nil).Params)

	require.Equal(t, NativeTransferMethod, DecodeInputHex("").Method)
	require.Equal(t, NativeTransferMethod, DecodeInputHex("0x").Method)
}

func TestDecodeInputUnknownSelector(t *testing.T) {
	decoded := DecodeInput([]byte{0xde, 0xad, 0xbe, 0xef})
	require.Equal(t, UnknownMethod, decoded.Method)
	require.Empty(t, decoded.Params)
}

func TestDecodeInputTruncatedPayload(t *testing.T) {
	// Known selector with garbage arguments: method name, empty params,
	// no panic, no error surfaced.
	input := append([]byte{0xa9, 0x05, 0x9c, 0xbb}, 0x01, 0x02)
	decoded := DecodeInput(input)
	require.Equal(t, "transfer", decoded.Method)
	require.Empty(t, decoded.Params)
}

func TestDecodeInputNoArgMethod(t *testing.T) {
	decoded := DecodeInputHex("0x18160ddd")
	require.Equal(t, "totalSupply", decoded.Method)
	require.Empty(t, decoded.Params)
}

func TestDecodeInputSafeTransferFromWithData(t *testing.T) {
	from := ethCommon.HexToAddress("0x2222222222222222222222222222222222222222")
	to := ethCommon.HexToAddress("0x3333333333333333333333333333333333333333")
	input := packCall(t, "0xb88d4fde",
		abi.Arguments{arg("from", "address"), arg("to", "address"), arg("tokenId", "uint256"), arg("data", "bytes")},
		from, to, big.NewInt(7), []byte{0x01, 0x02})

	decoded := DecodeInput(input)
	require.Equal(t, "safeTransferFrom", decoded.Method)
	require.Len(t, decoded.Params, 4)
	require.Equal(t, "7", decoded.Params[2].Value)
	require.Equal(t, "0x0102", decoded.Params[3].Value)
}
