package search

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/manifest-network/lens/log"
	"github.com/manifest-network/lens/storage/client"
)

func TestClassify(t *testing.T) {
	c := NewClassifier("manifest")

	hex64 := strings.Repeat("ab12", 16)
	bech32Tail := strings.Repeat("q2w3e4r5t6y7u8a9", 3) // 48 chars, all in charset

	for _, tc := range []struct {
		query string
		want  Category
	}{
		{"30587", CategoryBlockHeight},
		{"0", CategoryBlockHeight},
		{"030587", CategoryUnknown},     // leading zero: not its own int form
		{"30 587", CategoryUnknown},     // separator
		{hex64, CategoryTxHash},
		{"0x" + hex64, CategoryEvmTxHash},
		{"0x" + strings.Repeat("ab", 20), CategoryEvmAddress},
		{"0x" + strings.Repeat("ab", 10), CategoryUnknown}, // wrong length
		{"manifest1" + bech32Tail, CategoryBech32Address},
		{"manifestvaloper1" + bech32Tail, CategoryValidatorAddress},
		{"manifest1short", CategoryUnknown},                       // tail too short
		{"manifest1" + strings.Repeat("b", 40), CategoryUnknown},  // 'b' not in charset
		{"cosmos1" + bech32Tail, CategoryUnknown},                 // wrong prefix
		{"", CategoryUnknown},
		{"hello world", CategoryUnknown},
		{strings.Repeat("7", 64), CategoryTxHash}, // overflows int, still a hash shape
	} {
		require.Equal(t, tc.want, c.Classify(tc.query), "query %q", tc.query)
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	c := NewClassifier("manifest")
	for i := 0; i < 3; i++ {
		require.Equal(t, CategoryBlockHeight, c.Classify("30587"))
	}
}

// fakeData implements DataSource with canned entities.
type fakeData struct {
	blocks    map[int64]*client.Block
	txs       map[string]*client.EnrichedTransaction
	ethTxs    map[string]*client.EnrichedTransaction
	activity  map[string]uint64
	probeErrs bool
}

var errProbe = errors.New("probe failure")

func (f *fakeData) GetBlock(_ context.Context, height int64) (*client.Block, error) {
	if f.probeErrs {
		return nil, errProbe
	}
	if b, ok := f.blocks[height]; ok {
		return b, nil
	}
	return nil, errors.New("not found")
}

func (f *fakeData) GetTransaction(_ context.Context, hash string) (*client.EnrichedTransaction, error) {
	if f.probeErrs {
		return nil, errProbe
	}
	if tx, ok := f.txs[hash]; ok {
		return tx, nil
	}
	return nil, errors.New("not found")
}

func (f *fakeData) GetTransactionByEthHash(_ context.Context, ethHash string) (*client.EnrichedTransaction, error) {
	if f.probeErrs {
		return nil, errProbe
	}
	if tx, ok := f.ethTxs[ethHash]; ok {
		return tx, nil
	}
	return nil, errors.New("not found")
}

func (f *fakeData) GetTransactionsByAddress(_ context.Context, address string, limit, offset uint64) (*client.TransactionList, error) {
	if f.probeErrs {
		return nil, errProbe
	}
	return &client.TransactionList{
		Data:       []client.EnrichedTransaction{},
		Pagination: client.NewPaginationInfo(f.activity[address], limit, offset),
	}, nil
}

func newDispatcher(data *fakeData) *Dispatcher {
	return NewDispatcher(NewClassifier("manifest"), data, log.NewDefaultLogger("test"))
}

func TestSearchBlockHeight(t *testing.T) {
	d := newDispatcher(&fakeData{blocks: map[int64]*client.Block{30587: {Height: 30587}}})

	results := d.Search(context.Background(), "30587")
	require.Len(t, results, 1)
	require.Equal(t, CategoryBlockHeight, results[0].Category)
	require.Equal(t, priorityExactMatch, results[0].Priority)
	require.Equal(t, int64(30587), results[0].Block.Height)

	// Missing block: no result, no error surfaced.
	require.Empty(t, d.Search(context.Background(), "99999"))
}

func TestSearchEvmTxHashUsesEvmLookup(t *testing.T) {
	hash := "0x" + strings.Repeat("ab12", 16)
	d := newDispatcher(&fakeData{
		ethTxs: map[string]*client.EnrichedTransaction{
			hash: {Transaction: client.Transaction{Hash: "COSMOSHASH"}},
		},
	})

	results := d.Search(context.Background(), hash)
	require.Len(t, results, 1)
	require.Equal(t, CategoryEvmTxHash, results[0].Category)
	require.Equal(t, priorityExactMatch, results[0].Priority)
	require.Equal(t, "COSMOSHASH", results[0].Tx.Hash)
}

func TestSearchAddressPriorities(t *testing.T) {
	tail := strings.Repeat("q2w3e4r5t6y7u8a9", 3)
	active := "manifest1" + tail
	evmAddr := "0x" + strings.Repeat("cd", 20)
	d := newDispatcher(&fakeData{activity: map[string]uint64{
		active:  5,
		evmAddr: 2,
	}})

	results := d.Search(context.Background(), active)
	require.Len(t, results, 1)
	require.Equal(t, priorityAddressActivity, results[0].Priority)
	require.Equal(t, active, results[0].Address)

	results = d.Search(context.Background(), evmAddr)
	require.Len(t, results, 1)
	require.Equal(t, priorityEvmActivity, results[0].Priority)

	// No activity: the address still matches, at the floor priority.
	idle := "manifestvaloper1" + tail
	results = d.Search(context.Background(), idle)
	require.Len(t, results, 1)
	require.Equal(t, CategoryValidatorAddress, results[0].Category)
	require.Equal(t, priorityBareAddress, results[0].Priority)
}

func TestSearchSwallowsProbeErrors(t *testing.T) {
	d := newDispatcher(&fakeData{probeErrs: true})

	// Exact-match probes degrade to no result.
	require.Empty(t, d.Search(context.Background(), "30587"))
	require.Empty(t, d.Search(context.Background(), strings.Repeat("ab12", 16)))

	// Address probes degrade to the bare-address floor.
	tail := strings.Repeat("q2w3e4r5t6y7u8a9", 3)
	results := d.Search(context.Background(), "manifest1"+tail)
	require.Len(t, results, 1)
	require.Equal(t, priorityBareAddress, results[0].Priority)
}

func TestSearchUnknownQueryProbesNothing(t *testing.T) {
	d := newDispatcher(&fakeData{probeErrs: true})
	require.Empty(t, d.Search(context.Background(), "not a chain resource"))
}
