package common

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPaginationWithNoParams(t *testing.T) {
	ctx := context.Background()

	r, err := http.NewRequestWithContext(ctx, "GET", "https://fake-api.com/get-resource", nil)
	require.Nil(t, err)

	p, err := NewPagination(r)
	require.Nil(t, err)

	require.Equal(t, p.Limit, DefaultLimit)
	require.Equal(t, p.Offset, DefaultOffset)
}

func TestPaginationWithValidParams(t *testing.T) {
	ctx := context.Background()

	limit := uint64(10)
	offset := uint64(20)

	r, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("https://fake-api.com/get-resource?limit=%d&offset=%d", limit, offset), nil)
	require.Nil(t, err)

	p, err := NewPagination(r)
	require.Nil(t, err)

	require.Equal(t, p.Limit, limit)
	require.Equal(t, p.Offset, offset)
}

func TestPaginationWithInvalidParams(t *testing.T) {
	ctx := context.Background()

	r, err := http.NewRequestWithContext(ctx, "GET", "https://fake-api.com/get-resource?limit=nonsense", nil)
	require.Nil(t, err)

	_, err = NewPagination(r)
	require.NotNil(t, err)

	r, err = http.NewRequestWithContext(ctx, "GET", "https://fake-api.com/get-resource?offset=-1", nil)
	require.Nil(t, err)

	_, err = NewPagination(r)
	require.NotNil(t, err)
}

func TestPaginationWithTooHighLimit(t *testing.T) {
	ctx := context.Background()

	r, err := http.NewRequestWithContext(ctx, "GET", "https://fake-api.com/get-resource?limit=100000000000&offset=20", nil)
	require.Nil(t, err)

	p, err := NewPagination(r)
	require.Nil(t, err)

	require.Equal(t, p.Limit, MaximumLimit)
	require.Equal(t, p.Offset, uint64(20))
}
