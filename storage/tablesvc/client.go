// Package tablesvc implements a read-only client for a PostgREST-style
// table service: tables and views exposed as HTTP resources with
// operator-expression filters, and server-side aggregate functions under
// /rpc. This is the only component that talks to the table service; every
// higher layer goes through Query and RPC.
package tablesvc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/manifest-network/lens/log"
)

const moduleName = "tablesvc"

// Result is one page of rows from a table query. Rows are kept as raw JSON;
// callers unmarshal into their own row types.
type Result struct {
	Rows []json.RawMessage
	// Total is the exact total count when requested via ExactCount and
	// reported by the service, otherwise the number of rows returned.
	Total uint64
}

// Client issues queries against one table service endpoint.
type Client struct {
	base   string
	http   *http.Client
	logger *log.Logger
}

// NewClient creates a table service client for the given base URL.
// A zero timeout leaves the transport defaults in place.
func NewClient(base string, timeout time.Duration, logger *log.Logger) *Client {
	return &Client{
		base:   strings.TrimRight(base, "/"),
		http:   &http.Client{Timeout: timeout},
		logger: logger.WithModule(moduleName),
	}
}

// Query fetches one page of rows from a table.
func (c *Client) Query(ctx context.Context, table string, params QueryParams) (*Result, error) {
	url := c.base + "/" + table
	if qs := params.Encode(); qs != "" {
		url += "?" + qs
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if params.ExactCount {
		req.Header.Set("Prefer", "count=exact")
	}

	c.logger.Debug("table query", "url", url)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("table query %s: %w", table, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("table query %s: status %d: %s", table, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var rows []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("table query %s: decoding rows: %w", table, err)
	}

	result := &Result{Rows: rows, Total: uint64(len(rows))}
	if total, ok := parseContentRangeTotal(resp.Header.Get("Content-Range")); ok {
		result.Total = total
	}
	return result, nil
}

// RPC calls a server-side aggregate function under /rpc. All parameter
// values are stringified. The raw JSON response body is returned.
func (c *Client) RPC(ctx context.Context, fn string, params map[string]string) (json.RawMessage, error) {
	url := c.base + "/rpc/" + fn
	if len(params) > 0 {
		terms := make([]string, 0, len(params))
		for k, v := range params {
			terms = append(terms, k+"="+escapeQueryValue(v))
		}
		// Sorted for a deterministic URL.
		sort.Strings(terms)
		url += "?" + strings.Join(terms, "&")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("rpc call", "url", url)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rpc %s: %w", fn, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("rpc %s: status %d: %s", fn, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return io.ReadAll(resp.Body)
}

// parseContentRangeTotal extracts the total count from a Content-Range
// header of the form "start-end/total" (or "*/total"). The total segment
// may be "*" when the service did not compute an exact count.
func parseContentRangeTotal(header string) (uint64, bool) {
	if header == "" {
		return 0, false
	}
	parts := strings.Split(header, "/")
	if len(parts) != 2 || parts[1] == "*" {
		return 0, false
	}
	total, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return total, true
}
