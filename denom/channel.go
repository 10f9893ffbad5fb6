package denom

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/manifest-network/lens/cache/kvstore"
	"github.com/manifest-network/lens/log"
	"github.com/manifest-network/lens/metrics"
)

// ErrNoNodeEndpoint is returned when channel metadata is requested but no
// chain node endpoint was configured. Callers degrade; they do not retry.
var ErrNoNodeEndpoint = errors.New("no chain node endpoint configured")

// ChannelInfo is the cached metadata for one IBC channel end.
type ChannelInfo struct {
	Port                string `json:"port"`
	Channel             string `json:"channel"`
	State               string `json:"state"`
	CounterpartyChainID string `json:"counterparty_chain_id"`
}

// nodeClient speaks the chain node's REST query interface, used only for
// live channel and client-state queries.
type nodeClient struct {
	base   string
	http   *http.Client
	logger *log.Logger
}

func newNodeClient(base string, logger *log.Logger) *nodeClient {
	return &nodeClient{
		base:   strings.TrimRight(base, "/"),
		http:   &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

func (n *nodeClient) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.base+path, nil)
	if err != nil {
		return err
	}
	resp, err := n.http.Do(req)
	if err != nil {
		return fmt.Errorf("node query %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("node query %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ChannelInfo returns channel metadata, cached without expiry by the
// {port}/{channel} composite key. Without a node endpoint this is
// ErrNoNodeEndpoint; cached entries from a previous run still serve.
func (r *Resolver) ChannelInfo(ctx context.Context, port, channel string) (*ChannelInfo, error) {
	key := kvstore.GenerateCacheKey("channel", port, channel)

	observe := func(status metrics.CacheReadStatus) {
		if r.cacheMetrics != nil {
			r.cacheMetrics.CacheReads("channel", status).Inc()
		}
	}

	if raw, err := r.store.Get(key); err == nil && raw != nil {
		var info ChannelInfo
		if json.Unmarshal(raw, &info) == nil {
			observe(metrics.CacheReadStatusHit)
			return &info, nil
		}
	}
	observe(metrics.CacheReadStatusMiss)

	if r.node == nil {
		return nil, ErrNoNodeEndpoint
	}

	info, err := r.node.fetchChannelInfo(ctx, port, channel)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(info); err == nil {
		// Channel identity never changes; cache forever.
		_ = r.store.Put(key, raw)
	}
	return info, nil
}

// fetchChannelInfo gathers channel state and the counterparty chain id in
// two concurrent node queries.
func (n *nodeClient) fetchChannelInfo(ctx context.Context, port, channel string) (*ChannelInfo, error) {
	info := &ChannelInfo{Port: port, Channel: channel}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var resp struct {
			Channel struct {
				State string `json:"state"`
			} `json:"channel"`
		}
		path := fmt.Sprintf("/ibc/core/channel/v1/channels/%s/ports/%s", channel, port)
		if err := n.get(egCtx, path, &resp); err != nil {
			return err
		}
		info.State = resp.Channel.State
		return nil
	})
	eg.Go(func() error {
		var resp struct {
			IdentifiedClientState struct {
				ClientState struct {
					ChainID string `json:"chain_id"`
				} `json:"client_state"`
			} `json:"identified_client_state"`
		}
		path := fmt.Sprintf("/ibc/core/channel/v1/channels/%s/ports/%s/client_state", channel, port)
		if err := n.get(egCtx, path, &resp); err != nil {
			return err
		}
		info.CounterpartyChainID = resp.IdentifiedClientState.ClientState.ChainID
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return info, nil
}
