package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	apiCommon "github.com/manifest-network/lens/api/common"
	"github.com/manifest-network/lens/denom"
	"github.com/manifest-network/lens/log"
	"github.com/manifest-network/lens/metrics"
	"github.com/manifest-network/lens/search"
	"github.com/manifest-network/lens/stats"
	"github.com/manifest-network/lens/storage/client"
)

const moduleName = "api"

// Handler serves the v1 routes from the underlying data layer.
type Handler struct {
	data    *client.StorageClient
	stats   *stats.Service
	search  *search.Dispatcher
	denoms  *denom.Resolver
	logger  *log.Logger
	metrics metrics.RequestMetrics
}

func NewHandler(
	data *client.StorageClient,
	statsService *stats.Service,
	dispatcher *search.Dispatcher,
	denoms *denom.Resolver,
	logger *log.Logger,
) *Handler {
	return &Handler{
		data:    data,
		stats:   statsService,
		search:  dispatcher,
		denoms:  denoms,
		logger:  logger.WithModule(moduleName),
		metrics: metrics.NewDefaultRequestMetrics(moduleName),
	}
}

// Router builds the route tree with middleware applied.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(MetricsMiddleware(h.metrics, h.logger))
	r.Use(CorsMiddleware)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/blocks", h.listBlocks)
		r.Get("/blocks/latest", h.getLatestBlock)
		r.Get("/blocks/{height}", h.getBlock)
		r.Get("/transactions", h.listTransactions)
		r.Get("/transactions/{hash}", h.getTransaction)
		r.Get("/accounts/{address}/transactions", h.listAccountTransactions)
		r.Get("/search", h.doSearch)
		r.Get("/denoms/*", h.getDenom)
		r.Get("/channels/{port}/{channel}", h.getChannel)
		r.Route("/stats", func(r chi.Router) {
			r.Get("/summary", h.getChainSummary)
			r.Get("/volume/daily", h.getDailyVolume)
			r.Get("/volume/hourly", h.getHourlyVolume)
			r.Get("/message-types", h.getMessageTypes)
			r.Get("/fees", h.getFeeRevenue)
			r.Get("/block-times", h.getBlockTimes)
			r.Get("/gas", h.getGasDistribution)
			r.Get("/success-rate", h.getSuccessRate)
		})
	})
	return r
}

func replyJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) listBlocks(w http.ResponseWriter, r *http.Request) {
	p, err := apiCommon.NewPagination(r)
	if err != nil {
		apiCommon.ReplyWithError(w, fmt.Errorf("%w: %v", apiCommon.ErrBadRequest, err))
		return
	}
	list, err := h.data.GetBlocks(r.Context(), p.Limit, p.Offset)
	if err != nil {
		apiCommon.ReplyWithError(w, err)
		return
	}
	replyJSON(w, list)
}

func (h *Handler) getLatestBlock(w http.ResponseWriter, r *http.Request) {
	block, err := h.data.GetLatestBlock(r.Context())
	if err != nil {
		apiCommon.ReplyWithError(w, err)
		return
	}
	replyJSON(w, block)
}

func (h *Handler) getBlock(w http.ResponseWriter, r *http.Request) {
	height, err := strconv.ParseInt(chi.URLParam(r, "height"), 10, 64)
	if err != nil {
		apiCommon.ReplyWithError(w, fmt.Errorf("%w: invalid height", apiCommon.ErrBadRequest))
		return
	}
	block, err := h.data.GetBlock(r.Context(), height)
	if err != nil {
		apiCommon.ReplyWithError(w, err)
		return
	}
	replyJSON(w, block)
}

// parseTxFilter reads list-filter params. Unknown params are ignored;
// malformed known params are a bad request.
func parseTxFilter(r *http.Request) (client.TxFilter, error) {
	var filter client.TxFilter
	q := r.URL.Query()

	if v := q.Get("status"); v != "" {
		switch client.TxStatus(v) {
		case client.TxStatusSuccess, client.TxStatusFailed:
			status := client.TxStatus(v)
			filter.Status = &status
		default:
			return filter, fmt.Errorf("status must be success or failed")
		}
	}
	parseInt := func(key string, dst **int64) error {
		v := q.Get(key)
		if v == "" {
			return nil
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s must be an integer", key)
		}
		*dst = &n
		return nil
	}
	if err := parseInt("height", &filter.Height); err != nil {
		return filter, err
	}
	if err := parseInt("height_min", &filter.HeightMin); err != nil {
		return filter, err
	}
	if err := parseInt("height_max", &filter.HeightMax); err != nil {
		return filter, err
	}
	parseTime := func(key string, dst **time.Time) error {
		v := q.Get(key)
		if v == "" {
			return nil
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return fmt.Errorf("%s must be an RFC 3339 timestamp", key)
		}
		*dst = &t
		return nil
	}
	if err := parseTime("after", &filter.After); err != nil {
		return filter, err
	}
	if err := parseTime("before", &filter.Before); err != nil {
		return filter, err
	}
	if v := q.Get("message_type"); v != "" {
		filter.MessageType = &v
	}
	return filter, nil
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	p, err := apiCommon.NewPagination(r)
	if err != nil {
		apiCommon.ReplyWithError(w, fmt.Errorf("%w: %v", apiCommon.ErrBadRequest, err))
		return
	}
	filter, err := parseTxFilter(r)
	if err != nil {
		apiCommon.ReplyWithError(w, fmt.Errorf("%w: %v", apiCommon.ErrBadRequest, err))
		return
	}
	list, err := h.data.GetTransactions(r.Context(), filter, p.Limit, p.Offset)
	if err != nil {
		apiCommon.ReplyWithError(w, err)
		return
	}
	replyJSON(w, list)
}

func (h *Handler) getTransaction(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")
	if hash == "" {
		apiCommon.ReplyWithError(w, fmt.Errorf("%w: missing hash", apiCommon.ErrBadRequest))
		return
	}
	tx, err := h.data.GetTransaction(r.Context(), hash)
	if err != nil {
		apiCommon.ReplyWithError(w, err)
		return
	}
	replyJSON(w, tx)
}

func (h *Handler) listAccountTransactions(w http.ResponseWriter, r *http.Request) {
	p, err := apiCommon.NewPagination(r)
	if err != nil {
		apiCommon.ReplyWithError(w, fmt.Errorf("%w: %v", apiCommon.ErrBadRequest, err))
		return
	}
	address := chi.URLParam(r, "address")
	list, err := h.data.GetTransactionsByAddress(r.Context(), address, p.Limit, p.Offset)
	if err != nil {
		apiCommon.ReplyWithError(w, err)
		return
	}
	replyJSON(w, list)
}

func (h *Handler) doSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		apiCommon.ReplyWithError(w, fmt.Errorf("%w: missing q parameter", apiCommon.ErrBadRequest))
		return
	}
	results := h.search.Search(r.Context(), query)
	replyJSON(w, struct {
		Results []search.Result `json:"results"`
	}{Results: results})
}

func (h *Handler) getDenom(w http.ResponseWriter, r *http.Request) {
	// Denoms may contain slashes (ibc/HASH), hence the wildcard route.
	name := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if name == "" {
		apiCommon.ReplyWithError(w, fmt.Errorf("%w: missing denom", apiCommon.ErrBadRequest))
		return
	}
	replyJSON(w, h.denoms.Resolve(r.Context(), name))
}

func (h *Handler) getChannel(w http.ResponseWriter, r *http.Request) {
	info, err := h.denoms.ChannelInfo(r.Context(), chi.URLParam(r, "port"), chi.URLParam(r, "channel"))
	if err != nil {
		apiCommon.ReplyWithError(w, err)
		return
	}
	replyJSON(w, info)
}

func (h *Handler) getChainSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.stats.ChainSummary(r.Context())
	if err != nil {
		apiCommon.ReplyWithError(w, err)
		return
	}
	replyJSON(w, summary)
}

// windowParam reads an integer window size with a default and an upper
// bound.
func windowParam(r *http.Request, key string, def, max int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

func (h *Handler) getDailyVolume(w http.ResponseWriter, r *http.Request) {
	points, err := h.stats.DailyTxVolume(r.Context(), windowParam(r, "days", 30, 365))
	if err != nil {
		apiCommon.ReplyWithError(w, err)
		return
	}
	replyJSON(w, points)
}

func (h *Handler) getHourlyVolume(w http.ResponseWriter, r *http.Request) {
	points, err := h.stats.HourlyTxVolume(r.Context(), windowParam(r, "hours", 24, 168))
	if err != nil {
		apiCommon.ReplyWithError(w, err)
		return
	}
	replyJSON(w, points)
}

func (h *Handler) getMessageTypes(w http.ResponseWriter, r *http.Request) {
	dist, err := h.stats.MessageTypeDistribution(r.Context())
	if err != nil {
		apiCommon.ReplyWithError(w, err)
		return
	}
	replyJSON(w, dist)
}

func (h *Handler) getFeeRevenue(w http.ResponseWriter, r *http.Request) {
	revenue, err := h.stats.FeeRevenue(r.Context())
	if err != nil {
		apiCommon.ReplyWithError(w, err)
		return
	}
	replyJSON(w, revenue)
}

func (h *Handler) getBlockTimes(w http.ResponseWriter, r *http.Request) {
	bt, err := h.stats.BlockTimeStats(r.Context())
	if err != nil {
		apiCommon.ReplyWithError(w, err)
		return
	}
	replyJSON(w, bt)
}

func (h *Handler) getGasDistribution(w http.ResponseWriter, r *http.Request) {
	buckets, err := h.stats.GasDistribution(r.Context())
	if err != nil {
		apiCommon.ReplyWithError(w, err)
		return
	}
	replyJSON(w, buckets)
}

func (h *Handler) getSuccessRate(w http.ResponseWriter, r *http.Request) {
	rate, err := h.stats.SuccessRate(r.Context())
	if err != nil {
		apiCommon.ReplyWithError(w, err)
		return
	}
	replyJSON(w, rate)
}
