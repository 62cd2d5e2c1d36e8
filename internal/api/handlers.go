// Package api exposes the query and search services over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/altsignal/tickersent/internal/clients"
	"github.com/altsignal/tickersent/internal/models"
	"github.com/altsignal/tickersent/internal/query"
	"github.com/altsignal/tickersent/internal/search"
)

type QueryService interface {
	Query(ctx context.Context, params query.Params) (*models.QueryResponse, error)
}

type SearchService interface {
	Search(ctx context.Context, ticker, timeframe string) (*models.SearchResponse, error)
}

type Handler struct {
	queries  QueryService
	searches SearchService
	limiter  RateLimiter
	tickers  []string
}

func NewHandler(queries QueryService, searches SearchService, limiter RateLimiter, tickers []string) *Handler {
	return &Handler{
		queries:  queries,
		searches: searches,
		limiter:  limiter,
		tickers:  tickers,
	}
}

func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/query", h.handleQuery).Methods(http.MethodGet)
	r.HandleFunc("/search", rateLimit(h.limiter, h.handleSearch)).Methods(http.MethodGet)
	r.HandleFunc("/tickers", h.handleTickers).Methods(http.MethodGet)
	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	params := query.Params{
		Ticker:           r.URL.Query().Get("ticker"),
		ContentType:      r.URL.Query().Get("type"),
		StartDate:        r.URL.Query().Get("start_date"),
		EndDate:          r.URL.Query().Get("end_date"),
		IncludeSentinels: r.URL.Query().Get("include_sentinels") == "true",
	}

	resp, err := h.queries.Query(r.Context(), params)
	if err != nil {
		var validationErr *query.ValidationError
		var execErr *query.ExecutionError
		switch {
		case errors.As(err, &validationErr):
			writeError(w, http.StatusBadRequest, validationErr.Message)
		case errors.Is(err, query.ErrQueryTimeout):
			writeError(w, http.StatusGatewayTimeout, "Query timed out. Try a narrower date range.")
		case errors.As(err, &execErr):
			slog.Error("[API] Query execution failed", slog.String("reason", execErr.Reason))
			writeError(w, http.StatusInternalServerError, "Query execution failed")
		default:
			slog.Error("[API] Query failed", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	ticker := r.URL.Query().Get("ticker")
	timeframe := r.URL.Query().Get("timeframe")

	resp, err := h.searches.Search(r.Context(), ticker, timeframe)
	if err != nil {
		var validationErr *search.ValidationError
		var upstreamErr *search.UpstreamError
		switch {
		case errors.As(err, &validationErr):
			writeError(w, http.StatusBadRequest, validationErr.Message)
		case errors.As(err, &upstreamErr):
			writeError(w, http.StatusBadGateway, upstreamErr.Error())
		case errors.Is(err, clients.ErrSourceUnavailable):
			writeError(w, http.StatusBadGateway, err.Error())
		default:
			slog.Error("[API] Search failed", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleTickers(w http.ResponseWriter, r *http.Request) {
	tickers := h.tickers
	fallback := false
	if len(tickers) == 0 {
		tickers = []string{"AAPL", "TSLA", "NVDA", "AMZN", "MSFT", "GOOG", "META", "SPY"}
		fallback = true
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tickers":  tickers,
		"count":    len(tickers),
		"fallback": fallback,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("[API] Failed to encode response", slog.String("error", err.Error()))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
