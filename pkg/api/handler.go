package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/hazyhaar/spendlens/pkg/auth"
	"github.com/hazyhaar/spendlens/pkg/kit"
	"github.com/hazyhaar/spendlens/pkg/spend"
)

// NewRouter returns an http.Handler with all dashboard API routes. sessions
// may be nil to run without the login gate (tests, local development).
// mcpHandler, when non-nil, is mounted at /mcp behind the same gate. A nil
// logger falls back to slog.Default.
func NewRouter(reg *spend.Registry, sessions *auth.Store, mcpHandler http.Handler, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	wrap := func(name string, ep kit.Endpoint) kit.Endpoint {
		return instrument(logger, name)(ep)
	}

	mux := http.NewServeMux()
	h := &handler{
		login:        wrap("login", noopEndpoint),
		listDatasets: wrap("list_datasets", listDatasetsEndpoint(reg)),
		stats:        wrap("stats", statsEndpoint(reg)),
		series:       wrap("series", seriesEndpoint(reg)),
		top:          wrap("top", topEndpoint(reg)),
		selector:     wrap("selector", selectorEndpoint(reg)),
		selectMonth:  wrap("select_month", selectMonthEndpoint(reg)),
		selectValue:  wrap("select_value", selectValueEndpoint(reg)),
		search:       wrap("search", searchEndpoint(reg)),
		reg:          reg,
		sessions:     sessions,
	}
	if sessions != nil {
		h.login = wrap("login", loginEndpoint(sessions))
	}

	mux.HandleFunc("POST /v1/auth/login", h.handleLogin)
	mux.HandleFunc("POST /v1/auth/logout", h.handleLogout)
	mux.HandleFunc("GET /v1/health", h.handleHealth)
	mux.HandleFunc("GET /v1/datasets", h.handleListDatasets)
	mux.HandleFunc("GET /v1/datasets/{id}/stats", h.handleStats)
	mux.HandleFunc("GET /v1/series/{id}", h.handleSeries)
	mux.HandleFunc("GET /v1/top/{id}", h.handleTop)
	mux.HandleFunc("GET /v1/selectors/{id}", h.handleSelector)
	mux.HandleFunc("POST /v1/selectors/{id}/month", h.handleSelectMonth)
	mux.HandleFunc("POST /v1/selectors/{id}/value", h.handleSelectValue)
	mux.HandleFunc("GET /v1/search", h.handleSearch)
	if mcpHandler != nil {
		mux.Handle("/mcp", mcpHandler)
		mux.Handle("/mcp/", mcpHandler)
	}

	return cors(requestScope(h.requireSession(mux)))
}

type handler struct {
	login        kit.Endpoint
	listDatasets kit.Endpoint
	stats        kit.Endpoint
	series       kit.Endpoint
	top          kit.Endpoint
	selector     kit.Endpoint
	selectMonth  kit.Endpoint
	selectValue  kit.Endpoint
	search       kit.Endpoint
	reg          *spend.Registry
	sessions     *auth.Store
}

func noopEndpoint(_ context.Context, _ any) (any, error) {
	return nil, errors.New("login disabled")
}

// --- auth ---

type httpLoginRequest struct {
	Password string `json:"password"`
}

func (h *handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 4*1024)
	var req httpLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	resp, err := h.login(r.Context(), &loginReq{Password: req.Password})
	if err != nil {
		if errors.Is(err, auth.ErrBadPassword) {
			writeError(w, http.StatusUnauthorized, "invalid password")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if h.sessions != nil {
		// requireSession already validated the token and put it in context.
		if err := h.sessions.Logout(kit.GetSession(r.Context())); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- datasets ---

func (h *handler) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	resp, err := h.listDatasets(r.Context(), nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) handleStats(w http.ResponseWriter, r *http.Request) {
	h.datasetCall(w, r, h.stats)
}

func (h *handler) handleSeries(w http.ResponseWriter, r *http.Request) {
	h.datasetCall(w, r, h.series)
}

func (h *handler) handleSelector(w http.ResponseWriter, r *http.Request) {
	h.datasetCall(w, r, h.selector)
}

// datasetCall runs an endpoint taking just a dataset ID.
func (h *handler) datasetCall(w http.ResponseWriter, r *http.Request, ep kit.Endpoint) {
	resp, err := ep(r.Context(), &datasetReq{ID: r.PathValue("id")})
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- top creatives ---

func (h *handler) handleTop(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	n := 0
	if v := q.Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "invalid n")
			return
		}
		n = parsed
	}

	resp, err := h.top(r.Context(), &topReq{
		ID:    r.PathValue("id"),
		Month: q.Get("month"),
		Value: q.Get("value"),
		N:     n,
	})
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- selector transitions ---

type httpSelectRequest struct {
	Month string `json:"month,omitempty"`
	Value string `json:"value,omitempty"`
}

func (h *handler) handleSelectMonth(w http.ResponseWriter, r *http.Request) {
	h.selectCall(w, r, h.selectMonth, func(req httpSelectRequest) string { return req.Month })
}

func (h *handler) handleSelectValue(w http.ResponseWriter, r *http.Request) {
	h.selectCall(w, r, h.selectValue, func(req httpSelectRequest) string { return req.Value })
}

func (h *handler) selectCall(w http.ResponseWriter, r *http.Request, ep kit.Endpoint, choice func(httpSelectRequest) string) {
	r.Body = http.MaxBytesReader(w, r.Body, 4*1024)
	var req httpSelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	resp, err := ep(r.Context(), &selectReq{ID: r.PathValue("id"), Choice: choice(req)})
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- search ---

func (h *handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if v := q.Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	resp, err := h.search(r.Context(), &searchReq{Query: q.Get("q"), Limit: limit})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- health ---

type healthResponse struct {
	Status    string `json:"status"`
	Datasets  int    `json:"datasets"`
	TotalRows int    `json:"total_rows"`
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	datasets, rows := h.reg.Counts()
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Datasets:  datasets,
		TotalRows: rows,
	})
}

// --- middleware and helpers ---

// requireSession gates every route except health, login, and CORS preflight
// behind a valid bearer token. A nil session store disables the gate.
func (h *handler) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.sessions == nil || r.Method == http.MethodOptions ||
			r.URL.Path == "/v1/health" || r.URL.Path == "/v1/auth/login" {
			next.ServeHTTP(w, r)
			return
		}

		token := bearerToken(r)
		if err := h.sessions.Validate(token); err != nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(kit.WithSession(r.Context(), token)))
	})
}

// requestScope stamps each request with an ID and its transport, so endpoint
// log lines can be correlated across the dispatch chain.
func requestScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := kit.WithRequestID(r.Context(), uuid.NewString())
		ctx = kit.WithTransport(ctx, "http")
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return token
	}
	return ""
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, spend.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, spend.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, errInternal):
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// cors is a simple CORS middleware for browser-based clients.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
