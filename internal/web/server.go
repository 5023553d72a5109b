package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/gorilla/mux"

	"github.com/elys-network/yieldvault/internal/logger"
	"github.com/elys-network/yieldvault/internal/state"
	"github.com/elys-network/yieldvault/internal/types"
	"github.com/elys-network/yieldvault/internal/utils"
	"github.com/elys-network/yieldvault/internal/vault"
)

var webLogger = logger.GetForComponent("web_server")

// CallerHeader carries the identity of the account making a mutating request.
const CallerHeader = "X-Caller"

var (
	errMissingCaller = errors.New("missing " + CallerHeader + " header")
	errVaultCaller   = errors.New("requests cannot act as the vault account")
)

// Ledger is the reserve-token surface the API reads and, with the faucet
// enabled, writes.
type Ledger interface {
	Balance(account types.Address) sdk.Coin
	Mint(to types.Address, amount sdkmath.Int) error
	Approve(owner, spender types.Address, amount sdkmath.Int) error
}

// Analytics serves the persisted history. Nil when no database is configured.
type Analytics interface {
	RecentEvents(limit int, kinds ...types.EventKind) ([]types.Event, error)
	EventsByAccount(account types.Address, limit int) ([]types.Event, error)
	LatestSnapshot() (*types.VaultSnapshot, error)
	Performance() (*state.PerformanceMetrics, error)
	Healthy() error
}

// Config holds the configuration for creating a new WebServer
type Config struct {
	Port          string
	Vault         *vault.Vault
	Ledger        Ledger
	Analytics     Analytics
	FaucetEnabled bool
}

// WebServer serves the vault's HTTP API
type WebServer struct {
	router    *mux.Router
	port      string
	vault     *vault.Vault
	ledger    Ledger
	analytics Analytics
	faucet    bool
	started   time.Time
	server    *http.Server
}

// NewWebServer creates a new web server instance
func NewWebServer(cfg Config) (*WebServer, error) {
	if cfg.Vault == nil {
		return nil, errors.New("vault cannot be nil")
	}
	if cfg.Ledger == nil {
		return nil, errors.New("reserve ledger cannot be nil")
	}
	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	ws := &WebServer{
		router:    mux.NewRouter(),
		port:      port,
		vault:     cfg.Vault,
		ledger:    cfg.Ledger,
		analytics: cfg.Analytics,
		faucet:    cfg.FaucetEnabled,
		started:   time.Now(),
	}
	ws.setupRoutes()
	return ws, nil
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")

	// Vault reads
	api.HandleFunc("/vault", ws.handleGetVault).Methods("GET")
	api.HandleFunc("/accounts/{addr}", ws.handleGetAccount).Methods("GET")
	api.HandleFunc("/accounts/{addr}/events", ws.handleGetAccountEvents).Methods("GET")
	api.HandleFunc("/withdrawals/{owner}/{id:[0-9]+}", ws.handleGetWithdrawal).Methods("GET")
	api.HandleFunc("/strategies", ws.handleGetStrategies).Methods("GET")

	// Share operations
	api.HandleFunc("/deposit", ws.handleDeposit).Methods("POST")
	api.HandleFunc("/mint", ws.handleMint).Methods("POST")
	api.HandleFunc("/transfer", ws.handleTransfer).Methods("POST")
	api.HandleFunc("/approve", ws.handleApprove).Methods("POST")
	api.HandleFunc("/redeem", ws.handleRedeem).Methods("POST")
	api.HandleFunc("/withdrawals/{id:[0-9]+}/claim", ws.handleClaim).Methods("POST")

	// Privileged operations
	api.HandleFunc("/strategies/{addr}/allocate", ws.handleAllocate).Methods("POST")
	api.HandleFunc("/strategies/{addr}/reconcile", ws.handleReconcile).Methods("POST")
	api.HandleFunc("/admin/pause", ws.handlePause).Methods("POST")
	api.HandleFunc("/admin/unpause", ws.handleUnpause).Methods("POST")

	// History
	api.HandleFunc("/events", ws.handleGetEvents).Methods("GET")
	api.HandleFunc("/snapshots/latest", ws.handleGetLatestSnapshot).Methods("GET")
	api.HandleFunc("/performance", ws.handleGetPerformanceMetrics).Methods("GET")

	if ws.faucet {
		api.HandleFunc("/token/mint", ws.handleFaucetMint).Methods("POST")
		api.HandleFunc("/token/approve", ws.handleTokenApprove).Methods("POST")
	}

	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Handler returns the root HTTP handler.
func (ws *WebServer) Handler() http.Handler {
	return ws.router
}

// Start starts the web server. It blocks until the server stops.
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Bool("faucet", ws.faucet).Msg("Starting web server")

	ws.server = &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if err := ws.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops a started server.
func (ws *WebServer) Shutdown(ctx context.Context) error {
	if ws.server == nil {
		return nil
	}
	webLogger.Info().Msg("Shutting down web server")
	return ws.server.Shutdown(ctx)
}

// --- Health ---

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	dbConfigured := ws.analytics != nil
	dbHealthy := false
	if dbConfigured {
		if err := ws.analytics.Healthy(); err != nil {
			webLogger.Warn().Err(err).Msg("Database health check failed")
		} else {
			dbHealthy = true
		}
	}

	status, statusCode := "OK", http.StatusOK
	if dbConfigured && !dbHealthy {
		status, statusCode = "DEGRADED", http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"sys_bytes":        memStats.Sys,
			"gc_cycles":        memStats.NumGC,
			"uptime_seconds":   int64(time.Since(ws.started).Seconds()),
		},
		"component": map[string]interface{}{
			"name":    "yieldvault",
			"version": "1.0.0",
		},
		"vault_status": map[string]interface{}{
			"paused":              ws.vault.Paused(),
			"database_configured": dbConfigured,
			"database_healthy":    dbHealthy,
		},
	}
	ws.writeJSONResponse(w, statusCode, response)
}

// --- Vault reads ---

func (ws *WebServer) handleGetVault(w http.ResponseWriter, r *http.Request) {
	snap := ws.vault.Snapshot()
	response := map[string]interface{}{
		"address":    ws.vault.Address(),
		"asset":      ws.vault.Asset(),
		"parameters": ws.vault.Parameters(),
		"state":      snap,
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

func (ws *WebServer) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	addr := types.Address(mux.Vars(r)["addr"])
	shares := ws.vault.BalanceOf(addr)

	response := map[string]interface{}{
		"address":             addr,
		"shares":              shares,
		"shares_value":        ws.vault.ConvertToAssets(shares),
		"max_redeem":          ws.vault.MaxRedeem(addr),
		"reserve_balance":     ws.ledger.Balance(addr),
		"withdrawal_requests": ws.vault.WithdrawalRequests(addr),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

func (ws *WebServer) handleGetWithdrawal(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	owner := types.Address(vars["owner"])
	id, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request ID")
		return
	}

	req, ok := ws.vault.WithdrawalRequest(owner, id)
	if !ok {
		ws.writeErrorResponse(w, http.StatusNotFound, "Withdrawal request not found")
		return
	}
	response := map[string]interface{}{
		"request":          req,
		"claimable_assets": ws.vault.ClaimableAssets(owner, id),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

func (ws *WebServer) handleGetStrategies(w http.ResponseWriter, r *http.Request) {
	strategies := ws.vault.Strategies()
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"strategies":                 strategies,
		"count":                      len(strategies),
		"total_assets_in_strategies": ws.vault.TotalAssetsInStrategies(),
	})
}

// --- Share operations ---

type depositRequest struct {
	Assets   string        `json:"assets"`
	Receiver types.Address `json:"receiver"`
}

type mintRequest struct {
	Shares   string        `json:"shares"`
	Receiver types.Address `json:"receiver"`
}

type transferRequest struct {
	From   types.Address `json:"from"`
	To     types.Address `json:"to"`
	Shares string        `json:"shares"`
}

type approveRequest struct {
	Spender types.Address `json:"spender"`
	Shares  string        `json:"shares"`
}

type redeemRequest struct {
	Shares string        `json:"shares"`
	Owner  types.Address `json:"owner"`
}

type allocateRequest struct {
	TargetDebt string `json:"target_debt"`
}

type faucetMintRequest struct {
	To     types.Address `json:"to"`
	Amount string        `json:"amount"`
}

type tokenApproveRequest struct {
	Spender types.Address `json:"spender"`
	Amount  string        `json:"amount"`
}

func (ws *WebServer) handleDeposit(w http.ResponseWriter, r *http.Request) {
	caller, ok := ws.requireCaller(w, r)
	if !ok {
		return
	}
	var req depositRequest
	if !ws.decodeBody(w, r, &req) {
		return
	}
	assets, ok := ws.parseAmount(w, "assets", req.Assets)
	if !ok {
		return
	}
	receiver := orDefault(req.Receiver, caller)

	shares, err := ws.vault.Deposit(caller, assets, receiver)
	if err != nil {
		ws.writeVaultError(w, "deposit", err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"receiver": receiver,
		"assets":   assets,
		"shares":   shares,
	})
}

func (ws *WebServer) handleMint(w http.ResponseWriter, r *http.Request) {
	caller, ok := ws.requireCaller(w, r)
	if !ok {
		return
	}
	var req mintRequest
	if !ws.decodeBody(w, r, &req) {
		return
	}
	shares, ok := ws.parseAmount(w, "shares", req.Shares)
	if !ok {
		return
	}
	receiver := orDefault(req.Receiver, caller)

	assets, err := ws.vault.Mint(caller, shares, receiver)
	if err != nil {
		ws.writeVaultError(w, "mint", err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"receiver": receiver,
		"assets":   assets,
		"shares":   shares,
	})
}

func (ws *WebServer) handleTransfer(w http.ResponseWriter, r *http.Request) {
	caller, ok := ws.requireCaller(w, r)
	if !ok {
		return
	}
	var req transferRequest
	if !ws.decodeBody(w, r, &req) {
		return
	}
	shares, ok := ws.parseAmount(w, "shares", req.Shares)
	if !ok {
		return
	}
	from := orDefault(req.From, caller)

	if err := ws.vault.Transfer(caller, from, req.To, shares); err != nil {
		ws.writeVaultError(w, "transfer", err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"from":   from,
		"to":     req.To,
		"shares": shares,
	})
}

func (ws *WebServer) handleApprove(w http.ResponseWriter, r *http.Request) {
	caller, ok := ws.requireCaller(w, r)
	if !ok {
		return
	}
	var req approveRequest
	if !ws.decodeBody(w, r, &req) {
		return
	}
	shares, ok := ws.parseAllowance(w, req.Shares)
	if !ok {
		return
	}

	if err := ws.vault.Approve(caller, req.Spender, shares); err != nil {
		ws.writeVaultError(w, "approve", err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"owner":     caller,
		"spender":   req.Spender,
		"allowance": ws.vault.Allowance(caller, req.Spender),
	})
}

func (ws *WebServer) handleRedeem(w http.ResponseWriter, r *http.Request) {
	caller, ok := ws.requireCaller(w, r)
	if !ok {
		return
	}
	var req redeemRequest
	if !ws.decodeBody(w, r, &req) {
		return
	}
	shares, ok := ws.parseAmount(w, "shares", req.Shares)
	if !ok {
		return
	}
	owner := orDefault(req.Owner, caller)

	result, err := ws.vault.RequestRedeem(caller, shares, owner)
	if err != nil {
		ws.writeVaultError(w, "redeem", err)
		return
	}
	statusCode := http.StatusOK
	if !result.Immediate() {
		statusCode = http.StatusAccepted
	}
	ws.writeJSONResponse(w, statusCode, map[string]interface{}{
		"owner":  owner,
		"result": result,
	})
}

func (ws *WebServer) handleClaim(w http.ResponseWriter, r *http.Request) {
	caller, ok := ws.requireCaller(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request ID")
		return
	}

	assets, err := ws.vault.ClaimWithdrawal(caller, id)
	if err != nil {
		ws.writeVaultError(w, "claim", err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"owner":      caller,
		"request_id": id,
		"assets":     assets,
	})
}

// --- Privileged operations ---

func (ws *WebServer) handleAllocate(w http.ResponseWriter, r *http.Request) {
	caller, ok := ws.requireCaller(w, r)
	if !ok {
		return
	}
	var req allocateRequest
	if !ws.decodeBody(w, r, &req) {
		return
	}
	target, ok := ws.parseAmount(w, "target_debt", req.TargetDebt)
	if !ok {
		return
	}
	strategy := types.Address(mux.Vars(r)["addr"])

	newDebt, err := ws.vault.Allocate(caller, strategy, target)
	if err != nil {
		ws.writeVaultError(w, "allocate", err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"strategy":     strategy,
		"current_debt": newDebt,
		"idle_reserve": ws.vault.IdleReserve(),
	})
}

func (ws *WebServer) handleReconcile(w http.ResponseWriter, r *http.Request) {
	caller, ok := ws.requireCaller(w, r)
	if !ok {
		return
	}
	strategy := types.Address(mux.Vars(r)["addr"])

	gain, loss, err := ws.vault.Reconcile(caller, strategy)
	if err != nil {
		ws.writeVaultError(w, "reconcile", err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"strategy":     strategy,
		"gain":         gain,
		"loss":         loss,
		"current_debt": ws.vault.CurrentDebt(strategy),
		"total_assets": ws.vault.TotalAssets(),
	})
}

func (ws *WebServer) handlePause(w http.ResponseWriter, r *http.Request) {
	ws.setPaused(w, r, true)
}

func (ws *WebServer) handleUnpause(w http.ResponseWriter, r *http.Request) {
	ws.setPaused(w, r, false)
}

func (ws *WebServer) setPaused(w http.ResponseWriter, r *http.Request, paused bool) {
	caller, ok := ws.requireCaller(w, r)
	if !ok {
		return
	}
	op, fn := "unpause", ws.vault.Unpause
	if paused {
		op, fn = "pause", ws.vault.Pause
	}
	if err := fn(caller); err != nil {
		ws.writeVaultError(w, op, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"paused": ws.vault.Paused()})
}

// --- Faucet ---

func (ws *WebServer) handleFaucetMint(w http.ResponseWriter, r *http.Request) {
	var req faucetMintRequest
	if !ws.decodeBody(w, r, &req) {
		return
	}
	amount, ok := ws.parseAmount(w, "amount", req.Amount)
	if !ok {
		return
	}
	if err := ws.ledger.Mint(req.To, amount); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	webLogger.Info().Str("to", string(req.To)).Str("amount", amount.String()).Msg("Faucet mint")
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"to":      req.To,
		"balance": ws.ledger.Balance(req.To),
	})
}

func (ws *WebServer) handleTokenApprove(w http.ResponseWriter, r *http.Request) {
	caller, ok := ws.requireCaller(w, r)
	if !ok {
		return
	}
	var req tokenApproveRequest
	if !ws.decodeBody(w, r, &req) {
		return
	}
	amount, ok := ws.parseAllowance(w, req.Amount)
	if !ok {
		return
	}
	spender := orDefault(req.Spender, ws.vault.Address())
	if err := ws.ledger.Approve(caller, spender, amount); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"owner":   caller,
		"spender": spender,
		"amount":  amount,
	})
}

// --- History ---

func (ws *WebServer) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	if !ws.requireAnalytics(w) {
		return
	}
	limit := queryLimit(r)
	var kinds []types.EventKind
	for _, k := range r.URL.Query()["kind"] {
		kinds = append(kinds, types.EventKind(k))
	}

	events, err := ws.analytics.RecentEvents(limit, kinds...)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get recent events")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve events")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
		"limit":  limit,
	})
}

func (ws *WebServer) handleGetAccountEvents(w http.ResponseWriter, r *http.Request) {
	if !ws.requireAnalytics(w) {
		return
	}
	addr := types.Address(mux.Vars(r)["addr"])
	events, err := ws.analytics.EventsByAccount(addr, queryLimit(r))
	if err != nil {
		webLogger.Error().Err(err).Str("account", string(addr)).Msg("Failed to get account events")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve events")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"account": addr,
		"events":  events,
		"count":   len(events),
	})
}

func (ws *WebServer) handleGetLatestSnapshot(w http.ResponseWriter, r *http.Request) {
	if !ws.requireAnalytics(w) {
		return
	}
	snap, err := ws.analytics.LatestSnapshot()
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get latest snapshot")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve snapshot")
		return
	}
	if snap == nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "No snapshots found")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, snap)
}

func (ws *WebServer) handleGetPerformanceMetrics(w http.ResponseWriter, r *http.Request) {
	if !ws.requireAnalytics(w) {
		return
	}
	metrics, err := ws.analytics.Performance()
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get performance metrics")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve performance metrics")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, metrics)
}

// --- Helpers ---

func (ws *WebServer) requireCaller(w http.ResponseWriter, r *http.Request) (types.Address, bool) {
	caller := types.Address(r.Header.Get(CallerHeader))
	if caller.IsZero() {
		ws.writeErrorResponse(w, http.StatusBadRequest, errMissingCaller.Error())
		return "", false
	}
	if caller == ws.vault.Address() {
		ws.writeErrorResponse(w, http.StatusForbidden, errVaultCaller.Error())
		return "", false
	}
	return caller, true
}

func (ws *WebServer) requireAnalytics(w http.ResponseWriter) bool {
	if ws.analytics == nil {
		ws.writeErrorResponse(w, http.StatusServiceUnavailable, "History is unavailable: no database configured")
		return false
	}
	return true
}

func (ws *WebServer) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return false
	}
	return true
}

func (ws *WebServer) parseAmount(w http.ResponseWriter, field, raw string) (sdkmath.Int, bool) {
	amount, err := utils.ParseAmount(raw)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s: %v", field, err))
		return sdkmath.Int{}, false
	}
	return amount, true
}

// parseAllowance accepts "max" for the unlimited allowance.
func (ws *WebServer) parseAllowance(w http.ResponseWriter, raw string) (sdkmath.Int, bool) {
	if raw == "max" {
		return types.UnlimitedAllowance(), true
	}
	return ws.parseAmount(w, "allowance", raw)
}

func queryLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return state.NormalizeLimit(0)
	}
	return state.NormalizeLimit(limit)
}

func orDefault(addr, fallback types.Address) types.Address {
	if addr.IsZero() {
		return fallback
	}
	return addr
}

// StatusForError maps a vault error to its HTTP status code.
func StatusForError(err error) int {
	switch vault.Classify(err) {
	case vault.ClassCaller:
		return http.StatusBadRequest
	case vault.ClassAccess:
		return http.StatusForbidden
	case vault.ClassNotFound:
		return http.StatusNotFound
	case vault.ClassState, vault.ClassLiquidity:
		return http.StatusConflict
	case vault.ClassCollaborator:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (ws *WebServer) writeVaultError(w http.ResponseWriter, op string, err error) {
	statusCode := StatusForError(err)
	if statusCode == http.StatusInternalServerError {
		webLogger.Error().Err(err).Str("op", op).Msg("Vault operation failed")
	}
	response := map[string]interface{}{
		"error":     true,
		"class":     vault.Classify(err).String(),
		"message":   err.Error(),
		"timestamp": time.Now().UTC(),
	}
	ws.writeJSONResponse(w, statusCode, response)
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}
	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+CallerHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("caller", r.Header.Get(CallerHeader)).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
