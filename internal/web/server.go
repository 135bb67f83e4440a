package web

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/elys-network/clm/internal/engine"
	"github.com/elys-network/clm/internal/logger"
	"github.com/elys-network/clm/internal/state"
	"github.com/elys-network/clm/internal/types"
	"github.com/elys-network/clm/internal/utils"
	"github.com/gorilla/mux"
)

var webLogger = logger.GetForComponent("web_server")

// WebServer exposes read-only pool state over HTTP
type WebServer struct {
	router *mux.Router
	port   string
	engine *engine.Engine
}

// NewWebServer creates a new web server instance
func NewWebServer(port string, eng *engine.Engine) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router: mux.NewRouter(),
		port:   port,
		engine: eng,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	// Health endpoint (direct route)
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	// API endpoints
	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/assets", ws.handleGetAssets).Methods("GET")
	api.HandleFunc("/accounts/{address}", ws.handleGetAccount).Methods("GET")
	api.HandleFunc("/liquidations", ws.handleGetLiquidations).Methods("GET")
	api.HandleFunc("/parameters", ws.handleGetParameters).Methods("GET")
	api.HandleFunc("/receipts", ws.handleGetReceipts).Methods("GET")

	// Add CORS middleware
	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Start starts the web server
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// handleHealth returns server health status including the ledger conservation
// check across all listed assets
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	hasErrors := false

	conservationOK := true
	if err := ws.engine.Ledger().CheckConservation(ws.engine.Registry().ListedDenoms()); err != nil {
		webLogger.Error().Err(err).Msg("Ledger conservation check failed")
		conservationOK = false
		hasErrors = true
	}

	dbHealthy := true
	if err := state.TestDBConnection(); err != nil {
		dbHealthy = false
		// The audit sink is optional; the pool itself is still healthy.
	}

	overallStatus := "OK"
	if hasErrors {
		overallStatus = "DEGRADED"
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"sys_bytes":        memStats.Sys,
			"gc_cycles":        memStats.NumGC,
		},
		"component": map[string]interface{}{
			"name":    "clm-collateralized-lending-module",
			"version": "1.0.0",
		},
		"pool_status": map[string]interface{}{
			"database_healthy":  dbHealthy,
			"conservation_ok":   conservationOK,
			"listed_assets":     len(ws.engine.Registry().ListedDenoms()),
			"liquidation_count": len(ws.engine.RecentLiquidations()),
		},
	}

	statusCode := http.StatusOK
	if hasErrors {
		statusCode = http.StatusServiceUnavailable
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleGetAssets returns every listed asset with its configuration and
// pool-wide totals
func (ws *WebServer) handleGetAssets(w http.ResponseWriter, r *http.Request) {
	led := ws.engine.Ledger()

	assets := make([]map[string]interface{}, 0)
	for _, denom := range ws.engine.Registry().ListedDenoms() {
		cfg, err := ws.engine.Registry().Get(denom)
		if err != nil {
			continue
		}
		assets = append(assets, map[string]interface{}{
			"config":         cfg,
			"total_deposits": led.TotalDeposits(denom).String(),
			"total_borrows":  led.TotalBorrows(denom).String(),
			"reserve":        led.Reserve(denom).String(),
		})
	}

	response := map[string]interface{}{
		"assets": assets,
		"count":  len(assets),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetAccount returns an account's balances and its USD valuation
func (ws *WebServer) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	account := types.Address(vars["address"])
	if account == types.ZeroAddress {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid account address")
		return
	}

	led := ws.engine.Ledger()
	reg := ws.engine.Registry()
	balances := make([]map[string]interface{}, 0)
	for _, denom := range reg.ListedDenoms() {
		deposit := led.Deposit(account, denom)
		borrow := led.Borrow(account, denom)
		if deposit.IsZero() && borrow.IsZero() {
			continue
		}
		entry := map[string]interface{}{
			"denom":   denom,
			"deposit": deposit.String(),
			"borrow":  borrow.String(),
		}
		if asset, err := reg.Get(denom); err == nil {
			if depositDisplay, err := utils.DisplayAmount(deposit, asset.Decimals); err == nil {
				entry["deposit_display"] = depositDisplay
			}
			if borrowDisplay, err := utils.DisplayAmount(borrow, asset.Decimals); err == nil {
				entry["borrow_display"] = borrowDisplay
			}
		}
		balances = append(balances, entry)
	}

	values, err := ws.engine.AccountValues(r.Context(), account)
	if err != nil {
		webLogger.Error().Err(err).Str("account", string(account)).Msg("Failed to value account")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to value account")
		return
	}

	rawCollateralUsd, rawBorrowUsd, err := ws.engine.AccountTotalsUSD(r.Context(), account)
	if err != nil {
		webLogger.Error().Err(err).Str("account", string(account)).Msg("Failed to total account")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to value account")
		return
	}

	response := map[string]interface{}{
		"account":                 account,
		"balances":                balances,
		"weighted_collateral_usd": values.CollateralUSD.String(),
		"raw_collateral_usd":      rawCollateralUsd.String(),
		"borrow_usd":              rawBorrowUsd.String(),
		"healthy":                 values.IsHealthy(),
	}
	if collateralDisplay, err := utils.DisplayUSD(values.CollateralUSD); err == nil {
		response["weighted_collateral_usd_display"] = collateralDisplay
	}
	if borrowDisplay, err := utils.DisplayUSD(values.BorrowUSD); err == nil {
		response["borrow_usd_display"] = borrowDisplay
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetLiquidations returns the recent liquidation history
func (ws *WebServer) handleGetLiquidations(w http.ResponseWriter, r *http.Request) {
	events := ws.engine.RecentLiquidations()

	response := map[string]interface{}{
		"liquidations": events,
		"count":        len(events),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetParameters returns the current liquidation fee parameters
func (ws *WebServer) handleGetParameters(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"fee_parameters": ws.engine.FeeParameters(),
		"safety_fund":    ws.engine.SafetyFund(),
		"timestamp":      time.Now().UTC(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetReceipts returns recent operation receipts from the audit store
func (ws *WebServer) handleGetReceipts(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 500 {
			limit = parsedLimit
		}
	}

	receipts, err := state.GetRecentOperations(limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get operation receipts")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve receipts")
		return
	}

	response := map[string]interface{}{
		"receipts": receipts,
		"count":    len(receipts),
		"limit":    limit,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
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
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
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

		// Create a response writer wrapper to capture status code
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", duration).
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
