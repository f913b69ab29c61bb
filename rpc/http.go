package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nftmarket/native/market"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	authTokenEnv    = "MARKET_RPC_TOKEN"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRejected       = -32030
	codeNotFound       = -32031
)

// Server exposes the settlement engine's lifecycle commands over JSON-RPC
// 2.0. Mutating methods require the bearer token configured via
// MARKET_RPC_TOKEN when one is set.
type Server struct {
	engine    *market.Engine
	log       *slog.Logger
	authToken string
}

// NewServer wires a JSON-RPC server around the supplied engine.
func NewServer(engine *market.Engine, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		engine:    engine,
		log:       log,
		authToken: strings.TrimSpace(os.Getenv(authTokenEnv)),
	}
}

// Handler returns the HTTP handler serving the RPC endpoint, health check
// and prometheus metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Start begins serving on the supplied address and blocks.
func (s *Server) Start(addr string) error {
	s.log.Info("starting JSON-RPC server", slog.String("addr", addr))
	return http.ListenAndServe(addr, s.Handler())
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return nil
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return &RPCError{Code: codeUnauthorized, Message: "unauthorized"}
	}
	supplied := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if subtle.ConstantTimeCompare([]byte(supplied), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "unauthorized"}
	}
	return nil
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, nil, codeInvalidRequest, "POST required", nil)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "unable to read request body", nil)
		return
	}
	if len(body) > maxRequestBytes {
		writeError(w, http.StatusRequestEntityTooLarge, nil, codeInvalidRequest, "request body too large", nil)
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported JSON-RPC version", nil)
		return
	}
	w.Header().Set("Content-Type", "application/json")

	switch req.Method {
	case "market_createAuctions":
		s.handleCreateAuctions(w, r, &req)
	case "market_makeBid":
		s.handleMakeBid(w, r, &req)
	case "market_takeHighestBids":
		s.handleTakeHighestBids(w, r, &req)
	case "market_settleAuctions":
		s.handleSettleAuctions(w, r, &req)
	case "market_withdrawAuctions":
		s.handleWithdrawAuctions(w, r, &req)
	case "market_updateAuctionsEnd":
		s.handleUpdateAuctionsEnd(w, r, &req)
	case "market_createSales":
		s.handleCreateSales(w, r, &req)
	case "market_buyTokens":
		s.handleBuyTokens(w, r, &req)
	case "market_withdrawSales":
		s.handleWithdrawSales(w, r, &req)
	case "market_withdrawCredits":
		s.handleWithdrawCredits(w, r, &req)
	case "market_getListing":
		s.handleGetListing(w, r, &req)
	case "market_getCredits":
		s.handleGetCredits(w, r, &req)
	case "market_withdrawPeriod":
		s.handleWithdrawPeriod(w, r, &req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("unknown method %s", req.Method), nil)
	}
}
