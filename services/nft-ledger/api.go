package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/Shivam-Patel-G/blackhole-nft/core/relay-chain/chain"
	"github.com/Shivam-Patel-G/blackhole-nft/core/relay-chain/monitoring"
	"github.com/Shivam-Patel-G/blackhole-nft/core/relay-chain/nft"
	"github.com/Shivam-Patel-G/blackhole-nft/core/relay-chain/sequencer"
	"github.com/Shivam-Patel-G/blackhole-nft/core/relay-chain/storage"
)

const maxTransactionBytes = 64 << 10

// APIServer exposes the ledger over HTTP and streams its events over
// websocket.
type APIServer struct {
	collection *nft.Collection
	sequencer  *sequencer.Sequencer
	store      storage.Store
	monitor    *monitoring.LedgerMonitor
	logger     *logrus.Logger
	hub        *eventHub

	router      *mux.Router
	enableCORS  bool
	startTime   time.Time
	unsubscribe func()
}

type apiResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Code      string      `json:"code,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

type balanceInfo struct {
	Address common.Address `json:"address"`
	Balance uint64         `json:"balance"`
}

// NewAPIServer wires the routes. store may be nil, in which case event
// queries are answered from the in-memory log.
func NewAPIServer(node *ledgerNode, enableCORS bool) *APIServer {
	s := &APIServer{
		collection: node.collection,
		sequencer:  node.sequencer,
		store:      node.store,
		monitor:    node.monitor,
		logger:     node.logger,
		hub:        newEventHub(node.logger),
		enableCORS: enableCORS,
		startTime:  time.Now(),
	}
	s.unsubscribe = s.collection.Subscribe(s.hub.broadcast)

	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/collection", s.handleCollection).Methods("GET")
	api.HandleFunc("/balance/{address}", s.handleBalance).Methods("GET")
	api.HandleFunc("/tokens/{id}", s.handleToken).Methods("GET")
	api.HandleFunc("/events", s.handleEvents).Methods("GET")
	api.HandleFunc("/transactions", s.handleSubmitTransaction).Methods("POST")
	api.HandleFunc("/stats", s.handleStats).Methods("GET")
	api.HandleFunc("/metrics", s.handleMetrics).Methods("GET")
	api.HandleFunc("/alerts", s.handleAlerts).Methods("GET")
	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/ws/events", s.handleWebSocketEvents)
	s.router = r

	return s
}

func (s *APIServer) Handler() http.Handler {
	var h http.Handler = s.loggingMiddleware(s.router)
	if s.enableCORS {
		h = corsHandler(h)
	}
	return h
}

// Close detaches the server from the ledger and disconnects stream clients.
func (s *APIServer) Close() {
	s.unsubscribe()
	s.hub.closeAll()
}

func corsHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *APIServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.RequestURI,
			"remote":   r.RemoteAddr,
			"duration": time.Since(start).String(),
		}).Debug("HTTP request")
	})
}

func (s *APIServer) handleCollection(w http.ResponseWriter, r *http.Request) {
	sendSuccess(w, s.collection.GetStatus())
}

func (s *APIServer) handleBalance(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["address"]
	if !common.IsHexAddress(raw) {
		sendError(w, http.StatusBadRequest, "invalid_address", "address must be a hex account address")
		return
	}
	addr := common.HexToAddress(raw)
	sendSuccess(w, balanceInfo{Address: addr, Balance: s.collection.BalanceOf(addr)})
}

func (s *APIServer) handleToken(w http.ResponseWriter, r *http.Request) {
	tokenID, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		sendError(w, http.StatusBadRequest, "invalid_token_id", "token id must be an unsigned integer")
		return
	}

	info, err := s.collection.TokenInfo(tokenID)
	if err != nil {
		status, code := errorStatus(err)
		sendError(w, status, code, err.Error())
		return
	}
	sendSuccess(w, info)
}

func (s *APIServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	var since uint64
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			sendError(w, http.StatusBadRequest, "invalid_since", "since must be an unsigned integer")
			return
		}
		since = parsed
	}

	var events []nft.Event
	if s.store != nil {
		stored, err := s.store.Events(since)
		if err != nil {
			s.logger.WithError(err).Error("❌ Failed to read event journal")
			sendError(w, http.StatusInternalServerError, "internal", "failed to read events")
			return
		}
		events = stored
	} else {
		events = s.collection.EventsSince(since)
	}

	if eventType := r.URL.Query().Get("type"); eventType != "" {
		filtered := events[:0:0]
		for _, e := range events {
			if string(e.Type) == eventType {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}
	if events == nil {
		events = []nft.Event{}
	}
	sendSuccess(w, events)
}

func (s *APIServer) handleSubmitTransaction(w http.ResponseWriter, r *http.Request) {
	var tx chain.Transaction
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTransactionBytes)).Decode(&tx); err != nil {
		sendError(w, http.StatusBadRequest, "invalid_transaction", "malformed transaction: "+err.Error())
		return
	}

	receipt, err := s.sequencer.Submit(r.Context(), &tx)
	if err != nil {
		status, code := errorStatus(err)
		resp := apiResponse{
			Success:   false,
			Error:     err.Error(),
			Code:      code,
			Timestamp: time.Now().Unix(),
		}
		if receipt != nil {
			resp.Data = receipt
		}
		writeJSON(w, status, resp)
		return
	}
	sendSuccess(w, receipt)
}

func (s *APIServer) handleStats(w http.ResponseWriter, r *http.Request) {
	sendSuccess(w, map[string]interface{}{
		"sequencer":         s.sequencer.Stats(),
		"websocket_clients": s.hub.clientCount(),
		"uptime":            time.Since(s.startTime).String(),
	})
}

func (s *APIServer) handleMetrics(w http.ResponseWriter, r *http.Request) {
	sendSuccess(w, s.monitor.Collect())
}

func (s *APIServer) handleAlerts(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			sendError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}
	sendSuccess(w, map[string]interface{}{
		"active":  s.monitor.Alerts().GetActiveAlerts(),
		"history": s.monitor.Alerts().GetAlertHistory(limit),
	})
}

func (s *APIServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	metrics := s.monitor.Collect()
	status := s.monitor.SystemStatus()
	if metrics.InvariantViolations > 0 {
		s.logger.WithField("error", metrics.InvariantError).Error("❌ Ledger invariant check failed")
	}
	sendSuccess(w, map[string]interface{}{
		"status":        status,
		"last_sequence": metrics.LastSequence,
		"uptime":        time.Since(s.startTime).String(),
	})
}

func (s *APIServer) handleWebSocketEvents(w http.ResponseWriter, r *http.Request) {
	s.hub.serve(w, r, s.collection.LastSequence())
}

// errorStatus maps an error onto an HTTP status and a stable error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, sequencer.ErrReplay):
		return http.StatusConflict, "replay"
	case errors.Is(err, sequencer.ErrInvalidTransaction):
		return http.StatusBadRequest, "invalid_transaction"
	case errors.Is(err, sequencer.ErrNotRunning):
		return http.StatusServiceUnavailable, "unavailable"
	}

	code := nft.Code(err)
	switch code {
	case "unauthorized":
		return http.StatusForbidden, code
	case "not_found":
		return http.StatusNotFound, code
	case "already_exists", "owner_mismatch", "supply_exceeded", "paused":
		return http.StatusConflict, code
	case "invalid_recipient":
		return http.StatusBadRequest, code
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeJSON(w http.ResponseWriter, status int, body apiResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func sendError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiResponse{
		Success:   false,
		Error:     message,
		Code:      code,
		Timestamp: time.Now().Unix(),
	})
}

func sendSuccess(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, apiResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}
