// Package rpc exposes the settlement engine over HTTP: JSON endpoints for
// fulfilling, matching, cancelling and validating orders, plus read access
// to order status, counters and fill history.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/marinerlabs/goseaport/internal/core/order"
	"github.com/marinerlabs/goseaport/internal/core/settle"
	"github.com/marinerlabs/goseaport/internal/storage/history"
)

// Settler is the slice of the settlement engine the API needs.
type Settler interface {
	FulfillOrder(ctx context.Context, req settle.FulfillOrderRequest) (*settle.Result, error)
	FulfillAvailableOrders(ctx context.Context, req settle.FulfillAvailableRequest) (*settle.Result, error)
	MatchOrders(ctx context.Context, req settle.MatchRequest) (*settle.Result, error)
	Cancel(caller common.Address, components []order.Components) ([]common.Hash, error)
	Validate(orders []order.Order) ([]common.Hash, error)
	IncrementCounter(offerer common.Address) (*big.Int, error)
	Counter(offerer common.Address) (*big.Int, error)
	OrderHash(p order.Parameters) (common.Hash, error)
}

// FillReader serves fill history queries; nil disables the history endpoints.
type FillReader interface {
	RecentFills(ctx context.Context, limit int) ([]history.Fill, error)
	FillsForOrder(ctx context.Context, orderHash common.Hash) ([]history.Fill, error)
}

// StatusReader resolves stored order status for the read endpoints.
type StatusReader interface {
	OrderStatus(hash common.Hash) (order.Status, error)
}

// Server is the HTTP API server.
type Server struct {
	settlementHandler *SettlementHandler
	orderHandler      *OrderHandler
	logger            *zap.Logger
	server            *http.Server
}

// NewServer creates an API server bound to the given listen address.
func NewServer(addr string, engine Settler, statuses StatusReader, fills FillReader, logger *zap.Logger) *Server {
	return &Server{
		settlementHandler: NewSettlementHandler(engine, logger),
		orderHandler:      NewOrderHandler(engine, statuses, fills, logger),
		logger:            logger,
		server: &http.Server{
			Addr:         addr,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start runs the server until Stop is called.
func (s *Server) Start() error {
	s.server.Handler = s.setupRoutes()

	s.logger.Info("Starting API server", zap.String("address", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start API server: %w", err)
	}

	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server")
	return s.server.Shutdown(ctx)
}

func (s *Server) setupRoutes() *mux.Router {
	router := mux.NewRouter()

	router.Use(s.loggingMiddleware)
	router.Use(s.corsMiddleware)

	api := router.PathPrefix("/api").Subrouter()

	// Settlement endpoints
	api.HandleFunc("/orders/fulfill", s.settlementHandler.FulfillOrder).Methods("POST")
	api.HandleFunc("/orders/fulfill-available", s.settlementHandler.FulfillAvailableOrders).Methods("POST")
	api.HandleFunc("/orders/match", s.settlementHandler.MatchOrders).Methods("POST")
	api.HandleFunc("/orders/cancel", s.settlementHandler.Cancel).Methods("POST")
	api.HandleFunc("/orders/validate", s.settlementHandler.Validate).Methods("POST")

	// Order and counter reads
	api.HandleFunc("/orders/{order_hash}/status", s.orderHandler.GetOrderStatus).Methods("GET")
	api.HandleFunc("/orders/{order_hash}/fills", s.orderHandler.GetOrderFills).Methods("GET")
	api.HandleFunc("/fills/recent", s.orderHandler.GetRecentFills).Methods("GET")
	api.HandleFunc("/counters/{offerer}", s.orderHandler.GetCounter).Methods("GET")
	api.HandleFunc("/counters/{offerer}/increment", s.orderHandler.IncrementCounter).Methods("POST")

	// Health check endpoint
	api.HandleFunc("/health", s.healthCheck).Methods("GET")

	return router
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		next.ServeHTTP(w, r)

		s.logger.Info("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote_addr", r.RemoteAddr),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Error("Failed to encode health check response", zap.Error(err))
	}
}
