package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/pricewatch-bot/pricewatch/internal/store"
)

// Server is the read-only admin surface: health, metrics and tracked-product
// listings. It never mutates the store.
type Server struct {
	store  store.Store
	logger *zap.Logger
}

func New(st store.Store, logger *zap.Logger) *Server {
	return &Server{store: st, logger: logger.Named("admin")}
}

// Router builds the admin router. metricsHandler serves the scrape endpoint.
func (s *Server) Router(metricsHandler http.Handler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	r.Handle("/metrics", metricsHandler).Methods("GET")
	r.HandleFunc("/products", s.handleListProducts).Methods("GET")
	r.HandleFunc("/products/{id:[0-9]+}/history", s.handleHistory).Methods("GET")
	return r
}

// CreateServer wraps the router in an http.Server with sane timeouts.
func (s *Server) CreateServer(addr string, metricsHandler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      s.Router(metricsHandler),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, req *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListProducts(w http.ResponseWriter, req *http.Request) {
	products, err := s.store.ListProducts(req.Context())
	if err != nil {
		s.logger.Error("failed to list products", zap.Error(err))
		http.Error(w, "failed to list products", http.StatusInternalServerError)
		return
	}
	if products == nil {
		products = []store.Product{}
	}
	s.writeJSON(w, http.StatusOK, products)
}

func (s *Server) handleHistory(w http.ResponseWriter, req *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(req)["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid product id", http.StatusBadRequest)
		return
	}

	entries, err := s.store.HistoryByProduct(req.Context(), id)
	if err != nil {
		s.logger.Error("failed to load history", zap.Int64("product_id", id), zap.Error(err))
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []store.HistoryEntry{}
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}
