package bridge

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/you/orderflow/internal/domain"
	"github.com/you/orderflow/internal/registry"
	"github.com/you/orderflow/internal/wire"
)

// Path serves both the submission POST and, on the same connection, the
// websocket upgrade GET.
const Path = "/api/orders/execute"

type Queue interface {
	Enqueue(ctx context.Context, orderID string, req domain.OrderRequest) error
	Known(ctx context.Context, orderID string) (bool, error)
}

type OrderReader interface {
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
}

type Bridge struct {
	q      Queue
	orders OrderReader
	reg    *registry.Registry
	log    *zap.Logger
}

func New(q Queue, orders OrderReader, reg *registry.Registry, log *zap.Logger) *Bridge {
	return &Bridge{q: q, orders: orders, reg: reg, log: log}
}

func (b *Bridge) Routes(rtr chi.Router) {
	rtr.Post(Path, b.Submit)
	rtr.Get(Path, b.Upgrade)
	rtr.Get("/api/orders/{orderID}", b.GetOrder)
	rtr.NotFound(b.NotFound)
}

// Submit validates the request, enqueues a job and answers on the still
// open connection so the caller can upgrade it next.
func (b *Bridge) Submit(w http.ResponseWriter, r *http.Request) {
	var req domain.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	orderID := uuid.NewString()
	if err := b.q.Enqueue(r.Context(), orderID, req); err != nil {
		b.log.Error("enqueue failed", zap.String("order_id", orderID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to accept order"})
		return
	}

	b.log.Info("order accepted",
		zap.String("order_id", orderID),
		zap.String("input_token", req.InputToken),
		zap.String("output_token", req.OutputToken))
	writeJSON(w, http.StatusOK, map[string]string{
		"orderId": orderID,
		"message": "Order placed successfully!",
	})
}

// Upgrade turns the held-open connection into the order's live channel.
// Everything is checked before the registry is touched; rejection always
// tears the connection down.
func (b *Bridge) Upgrade(w http.ResponseWriter, r *http.Request) {
	orderID := r.URL.Query().Get("orderId")
	if orderID == "" {
		b.reject(w, http.StatusNotFound, "orderId is required")
		return
	}
	known, err := b.q.Known(r.Context(), orderID)
	if err != nil {
		b.log.Error("order lookup failed", zap.String("order_id", orderID), zap.Error(err))
		b.reject(w, http.StatusInternalServerError, "order lookup failed")
		return
	}
	if !known {
		b.reject(w, http.StatusNotFound, "unknown order id")
		return
	}

	conn, err := wire.Upgrade(w, r)
	if err != nil {
		if errors.Is(err, wire.ErrBadHandshake) {
			b.reject(w, http.StatusBadRequest, "malformed websocket handshake")
			return
		}
		b.log.Error("upgrade failed", zap.String("order_id", orderID), zap.Error(err))
		return
	}

	b.reg.Put(orderID, conn)
	b.log.Info("live channel registered", zap.String("order_id", orderID))
	go b.readLoop(orderID, conn)
}

// readLoop watches for the client's close frame or disconnect. Closing a
// channel only deregisters it; in-flight processing is never cancelled.
func (b *Bridge) readLoop(orderID string, conn *wire.Conn) {
	for {
		op, _, err := conn.ReadFrame()
		if err != nil || op == wire.OpClose {
			break
		}
	}
	b.reg.Remove(orderID, conn)
	_ = conn.Close()
}

// GetOrder exposes the durable record; reconnecting clients resync from
// here rather than from socket history.
func (b *Bridge) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	o, err := b.orders.GetOrder(r.Context(), orderID)
	if err != nil {
		b.log.Error("get order failed", zap.String("order_id", orderID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "lookup failed"})
		return
	}
	if o == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (b *Bridge) NotFound(w http.ResponseWriter, r *http.Request) {
	b.reject(w, http.StatusNotFound, "not found")
}

// reject answers with an error and forces the connection closed so a
// failed upgrade never leaves a half-open stream.
func (b *Bridge) reject(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Connection", "close")
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
