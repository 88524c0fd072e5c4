package waiter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"restaurant-pos/internal/history"
	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/menu"
	"restaurant-pos/internal/services/payment"
	"restaurant-pos/internal/storage"
)

// Handler is the thin HTTP adapter over the engine. It is a presentation
// collaborator, not part of the core contract: every route maps one-to-one
// onto an engine or workflow operation.
type Handler struct {
	engine     *Engine
	hist       *history.Store
	catalog    *menu.Catalog
	notifier   payment.Notifier
	logger     *logger.Logger
	displayFor time.Duration

	mu       sync.Mutex
	workflow *payment.Workflow
}

// NewHandler creates the HTTP adapter.
func NewHandler(engine *Engine, hist *history.Store, catalog *menu.Catalog, notifier payment.Notifier, log *logger.Logger, displayFor time.Duration) *Handler {
	return &Handler{
		engine:     engine,
		hist:       hist,
		catalog:    catalog,
		notifier:   notifier,
		logger:     log,
		displayFor: displayFor,
	}
}

// SetupRoutes registers all routes on a fresh mux.
func (h *Handler) SetupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /state", h.withLogging(h.getState))
	mux.HandleFunc("GET /menu", h.withLogging(h.getMenu))
	mux.HandleFunc("POST /tables/{id}/select", h.withLogging(h.selectTable))
	mux.HandleFunc("GET /tables/summary", h.withLogging(h.getTableSummary))

	mux.HandleFunc("POST /order/items", h.withLogging(h.addDish))
	mux.HandleFunc("PATCH /order/items/{id}", h.withLogging(h.updateItemQuantity))
	mux.HandleFunc("POST /order/save", h.withLogging(h.saveOrder))
	mux.HandleFunc("POST /order/cancel", h.withLogging(h.cancelOrder))
	mux.HandleFunc("POST /order/print", h.withLogging(h.printBill))

	mux.HandleFunc("GET /history", h.withLogging(h.listHistory))
	mux.HandleFunc("GET /history/statistics", h.withLogging(h.getStatistics))
	mux.HandleFunc("DELETE /history/{id}", h.withLogging(h.deleteHistoryOrder))
	mux.HandleFunc("POST /history/{id}/apply", h.withLogging(h.applyHistoryOrder))

	mux.HandleFunc("POST /payment/start", h.withLogging(h.startPayment))
	mux.HandleFunc("POST /payment/method", h.withLogging(h.choosePaymentMethod))
	mux.HandleFunc("POST /payment/complete", h.withLogging(h.completePayment))
	mux.HandleFunc("POST /payment/dismiss", h.withLogging(h.dismissPayment))
	mux.HandleFunc("POST /payment/cancel", h.withLogging(h.cancelPayment))

	mux.HandleFunc("GET /health", h.withLogging(h.healthCheck))

	return mux
}

func (h *Handler) getState(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.engine.Snapshot())
}

func (h *Handler) getMenu(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"categories": h.catalog.Categories(),
		"dishes":     h.catalog.ListByCategory(category),
	})
}

func (h *Handler) selectTable(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.engine.SelectTable(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeEngineError(w, err, logger.GenerateRequestID())
		return
	}
	h.writeJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) getTableSummary(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.engine.TableSummary())
}

func (h *Handler) addDish(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DishID string `json:"dish_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid JSON format", "")
		return
	}

	snapshot, err := h.engine.AddDish(r.Context(), req.DishID)
	if err != nil {
		h.writeEngineError(w, err, logger.GenerateRequestID())
		return
	}
	h.writeJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) updateItemQuantity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid JSON format", "")
		return
	}

	snapshot, err := h.engine.UpdateItemQuantity(r.Context(), r.PathValue("id"), req.Quantity)
	if err != nil {
		h.writeEngineError(w, err, logger.GenerateRequestID())
		return
	}
	h.writeJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) saveOrder(w http.ResponseWriter, r *http.Request) {
	snapshot, updated, err := h.engine.SaveOrder(r.Context())
	if err != nil {
		h.writeEngineError(w, err, logger.GenerateRequestID())
		return
	}
	message := "Order saved to history"
	if updated {
		message = "Order updated in history"
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":  message,
		"updated":  updated,
		"snapshot": snapshot,
	})
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.engine.CancelOrder(r.Context())
	if err != nil {
		h.writeEngineError(w, err, logger.GenerateRequestID())
		return
	}
	h.writeJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) printBill(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.engine.PrintBill())
}

func (h *Handler) listHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	switch {
	case query.Get("table") != "":
		entries, err := h.hist.ListByTable(ctx, query.Get("table"))
		h.writeHistory(w, entries, err)
	case query.Get("waiter") != "":
		entries, err := h.hist.ListByWaiter(ctx, query.Get("waiter"))
		h.writeHistory(w, entries, err)
	case query.Get("date") != "":
		date, err := time.ParseInLocation("2006-01-02", query.Get("date"), time.Local)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD", "")
			return
		}
		entries, err := h.hist.ListByDate(ctx, date)
		h.writeHistory(w, entries, err)
	default:
		entries, err := h.hist.List(ctx)
		h.writeHistory(w, entries, err)
	}
}

func (h *Handler) getStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.hist.Statistics(r.Context())
	if err != nil {
		h.writeEngineError(w, err, logger.GenerateRequestID())
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) deleteHistoryOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.hist.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.writeEngineError(w, err, logger.GenerateRequestID())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) applyHistoryOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.hist.FindByID(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeEngineError(w, err, logger.GenerateRequestID())
		return
	}
	if order == nil {
		h.writeError(w, http.StatusNotFound, "Order not found", "")
		return
	}

	snapshot, err := h.engine.ApplyHistoryOrder(r.Context(), order)
	if err != nil {
		h.writeEngineError(w, err, logger.GenerateRequestID())
		return
	}
	h.writeJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) startPayment(w http.ResponseWriter, r *http.Request) {
	snapshot := h.engine.Snapshot()

	// The close callback can fire from the success timer long after this
	// request finished, so it must not hold the request context.
	workflow, err := payment.New(snapshot.CurrentOrder, h.hist, h.notifier, h.logger, h.displayFor, func(tableID string) {
		h.engine.CompletePayment(context.Background(), tableID)
	})
	if err != nil {
		h.writeEngineError(w, err, logger.GenerateRequestID())
		return
	}

	h.mu.Lock()
	h.workflow = workflow
	h.mu.Unlock()

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"state": workflow.State()})
}

func (h *Handler) choosePaymentMethod(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Method string `json:"method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid JSON format", "")
		return
	}

	workflow := h.currentWorkflow()
	if workflow == nil {
		h.writeError(w, http.StatusConflict, "No payment in progress", "")
		return
	}
	if err := workflow.ChooseMethod(payment.Method(req.Method)); err != nil {
		h.writeError(w, http.StatusConflict, err.Error(), "")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"state": workflow.State()})
}

func (h *Handler) completePayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Notes string `json:"notes"`
	}
	// The body is optional; notes are the only field it may carry.
	json.NewDecoder(r.Body).Decode(&req)

	workflow := h.currentWorkflow()
	if workflow == nil {
		h.writeError(w, http.StatusConflict, "No payment in progress", "")
		return
	}
	if req.Notes != "" {
		workflow.SetNotes(req.Notes)
	}

	receipt, err := workflow.Complete(r.Context())
	if err != nil {
		h.writeEngineError(w, err, logger.GenerateRequestID())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"state":   workflow.State(),
		"receipt": receipt,
	})
}

func (h *Handler) dismissPayment(w http.ResponseWriter, r *http.Request) {
	workflow := h.currentWorkflow()
	if workflow == nil {
		h.writeError(w, http.StatusConflict, "No payment in progress", "")
		return
	}
	workflow.Dismiss()
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"state":    workflow.State(),
		"snapshot": h.engine.Snapshot(),
	})
}

func (h *Handler) cancelPayment(w http.ResponseWriter, r *http.Request) {
	workflow := h.currentWorkflow()
	if workflow == nil {
		h.writeError(w, http.StatusConflict, "No payment in progress", "")
		return
	}
	if err := workflow.Cancel(); err != nil {
		h.writeError(w, http.StatusConflict, err.Error(), "")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"state": workflow.State()})
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "waiter-service",
	})
}

func (h *Handler) currentWorkflow() *payment.Workflow {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.workflow
}

func (h *Handler) writeHistory(w http.ResponseWriter, entries interface{}, err error) {
	if err != nil {
		h.writeEngineError(w, err, logger.GenerateRequestID())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"orders": entries})
}

// writeEngineError maps core errors onto HTTP statuses: validation failures
// become advisory 409s, persistence failures 502s, anything else a 500.
func (h *Handler) writeEngineError(w http.ResponseWriter, err error, requestID string) {
	var perr *storage.PersistenceError
	switch {
	case IsValidationError(err):
		h.writeError(w, http.StatusConflict, err.Error(), requestID)
	case errors.As(err, &perr):
		h.logger.Error("persistence_failed", "Durable store unavailable", requestID, err, nil)
		h.writeError(w, http.StatusBadGateway, "Failed to persist order, changes kept in memory", requestID)
	default:
		h.logger.Error("operation_failed", "Unexpected engine failure", requestID, err, nil)
		h.writeError(w, http.StatusInternalServerError, "Internal server error", requestID)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("response_encoding_failed", "Failed to encode response", "", err, nil)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, statusCode int, message, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":      message,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"request_id": requestID,
	})
}

// withLogging adds request logging middleware.
func (h *Handler) withLogging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := logger.GenerateRequestID()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		h.logger.Debug("request_completed",
			fmt.Sprintf("%s %s - %d", r.Method, r.URL.Path, rw.statusCode),
			requestID,
			map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status_code": rw.statusCode,
				"duration_ms": time.Since(start).Milliseconds(),
			})
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
