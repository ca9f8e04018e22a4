// Package httpapi exposes the inbound webhook and operational endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"zivai/internal/domain"
	"zivai/internal/engine"
	"zivai/internal/logging"
	"zivai/internal/observability"
)

// MessageHandler is the part of the engine the webhook needs.
type MessageHandler interface {
	Handle(ctx context.Context, in engine.Inbound) domain.Status
}

// Server handles the Twilio webhook and the Paynow callbacks.
type Server struct {
	handler MessageHandler
	logger  *slog.Logger
}

// NewHandler builds the HTTP routes.
func NewHandler(handler MessageHandler, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{handler: handler, logger: logger}

	r := chi.NewRouter()
	r.Use(s.recoverer)

	r.Post("/whatsapp", s.whatsapp)
	r.HandleFunc("/return-url", s.paynowReturn)
	r.HandleFunc("/result-url", s.paynowResult)
	r.Get("/healthz", s.health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

// whatsapp handles one inbound message. Every expected outcome answers 200
// with a status tag; only a panic produces a 500.
func (s *Server) whatsapp(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.logger.Warn("webhook form parse failed", "error", err)
		s.respond(w, http.StatusOK, domain.StatusInvalidInput)
		return
	}

	in := engine.Inbound{
		Sender: r.PostFormValue("From"),
		Name:   r.PostFormValue("ProfileName"),
		Body:   r.PostFormValue("Body"),
	}

	status := s.handler.Handle(r.Context(), in)
	observability.MessagesTotal.WithLabelValues(string(status)).Inc()
	s.logger.Info("webhook handled", "sender", in.Sender, "status", status)
	s.respond(w, http.StatusOK, status)
}

// paynowReturn acknowledges the browser return callback. The settlement
// poller is the source of truth, so the payload is only logged.
func (s *Server) paynowReturn(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	s.logger.Info("paynow return callback", "form", r.Form.Encode())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Payment return processed"))
}

// paynowResult acknowledges the server-to-server status callback.
func (s *Server) paynowResult(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	s.logger.Info("paynow result callback", "form", r.Form.Encode())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Payment result processed"))
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) respond(w http.ResponseWriter, code int, status domain.Status) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(map[string]string{"status": string(status)}); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}

// recoverer converts an unexpected panic into a 500 with the generic error
// status, keeping the process alive.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic while handling request", "path", r.URL.Path, "panic", rec)
				s.respond(w, http.StatusInternalServerError, domain.StatusError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
