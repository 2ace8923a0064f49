// Package api exposes the router over HTTP.
//
// POST /chat accepts {"message": "..."} and answers {"response": "..."}. The
// session identifier travels in a request header and is echoed, possibly
// newly minted, in the same response header. Every routing failure is a 500
// with {"detail": "..."}; the error kind only shows up in logs and metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/hupe1980/agentrouter/core"
	"github.com/hupe1980/agentrouter/logging"
	"github.com/hupe1980/agentrouter/router"
)

// Routes served by Handler.
const (
	ChatPath   = "/chat"
	HealthPath = "/healthz"
)

// DefaultSessionHeader names the header carrying the session identifier.
const DefaultSessionHeader = "X-Session-ID"

// DefaultMaxBodyBytes bounds the /chat request body.
const DefaultMaxBodyBytes int64 = 1 << 20

const internalErrorPrefix = "Internal server error: "

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message *string `json:"message"`
}

// ChatResponse is the success body of POST /chat.
type ChatResponse struct {
	Response string `json:"response"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// StatusResponse is the body of GET /.
type StatusResponse struct {
	Status    string   `json:"status"`
	Endpoints []string `json:"endpoints"`
}

// Router answers one conversational turn.
type Router interface {
	Route(ctx context.Context, task, sessionID string) (*router.Result, error)
}

// Options configures a Handler.
type Options struct {
	SessionHeader string
	MaxBodyBytes  int64
	Logger        logging.Logger

	// Ready is consulted by GET /healthz. Nil means always ready.
	Ready func(ctx context.Context) error
}

// Handler serves the chat API.
type Handler struct {
	router Router
	opts   Options
	mux    *http.ServeMux
}

// NewHandler creates the API handler around r.
func NewHandler(r Router, optFns ...func(o *Options)) *Handler {
	opts := Options{
		SessionHeader: DefaultSessionHeader,
		MaxBodyBytes:  DefaultMaxBodyBytes,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	if opts.SessionHeader == "" {
		opts.SessionHeader = DefaultSessionHeader
	}

	h := &Handler{router: r, opts: opts, mux: http.NewServeMux()}
	h.mux.HandleFunc("POST "+ChatPath, h.handleChat)
	h.mux.HandleFunc("GET /{$}", h.handleStatus)
	h.mux.HandleFunc("GET "+HealthPath, h.handleHealth)

	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Detail: "Request body too large"})
			return
		}
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Detail: "Invalid request body: " + err.Error()})
		return
	}
	if req.Message == nil {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Detail: "Field required: message"})
		return
	}

	sessionID := strings.TrimSpace(r.Header.Get(h.opts.SessionHeader))

	res, err := h.router.Route(r.Context(), *req.Message, sessionID)
	if err != nil {
		h.opts.Logger.Error("api.chat.failed",
			"error", err,
			"error.kind", core.ErrorKind(err),
			"session.id", sessionID,
			"request.id", RequestIDFromContext(r.Context()),
		)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Detail: internalErrorPrefix + err.Error()})
		return
	}

	h.opts.Logger.Debug("api.chat.completed",
		"session.id", res.SessionID,
		"responder", res.Turn.Responder,
		"hops", res.Turn.Hops(),
	)

	w.Header().Set(h.opts.SessionHeader, res.SessionID)
	writeJSON(w, http.StatusOK, ChatResponse{Response: res.Reply})
}

func (h *Handler) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		Status:    "API is running",
		Endpoints: []string{ChatPath},
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.opts.Ready != nil {
		if err := h.opts.Ready(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Detail: err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
