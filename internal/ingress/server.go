// Package ingress receives the signed event webhook, authenticates and
// decodes deliveries, and hands chat events to the core handler. Its
// delivery-id dedupe is transport-level and independent of the
// handler's content dedupe.
package ingress

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"

	"github.com/poiwarden/server/internal/handler"
)

//go:embed chat_event.schema.json
var chatEventSchemaSrc string

const (
	headerEvent     = "X-Hephaistos-Event"
	headerDelivery  = "X-Hephaistos-Delivery"
	headerSignature = "X-Hephaistos-Signature"

	maxBodyBytes   = 1 << 20
	deliveryWindow = 10 * time.Second
)

// Notifier is the outbound side: replies go back through the game
// server chat.
type Notifier interface {
	SendServerMessage(ctx context.Context, text string) error
}

// Server is the webhook HTTP ingress.
type Server struct {
	handler  *handler.Handler
	notifier Notifier
	secret   string
	log      *zap.Logger
	schema   *jsonschema.Schema
	srv      *http.Server

	mu   sync.Mutex
	seen map[string]time.Time // delivery uuid → received at
}

func New(addr, secret string, h *handler.Handler, n Notifier, log *zap.Logger) (*Server, error) {
	schema, err := jsonschema.CompileString("chat_event.schema.json", chatEventSchemaSrc)
	if err != nil {
		return nil, fmt.Errorf("compile chat event schema: %w", err)
	}

	s := &Server{
		handler:  h,
		notifier: n,
		secret:   secret,
		log:      log,
		schema:   schema,
		seen:     make(map[string]time.Time),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhook", s.handleWebhook)
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s, nil
}

// ListenAndServe blocks until Shutdown or a listener error.
func (s *Server) ListenAndServe() error {
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	event := r.Header.Get(headerEvent)
	if event == "verification" {
		s.log.Info("webhook verification ping")
		w.WriteHeader(http.StatusNoContent)
		return
	}

	delivery := r.Header.Get(headerDelivery)
	if !s.validSignature(delivery, r.Header.Get(headerSignature)) {
		s.log.Warn("webhook signature rejected", zap.String("delivery", delivery))
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	if event != "user.chat" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if s.duplicateDelivery(delivery) {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	// Malformed events surface as a no-op to the core, never a partial
	// mutation: validate the whole payload before touching the handler.
	var generic any
	if err := json.Unmarshal(body, &generic); err != nil {
		s.log.Warn("malformed webhook payload", zap.Error(err))
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := s.schema.Validate(generic); err != nil {
		s.log.Warn("webhook payload failed schema", zap.Error(err))
		w.WriteHeader(http.StatusNoContent)
		return
	}

	var payload struct {
		PlayerName string `json:"player_name"`
		Message    string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	out, ok := s.handler.HandleChatEvent(r.Context(), payload.PlayerName, payload.Message)
	if ok {
		// Fire and forget: a slow or failed broadcast never holds the
		// webhook response.
		go func(text string) {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := s.notifier.SendServerMessage(ctx, text); err != nil {
				s.log.Warn("reply broadcast failed", zap.Error(err))
			}
		}(out)
	}
	w.WriteHeader(http.StatusNoContent)
}

// validSignature checks sha256(deliveryUUID + secret) against the
// signature header.
func (s *Server) validSignature(delivery, signature string) bool {
	if delivery == "" || signature == "" {
		return false
	}
	sum := sha256.Sum256([]byte(delivery + s.secret))
	want := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(want), []byte(signature)) == 1
}

// duplicateDelivery records the delivery id and reports redeliveries
// inside the window.
func (s *Server) duplicateDelivery(id string) bool {
	if id == "" {
		return false
	}
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, at := range s.seen {
		if now.Sub(at) > deliveryWindow {
			delete(s.seen, k)
		}
	}
	if _, ok := s.seen[id]; ok {
		return true
	}
	s.seen[id] = now
	return false
}
