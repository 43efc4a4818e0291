package ingress

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/poiwarden/server/internal/config"
	"github.com/poiwarden/server/internal/data"
	"github.com/poiwarden/server/internal/geo"
	"github.com/poiwarden/server/internal/handler"
	"github.com/poiwarden/server/internal/resolver"
	"github.com/poiwarden/server/internal/territory"
)

const testSecret = "t0psecret"

type captureNotifier struct {
	messages chan string
}

func (n *captureNotifier) SendServerMessage(_ context.Context, text string) error {
	n.messages <- text
	return nil
}

type noopGateway struct{}

func (noopGateway) SendServerMessage(context.Context, string) error            { return nil }
func (noopGateway) RelocatePlayer(context.Context, string, geo.Position) error { return nil }

type noopLinks struct{}

func (noopLinks) Resolve(context.Context, string) (string, error) { return "", nil }
func (noopLinks) Record(context.Context, string, string) error    { return nil }

func newTestServer(t *testing.T) (*Server, *captureNotifier) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "poi_list.yaml")
	catalog := `
- id: "Heli Crash (Event)"
  alias: "Heli"
  aliases: ["heli"]
  dynamic: true
`
	if err := os.WriteFile(path, []byte(catalog), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	table, err := data.LoadPOITable(path, 500, 350)
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}

	engine := territory.New(table, config.ClaimsConfig{
		ClaimRadius:     500,
		IntrusionRadius: 350,
		ClaimTimeout:    45 * time.Minute,
		ResetBlockHours: 3,
	}, noopGateway{}, noopLinks{}, nil, zap.NewNop())

	h := handler.New(handler.Deps{
		Engine:       engine,
		Resolver:     resolver.New(table, 0.6),
		Links:        noopLinks{},
		Log:          zap.NewNop(),
		DedupeWindow: 10 * time.Second,
	})

	notifier := &captureNotifier{messages: make(chan string, 4)}
	s, err := New("127.0.0.1:0", testSecret, h, notifier, zap.NewNop())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return s, notifier
}

func sign(delivery string) string {
	sum := sha256.Sum256([]byte(delivery + testSecret))
	return hex.EncodeToString(sum[:])
}

func post(s *Server, event, delivery, signature, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set(headerEvent, event)
	req.Header.Set(headerDelivery, delivery)
	req.Header.Set(headerSignature, signature)
	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func TestWebhookVerificationPing(t *testing.T) {
	s, _ := newTestServer(t)
	// Verification is answered before any signature check.
	rec := post(s, "verification", "", "", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	s, _ := newTestServer(t)
	body := `{"player_name": "P1", "message": "claim heli"}`

	rec := post(s, "user.chat", "d-1", "deadbeef", body)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	rec = post(s, "user.chat", "d-1", "", body)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("missing signature: status = %d, want 403", rec.Code)
	}
}

func TestWebhookChatCommandReplies(t *testing.T) {
	s, notifier := newTestServer(t)
	body := `{"player_name": "P1", "message": "claim heli"}`

	rec := post(s, "user.chat", "d-1", sign("d-1"), body)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}

	select {
	case msg := <-notifier.messages:
		if msg != "P1 claimed Heli Crash (Event)." {
			t.Fatalf("reply = %q", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no reply broadcast")
	}
}

func TestWebhookIgnoresOtherEvents(t *testing.T) {
	s, notifier := newTestServer(t)

	rec := post(s, "user.join", "d-1", sign("d-1"), `{"player_name": "P1"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	select {
	case msg := <-notifier.messages:
		t.Fatalf("unexpected broadcast %q", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWebhookDuplicateDeliverySuppressed(t *testing.T) {
	s, notifier := newTestServer(t)
	body := `{"player_name": "P1", "message": "check heli"}`

	post(s, "user.chat", "d-1", sign("d-1"), body)
	post(s, "user.chat", "d-1", sign("d-1"), body)

	select {
	case <-notifier.messages:
	case <-time.After(2 * time.Second):
		t.Fatalf("no reply broadcast")
	}
	select {
	case msg := <-notifier.messages:
		t.Fatalf("redelivery produced a second broadcast %q", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWebhookMalformedPayloadIsNoOp(t *testing.T) {
	s, notifier := newTestServer(t)

	for _, body := range []string{
		`not json`,
		`{"player_name": "P1"}`,
		`{"player_name": "", "message": "claim heli"}`,
		`{"message": "claim heli"}`,
	} {
		rec := post(s, "user.chat", "d-"+body, sign("d-"+body), body)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("body %q: status = %d", body, rec.Code)
		}
	}
	select {
	case msg := <-notifier.messages:
		t.Fatalf("malformed payload produced broadcast %q", msg)
	case <-time.After(100 * time.Millisecond):
	}
}
