// Package gateway is the client for the game-server data API: player
// telemetry, server chat broadcast, and forced teleports. Every call
// is best-effort; callers keep running on failure.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/poiwarden/server/internal/config"
	"github.com/poiwarden/server/internal/geo"
	"github.com/poiwarden/server/internal/resolver"
	"github.com/poiwarden/server/internal/territory"
)

// Client talks to the gateway with a cached bearer token.
type Client struct {
	cfg  config.GatewayConfig
	http *http.Client
	log  *zap.Logger

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

func New(cfg config.GatewayConfig, log *zap.Logger) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.RequestTimeout},
		log:  log,
	}
}

// bearer returns a valid token, re-authenticating when the cached one
// has expired.
func (c *Client) bearer(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.tokenExp) {
		return c.token, nil
	}

	body, _ := json.Marshal(map[string]string{
		"application_id": c.cfg.ApplicationID,
		"secret":         c.cfg.ApplicationSecret,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/auth/register", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.cfg.ApplicationID)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("auth request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("auth request: status %d", resp.StatusCode)
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("auth response: %w", err)
	}
	if out.Token == "" {
		return "", fmt.Errorf("auth response: empty token")
	}

	c.token = out.Token
	c.tokenExp = time.Now().Add(c.cfg.TokenLifetime)
	c.log.Info("gateway authenticated")
	return c.token, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	token, err := c.bearer(ctx)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", c.cfg.ApplicationID)
	return c.http.Do(req)
}

// gsmSession mirrors the slice of the session list this service reads.
type gsmSession struct {
	GameData struct {
		PlayerName string `json:"player_name"`
		Steam64    string `json:"steam64"`
	} `json:"gamedata"`
	Live struct {
		Position struct {
			Latest []float64 `json:"latest"` // [X, Z, elevation]
		} `json:"position"`
	} `json:"live"`
}

// FetchOnlinePlayers pulls the current session list and maps it to
// snapshot entries. Sessions without a name or position are skipped.
func (c *Client) FetchOnlinePlayers(ctx context.Context) ([]territory.Player, error) {
	resp, err := c.do(ctx, http.MethodGet, "/server/"+c.cfg.ServerAPIID+"/GSM/list", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch players: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch players: status %d", resp.StatusCode)
	}

	var out struct {
		Sessions []gsmSession `json:"sessions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("fetch players: decode: %w", err)
	}

	players := make([]territory.Player, 0, len(out.Sessions))
	for _, s := range out.Sessions {
		if s.GameData.PlayerName == "" {
			continue
		}
		pos, ok := geo.TelemetryPoint(s.Live.Position.Latest)
		if !ok {
			continue
		}
		players = append(players, territory.Player{
			Identity: resolver.Normalize(s.GameData.PlayerName),
			Display:  s.GameData.PlayerName,
			Pos:      pos,
			Steam64:  s.GameData.Steam64,
		})
	}
	return players, nil
}

// SendServerMessage broadcasts one line of server chat.
func (c *Client) SendServerMessage(ctx context.Context, text string) error {
	resp, err := c.do(ctx, http.MethodPost, "/server/"+c.cfg.ServerAPIID+"/message-server",
		map[string]string{"content": text})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("send message: status %d", resp.StatusCode)
	}
	return nil
}

// RelocatePlayer issues the teleport action. The action vector uses a
// different axis order than the catalog: X stays, the catalog Z rides
// in valueVectorY, and the elevation rides in valueVectorZ.
func (c *Client) RelocatePlayer(ctx context.Context, steam64 string, target geo.Position) error {
	payload := map[string]any{
		"actionCode":    "CFCloud_TeleportPlayer",
		"actionContext": "player",
		"referenceKey":  steam64,
		"parameters": map[string]any{
			"vector": map[string]float64{
				"valueVectorX": target.X,
				"valueVectorY": target.Z,
				"valueVectorZ": target.Y,
			},
		},
	}
	resp, err := c.do(ctx, http.MethodPost, "/server/"+c.cfg.ServerAPIID+"/GameLabs/action", payload)
	if err != nil {
		return fmt.Errorf("relocate: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("relocate: status %d", resp.StatusCode)
	}
	return nil
}
