package janus

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dkeye/voicebridge/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ErrNotConnected = errors.New("janus session not established")

type Config struct {
	URL       string
	APISecret string
	Timeout   time.Duration
	KeepAlive time.Duration
}

// Client talks to the Janus audiobridge plugin over the HTTP transport. One
// session and one plugin handle are shared by every room, so calls are
// serialized.
type Client struct {
	cfg    Config
	http   *http.Client
	logger zerolog.Logger

	mu        sync.Mutex
	sessionID uint64
	handleID  uint64
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = 30 * time.Second
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: log.With().Str("module", "janus").Logger(),
	}
}

// Connect creates the gateway session and attaches the audiobridge plugin.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp, err := c.post(ctx, c.cfg.URL, request{Janus: "create"})
	if err != nil {
		return fmt.Errorf("create session: %w", errors.Join(domain.ErrExternalService, err))
	}
	if resp.Data == nil || resp.Data.ID == 0 {
		return fmt.Errorf("create session: %w", errors.Join(domain.ErrExternalService, errors.New("no session id")))
	}
	session := resp.Data.ID

	resp, err = c.post(ctx, fmt.Sprintf("%s/%d", c.cfg.URL, session), request{Janus: "attach", Plugin: PluginAudioBridge})
	if err != nil {
		return fmt.Errorf("attach %s: %w", PluginAudioBridge, errors.Join(domain.ErrExternalService, err))
	}
	if resp.Data == nil || resp.Data.ID == 0 {
		return fmt.Errorf("attach %s: %w", PluginAudioBridge, errors.Join(domain.ErrExternalService, errors.New("no handle id")))
	}

	c.sessionID, c.handleID = session, resp.Data.ID
	c.logger.Info().Uint64("session", c.sessionID).Uint64("handle", c.handleID).Msg("connected")
	return nil
}

func (c *Client) CreateRoom(ctx context.Context, description string) (string, error) {
	res, err := c.message(ctx, createBody{
		Request:            "create",
		Description:        description,
		IsPrivate:          false,
		AudioLevelExt:      true,
		AudioActivePackets: 100,
		AudioLevelAverage:  25,
	})
	if err != nil {
		return "", fmt.Errorf("create room: %w", err)
	}
	id, err := parseRoomID(res.Room)
	if err != nil {
		return "", fmt.Errorf("create room: %w", errors.Join(domain.ErrExternalService, err))
	}
	c.logger.Info().Str("room", id).Msg("room created")
	return id, nil
}

func (c *Client) JoinRoom(ctx context.Context, roomID, userID string) error {
	_, err := c.message(ctx, joinBody{
		Request: "join",
		Room:    roomRef(roomID),
		ID:      userID,
		Display: domain.DefaultUsername(domain.UserID(userID)),
		Muted:   false,
	})
	if err != nil {
		return fmt.Errorf("join room %s: %w", roomID, err)
	}
	return nil
}

func (c *Client) LeaveRoom(ctx context.Context, roomID, userID string) error {
	_, err := c.message(ctx, roomBody{Request: "leave", Room: roomRef(roomID), ID: userID})
	if err != nil {
		return fmt.Errorf("leave room %s: %w", roomID, err)
	}
	return nil
}

// DestroyRoom treats an already missing room as destroyed.
func (c *Client) DestroyRoom(ctx context.Context, roomID string) error {
	_, err := c.message(ctx, roomBody{Request: "destroy", Room: roomRef(roomID)})
	if err != nil && !isNoSuchRoom(err) {
		return fmt.Errorf("destroy room %s: %w", roomID, err)
	}
	c.logger.Info().Str("room", roomID).Msg("room destroyed")
	return nil
}

// KeepAlive pings the session until ctx is done. Janus reaps idle sessions
// after about a minute.
func (c *Client) KeepAlive(ctx context.Context) {
	t := time.NewTicker(c.cfg.KeepAlive)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := c.ping(ctx); err != nil {
				c.logger.Warn().Err(err).Msg("keepalive failed")
			}
		}
	}
}

func (c *Client) ping(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionID == 0 {
		return ErrNotConnected
	}
	_, err := c.post(ctx, fmt.Sprintf("%s/%d", c.cfg.URL, c.sessionID), request{Janus: "keepalive"})
	return err
}

// Close detaches the plugin and destroys the session.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionID == 0 {
		return nil
	}
	base := fmt.Sprintf("%s/%d", c.cfg.URL, c.sessionID)
	var errs []error
	if _, err := c.post(ctx, fmt.Sprintf("%s/%d", base, c.handleID), request{Janus: "detach"}); err != nil {
		errs = append(errs, fmt.Errorf("detach: %w", err))
	}
	if _, err := c.post(ctx, base, request{Janus: "destroy"}); err != nil {
		errs = append(errs, fmt.Errorf("destroy session: %w", err))
	}
	c.sessionID, c.handleID = 0, 0
	c.logger.Info().Msg("session closed")
	return errors.Join(errs...)
}

// message sends a plugin request on the shared handle. Errors wrap
// domain.ErrExternalService.
func (c *Client) message(ctx context.Context, body any) (*pluginResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionID == 0 {
		return nil, errors.Join(domain.ErrExternalService, ErrNotConnected)
	}

	url := fmt.Sprintf("%s/%d/%d", c.cfg.URL, c.sessionID, c.handleID)
	resp, err := c.post(ctx, url, request{Janus: "message", Body: body})
	if err != nil {
		return nil, errors.Join(domain.ErrExternalService, err)
	}

	switch resp.Janus {
	case "ack":
		return &pluginResult{}, nil
	case "success":
	default:
		return nil, errors.Join(domain.ErrExternalService, fmt.Errorf("unexpected reply %q", resp.Janus))
	}
	if resp.PluginData == nil {
		return &pluginResult{}, nil
	}
	var res pluginResult
	if err := json.Unmarshal(resp.PluginData.Data, &res); err != nil {
		return nil, errors.Join(domain.ErrExternalService, fmt.Errorf("decode plugindata: %w", err))
	}
	if res.ErrorCode != 0 || res.Error != "" {
		return nil, errors.Join(domain.ErrExternalService, &PluginError{Code: res.ErrorCode, Reason: res.Error})
	}
	return &res, nil
}

// post is one JSON round trip. Caller holds c.mu.
func (c *Client) post(ctx context.Context, url string, req request) (*response, error) {
	req.Transaction = uuid.NewString()
	req.APISecret = c.cfg.APISecret
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	hreq.Header.Set("Content-Type", "application/json")

	hresp, err := c.http.Do(hreq)
	if err != nil {
		return nil, err
	}
	defer hresp.Body.Close()

	data, err := io.ReadAll(hresp.Body)
	if err != nil {
		return nil, err
	}
	if hresp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: status %d: %s", req.Janus, hresp.StatusCode, strings.TrimSpace(string(data)))
	}

	var resp response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", req.Janus, err)
	}
	if resp.Transaction != "" && resp.Transaction != req.Transaction {
		return nil, fmt.Errorf("%s: transaction mismatch", req.Janus)
	}
	if resp.Janus == "error" {
		ge := &GatewayError{}
		if resp.Error != nil {
			ge.Code, ge.Reason = resp.Error.Code, resp.Error.Reason
		}
		return nil, ge
	}
	c.logger.Debug().Str("request", req.Janus).Str("reply", resp.Janus).Msg("rpc")
	return &resp, nil
}
