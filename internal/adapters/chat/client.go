// Package chat implements the gateway transport to the chat service over
// its HTTP API. A user-scoped JWT is minted locally with the gateway secret
// (server-SDK style) and presented alongside the auth token supplied by the
// login layer.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/yannsalvignol/cherrizbox-app-sub001/internal/domain"
	"github.com/yannsalvignol/cherrizbox-app-sub001/internal/ports"
)

type Client struct {
	baseURL  string
	secret   []byte
	client   *http.Client
	tokenTTL time.Duration

	mu        sync.Mutex
	userToken string
	identity  string
}

type ClientConfig struct {
	BaseURL  string
	Secret   string
	Timeout  time.Duration
	TokenTTL time.Duration
}

func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	tokenTTL := cfg.TokenTTL
	if tokenTTL <= 0 {
		tokenTTL = time.Hour
	}
	return &Client{
		baseURL:  cfg.BaseURL,
		secret:   []byte(cfg.Secret),
		client:   &http.Client{Timeout: timeout},
		tokenTTL: tokenTTL,
	}
}

func (c *Client) Connect(ctx context.Context, identity, authToken string) error {
	userToken, err := c.mintUserToken(identity)
	if err != nil {
		return fmt.Errorf("mint connection token: %w", err)
	}
	body := map[string]string{"user_id": identity, "auth_token": authToken}
	if err := c.post(ctx, "/v1/connect", userToken, body, nil); err != nil {
		return err
	}
	c.mu.Lock()
	c.userToken = userToken
	c.identity = identity
	c.mu.Unlock()
	return nil
}

func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	userToken := c.userToken
	identity := c.identity
	c.userToken = ""
	c.identity = ""
	c.mu.Unlock()
	if userToken == "" {
		return nil
	}
	return c.post(ctx, "/v1/disconnect", userToken, map[string]string{"user_id": identity}, nil)
}

func (c *Client) Channel(kind domain.ChannelKind, id string) ports.ChannelHandle {
	return &channelHandle{client: c, kind: kind, id: id}
}

func (c *Client) mintUserToken(identity string) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"user_id": identity,
		"iat":     now.Unix(),
		"exp":     now.Add(c.tokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

type channelHandle struct {
	client *Client
	kind   domain.ChannelKind
	id     string
}

func (h *channelHandle) Create(ctx context.Context, members []string) error {
	body := map[string]any{"kind": string(h.kind), "members": members}
	err := h.client.post(ctx, "/v1/channels/"+h.id, h.client.currentToken(), body, nil)
	// An existing channel satisfies the provisioning contract.
	if isConflict(err) {
		return nil
	}
	return err
}

func (h *channelHandle) Watch(ctx context.Context) error {
	return h.client.post(ctx, "/v1/channels/"+h.id+"/watch", h.client.currentToken(), nil, nil)
}

func (h *channelHandle) IsMember(ctx context.Context, identity string) (bool, error) {
	var out struct {
		Members []string `json:"members"`
	}
	if err := h.client.get(ctx, "/v1/channels/"+h.id+"/members", h.client.currentToken(), &out); err != nil {
		return false, err
	}
	for _, member := range out.Members {
		if member == identity {
			return true, nil
		}
	}
	return false, nil
}

func (h *channelHandle) AddMembers(ctx context.Context, identities []string) error {
	body := map[string]any{"members": identities}
	return h.client.post(ctx, "/v1/channels/"+h.id+"/members", h.client.currentToken(), body, nil)
}

func (c *Client) currentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userToken
}

type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("chat service status %d: %s", e.status, e.body)
}

func isConflict(err error) bool {
	se, ok := err.(*statusError)
	return ok && se.status == http.StatusConflict
}

func (c *Client) post(ctx context.Context, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	return c.do(req, token, out)
}

func (c *Client) get(ctx context.Context, path, token string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, token, out)
}

func (c *Client) do(req *http.Request, token string, out any) error {
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDependencyUnavailable, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 400 {
		return &statusError{status: resp.StatusCode, body: string(bytes.TrimSpace(raw))}
	}
	if out != nil && len(raw) > 0 {
		return json.Unmarshal(raw, out)
	}
	return nil
}
