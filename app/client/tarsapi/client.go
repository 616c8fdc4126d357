package tarsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"tarsvoice/app/config"
	"tarsvoice/app/service/dialogue"

	"github.com/samber/do"
	"github.com/samber/oops"
)

const requestTimeout = 15 * time.Second

// Client implements the dialogue backend contract over HTTP: the message
// history plus tone parameters go in, one reply plus a session identifier
// come out.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ dialogue.Backend = (*Client)(nil)

func NewClient(di *do.Injector) (*Client, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return &Client{
		baseURL: cfg.Server.BackendURL,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}, nil
}

type chatRequest struct {
	Messages []dialogue.Entry `json:"messages"`
	Humor    int              `json:"humor"`
	Honesty  int              `json:"honesty"`
	// SessionID marshals to null before the backend mints a handle
	SessionID *string `json:"sessionId"`
	UserName  string  `json:"userName"`
}

type chatResponse struct {
	Reply struct {
		Content string `json:"content"`
	} `json:"reply"`
	SessionID string `json:"sessionId"`
}

func (c *Client) Exchange(ctx context.Context, req dialogue.ExchangeRequest) (*dialogue.ExchangeResult, error) {
	body := chatRequest{
		Messages: req.Messages,
		Humor:    req.Humor,
		Honesty:  req.Honesty,
		UserName: req.UserName,
	}
	if req.SessionID != "" {
		body.SessionID = &req.SessionID
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, oops.Errorf("failed to marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, oops.Errorf("failed to build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, oops.Errorf("chat request failed: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(response.Body, 512))
		return nil, oops.Errorf("chat request returned %d: %s", response.StatusCode, string(data))
	}

	var parsed chatResponse
	if err = json.NewDecoder(response.Body).Decode(&parsed); err != nil {
		return nil, oops.Errorf("failed to decode chat response: %w", err)
	}

	return &dialogue.ExchangeResult{
		Reply:     parsed.Reply.Content,
		SessionID: parsed.SessionID,
	}, nil
}
