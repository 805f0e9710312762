package cards

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/rest/httpc"
)

const GeneratePath = "/api/generate-cards"

// Source produces knowledge cards for a conversation.
type Source interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Client calls a remote card service over HTTP.
type Client struct {
	endpoint string
	service  httpc.Service
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint: strings.TrimRight(baseURL, "/") + GeneratePath,
		service:  httpc.NewServiceWithClient("cards", &http.Client{Timeout: timeout}),
	}
}

type envelope struct {
	Code    int       `json:"code"`
	Message string    `json:"message"`
	Data    *Response `json:"data"`
}

func (c *Client) Generate(ctx context.Context, req Request) (*Response, error) {
	if len(req.Conversations) == 0 {
		return nil, ErrNoConversation
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.service.DoRequest(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("card service returned status %d: %s", resp.StatusCode, string(data))
	}
	if resp.StatusCode != http.StatusOK || env.Code != 0 {
		return nil, fmt.Errorf("card service returned status %d: %s", resp.StatusCode, env.Message)
	}
	if env.Data == nil {
		return &Response{Cards: []Card{}}, nil
	}
	return env.Data, nil
}
