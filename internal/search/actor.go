// Package search drives the weekly position-search quota: keyword rotation,
// outbound actor calls, deduplicated inserts and the per-persona weekly
// counters behind the prospecting traffic lights.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ignite/contact-core/internal/config"
	"github.com/ignite/contact-core/internal/pkg/httpretry"
)

// ErrRateLimited marks an upstream refusal that must block the week, not be
// retried.
var ErrRateLimited = errors.New("upstream rate limit")

// Candidate is one person returned by the position-search actor.
type Candidate struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	LinkedInURL string `json:"linkedin_url"`
	JobTitle    string `json:"job_title"`
	Company     string `json:"company"`
}

// Actor is the outbound position-search dependency.
type Actor interface {
	Search(ctx context.Context, keyword string, limit int) ([]Candidate, error)
}

// ActorClient calls the scraping actor over HTTP. Transient upstream errors
// are retried; rate limits are classified and surfaced as ErrRateLimited.
type ActorClient struct {
	url    string
	token  string
	client httpretry.HTTPDoer
}

// NewActorClient builds the client from config. The underlying client
// retries 5xx and network errors but never a rate-limit response.
func NewActorClient(cfg config.SearchConfig) *ActorClient {
	base := &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second}
	return &ActorClient{
		url:    cfg.ActorURL,
		token:  cfg.ActorToken,
		client: httpretry.NewRetryClient(base, 3),
	}
}

type actorRequest struct {
	Keyword string `json:"keyword"`
	Limit   int    `json:"limit"`
}

type actorResponse struct {
	Results []Candidate `json:"results"`
	Error   string      `json:"error,omitempty"`
}

// Search runs one actor call for a keyword.
func (c *ActorClient) Search(ctx context.Context, keyword string, limit int) ([]Candidate, error) {
	payload, err := json.Marshal(actorRequest{Keyword: keyword, Limit: limit})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("actor call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("actor response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if IsRateLimitResponse(resp.StatusCode, string(body)) {
			return nil, fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode)
		}
		return nil, fmt.Errorf("actor returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed actorResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("actor payload: %w", err)
	}
	if parsed.Error != "" {
		// Some actors report quota exhaustion inside a 200 envelope.
		if IsRateLimitResponse(http.StatusOK, parsed.Error) {
			return nil, fmt.Errorf("%w: %s", ErrRateLimited, parsed.Error)
		}
		return nil, fmt.Errorf("actor error: %s", parsed.Error)
	}
	return parsed.Results, nil
}

// IsRateLimitError reports whether err carries ErrRateLimited.
func IsRateLimitError(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsRateLimitResponse classifies an upstream reply as a rate limit: HTTP 429
// or a body mentioning a limit or quota.
func IsRateLimitResponse(status int, body string) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	lower := strings.ToLower(body)
	return strings.Contains(lower, "limit") || strings.Contains(lower, "quota")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
