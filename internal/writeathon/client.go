// Package writeathon wraps the Writeathon card API. Card creation reports
// success as a bool so callers can continue a batch past individual
// failures instead of aborting it.
package writeathon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/hzleung/readsync/internal/entities"
	"github.com/hzleung/readsync/internal/retrypolicy"
)

const (
	defaultBaseURL = "https://api.writeathon.cn"
	tokenHeader    = "x-writeathon-token"

	defaultTimeout = 30 * time.Second

	// The card API allows 30 requests per second; 140ms between calls keeps
	// a run comfortably under that.
	cardCreateDelay = 140 * time.Millisecond
)

var errCardRejected = errors.New("writeathon rejected the card")

// Client interfaces with the Writeathon API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cardDelay  time.Duration
	retry      retrypolicy.Policy
}

func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    defaultBaseURL,
		cardDelay:  cardCreateDelay,
		retry:      retrypolicy.Default,
	}
}

type apiEnvelope struct {
	Success bool `json:"success"`
	Data    struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"data"`
}

// ValidateCredentials checks that the token is accepted and belongs to the
// configured user.
func (c *Client) ValidateCredentials(ctx context.Context, creds entities.WriteathonCredentials) bool {
	envelope, err := c.me(ctx, creds)
	if err != nil {
		log.Printf("Writeathon: credential validation failed: %v", err)
		return false
	}
	return envelope.Success && envelope.Data.ID == creds.UserID
}

// UserInfo returns the account's display name.
func (c *Client) UserInfo(ctx context.Context, creds entities.WriteathonCredentials) (string, error) {
	envelope, err := c.me(ctx, creds)
	if err != nil {
		return "", err
	}
	if !envelope.Success {
		return "", errors.New("writeathon rejected the token")
	}
	return envelope.Data.Username, nil
}

// CreateCard creates a single card, pacing and retrying per the shared
// policy. It reports false after the attempt budget is exhausted.
func (c *Client) CreateCard(ctx context.Context, creds entities.WriteathonCredentials, title, content string) bool {
	body, err := json.Marshal(map[string]string{
		"title":   title,
		"content": content,
	})
	if err != nil {
		log.Printf("Writeathon: failed to encode card %q: %v", title, err)
		return false
	}

	err = c.retry.Do(ctx, func() error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cardDelay):
		}
		return c.postCard(ctx, creds, body)
	})
	if err != nil {
		log.Printf("Writeathon: failed to create card %q: %v", title, err)
		return false
	}
	return true
}

func (c *Client) postCard(ctx context.Context, creds entities.WriteathonCredentials, body []byte) error {
	url := fmt.Sprintf("%s/v1/users/%s/cards", c.baseURL, creds.UserID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(tokenHeader, creds.APIToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var envelope apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if !envelope.Success {
		return errCardRejected
	}
	return nil
}

func (c *Client) me(ctx context.Context, creds entities.WriteathonCredentials) (*apiEnvelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/me", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(tokenHeader, creds.APIToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var envelope apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &envelope, nil
}
