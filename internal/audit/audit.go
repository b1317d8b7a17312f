// Package audit ships free-text events to an external collector. Delivery is
// best-effort: events are buffered, posted by a background worker, and
// dropped rather than ever blocking or failing a request.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/yourname/shortreg/internal/metrics"
)

// Nop discards all events.
type Nop struct{}

func (Nop) Record(string) {}

// Credentials identify this service to the collector.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// Remote posts events to a collector endpoint, authenticating with a bearer
// token it refreshes as needed. Token refresh and delivery happen on the
// worker goroutine, never on a request path and never under a store lock.
type Remote struct {
	baseURL string
	creds   Credentials
	client  *http.Client
	events  chan string

	// worker state, not shared
	token      string
	tokenExp   time.Time
	registered bool
}

func NewRemote(baseURL string, creds Credentials) *Remote {
	return &Remote{
		baseURL: baseURL,
		creds:   creds,
		client:  &http.Client{Timeout: 10 * time.Second},
		events:  make(chan string, 1024),
	}
}

// Record queues an event. Drops it if the buffer is full to keep the caller
// fast.
func (s *Remote) Record(event string) {
	select {
	case s.events <- event:
	default:
		metrics.AuditDropped.Inc()
	}
}

// Run drains the event buffer until ctx is cancelled.
func (s *Remote) Run(ctx context.Context) {
	for {
		select {
		case ev := <-s.events:
			if err := s.post(ctx, ev); err != nil {
				log.Warn().Err(err).Msg("audit delivery")
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *Remote) post(ctx context.Context, event string) error {
	token, err := s.authToken(ctx)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	body, _ := json.Marshal(map[string]string{"message": event})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/logs", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("collector returned %d", resp.StatusCode)
	}
	return nil
}

// authToken returns a cached token, refreshing it when within 5s of expiry.
func (s *Remote) authToken(ctx context.Context) (string, error) {
	now := time.Now()
	if s.token != "" && now.Before(s.tokenExp.Add(-5*time.Second)) {
		return s.token, nil
	}

	if err := s.register(ctx); err != nil {
		return "", err
	}

	resp, err := s.postJSON(ctx, "/auth", s.creds)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("auth returned %d", resp.StatusCode)
	}

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.AccessToken == "" || out.ExpiresIn == 0 {
		return "", fmt.Errorf("auth response missing access_token or expires_in")
	}

	s.token = out.AccessToken
	// Some collectors report expires_in as an absolute unix timestamp rather
	// than a duration in seconds.
	if out.ExpiresIn > 10_000_000 {
		s.tokenExp = time.Unix(out.ExpiresIn, 0)
	} else {
		s.tokenExp = now.Add(time.Duration(out.ExpiresIn) * time.Second)
	}
	return s.token, nil
}

// register enrolls the client once per process. A conflict means a previous
// run already registered, which is fine.
func (s *Remote) register(ctx context.Context) error {
	if s.registered {
		return nil
	}
	resp, err := s.postJSON(ctx, "/register", s.creds)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode < 300, resp.StatusCode == http.StatusConflict, resp.StatusCode == http.StatusBadRequest:
		s.registered = true
		return nil
	default:
		return fmt.Errorf("register returned %d", resp.StatusCode)
	}
}

func (s *Remote) postJSON(ctx context.Context, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return s.client.Do(req)
}
