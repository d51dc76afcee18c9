package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pscheid92/screentime/internal/domain"
	"github.com/pscheid92/screentime/internal/platform/correlation"
)

// IngestPath is where tabs post finished sessions.
const IngestPath = "/api/wellness/screentime"

const (
	defaultSendTimeout   = 10 * time.Second
	defaultBeaconTimeout = 5 * time.Second
	maxErrorBody         = 512
)

// HTTPSender posts batches to the ingest endpoint of a screentime server.
type HTTPSender struct {
	endpoint      string
	client        *http.Client
	beaconTimeout time.Duration
}

// NewHTTPSender creates a sender for baseURL. A nil client gets a default
// one with a request timeout.
func NewHTTPSender(baseURL string, client *http.Client) *HTTPSender {
	if client == nil {
		client = &http.Client{Timeout: defaultSendTimeout}
	}
	return &HTTPSender{
		endpoint:      strings.TrimRight(baseURL, "/") + IngestPath,
		client:        client,
		beaconTimeout: defaultBeaconTimeout,
	}
}

func (s *HTTPSender) Send(ctx context.Context, batch []domain.SessionInput) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("failed to encode batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if id, ok := correlation.ID(ctx); ok {
		req.Header.Set(correlation.Header, id)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post batch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("ingest rejected batch with status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Beacon posts the batch in the background and ignores the outcome.
// The request is detached from ctx cancellation so it survives the unload.
func (s *HTTPSender) Beacon(ctx context.Context, batch []domain.SessionInput) {
	detached := context.WithoutCancel(ctx)
	go func() {
		sendCtx, cancel := context.WithTimeout(detached, s.beaconTimeout)
		defer cancel()
		if err := s.Send(sendCtx, batch); err != nil {
			slog.DebugContext(sendCtx, "Beacon delivery failed", "count", len(batch), "error", err)
		}
	}()
}
