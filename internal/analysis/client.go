package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vytor/chessduel/internal/logger"
	"github.com/vytor/chessduel/internal/pgn"
)

const (
	apiKeyHeader   = "x-api-key"
	defaultSummary = "Analysis service returned no summary."
	maxErrorBody   = 1024
)

// StatusError is returned when the analysis service answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("analysis status %d: %s", e.StatusCode, e.Body)
}

// Request is the payload forwarded to the analysis service.
type Request struct {
	MatchID string   `json:"game_id"`
	PGN     string   `json:"pgn"`
	Moves   []string `json:"moves"`
	Result  string   `json:"result,omitempty"`
}

// Report is the analysis service's answer, normalized.
type Report struct {
	Summary    string            `json:"summary"`
	KeyMoments []json.RawMessage `json:"keyMoments"`
}

type Client struct {
	httpClient *http.Client
	url        string
	apiKey     string
}

func New(url, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		url:        url,
		apiKey:     apiKey,
	}
}

// NewRequest builds the forwarded payload from a PGN export.
func NewRequest(matchID, pgnText string) Request {
	moves := pgn.Movetext(pgnText)
	if moves == nil {
		moves = []string{}
	}
	return Request{
		MatchID: matchID,
		PGN:     pgnText,
		Moves:   moves,
		Result:  pgn.ParseHeaders(pgnText)["Result"],
	}
}

func (c *Client) Analyze(ctx context.Context, in Request) (*Report, error) {
	log := logger.FromContext(ctx).WithPrefix("analysis").WithField("match_id", in.MatchID)

	body, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}

	log.Debug("requesting analysis: moves=%d", len(in.Moves))
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		log.Error("failed to create request: %v", err)
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apiKeyHeader, c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("failed to reach analysis service: %v", err)
		return nil, err
	}
	defer resp.Body.Close()

	log.Debug("analysis response received in %v, status=%d", time.Since(start), resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		log.Error("analysis request failed: status=%d, body=%s", resp.StatusCode, string(text))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(text)}
	}

	var out Report
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		log.Error("failed to decode analysis response: %v", err)
		return nil, err
	}
	if out.Summary == "" {
		out.Summary = defaultSummary
	}
	if out.KeyMoments == nil {
		out.KeyMoments = []json.RawMessage{}
	}

	log.Info("analysis received: key_moments=%d", len(out.KeyMoments))
	return &out, nil
}
