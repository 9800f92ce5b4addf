// Package sanitize removes personally identifiable information from free
// text before it is staged. Detection and redaction are delegated to an
// external backend; when the backend is missing or failing, text passes
// through unredacted so the pipeline keeps running. Operators must treat a
// stream of redaction warnings as a privacy incident, not noise.
package sanitize

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/redlake/redlake/internal/logging"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Detector finds and redacts sensitive spans in text.
type Detector interface {
	// DetectAndRedact returns text with all detected spans replaced.
	// Returning the input unchanged means zero spans were found.
	DetectAndRedact(ctx context.Context, text, language string) (string, error)
}

// Sanitizer wraps a Detector with the pipeline's degradation policy.
type Sanitizer struct {
	detector Detector
	language string
}

// New creates a Sanitizer for a fixed language. A nil detector yields a
// pass-through sanitizer.
func New(detector Detector) *Sanitizer {
	if d, ok := detector.(*HTTPDetector); ok && d == nil {
		detector = nil
	}
	return &Sanitizer{detector: detector, language: "en"}
}

// Available reports whether a redaction backend is configured.
func (s *Sanitizer) Available() bool {
	return s.detector != nil
}

// Clean returns text with PII redacted. Empty input is returned unchanged.
// Backend errors degrade to returning the original text after a warning.
func (s *Sanitizer) Clean(ctx context.Context, text string) string {
	if text == "" {
		return text
	}
	if s.detector == nil {
		return text
	}

	redacted, err := s.detector.DetectAndRedact(ctx, text, s.language)
	if err != nil {
		logging.Warn("redaction failed, passing text through", "error", err)
		return text
	}
	return redacted
}

// HTTPDetector talks to a Presidio-compatible analyze/anonymize service.
type HTTPDetector struct {
	analyzeURL   string
	anonymizeURL string
	client       *http.Client
}

// NewHTTPDetector creates a detector against a Presidio-style service root,
// e.g. "http://presidio:8080". Returns nil for an empty base URL so callers
// can pass the result straight to New.
func NewHTTPDetector(baseURL string) *HTTPDetector {
	if baseURL == "" {
		return nil
	}
	return &HTTPDetector{
		analyzeURL:   baseURL + "/analyze",
		anonymizeURL: baseURL + "/anonymize",
		client:       &http.Client{Timeout: 10 * time.Second},
	}
}

type analyzeRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

type analyzerResult struct {
	EntityType string  `json:"entity_type"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Score      float64 `json:"score"`
}

type anonymizeRequest struct {
	Text            string           `json:"text"`
	AnalyzerResults []analyzerResult `json:"analyzer_results"`
}

type anonymizeResponse struct {
	Text string `json:"text"`
}

// DetectAndRedact runs analyze then anonymize. Zero detected spans short
// circuits without the anonymize round-trip.
func (d *HTTPDetector) DetectAndRedact(ctx context.Context, text, language string) (string, error) {
	var results []analyzerResult
	if err := d.post(ctx, d.analyzeURL, analyzeRequest{Text: text, Language: language}, &results); err != nil {
		return "", fmt.Errorf("analyze: %w", err)
	}
	if len(results) == 0 {
		return text, nil
	}

	var resp anonymizeResponse
	if err := d.post(ctx, d.anonymizeURL, anonymizeRequest{Text: text, AnalyzerResults: results}, &resp); err != nil {
		return "", fmt.Errorf("anonymize: %w", err)
	}
	return resp.Text, nil
}

func (d *HTTPDetector) post(ctx context.Context, endpoint string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}
