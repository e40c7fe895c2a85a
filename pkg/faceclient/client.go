// Package faceclient talks to the face recognition sidecar. The sidecar
// owns detection, encoding and liveness; this client only moves base64
// images and encodings across HTTP and maps the sidecar's decisions onto
// Go types.
package faceclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	faceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "las",
		Subsystem: "face",
		Name:      "request_duration_seconds",
		Help:      "Duration of face service requests",
	}, []string{"endpoint"})

	faceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "las",
		Subsystem: "face",
		Name:      "request_failures_total",
		Help:      "Number of failed face service requests",
	}, []string{"endpoint"})
)

// ErrRejected marks images the sidecar refused to work with: no face
// found, several faces, or a liveness failure. The wrapped message carries
// the sidecar's explanation.
var ErrRejected = errors.New("face rejected")

// Config defines connection options for the face service client.
type Config struct {
	BaseURL string
	// Threshold is a client-side confidence floor layered over the
	// service's own match decision. The service reports confidence as
	// one minus the encoding distance.
	Threshold float64
	Timeout   time.Duration
	Logger    zerolog.Logger
}

// Client is an HTTP client for the face recognition service.
type Client struct {
	http    *http.Client
	baseURL string
	cfg     Config
	tracer  trace.Tracer
	logger  zerolog.Logger
}

// Enrollment is the outcome of registering a face image.
type Enrollment struct {
	Encoding       []float64
	EncodingJSON   string
	AntiSpoofScore float64
}

// Verification is the outcome of authenticating an image against a stored encoding.
type Verification struct {
	Match          bool
	Confidence     float64
	Live           bool
	AntiSpoofScore float64
}

// New builds a face service client from the provided configuration.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("face service base url is required")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		cfg:     cfg,
		tracer:  otel.Tracer("github.com/yousiff139-lang/LAS/pkg/faceclient"),
		logger:  logger,
	}, nil
}

type registerResponse struct {
	Success        bool      `json:"success"`
	Encoding       []float64 `json:"encoding"`
	EncodingJSON   string    `json:"encoding_json"`
	IsReal         bool      `json:"is_real"`
	AntiSpoofScore float64   `json:"anti_spoof_score"`
	FacesDetected  int       `json:"faces_detected"`
	Message        string    `json:"message"`
}

// Register runs the liveness check and encoding pipeline for an enrollment
// image and returns the stored-form encoding.
func (c *Client) Register(parent context.Context, imageBase64 string) (Enrollment, error) {
	ctx, span := c.tracer.Start(parent, "face.register")
	defer span.End()

	var resp registerResponse
	if err := c.post(ctx, "/api/register", map[string]string{"image": imageBase64}, &resp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Enrollment{}, err
	}

	if !resp.Success {
		err := fmt.Errorf("%w: %s", ErrRejected, resp.Message)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Enrollment{}, err
	}

	span.SetAttributes(attribute.Int("faces_detected", resp.FacesDetected))
	return Enrollment{
		Encoding:       resp.Encoding,
		EncodingJSON:   resp.EncodingJSON,
		AntiSpoofScore: resp.AntiSpoofScore,
	}, nil
}

type authenticateResponse struct {
	Success        bool    `json:"success"`
	Match          bool    `json:"match"`
	IsReal         bool    `json:"is_real"`
	Confidence     float64 `json:"confidence"`
	AntiSpoofScore float64 `json:"anti_spoof_score"`
	FacesDetected  int     `json:"faces_detected"`
	Message        string  `json:"message"`
}

// Authenticate checks a capture against a stored encoding, liveness
// included. A clean non-match is not an error; ErrRejected covers images
// the service refused to judge.
func (c *Client) Authenticate(parent context.Context, imageBase64 string, knownEncoding []float64) (Verification, error) {
	ctx, span := c.tracer.Start(parent, "face.authenticate")
	defer span.End()

	request := map[string]interface{}{
		"image":          imageBase64,
		"known_encoding": knownEncoding,
	}

	var resp authenticateResponse
	if err := c.post(ctx, "/api/authenticate", request, &resp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Verification{}, err
	}

	if !resp.Success {
		err := fmt.Errorf("%w: %s", ErrRejected, resp.Message)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Verification{Live: resp.IsReal, AntiSpoofScore: resp.AntiSpoofScore}, err
	}

	match := resp.Match
	if match && c.cfg.Threshold > 0 && resp.Confidence < c.cfg.Threshold {
		c.logger.Debug().
			Float64("confidence", resp.Confidence).
			Float64("threshold", c.cfg.Threshold).
			Msg("match below confidence floor")
		match = false
	}

	span.SetAttributes(
		attribute.Bool("match", match),
		attribute.Float64("confidence", resp.Confidence),
	)
	return Verification{
		Match:          match,
		Confidence:     resp.Confidence,
		Live:           resp.IsReal,
		AntiSpoofScore: resp.AntiSpoofScore,
	}, nil
}

// Health probes the sidecar's health endpoint.
func (c *Client) Health(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("face service health: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("face service health: status %d", resp.StatusCode)
	}

	return nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	endpoint := strings.TrimPrefix(path, "/api/")
	start := time.Now()

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode face request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build face request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	faceDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		faceFailures.WithLabelValues(endpoint).Inc()
		return fmt.Errorf("face service %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		faceFailures.WithLabelValues(endpoint).Inc()
		var fail struct {
			Detail string `json:"detail"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&fail)
		if fail.Detail == "" {
			fail.Detail = resp.Status
		}
		return fmt.Errorf("face service %s: %s", path, fail.Detail)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		faceFailures.WithLabelValues(endpoint).Inc()
		return fmt.Errorf("decode face response: %w", err)
	}

	return nil
}
