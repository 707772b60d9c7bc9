package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bioscout-islamabad/bioscout/internal/apperr"
	"github.com/bioscout-islamabad/bioscout/internal/metrics"
)

// DefaultTimeout bounds every upstream call when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// maxErrorBody caps how much of a failed response body is read.
const maxErrorBody = 64 << 10

// Client is the shared HTTP plumbing for the upstream BioScout API.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewClient builds a client for baseURL (for example http://localhost:5000).
// A zero timeout falls back to DefaultTimeout; the client never waits forever.
func NewClient(baseURL string, timeout time.Duration, log *zap.Logger, m *metrics.Metrics) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log.Named("upstream"),
		metrics: m,
	}
}

// HTTPClient exposes the transport, so tests can attach httpmock.
func (c *Client) HTTPClient() *http.Client { return c.http }

// errorBody is the upstream's failure envelope. Flask handlers use "error",
// the stats endpoints use "message".
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (e errorBody) text() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}

func (c *Client) getJSON(ctx context.Context, op, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return apperr.Network(op, err)
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req, op, dst)
}

func (c *Client) postJSON(ctx context.Context, op, path string, body, dst any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return apperr.Network(op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.do(req, op, dst)
}

// formFile is one file part of a multipart body.
type formFile struct {
	field, name string
	r           io.Reader
}

func (c *Client) postMultipart(ctx context.Context, op, path string, fields map[string]string, file *formFile, dst any) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return fmt.Errorf("%s: write field %s: %w", op, k, err)
		}
	}
	if file != nil {
		part, err := w.CreateFormFile(file.field, file.name)
		if err != nil {
			return fmt.Errorf("%s: create file part: %w", op, err)
		}
		if _, err := io.Copy(part, file.r); err != nil {
			return fmt.Errorf("%s: copy file part: %w", op, err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%s: close multipart: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return apperr.Network(op, err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	return c.do(req, op, dst)
}

// do sends req and decodes a 2xx JSON body into dst. Failures come back as
// *apperr.Error: transport problems as network/timeout/cancelled, non-2xx as
// server errors carrying the body's error or message text.
func (c *Client) do(req *http.Request, op string, dst any) error {
	start := time.Now()
	outcome := "ok"
	defer func() {
		c.metrics.ObserveUpstream(op, outcome, time.Since(start))
	}()

	c.log.Debug("upstream request", zap.String("op", op), zap.String("method", req.Method), zap.String("url", req.URL.String()))

	resp, err := c.http.Do(req)
	if err != nil {
		err = apperr.Network(op, err)
		outcome = string(apperr.KindOf(err))
		c.log.Warn("upstream request failed", zap.String("op", op), zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var eb errorBody
		_ = json.Unmarshal(body, &eb)
		outcome = string(apperr.KindServer)
		c.log.Warn("upstream returned an error",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
			zap.String("message", eb.text()))
		return apperr.Server(op, resp.StatusCode, eb.text())
	}

	if dst == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		outcome = "decode"
		c.log.Warn("malformed upstream response", zap.String("op", op), zap.Error(err))
		return &apperr.Error{Kind: apperr.KindServer, Op: op, Status: resp.StatusCode, Err: err}
	}
	return nil
}
