package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"club-registration/internal/models"
)

const contentType = "text/plain;charset=utf-8"

// WebApp is the spreadsheet web app deployment: GET ?fetch=<resource> and
// POST {path, data} against <base><deployment>/exec.
type WebApp struct {
	url string
	hc  *http.Client
	log *slog.Logger
}

func NewWebApp(baseURL, deploymentID string, timeout time.Duration, logger *slog.Logger) (*WebApp, error) {
	baseURL = strings.TrimSpace(baseURL)
	deploymentID = strings.TrimSpace(deploymentID)
	if baseURL == "" {
		return nil, fmt.Errorf("web app base url is empty")
	}
	if deploymentID == "" {
		return nil, fmt.Errorf("web app deployment id is empty")
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebApp{
		url: baseURL + deploymentID + "/exec",
		hc:  &http.Client{Timeout: timeout},
		log: logger,
	}, nil
}

// NewWebAppURL points at a full exec URL. Used by tests.
func NewWebAppURL(execURL string, hc *http.Client, logger *slog.Logger) *WebApp {
	if hc == nil {
		hc = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebApp{url: execURL, hc: hc, log: logger}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error interface{}     `json:"error"`
}

func (w *WebApp) FetchRaw(ctx context.Context, resource string) (json.RawMessage, error) {
	q := url.Values{"fetch": []string{resource}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.url+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	body, err := w.do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", resource, err)
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("fetch %s: %w: %v", resource, ErrAPI, err)
	}
	if env.Error != nil && env.Error != false && env.Error != "" {
		return nil, fmt.Errorf("fetch %s: %w: %v", resource, ErrAPI, env.Error)
	}
	return env.Data, nil
}

// Fetch returns the rows of resource. Entries that are not arrays are dropped.
func (w *WebApp) Fetch(ctx context.Context, resource string) ([]models.Row, error) {
	data, err := w.FetchRaw(ctx, resource)
	if err != nil {
		return nil, err
	}
	rows, dropped, err := DecodeRows(data)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", resource, err)
	}
	if dropped > 0 {
		w.log.Debug("dropped malformed rows", "resource", resource, "count", dropped)
	}
	return rows, nil
}

// DecodeRows splits a JSON array into rows, skipping malformed entries, and
// reports how many it skipped. A missing or null payload is an empty result.
func DecodeRows(data json.RawMessage) ([]models.Row, int, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return []models.Row{}, 0, nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, 0, fmt.Errorf("%w: data is not a list", ErrAPI)
	}
	rows := make([]models.Row, 0, len(raw))
	dropped := 0
	for _, r := range raw {
		var row models.Row
		if err := json.Unmarshal(r, &row); err != nil || row == nil {
			dropped++
			continue
		}
		rows = append(rows, row)
	}
	return rows, dropped, nil
}

func (w *WebApp) Post(ctx context.Context, r Request) (Response, error) {
	payload, err := json.Marshal(r)
	if err != nil {
		return Response{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return Response{}, err
	}
	req.Header.Set("Content-Type", contentType)
	body, err := w.do(req)
	if err != nil {
		return Response{}, fmt.Errorf("post %s/%s: %w", r.Path.Role, r.Path.Operation, err)
	}
	return Response{Body: body}, nil
}

func (w *WebApp) do(req *http.Request) ([]byte, error) {
	resp, err := w.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: http %d", ErrAPI, resp.StatusCode)
	}
	return body, nil
}
