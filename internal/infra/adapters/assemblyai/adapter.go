package assemblyai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"transcribe-jobs/internal/domain"
	"transcribe-jobs/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.TranscriptionAdapter = (*Adapter)(nil)

// DefaultBaseURL is the public v2 API.
const DefaultBaseURL = "https://api.assemblyai.com/v2"

// maxErrorBody bounds how much of a failed response is kept for error messages.
const maxErrorBody = 4096

// Config contains transcription client configuration.
type Config struct {
	BaseURL       string
	APIKey        string
	Timeout       time.Duration
	ResultField   string
	IABCategories bool
	UserAgent     string
}

// Adapter implements adapter.TranscriptionAdapter against an AssemblyAI-shaped API:
//
//	POST {base}/upload                 streamed binary -> {"upload_url": ...}
//	POST {base}/transcript             {"audio_url": ...} -> {"id": ...}
//	GET  {base}/transcript/{id}        -> {"status": ..., <result field>: ...}
//	GET  {base}/transcript/{id}/{sub}  -> pass-through JSON
//
// Authorization: <API key> (no Bearer prefix).
type Adapter struct {
	cfg    Config
	base   string
	client *http.Client
}

func New(cfg Config) (*Adapter, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("transcription api key empty")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.ResultField == "" {
		cfg.ResultField = "iab_categories_result"
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "transcribe-jobs/1.0"
	}
	return &Adapter{
		cfg:  cfg,
		base: strings.TrimRight(cfg.BaseURL, "/"),
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// WithHTTPClient swaps the underlying client, mainly for tests.
func (a *Adapter) WithHTTPClient(c *http.Client) *Adapter {
	a.client = c
	return a
}

// HTTPError is a non-2xx response from the service.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("transcription api http %d", e.StatusCode)
	}
	return fmt.Sprintf("transcription api http %d: %s", e.StatusCode, e.Body)
}

// HTTPStatus exposes the status code without callers depending on this package.
func (e *HTTPError) HTTPStatus() int { return e.StatusCode }

func (a *Adapter) Upload(ctx context.Context, body io.Reader) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.base+"/upload", body)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	// Unknown length: the body is sent with chunked transfer encoding.
	req.ContentLength = -1
	req.Header.Set("Content-Type", "application/octet-stream")

	var payload struct {
		UploadURL string `json:"upload_url"`
	}
	if err := a.do(req, &payload); err != nil {
		return "", err
	}
	if payload.UploadURL == "" {
		return "", fmt.Errorf("upload response: %w: upload_url", domain.ErrMissingField)
	}
	return payload.UploadURL, nil
}

func (a *Adapter) CreateJob(ctx context.Context, jr adapter.JobRequest) (string, error) {
	if jr.AudioURL == "" {
		return "", fmt.Errorf("%w: audio url is empty", domain.ErrInvalidArgument)
	}
	body := make(map[string]any, len(jr.Metadata)+2)
	for k, v := range jr.Metadata {
		body[k] = v
	}
	if a.cfg.IABCategories {
		body["iab_categories"] = true
	}
	body["audio_url"] = jr.AudioURL

	b, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode job request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.base+"/transcript", bytes.NewReader(b))
	if err != nil {
		return "", fmt.Errorf("build job request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var payload struct {
		ID string `json:"id"`
	}
	if err := a.do(req, &payload); err != nil {
		return "", err
	}
	if payload.ID == "" {
		return "", fmt.Errorf("job response: %w: id", domain.ErrMissingField)
	}
	return payload.ID, nil
}

func (a *Adapter) GetStatus(ctx context.Context, jobID string) (adapter.RemoteStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.jobURL(jobID), nil)
	if err != nil {
		return adapter.RemoteStatus{}, fmt.Errorf("build status request: %w", err)
	}

	var raw json.RawMessage
	if err := a.do(req, &raw); err != nil {
		return adapter.RemoteStatus{}, err
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return adapter.RemoteStatus{}, fmt.Errorf("decode status: %w", err)
	}

	st := adapter.RemoteStatus{ID: jobID, Raw: raw}
	if v, ok := doc["status"]; ok {
		if err := json.Unmarshal(v, &st.Status); err != nil {
			return adapter.RemoteStatus{}, fmt.Errorf("decode status field: %w", err)
		}
	} else {
		return adapter.RemoteStatus{}, fmt.Errorf("status response: %w: status", domain.ErrMissingField)
	}
	if v, ok := doc["id"]; ok {
		_ = json.Unmarshal(v, &st.ID)
	}
	if v, ok := doc["error"]; ok {
		_ = json.Unmarshal(v, &st.Error)
	}
	if v, ok := doc[a.cfg.ResultField]; ok && !isNull(v) {
		st.Result = v
	}
	return st, nil
}

func (a *Adapter) GetSubResource(ctx context.Context, jobID, name string) (json.RawMessage, error) {
	if name == "" || strings.Contains(name, "/") {
		return nil, fmt.Errorf("%w: sub-resource %q", domain.ErrInvalidArgument, name)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.jobURL(jobID)+"/"+name, nil)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", name, err)
	}
	var raw json.RawMessage
	if err := a.do(req, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (a *Adapter) jobURL(jobID string) string {
	return a.base + "/transcript/" + url.PathEscape(jobID)
}

// do sends req with auth headers and decodes a 2xx JSON body into out.
func (a *Adapter) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", a.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", a.cfg.UserAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func isNull(v json.RawMessage) bool {
	return len(bytes.TrimSpace(v)) == 0 || string(bytes.TrimSpace(v)) == "null"
}
