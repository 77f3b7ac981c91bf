package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/erauner12/notarium-bridge/internal/errs"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	maxRetries            = 3
	defaultRetryAfter     = 5 * time.Second
	defaultIndexPageLimit = 100
)

// HTTPClient is the production Client implementation, modeled on the
// teacher's authenticated HTTP wrapper: per-attempt request cloning, a
// cached bearer token, and a single retry-interceptor switch.
type HTTPClient struct {
	authBaseURL string
	dataBaseURL string
	appID       string
	appKey      string

	httpClient *http.Client
	logger     zerolog.Logger
	limiter    *rate.Limiter

	mu       sync.Mutex
	token    string
	username string
	password string

	sf singleflight.Group
}

// NewHTTPClient constructs an HTTPClient. timeout is applied to every
// outbound request (from API_TIMEOUT_SECONDS, §6).
func NewHTTPClient(authBaseURL, dataBaseURL, appID, appKey string, timeout time.Duration, logger zerolog.Logger) *HTTPClient {
	return &HTTPClient{
		authBaseURL: authBaseURL,
		dataBaseURL: dataBaseURL,
		appID:       appID,
		appKey:      appKey,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger,
		limiter:     rate.NewLimiter(rate.Limit(20), 5),
	}
}

func (c *HTTPClient) currentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *HTTPClient) setToken(tok string) {
	c.mu.Lock()
	c.token = tok
	c.mu.Unlock()
}

func (c *HTTPClient) discardToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

// Authorize exchanges username/password for a bearer token (§4.1, §6).
func (c *HTTPClient) Authorize(ctx context.Context, username, password string) error {
	c.mu.Lock()
	c.username, c.password = username, password
	c.mu.Unlock()
	_, err, _ := c.sf.Do("authorize", func() (any, error) {
		return nil, c.authorize(ctx, username, password)
	})
	return err
}

// reauthorize collapses concurrent re-authorize attempts (triggered by
// simultaneous 401s from the sync engine and a tool handler) into one
// in-flight request via singleflight.
func (c *HTTPClient) reauthorize(ctx context.Context) error {
	c.mu.Lock()
	username, password := c.username, c.password
	c.mu.Unlock()
	_, err, _ := c.sf.Do("authorize", func() (any, error) {
		return nil, c.authorize(ctx, username, password)
	})
	return err
}

func (c *HTTPClient) authorize(ctx context.Context, username, password string) error {
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	endpoint := fmt.Sprintf("%s/%s/authorize/", c.authBaseURL, c.appID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return errs.NewInternal("building authorize request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-App-API-Key", c.appKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errs.NewTimeout(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return classifyStatus(resp.StatusCode, "authorize", readBody(resp))
	}

	var out struct {
		AccessToken string `json:"access_token"`
		UserID      string `json:"userid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return errs.NewBackend(errs.SubUnknown, resp.StatusCode, "malformed authorize response")
	}
	if out.AccessToken == "" {
		return errs.NewAuth("Invalid credentials")
	}
	c.setToken(out.AccessToken)
	return nil
}

// Index fetches one page of the bucket's index (§4.1, §6).
func (c *HTTPClient) Index(ctx context.Context, bucket string, opts IndexOpts) (IndexPage, error) {
	q := url.Values{}
	if opts.Since != "" {
		q.Set("since", opts.Since)
	}
	if opts.Mark != "" {
		q.Set("mark", opts.Mark)
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultIndexPageLimit
	}
	q.Set("limit", strconv.Itoa(limit))
	if opts.IncludeData {
		q.Set("data", "true")
	}

	endpoint := fmt.Sprintf("%s/%s/index?%s", c.dataBaseURL, bucket, q.Encode())
	resp, err := c.doAuthorized(ctx, http.MethodGet, endpoint, nil, nil)
	if err != nil {
		return IndexPage{}, err
	}
	defer resp.Body.Close()

	var wire struct {
		Index []struct {
			ID string          `json:"id"`
			V  int             `json:"v"`
			D  json.RawMessage `json:"d,omitempty"`
		} `json:"index"`
		Current string `json:"current"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return IndexPage{}, errs.NewBackend(errs.SubUnknown, resp.StatusCode, "malformed index response")
	}

	page := IndexPage{Cursor: wire.Current}
	for _, e := range wire.Index {
		entry := IndexEntry{ID: e.ID, Version: e.V}
		if len(e.D) > 0 {
			nd, derr := decodeNoteData(e.ID, e.V, e.D)
			if derr == nil {
				entry.Data = &nd
			}
		}
		page.Entries = append(page.Entries, entry)
	}
	return page, nil
}

// Fetch retrieves a single note's full data at a known version (§4.1, §6).
func (c *HTTPClient) Fetch(ctx context.Context, bucket, id string, version int) (NoteData, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return NoteData{}, errs.NewTimeout(err.Error())
	}
	endpoint := fmt.Sprintf("%s/%s/i/%s/v/%d", c.dataBaseURL, bucket, id, version)
	resp, err := c.doAuthorized(ctx, http.MethodGet, endpoint, nil, nil)
	if err != nil {
		return NoteData{}, err
	}
	defer resp.Body.Close()

	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return NoteData{}, errs.NewBackend(errs.SubUnknown, resp.StatusCode, "malformed fetch response")
	}
	body, _ := json.Marshal(raw)
	return decodeNoteData(id, version, body)
}

// Save creates or updates a note (§4.1, §6). baseVersion, when non-nil, is
// asserted via a conditional header for optimistic concurrency.
func (c *HTTPClient) Save(ctx context.Context, bucket, id string, payload NotePayload, baseVersion *int) (SaveResult, error) {
	body, _ := json.Marshal(map[string]any{
		"text":        payload.Text,
		"tags":        payload.Tags,
		"deleted":     payload.Deleted,
		"modified_at": payload.ModifiedAt,
		"created_at":  payload.CreatedAt,
	})

	endpoint := fmt.Sprintf("%s/%s/i/%s", c.dataBaseURL, bucket, id)
	if baseVersion != nil {
		endpoint = fmt.Sprintf("%s/v/%d", endpoint, *baseVersion)
	}

	extraHeaders := map[string]string{"Content-Type": "application/json"}
	if baseVersion != nil {
		extraHeaders["If-Match"] = strconv.Itoa(*baseVersion)
	}

	resp, err := c.doAuthorized(ctx, http.MethodPost, endpoint, bytes.NewReader(body), extraHeaders)
	if err != nil {
		return SaveResult{}, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	newVersion := 0
	versionHeader := resp.Header.Get("X-Version")
	if v, perr := strconv.Atoi(versionHeader); perr == nil {
		newVersion = v
	} else if baseVersion != nil {
		c.logger.Warn().Str("id", id).Msg("save response missing numeric version header, assuming base+1")
		newVersion = *baseVersion + 1
	} else {
		c.logger.Warn().Str("id", id).Msg("save response missing numeric version header on new note, assuming 0")
	}

	result := SaveResult{NewVersion: newVersion}
	if len(respBody) > 0 {
		if nd, derr := decodeNoteData(id, newVersion, respBody); derr == nil {
			result.Echoed = &nd
		}
	}
	return result, nil
}

// doAuthorized performs an HTTP call with the interceptor contract: token
// injection, one 401-triggered re-authorize-and-replay, bounded 429 retry
// honoring Retry-After, and status classification for everything else.
func (c *HTTPClient) doAuthorized(ctx context.Context, method, endpoint string, body io.Reader, extraHeaders map[string]string) (*http.Response, error) {
	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = io.ReadAll(body)
		if err != nil {
			return nil, errs.NewInternal("reading request body", err)
		}
	}
	return c.attempt(ctx, method, endpoint, bodyBytes, extraHeaders, 0, false)
}

func (c *HTTPClient) attempt(ctx context.Context, method, endpoint string, bodyBytes []byte, extraHeaders map[string]string, retryCount int, reauthed bool) (*http.Response, error) {
	var bodyReader io.Reader
	if bodyBytes != nil {
		bodyReader = bytes.NewReader(bodyBytes)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return nil, errs.NewInternal("building request", err)
	}
	req.Header.Set("X-App-API-Key", c.appKey)
	req.Header.Set("X-Correlation-ID", uuid.New().String())
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}
	if tok := c.currentToken(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errs.NewTimeout(err.Error())
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		resp.Body.Close()
		if reauthed {
			return nil, errs.NewAuth("Invalid credentials")
		}
		c.discardToken()
		if err := c.reauthorize(ctx); err != nil {
			return nil, err
		}
		return c.attempt(ctx, method, endpoint, bodyBytes, extraHeaders, retryCount, true)

	case http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		resp.Body.Close()
		if retryCount >= maxRetries {
			return nil, errs.NewBackend(errs.SubRateLimit, resp.StatusCode, "rate limited")
		}
		select {
		case <-time.After(retryAfter):
		case <-ctx.Done():
			return nil, errs.NewTimeout(ctx.Err().Error())
		}
		return c.attempt(ctx, method, endpoint, bodyBytes, extraHeaders, retryCount+1, reauthed)

	case http.StatusOK, http.StatusCreated:
		return resp, nil

	default:
		defer resp.Body.Close()
		return nil, classifyStatus(resp.StatusCode, method, readBody(resp))
	}
}

func classifyStatus(status int, op string, body string) error {
	switch status {
	case http.StatusNotFound:
		return errs.NewNotFound(op)
	case http.StatusConflict, http.StatusPreconditionFailed:
		return errs.NewBackend(errs.SubConflict, status, "version conflict").WithResolution("re-fetch and re-apply")
	case http.StatusBadRequest:
		return errs.NewBackend(errs.SubValidationError, status, body)
	case http.StatusServiceUnavailable:
		return errs.NewBackend(errs.SubUnavailable, status, body)
	default:
		return errs.NewBackend(errs.SubUnknown, status, body)
	}
}

func readBody(resp *http.Response) string {
	b, _ := io.ReadAll(resp.Body)
	return string(b)
}

func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return defaultRetryAfter
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return defaultRetryAfter
}

func decodeNoteData(id string, version int, raw json.RawMessage) (NoteData, error) {
	var wire struct {
		Text       string   `json:"text"`
		Tags       []string `json:"tags"`
		ModifiedAt int64    `json:"modified_at"`
		CreatedAt  int64    `json:"created_at"`
		Deleted    bool     `json:"deleted"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return NoteData{}, errs.NewBackend(errs.SubUnknown, 0, "malformed note payload")
	}
	return NoteData{
		ID:         id,
		Text:       wire.Text,
		Tags:       wire.Tags,
		ModifiedAt: wire.ModifiedAt,
		CreatedAt:  wire.CreatedAt,
		Deleted:    wire.Deleted,
		Version:    version,
	}, nil
}
