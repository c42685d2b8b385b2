package socialstats

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/errors"
	"github.com/go-resty/resty/v2"

	"github.com/ovalfantasy/ovalsync/internal/scrape"
)

// ClientConfig tunes the REST client shared by the API-backed sources.
type ClientConfig struct {
	UserAgent   string
	Timeout     time.Duration
	MaxAttempts int
	BackoffStep time.Duration
	Limiter     scrape.Limiter
	// Transport overrides the HTTP transport (tests).
	Transport http.RoundTripper
}

// NewRestClient builds a resty client that retries transport errors, 429s and
// 5xx responses with linear backoff and waits on the limiter before every try.
func NewRestClient(cfg ClientConfig) *resty.Client {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	client := resty.New()
	if cfg.Transport != nil {
		client.SetTransport(cfg.Transport)
	}
	client.SetTimeout(cfg.Timeout)
	client.SetHeader("Accept", "application/json")
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}
	client.SetJSONUnmarshaler(sonic.Unmarshal)

	client.SetRetryCount(cfg.MaxAttempts - 1)
	if cfg.BackoffStep > 0 {
		step := cfg.BackoffStep
		client.SetRetryWaitTime(step)
		client.SetRetryMaxWaitTime(step * time.Duration(cfg.MaxAttempts))
		client.SetRetryAfter(func(_ *resty.Client, resp *resty.Response) (time.Duration, error) {
			return step * time.Duration(resp.Request.Attempt), nil
		})
	} else {
		client.SetRetryWaitTime(time.Nanosecond)
		client.SetRetryMaxWaitTime(time.Nanosecond)
	}
	client.AddRetryCondition(func(resp *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return resp != nil && retryableStatus(resp.StatusCode())
	})

	if cfg.Limiter != nil {
		limiter := cfg.Limiter
		client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return limiter.Wait(req.Context(), req.URL)
		})
	}
	return client
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// request describes one GET against a platform API. Label is used in errors
// in place of the URL so access tokens in query strings never leak.
type request struct {
	Label   string
	URL     string
	Query   map[string]string
	Bearer  string
	Headers map[string]string
}

// getJSON performs the request and decodes the body into target. Transport
// and status failures are fetch failures; undecodable bodies are parse failures.
func getJSON(ctx context.Context, client *resty.Client, r request, target any) error {
	req := client.R().SetContext(ctx)
	if len(r.Query) > 0 {
		req.SetQueryParams(r.Query)
	}
	if len(r.Headers) > 0 {
		req.SetHeaders(r.Headers)
	}
	if r.Bearer != "" {
		req.SetAuthToken(r.Bearer)
	}
	resp, err := req.Get(r.URL)
	if err != nil {
		return scrape.FetchFailed(withoutURL(err), "%s", r.Label)
	}
	if resp.IsError() {
		return scrape.FetchFailed(nil, "%s: unexpected status %d", r.Label, resp.StatusCode())
	}
	if err := sonic.Unmarshal(resp.Body(), target); err != nil {
		return scrape.ParseFailed(err, "%s: decode response", r.Label)
	}
	return nil
}

// withoutURL drops the request URL, and the credentials in its query string,
// from transport errors.
func withoutURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return errors.Newf("%s request failed: %v", urlErr.Op, urlErr.Err)
	}
	return err
}
