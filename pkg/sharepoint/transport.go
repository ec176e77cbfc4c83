package sharepoint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/nais/spdocs/pkg/metrics"
)

// Microsoft Graph API endpoint.
const graphAPIEndpoint = "https://graph.microsoft.com/v1.0"

const (
	// Refresh the token when it expires within this margin.
	tokenExpiryMargin = 300 * time.Second
	requestTimeout    = 30 * time.Second
	maxAttempts       = 3
	initialRetryDelay = 1 * time.Second
)

// transport performs authenticated Graph calls, masking transient failures
// with bounded retries. It owns the current access token; one transport
// belongs to one client instance and is not safe for concurrent use.
type transport struct {
	provider   TokenProvider
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	retryDelay time.Duration
	token      *AccessToken
}

func newTransport(provider TokenProvider) *transport {
	return &transport{
		provider:   provider,
		httpClient: &http.Client{Timeout: requestTimeout},
		// Microsoft Graph allows roughly 10000 requests per 10 minutes;
		// stay well below that.
		limiter:    rate.NewLimiter(rate.Limit(10), 15),
		baseURL:    graphAPIEndpoint,
		retryDelay: initialRetryDelay,
	}
}

// ensureToken refreshes the access token when there is none yet, or when the
// current one expires within the safety margin.
func (t *transport) ensureToken(ctx context.Context) error {
	if t.token != nil && time.Until(t.token.ExpiresAt) > tokenExpiryMargin {
		return nil
	}
	log.Info("Getting new access token")
	token, err := t.provider.Token(ctx)
	if err != nil {
		return fmt.Errorf("get access token: %w", err)
	}
	t.token = &token
	log.Infof("Token acquired, expires at: %s", token.ExpiresAt.Format(time.RFC3339))
	return nil
}

// execute issues one authenticated request against the Graph API and returns
// the response body. All failures, including non-2xx statuses, are retried
// up to maxAttempts with exponential backoff; the last cause is wrapped in a
// TransportError when retries are exhausted.
func (t *transport) execute(ctx context.Context, method, endpoint string, query url.Values, body interface{}) ([]byte, error) {
	if err := t.ensureToken(ctx); err != nil {
		return nil, err
	}

	requestURL := t.baseURL + endpoint
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
	}

	delay := t.retryDelay
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		log.Infof("Making %s request to %s with params: %v", method, requestURL, query)
		metrics.GraphRequests.Inc()

		responseBody, err := t.attempt(ctx, method, requestURL, payload)
		if err == nil {
			return responseBody, nil
		}
		lastErr = err

		if attempt < maxAttempts {
			log.Warnf("Request failed (attempt %d/%d): %s. Retrying in %s...", attempt, maxAttempts, err, delay)
			metrics.GraphRetries.Inc()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	log.Errorf("Request failed after %d attempts: %s", maxAttempts, lastErr)
	return nil, &TransportError{Method: method, Endpoint: endpoint, Attempts: maxAttempts, Err: lastErr}
}

func (t *transport) attempt(ctx context.Context, method, requestURL string, payload []byte) ([]byte, error) {
	var requestBody io.Reader
	if payload != nil {
		requestBody = bytes.NewReader(payload)
	}

	request, err := http.NewRequestWithContext(ctx, method, requestURL, requestBody)
	if err != nil {
		return nil, err
	}
	request.Header.Set("Authorization", "Bearer "+t.token.Value)
	request.Header.Set("Content-Type", "application/json")

	response, err := t.httpClient.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, err
	}

	if response.StatusCode > 299 {
		return nil, fmt.Errorf("%s: %s", response.Status, string(responseBody))
	}

	return responseBody, nil
}
