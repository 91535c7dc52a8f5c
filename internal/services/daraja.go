package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/markjakearzadon/shoegame-gobackend/internal/apperr"
	"github.com/markjakearzadon/shoegame-gobackend/internal/models"
)

const (
	tokenPath   = "/oauth/v1/generate?grant_type=client_credentials"
	stkPushPath = "/mpesa/stkpush/v1/processrequest"

	maxUpstreamBody = 1 << 20
)

// DarajaClient talks to the Safaricom Daraja API.
type DarajaClient struct {
	baseURL        string
	consumerKey    string
	consumerSecret string
	httpClient     *http.Client
}

func NewDarajaClient(baseURL, consumerKey, consumerSecret string, timeout time.Duration) *DarajaClient {
	return &DarajaClient{
		baseURL:        baseURL,
		consumerKey:    consumerKey,
		consumerSecret: consumerSecret,
		httpClient:     &http.Client{Timeout: timeout},
	}
}

// AccessToken exchanges the consumer key and secret for a bearer token. A new
// token is requested on every call.
func (c *DarajaClient) AccessToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+tokenPath, nil)
	if err != nil {
		return "", &apperr.UpstreamAuthError{Message: "failed to create token request", Err: err}
	}
	auth := base64.StdEncoding.EncodeToString([]byte(c.consumerKey + ":" + c.consumerSecret))
	req.Header.Set("Authorization", "Basic "+auth)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &apperr.UpstreamAuthError{Message: "token request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
	if err != nil {
		return "", &apperr.UpstreamAuthError{Message: "failed to read token response", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &apperr.UpstreamAuthError{
			Message: fmt.Sprintf("token endpoint returned status %d", resp.StatusCode),
			Details: upstreamDetails(body),
		}
	}

	var token models.TokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return "", &apperr.UpstreamAuthError{Message: "failed to decode token response", Details: upstreamDetails(body), Err: err}
	}
	if token.AccessToken == "" {
		return "", &apperr.UpstreamAuthError{Message: "token response has no access_token", Details: upstreamDetails(body)}
	}
	return token.AccessToken, nil
}

// ProcessRequest posts an STK push payload and returns the gateway's
// acknowledgment body as received.
func (c *DarajaClient) ProcessRequest(ctx context.Context, token string, payload models.STKPushRequest) (json.RawMessage, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, &apperr.UpstreamGatewayError{Message: "failed to marshal stk push request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+stkPushPath, bytes.NewReader(reqBody))
	if err != nil {
		return nil, &apperr.UpstreamGatewayError{Message: "failed to create stk push request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &apperr.UpstreamGatewayError{Message: "stk push request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
	if err != nil {
		return nil, &apperr.UpstreamGatewayError{Message: "failed to read stk push response", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &apperr.UpstreamGatewayError{
			Message: fmt.Sprintf("stk push returned status %d", resp.StatusCode),
			Details: upstreamDetails(body),
		}
	}
	if !json.Valid(body) {
		return nil, &apperr.UpstreamGatewayError{
			Message: "stk push response is not JSON",
			Details: string(body),
			Err:     errors.New("invalid gateway response"),
		}
	}
	return json.RawMessage(body), nil
}

// stkTimestamp renders t as YYYYMMDDHHmmss in t's location.
func stkTimestamp(t time.Time) string {
	return t.Format("20060102150405")
}

// stkPassword is base64(shortcode + passkey + timestamp) as required by
// Lipa Na M-Pesa Online.
func stkPassword(shortcode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortcode + passkey + timestamp))
}

// upstreamDetails keeps JSON bodies structured and everything else as text.
func upstreamDetails(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	if json.Valid(body) {
		return json.RawMessage(append([]byte(nil), body...))
	}
	return string(body)
}
