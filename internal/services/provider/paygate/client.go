package paygate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"consult-system/internal/status"
)

type ClientConfig struct {
	BaseURL   string
	PartnerID string
	ClientID  string
	ClientKey string
	HMACKey   string
}

type Client struct {
	// baseURL is the base url of the paygate backend.
	baseURL string

	// partnerID identifies us to the paygate backend.
	partnerID string

	clientID  string
	clientKey string

	// hmacKey signs every request body.
	hmacKey string

	// accessToken authenticates with the paygate backend.
	accessToken string

	// mu guards accessToken.
	mu sync.Mutex

	// toggleTokenRefresher notifies the refresher to renew the token.
	toggleTokenRefresher chan struct{}

	hc *http.Client
}

func newClient(_ context.Context, c *ClientConfig) *Client {
	return &Client{
		baseURL:   c.BaseURL,
		partnerID: c.PartnerID,
		clientID:  c.ClientID,
		clientKey: c.ClientKey,
		hmacKey:   c.HMACKey,

		// buffered so a 401 handler never blocks on the refresher
		toggleTokenRefresher: make(chan struct{}, 1),

		hc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// notifyAccessTokenExpired renews the access token on a fixed period
// and on demand, reconnecting with exponential backoff.
func (c *Client) notifyAccessTokenExpired(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Minute)
	for {
		select {
		case <-ctx.Done():
			ticker.Stop()
			return

		case <-ticker.C:

		case <-c.toggleTokenRefresher:
			log.Println("paygate: refreshing access token on demand")
		}

		backOff := time.Second

	Retry:
		for {
			token, err := c.connect(ctx)
			switch err {
			case nil:
				c.setAccessToken(token)

				break Retry

			default:
				log.Printf("paygate: token refresh: %v", err)
				select {
				case <-ctx.Done():
					return

				case <-time.After(backOff):
					backOff *= 2
				}
			}
		}
	}
}

func (c *Client) setAccessToken(accessToken string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = accessToken
}

func (c *Client) getAccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

// connect authenticates with the paygate backend.
func (c *Client) connect(ctx context.Context) (string, error) {
	number, err := randomNumber()
	if err != nil {
		return "", fmt.Errorf("paygate connect: randomNumber: %v", err)
	}

	body := fmt.Sprintf(`{"requestId":%q,"partnerId":%q,"clientId":%q,"clientSecret":%q}`, number, c.partnerID, c.clientID, c.clientKey)
	bodyReader := bytes.NewReader([]byte(body))

	_baseURL, _ := url.Parse(c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s%s", _baseURL.String(), "/api/partner/authenticate"), bodyReader)
	if err != nil {
		return "", fmt.Errorf("paygate connect: http.NewReq: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("SignedHash", Hmac256([]byte(body), []byte(c.hmacKey)))

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("paygate connect: http.Do: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.toggleTokenRefresher <- struct{}{}
		return "", errors.New("paygate connect: 401 unauthorized")
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("paygate connect: unexpected status %d", resp.StatusCode)
	}

	var reply struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Data    struct {
			AccessToken string `json:"accessToken"`
			TokenType   string `json:"tokenType"`
		} `json:"data"`
	}
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&reply); err != nil {
		return "", fmt.Errorf("paygate connect: json.Decode: %v", err)
	}
	if reply.Status != "OK" {
		return "", fmt.Errorf("paygate connect: status %v: %v", reply.Status, reply.Message)
	}

	accessToken := fmt.Sprintf("%s %s", reply.Data.TokenType, reply.Data.AccessToken)
	return accessToken, nil
}

// getQRFromPaygate registers the charge and returns the EMV QR payload.
func (c *Client) getQRFromPaygate(ctx context.Context, f *status.ChargeForm) (string, error) {
	number, err := randomNumber()
	if err != nil {
		return "", fmt.Errorf("paygate generateQr: randomNumber: %v", err)
	}

	body := fmt.Sprintf(`{"requestId":%q,"partnerId":%q,"txnAmount":%s,"merchantId":%q,"billNumber":%q,"referenceLabel":%q,"mobileNo":%q}`,
		number, c.partnerID, f.Amount, f.MerchantID, f.ProviderPaymentID, f.Reference, f.Phone)
	bodyReader := bytes.NewReader([]byte(body))

	_baseURL, _ := url.Parse(c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s%s", _baseURL.String(), "/api/partner/generateQr"), bodyReader)
	if err != nil {
		return "", fmt.Errorf("paygate generateQr: http.NewReq: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("SignedHash", Hmac256([]byte(body), []byte(c.hmacKey)))
	req.Header.Set("Authorization", c.getAccessToken())

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("paygate generateQr: http.Do: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.toggleTokenRefresher <- struct{}{}
		return "", errors.New("paygate generateQr: 401 unauthorized")
	}

	var reply struct {
		Message string `json:"message"`
		Status  string `json:"status"`
		Data    struct {
			MerchantID string `json:"mcid"`
			EmvCode    string `json:"emv"`
		} `json:"data"`
	}
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&reply); err != nil {
		return "", fmt.Errorf("paygate generateQr: json.Decode: %w", err)
	}
	if reply.Status != "OK" {
		return "", fmt.Errorf("paygate generateQr: status %v: %v", reply.Status, reply.Message)
	}

	return reply.Data.EmvCode, nil
}

// checkPayment pulls the payment state from the paygate api.
func (c *Client) checkPayment(ctx context.Context, providerPaymentID string) (*status.ProviderEvent, error) {
	number, err := randomNumber()
	if err != nil {
		return nil, fmt.Errorf("paygate checkPayment: randomNumber: %v", err)
	}

	body := fmt.Sprintf(`{"requestId":%q,"billNumber":%q}`, number, providerPaymentID)
	bodyReader := bytes.NewReader([]byte(body))

	_baseURL, _ := url.Parse(c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s%s", _baseURL.String(), "/api/partner/checkTransaction"), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("paygate checkPayment: http.NewReq: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("SignedHash", Hmac256([]byte(body), []byte(c.hmacKey)))
	req.Header.Set("Authorization", c.getAccessToken())

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("paygate checkPayment: http.Do: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.toggleTokenRefresher <- struct{}{}
		return nil, errors.New("paygate checkPayment: 401 unauthorized")
	}

	var reply struct {
		Message string `json:"message"`
		Status  string `json:"status"`
		Data    struct {
			payload
		} `json:"data"`
	}
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&reply); err != nil {
		return nil, fmt.Errorf("paygate checkPayment: json.Decode: %v", err)
	}
	if reply.Status != "OK" {
		if reply.Status == "NOT_FOUND" {
			return nil, errors.New("payment not found")
		}
		return nil, fmt.Errorf("paygate checkPayment: status %v: %v", reply.Status, reply.Message)
	}

	event, err := reply.Data.payload.ToDomain()
	if err != nil {
		return nil, fmt.Errorf("paygate checkPayment: reply.Data: %v", err)
	}

	return event, nil
}
