package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// Gateway request/response headers.
const (
	HeaderChannelID = "X-Gateway-Channel-Id"
	HeaderNonce     = "X-Gateway-Nonce"
	HeaderSignature = "X-Gateway-Signature"
)

// successCode is the gateway's application-level success return code.
const successCode = "0000"

// Gateway API paths.
const (
	requestPath       = "/v3/payments/request"
	confirmPathFormat = "/v3/payments/requests/%s/confirm"
)

// Client timeouts.
const (
	clientTimeout         = 30 * time.Second
	dialTimeout           = 10 * time.Second
	tlsHandshakeTimeout   = 10 * time.Second
	responseHeaderTimeout = 15 * time.Second
)

// Gateway errors. Both classes leave the checkin PENDING; the caller
// decides whether they are retryable.
var (
	ErrGatewayUnavailable = errors.New("payment gateway unreachable")
	ErrGatewayDeclined    = errors.New("payment gateway returned a failure code")
)

// Gateway is the payment collaborator the reconciliation protocol needs:
// a signed create-payment request and a signed confirmation.
type Gateway interface {
	Request(ctx context.Context, input RequestInput) (*RequestResult, error)
	Confirm(ctx context.Context, transactionID string, amount int) error
}

// RequestInput describes a payment to initiate. The checkin id doubles as
// the gateway order id, which is how the confirm callback correlates back.
type RequestInput struct {
	CheckinID   string
	Amount      int
	ProductName string
}

// RequestResult is the gateway's answer to a create-payment request.
type RequestResult struct {
	TransactionID string
	PaymentURL    string
}

// Config holds the gateway client settings.
type Config struct {
	BaseURL       string // gateway API origin, sandbox or production
	ChannelID     string
	ChannelSecret string
	Currency      string
	ConfirmURL    string // where the gateway redirects the payer on success
	CancelURL     string
}

// Client calls the external payment gateway over HTTPS with signed requests.
type Client struct {
	cfg    Config
	signer *Signer
	http   *http.Client
}

// NewClient creates a gateway client.
func NewClient(cfg Config) *Client {
	return &Client{
		cfg:    cfg,
		signer: NewSigner(cfg.ChannelSecret),
		http:   newHTTPClient(),
	}
}

// newHTTPClient builds an HTTP client tuned for gateway calls.
// Redirects are not followed; the gateway answers with JSON bodies.
func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: clientTimeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   dialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   tlsHandshakeTimeout,
			ResponseHeaderTimeout: responseHeaderTimeout,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// gatewayEnvelope is the common response wrapper.
type gatewayEnvelope struct {
	ReturnCode    string          `json:"returnCode"`
	ReturnMessage string          `json:"returnMessage"`
	Info          json.RawMessage `json:"info"`
}

type requestInfo struct {
	TransactionID string `json:"transactionId"`
	PaymentURL    struct {
		Web string `json:"web"`
	} `json:"paymentUrl"`
}

type packageProduct struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    int    `json:"price"`
}

type requestPackage struct {
	ID       string           `json:"id"`
	Amount   int              `json:"amount"`
	Name     string           `json:"name"`
	Products []packageProduct `json:"products"`
}

type requestBody struct {
	Amount       int              `json:"amount"`
	Currency     string           `json:"currency"`
	OrderID      string           `json:"orderId"`
	Packages     []requestPackage `json:"packages"`
	RedirectURLs struct {
		ConfirmURL string `json:"confirmUrl"`
		CancelURL  string `json:"cancelUrl"`
	} `json:"redirectUrls"`
}

type confirmBody struct {
	Amount   int    `json:"amount"`
	Currency string `json:"currency"`
}

// Request initiates a payment and returns the transaction id and the URL
// the payer must be redirected to.
func (c *Client) Request(ctx context.Context, input RequestInput) (*RequestResult, error) {
	body := requestBody{
		Amount:   input.Amount,
		Currency: c.cfg.Currency,
		OrderID:  input.CheckinID,
		Packages: []requestPackage{
			{
				ID:     "facility-checkin",
				Amount: input.Amount,
				Name:   input.ProductName,
				Products: []packageProduct{
					{Name: input.ProductName, Quantity: 1, Price: input.Amount},
				},
			},
		},
	}
	body.RedirectURLs.ConfirmURL = c.cfg.ConfirmURL
	body.RedirectURLs.CancelURL = c.cfg.CancelURL

	var info requestInfo
	if err := c.post(ctx, requestPath, body, &info); err != nil {
		return nil, err
	}

	return &RequestResult{
		TransactionID: info.TransactionID,
		PaymentURL:    info.PaymentURL.Web,
	}, nil
}

// Confirm captures a payment the payer approved. The amount must equal the
// amount of the original request or the gateway declines.
func (c *Client) Confirm(ctx context.Context, transactionID string, amount int) error {
	path := fmt.Sprintf(confirmPathFormat, transactionID)
	body := confirmBody{Amount: amount, Currency: c.cfg.Currency}
	return c.post(ctx, path, body, nil)
}

// post sends a signed JSON request and decodes the envelope.
// The signature covers the exact serialized body, so the payload is
// marshalled once and reused for both signing and sending.
func (c *Client) post(ctx context.Context, path string, body any, info any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal gateway request: %w", err)
	}

	nonce := c.signer.Nonce()
	signature := c.signer.Sign(path, payload, nonce)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderChannelID, c.cfg.ChannelID)
	req.Header.Set(HeaderNonce, nonce)
	req.Header.Set(HeaderSignature, signature)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrGatewayUnavailable, err)
	}

	var envelope gatewayEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrGatewayUnavailable, err)
	}

	if envelope.ReturnCode != successCode {
		return fmt.Errorf("%w: code=%s message=%s", ErrGatewayDeclined, envelope.ReturnCode, envelope.ReturnMessage)
	}

	if info != nil {
		if err := json.Unmarshal(envelope.Info, info); err != nil {
			return fmt.Errorf("%w: decode info: %v", ErrGatewayUnavailable, err)
		}
	}

	return nil
}
