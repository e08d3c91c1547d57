package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sethvargo/go-retry"
	"github.com/sony/gobreaker"

	"github.com/marketline/orders-service/internal/domain"
	"github.com/marketline/orders-service/internal/logger"
)

const (
	Name        = "momo"
	requestType = "payWithMethod"
)

type Config struct {
	PartnerCode string
	AccessKey   string
	SecretKey   string
	CreateURL   string
	RedirectURL string
	IPNURL      string
	Timeout     time.Duration
}

type Client struct {
	cfg     Config
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker
	// now is swappable so request ids are deterministic in tests.
	now func() time.Time
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg: cfg,
		http: resty.New().
			SetTimeout(cfg.Timeout).
			SetRetryCount(0),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        Name,
			MaxRequests: 3,
			Interval:    15 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				logger.Warn("gateway breaker state changed", "from", from.String(), "to", to.String())
			},
		}),
		now: time.Now,
	}
}

type createRequest struct {
	PartnerCode string `json:"partnerCode"`
	RequestID   string `json:"requestId"`
	Amount      int64  `json:"amount"`
	OrderID     string `json:"orderId"`
	OrderInfo   string `json:"orderInfo"`
	RedirectURL string `json:"redirectUrl"`
	IPNURL      string `json:"ipnUrl"`
	RequestType string `json:"requestType"`
	ExtraData   string `json:"extraData"`
	Lang        string `json:"lang"`
	AutoCapture bool   `json:"autoCapture"`
	Signature   string `json:"signature"`
}

// Callback is the gateway's IPN payload. resultCode 0 means the payment
// succeeded; anything else, including 9000 (authorized but not captured),
// is treated as a failure.
type Callback struct {
	PartnerCode  string `json:"partnerCode"`
	OrderID      string `json:"orderId"`
	RequestID    string `json:"requestId"`
	Amount       int64  `json:"amount"`
	OrderInfo    string `json:"orderInfo"`
	OrderType    string `json:"orderType"`
	TransID      string `json:"transId"`
	ResultCode   int    `json:"resultCode"`
	Message      string `json:"message"`
	PayType      string `json:"payType"`
	ResponseTime int64  `json:"responseTime"`
	ExtraData    string `json:"extraData"`
	Signature    string `json:"signature"`
}

func (cb *Callback) Succeeded() bool {
	return cb.ResultCode == 0
}

func (c *Client) sign(raw string) string {
	mac := hmac.New(sha256.New, []byte(c.cfg.SecretKey))
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

// createSigningString builds the canonical string for the create request.
// The field order is fixed by the gateway contract and must not change.
func (c *Client) createSigningString(amount int64, orderID, orderInfo, requestID string) string {
	return "accessKey=" + c.cfg.AccessKey +
		"&amount=" + strconv.FormatInt(amount, 10) +
		"&extraData=" +
		"&ipnUrl=" + c.cfg.IPNURL +
		"&orderId=" + orderID +
		"&orderInfo=" + orderInfo +
		"&partnerCode=" + c.cfg.PartnerCode +
		"&redirectUrl=" + c.cfg.RedirectURL +
		"&requestId=" + requestID +
		"&requestType=" + requestType
}

// callbackSigningString mirrors the gateway's documented IPN signature layout.
func (c *Client) callbackSigningString(cb *Callback) string {
	return "accessKey=" + c.cfg.AccessKey +
		"&amount=" + strconv.FormatInt(cb.Amount, 10) +
		"&extraData=" + cb.ExtraData +
		"&message=" + cb.Message +
		"&orderId=" + cb.OrderID +
		"&orderInfo=" + cb.OrderInfo +
		"&orderType=" + cb.OrderType +
		"&partnerCode=" + cb.PartnerCode +
		"&payType=" + cb.PayType +
		"&requestId=" + cb.RequestID +
		"&responseTime=" + strconv.FormatInt(cb.ResponseTime, 10) +
		"&resultCode=" + strconv.Itoa(cb.ResultCode) +
		"&transId=" + cb.TransID
}

// VerifyCallback checks the inbound IPN signature before any side effect runs.
func (c *Client) VerifyCallback(cb *Callback) error {
	want := c.sign(c.callbackSigningString(cb))
	if !hmac.Equal([]byte(want), []byte(cb.Signature)) {
		return domain.ErrBadSignature
	}
	return nil
}

// CreatePaymentRequest signs and posts a payment creation request, returning
// the gateway's response verbatim (it carries the payUrl the client follows).
func (c *Client) CreatePaymentRequest(ctx context.Context, orderID string, amount int64) (json.RawMessage, error) {
	requestID := orderID + strconv.FormatInt(c.now().UnixMilli(), 10)
	orderInfo := "pay order " + orderID

	body := createRequest{
		PartnerCode: c.cfg.PartnerCode,
		RequestID:   requestID,
		Amount:      amount,
		OrderID:     orderID,
		OrderInfo:   orderInfo,
		RedirectURL: c.cfg.RedirectURL,
		IPNURL:      c.cfg.IPNURL,
		RequestType: requestType,
		ExtraData:   "",
		Lang:        "en",
		AutoCapture: true,
		Signature:   c.sign(c.createSigningString(amount, orderID, orderInfo, requestID)),
	}

	var payload json.RawMessage
	backoff := retry.WithMaxRetries(2, retry.NewFibonacci(200*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		result, err := c.breaker.Execute(func() (interface{}, error) {
			resp, err := c.http.R().
				SetContext(ctx).
				SetHeader("Content-Type", "application/json").
				SetBody(body).
				Post(c.cfg.CreateURL)
			if err != nil {
				if isTimeout(err) {
					return nil, domain.ErrGatewayTimeout
				}
				// Transport errors are worth another attempt.
				return nil, retry.RetryableError(fmt.Errorf("%w: %v", domain.ErrGateway, err))
			}
			if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
				return nil, fmt.Errorf("%w: status %d: %s", domain.ErrGateway, resp.StatusCode(), resp.String())
			}
			return json.RawMessage(resp.Body()), nil
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return fmt.Errorf("%w: circuit open", domain.ErrGateway)
			}
			return err
		}
		payload = result.(json.RawMessage)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
