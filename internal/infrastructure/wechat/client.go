// Package wechat implements the payment gateway client, the retry
// decorator and the notification crypto provider for the WeChat Pay v3 API.
package wechat

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/lumacart/order-gateway/internal/application"
	"github.com/lumacart/order-gateway/internal/config"
)

const authorizationScheme = "WECHATPAY2-SHA256-RSA2048"

type Client struct {
	baseURL         string
	appID           string
	mchID           string
	serialNo        string
	notifyURL       string
	refundNotifyURL string
	privateKey      *rsa.PrivateKey
	httpClient      *http.Client
}

func NewClient(cfg config.WeChatConfig, privateKey *rsa.PrivateKey) application.GatewayClient {
	return &Client{
		baseURL:         cfg.BaseURL,
		appID:           cfg.AppID,
		mchID:           cfg.MchID,
		serialNo:        cfg.SerialNo,
		notifyURL:       cfg.NotifyURL,
		refundNotifyURL: cfg.RefundNotifyURL,
		privateKey:      privateKey,
		httpClient: &http.Client{
			Timeout: cfg.ConnTimeout,
		},
	}
}

func (c *Client) CreatePayment(ctx context.Context, req application.CreatePaymentRequest) (*application.PrepayHandle, error) {
	body := createPaymentRequest{
		AppID:       c.appID,
		MchID:       c.mchID,
		Description: req.Description,
		OrderNo:     req.OrderNo,
		NotifyURL:   c.notifyURL,
		Amount:      amount{Total: req.AmountCents, Currency: "CNY"},
		Payer:       payer{OpenID: req.PayerID},
	}

	resp, err := sendRequest[createPaymentRequest, createPaymentResponse](c, ctx, http.MethodPost, "/v3/pay/transactions/jsapi", &body)
	if err != nil {
		return nil, err
	}

	return c.prepayHandle(resp.PrepayID)
}

func (c *Client) QueryByOrderNo(ctx context.Context, orderNo string) (*application.OrderQueryResponse, error) {
	path := fmt.Sprintf("/v3/pay/transactions/out-trade-no/%s?mchid=%s", url.PathEscape(orderNo), c.mchID)

	resp, err := sendRequest[any, queryOrderResponse](c, ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return &application.OrderQueryResponse{
		TradeState:    application.TradeState(resp.TradeState),
		TransactionID: resp.TransactionID,
	}, nil
}

func (c *Client) CloseOrder(ctx context.Context, orderNo string) error {
	path := fmt.Sprintf("/v3/pay/transactions/out-trade-no/%s/close", url.PathEscape(orderNo))

	body := closeOrderRequest{MchID: c.mchID}
	_, err := sendRequest[closeOrderRequest, struct{}](c, ctx, http.MethodPost, path, &body)
	return err
}

func (c *Client) CreateRefund(ctx context.Context, req application.CreateRefundRequest) (application.RefundStatus, error) {
	body := createRefundRequest{
		OrderNo:   req.OrderNo,
		RefundNo:  req.RefundNo,
		NotifyURL: c.refundNotifyURL,
		Amount: refundAmount{
			Refund:   req.AmountCents,
			Total:    req.AmountCents,
			Currency: "CNY",
		},
	}

	resp, err := sendRequest[createRefundRequest, createRefundResponse](c, ctx, http.MethodPost, "/v3/refund/domestic/refunds", &body)
	if err != nil {
		return "", err
	}
	return application.RefundStatus(resp.Status), nil
}

func (c *Client) QueryRefund(ctx context.Context, refundNo string) (*application.RefundQueryResponse, error) {
	path := "/v3/refund/domestic/refunds/" + url.PathEscape(refundNo)

	resp, err := sendRequest[any, queryRefundResponse](c, ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	return &application.RefundQueryResponse{
		Status:           application.RefundStatus(resp.Status),
		Channel:          resp.Channel,
		ExternalRefundID: resp.RefundID,
	}, nil
}

// prepayHandle signs the client-side payment sheet invocation for the
// returned prepay id: appid, timestamp, nonce and package, newline
// terminated, RSA-SHA256 over the merchant private key.
func (c *Client) prepayHandle(prepayID string) (*application.PrepayHandle, error) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	nonce := uuid.NewString()
	pkg := "prepay_id=" + prepayID

	message := c.appID + "\n" + timestamp + "\n" + nonce + "\n" + pkg + "\n"
	signature, err := c.sign([]byte(message))
	if err != nil {
		return nil, fmt.Errorf("sign prepay handle: %w", err)
	}

	return &application.PrepayHandle{
		PrepayID:  prepayID,
		AppID:     c.appID,
		TimeStamp: timestamp,
		NonceStr:  nonce,
		Package:   pkg,
		SignType:  "RSA",
		PaySign:   signature,
	}, nil
}

func (c *Client) sign(message []byte) (string, error) {
	hashed := sha256.Sum256(message)
	signature, err := rsa.SignPKCS1v15(rand.Reader, c.privateKey, crypto.SHA256, hashed[:])
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(signature), nil
}

// authorization builds the v3 request signature header over
// method, canonical URL, timestamp, nonce and body.
func (c *Client) authorization(method, canonicalURL string, body []byte) (string, error) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	nonce := uuid.NewString()

	message := method + "\n" + canonicalURL + "\n" + timestamp + "\n" + nonce + "\n" + string(body) + "\n"
	signature, err := c.sign([]byte(message))
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(
		`%s mchid="%s",nonce_str="%s",signature="%s",timestamp="%s",serial_no="%s"`,
		authorizationScheme, c.mchID, nonce, signature, timestamp, c.serialNo,
	), nil
}

func sendRequest[Req any, Resp any](c *Client, ctx context.Context, method, path string, reqBody *Req) (*Resp, error) {
	var bodyBytes []byte
	if reqBody != nil {
		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("error marshalling json: %w", err)
		}
		bodyBytes = jsonData
	}

	var bodyReader io.Reader
	if bodyBytes != nil {
		bodyReader = bytes.NewReader(bodyBytes)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	auth, err := c.authorization(method, path, bodyBytes)
	if err != nil {
		return nil, fmt.Errorf("error signing request: %w", err)
	}
	httpReq.Header.Set("Authorization", auth)
	httpReq.Header.Set("Accept", "application/json")
	if bodyBytes != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		var gwErrResp gatewayErrorResponse
		if err := json.Unmarshal(body, &gwErrResp); err != nil {
			return nil, fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, string(body))
		}
		return nil, &GatewayError{
			Code:       gwErrResp.Code,
			Message:    gwErrResp.Message,
			StatusCode: resp.StatusCode,
		}
	}

	var gwResp Resp
	if resp.StatusCode == http.StatusNoContent || resp.ContentLength == 0 {
		return &gwResp, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(&gwResp); err != nil {
		return nil, fmt.Errorf("error decoding json response: %w", err)
	}

	return &gwResp, nil
}
