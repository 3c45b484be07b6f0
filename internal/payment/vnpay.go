package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/LVQT-ss/SHOPC-sub000/config"
	"github.com/LVQT-ss/SHOPC-sub000/internal/models"
)

const (
	vnpVersion         = "2.1.0"
	vnpTimeFormat      = "20060102150405"
	vnpCodeSuccess     = "00"
	vnpTxnStatusPaid   = "00"
	vnpTxnStatusFailed = "02"
)

// VNPayProvider implements the VNPay redirect flow: signed pay URL out,
// signed callback in, querydr for polling.
type VNPayProvider struct {
	cfg    config.VNPayConfig
	client *http.Client
}

func NewVNPayProvider(cfg config.VNPayConfig) *VNPayProvider {
	return &VNPayProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Sign computes the HMAC-SHA512 signature over the sorted, URL-encoded
// parameter set. url.Values.Encode sorts by key, which makes the signature
// reproducible byte for byte from the same parameters regardless of insertion
// order.
func (p *VNPayProvider) Sign(params url.Values) string {
	mac := hmac.New(sha512.New, []byte(p.cfg.HashSecret))
	mac.Write([]byte(params.Encode()))
	return hex.EncodeToString(mac.Sum(nil))
}

// Initiate builds the signed redirect URL for an order. The amount is sent in
// minor units (total x 100) per the gateway contract.
func (p *VNPayProvider) Initiate(_ context.Context, order *models.Order, reference, clientIP string) (*InitiateResult, error) {
	amount := order.Total.Mul(decimal.NewFromInt(100))

	params := url.Values{}
	params.Set("vnp_Version", vnpVersion)
	params.Set("vnp_Command", "pay")
	params.Set("vnp_TmnCode", p.cfg.TmnCode)
	params.Set("vnp_Amount", amount.StringFixed(0))
	params.Set("vnp_CurrCode", "VND")
	params.Set("vnp_TxnRef", reference)
	params.Set("vnp_OrderInfo", fmt.Sprintf("Thanh toan don hang %d", order.OrderNumber))
	params.Set("vnp_OrderType", "other")
	params.Set("vnp_Locale", "vn")
	params.Set("vnp_ReturnUrl", p.cfg.ReturnURL)
	params.Set("vnp_IpAddr", clientIP)
	params.Set("vnp_CreateDate", time.Now().UTC().Format(vnpTimeFormat))

	query := params.Encode()
	signature := p.Sign(params)

	return &InitiateResult{
		PayURL:    p.cfg.PayURL + "?" + query + "&vnp_SecureHash=" + signature,
		Reference: reference,
	}, nil
}

// VerifyCallback strips the hash fields, recomputes the signature over the
// remaining parameters and compares in constant time. Nothing about the
// payment outcome is trusted before the signature matches.
func (p *VNPayProvider) VerifyCallback(params url.Values) (*CallbackResult, error) {
	received := params.Get("vnp_SecureHash")
	if received == "" {
		return nil, ErrInvalidSignature
	}

	clean := url.Values{}
	for key, values := range params {
		if key == "vnp_SecureHash" || key == "vnp_SecureHashType" {
			continue
		}
		for _, v := range values {
			clean.Add(key, v)
		}
	}

	expected := p.Sign(clean)
	if !hmac.Equal([]byte(strings.ToLower(received)), []byte(expected)) {
		return nil, ErrInvalidSignature
	}

	result := &CallbackResult{
		Reference:    clean.Get("vnp_TxnRef"),
		ResponseCode: clean.Get("vnp_ResponseCode"),
	}
	result.Success = result.ResponseCode == vnpCodeSuccess

	if raw := clean.Get("vnp_Amount"); raw != "" {
		if minor, err := strconv.ParseInt(raw, 10, 64); err == nil {
			result.ReceivedAmount = decimal.New(minor, -2)
		}
	}

	return result, nil
}

// PollStatus queries the gateway's querydr API for the state of a payment
// attempt. Gateway failures surface as errors; payment polling must fail
// loudly, unlike the best-effort geocoder lookups elsewhere.
func (p *VNPayProvider) PollStatus(ctx context.Context, txn *models.Transaction) (Status, error) {
	now := time.Now().UTC().Format(vnpTimeFormat)
	requestID := fmt.Sprintf("%s-%d", txn.TransactionNumber, time.Now().UnixNano())
	orderInfo := "Truy van giao dich " + txn.TransactionNumber
	txnDate := txn.CreatedAt.UTC().Format(vnpTimeFormat)

	// querydr signs a pipe-joined field list instead of the query encoding.
	signData := strings.Join([]string{
		requestID, vnpVersion, "querydr", p.cfg.TmnCode,
		txn.TransactionNumber, txnDate, now, "127.0.0.1", orderInfo,
	}, "|")
	mac := hmac.New(sha512.New, []byte(p.cfg.HashSecret))
	mac.Write([]byte(signData))

	body := map[string]string{
		"vnp_RequestId":       requestID,
		"vnp_Version":         vnpVersion,
		"vnp_Command":         "querydr",
		"vnp_TmnCode":         p.cfg.TmnCode,
		"vnp_TxnRef":          txn.TransactionNumber,
		"vnp_OrderInfo":       orderInfo,
		"vnp_TransactionDate": txnDate,
		"vnp_CreateDate":      now,
		"vnp_IpAddr":          "127.0.0.1",
		"vnp_SecureHash":      hex.EncodeToString(mac.Sum(nil)),
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return StatusPending, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.APIURL, bytes.NewReader(payload))
	if err != nil {
		return StatusPending, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return StatusPending, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return StatusPending, fmt.Errorf("querydr returned status %d", resp.StatusCode)
	}

	var out struct {
		ResponseCode      string `json:"vnp_ResponseCode"`
		TransactionStatus string `json:"vnp_TransactionStatus"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return StatusPending, err
	}
	if out.ResponseCode != vnpCodeSuccess {
		return StatusPending, fmt.Errorf("querydr rejected with code %s", out.ResponseCode)
	}

	switch out.TransactionStatus {
	case vnpTxnStatusPaid:
		return StatusPaid, nil
	case vnpTxnStatusFailed:
		return StatusFailed, nil
	default:
		return StatusPending, nil
	}
}
