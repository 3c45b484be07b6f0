package payment

import (
	"context"
	"encoding/base64"
	"errors"
	"net/url"

	"github.com/shopspring/decimal"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/LVQT-ss/SHOPC-sub000/internal/models"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusFailed  Status = "failed"
)

var (
	ErrInvalidSignature = errors.New("callback signature mismatch")
	ErrNotSupported     = errors.New("operation not supported by this provider")
)

type InitiateResult struct {
	PayURL    string `json:"pay_url"`
	QRImage   string `json:"qr_image,omitempty"` // base64 PNG data URI, empty for redirect-only providers
	Reference string `json:"reference"`
}

type CallbackResult struct {
	Reference      string
	ResponseCode   string
	Success        bool
	ReceivedAmount decimal.Decimal
}

// Provider is one concrete payment integration. Initiate starts a payment
// attempt, VerifyCallback authenticates a gateway callback, PollStatus asks
// the gateway for the current state of an attempt.
type Provider interface {
	Initiate(ctx context.Context, order *models.Order, reference, clientIP string) (*InitiateResult, error)
	VerifyCallback(params url.Values) (*CallbackResult, error)
	PollStatus(ctx context.Context, txn *models.Transaction) (Status, error)
}

// EncodeQR renders a payload as a scannable PNG and returns it as a data URI.
func EncodeQR(payload string) (string, error) {
	png, err := qrcode.Encode(payload, qrcode.Medium, 256)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
