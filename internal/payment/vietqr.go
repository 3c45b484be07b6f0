package payment

import (
	"context"
	"fmt"
	"net/url"

	"github.com/LVQT-ss/SHOPC-sub000/config"
	"github.com/LVQT-ss/SHOPC-sub000/internal/models"
)

// VietQRProvider renders bank-transfer QR codes against a fixed receiving
// account. There is no gateway callback; reconciliation happens manually or
// through the generic status poll, which reports pending until an operator
// confirms the transfer.
type VietQRProvider struct {
	cfg config.VietQRConfig
}

func NewVietQRProvider(cfg config.VietQRConfig) *VietQRProvider {
	return &VietQRProvider{cfg: cfg}
}

// PayloadURL builds the transfer URL for an order total. The amount is the
// quantity-weighted order total, matching the stored Order.Total.
func (p *VietQRProvider) PayloadURL(order *models.Order) string {
	q := url.Values{}
	q.Set("amount", order.Total.StringFixed(0))
	q.Set("addInfo", fmt.Sprintf("SHOPC %d", order.OrderNumber))
	q.Set("accountName", p.cfg.AccountName)

	return fmt.Sprintf("%s/%s-%s-compact2.png?%s",
		p.cfg.ImageURL, p.cfg.BankID, p.cfg.AccountNo, q.Encode())
}

func (p *VietQRProvider) Initiate(_ context.Context, order *models.Order, reference, _ string) (*InitiateResult, error) {
	payload := p.PayloadURL(order)
	image, err := EncodeQR(payload)
	if err != nil {
		return nil, err
	}

	return &InitiateResult{
		PayURL:    payload,
		QRImage:   image,
		Reference: reference,
	}, nil
}

func (p *VietQRProvider) VerifyCallback(url.Values) (*CallbackResult, error) {
	return nil, ErrNotSupported
}

func (p *VietQRProvider) PollStatus(context.Context, *models.Transaction) (Status, error) {
	return StatusPending, nil
}
