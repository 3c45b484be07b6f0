package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/LVQT-ss/SHOPC-sub000/config"
	"github.com/LVQT-ss/SHOPC-sub000/internal/models"
	"github.com/LVQT-ss/SHOPC-sub000/internal/payment"
)

// stubProvider counts gateway polls so tests can assert that resolved
// transactions never hit the gateway again.
type stubProvider struct {
	pollStatus payment.Status
	pollErr    error
	pollCalls  int
}

func (s *stubProvider) Initiate(_ context.Context, _ *models.Order, reference, _ string) (*payment.InitiateResult, error) {
	return &payment.InitiateResult{PayURL: "https://gateway.example.com/pay", Reference: reference}, nil
}

func (s *stubProvider) VerifyCallback(url.Values) (*payment.CallbackResult, error) {
	return nil, payment.ErrNotSupported
}

func (s *stubProvider) PollStatus(context.Context, *models.Transaction) (payment.Status, error) {
	s.pollCalls++
	return s.pollStatus, s.pollErr
}

func transactionRouter(h *TransactionHandler) *gin.Engine {
	r := gin.New()
	r.POST("/transactions", h.CreateTransaction)
	r.POST("/transactions/vietqr/:orderID", h.GenerateVietQR)
	r.POST("/transactions/qr/:orderID", h.GenerateQRCode)
	r.POST("/transactions/vnpay", h.CreateVNPayPayment)
	r.GET("/transactions/vnpay/return", h.VNPayReturn)
	r.GET("/transactions/status", h.CheckPaymentStatus)
	r.POST("/transactions/cancel/:orderID", h.CancelTransaction)
	return r
}

func createTestTransaction(t *testing.T, db *gorm.DB, orderID uint, reference, method, status string, amount string) *models.Transaction {
	t.Helper()

	txn := models.Transaction{
		TransactionNumber: reference,
		OrderID:           orderID,
		TotalAmount:       decimal.RequireFromString(amount),
		ReceivedAmount:    decimal.RequireFromString(amount),
		PaymentMethod:     method,
		Status:            status,
	}
	if err := db.Create(&txn).Error; err != nil {
		t.Fatalf("failed to create transaction: %v", err)
	}
	return &txn
}

func testVNPayConfig() config.VNPayConfig {
	return config.VNPayConfig{
		TmnCode:    "SHOPC001",
		HashSecret: "handler-test-vnpay-secret",
		PayURL:     "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		APIURL:     "https://sandbox.vnpayment.vn/merchant_webapi/api/transaction",
		ReturnURL:  "https://shop.example.com/api/v1/transactions/vnpay/return",
	}
}

func TestTransactionReferencesNeverCollide(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		ref := newTransactionNumber()
		if !strings.HasPrefix(ref, "TRX-") {
			t.Fatalf("reference %s lacks the TRX- timestamp prefix", ref)
		}
		if seen[ref] {
			t.Fatalf("reference %s generated twice", ref)
		}
		seen[ref] = true
	}
}

func TestBackToBackAttemptsForDifferentOrders(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "buyer", models.RoleCustomer)
	first := createTestOrder(t, db, user.ID, models.OrderStatusPending, "100.00")
	second := createTestOrder(t, db, user.ID, models.OrderStatusPending, "200.00")

	h := &TransactionHandler{Providers: map[string]payment.Provider{}}
	r := transactionRouter(h)

	// Same-millisecond submissions for different orders must both succeed.
	for _, order := range []*models.Order{first, second} {
		w := performRequest(r, http.MethodPost, "/transactions", CreateTransactionRequest{OrderID: order.ID}, nil)
		if w.Code != http.StatusCreated {
			t.Fatalf("attempt for order %d: status = %d, body = %s", order.ID, w.Code, w.Body.String())
		}
	}

	var refs []models.Transaction
	if err := db.Find(&refs).Error; err != nil {
		t.Fatalf("failed to load transactions: %v", err)
	}
	if len(refs) != 2 || refs[0].TransactionNumber == refs[1].TransactionNumber {
		t.Errorf("transactions = %+v, want two rows with distinct references", refs)
	}
}

func TestDuplicateKeyLoserGetsInvalidState(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "buyer", models.RoleCustomer)
	taken := createTestOrder(t, db, user.ID, models.OrderStatusAwaitingPayment, "100.00")
	createTestTransaction(t, db, taken.ID, "TRX-1700000000000-aabbccdd", models.PaymentMethodQRCode, models.TransactionStatusPending, "100.00")
	order := createTestOrder(t, db, user.ID, models.OrderStatusPending, "200.00")

	// A reference already on the unique column stands in for the insert a
	// concurrent request committed between the existence check and Create.
	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := createTransactionTx(tx, order.ID, models.PaymentMethodQRCode, "TRX-1700000000000-aabbccdd")
		return err
	})
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState for a duplicate-key insert", err)
	}

	var count int64
	db.Model(&models.Transaction{}).Where("order_id = ?", order.ID).Count(&count)
	if count != 0 {
		t.Errorf("transaction rows for losing order = %d, want 0", count)
	}
}

func TestCreateTransactionOpensAttempt(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "buyer", models.RoleCustomer)
	order := createTestOrder(t, db, user.ID, models.OrderStatusPending, "250.00")

	h := &TransactionHandler{Providers: map[string]payment.Provider{}}
	r := transactionRouter(h)

	w := performRequest(r, http.MethodPost, "/transactions", CreateTransactionRequest{
		OrderID:       order.ID,
		PaymentMethod: models.PaymentMethodQRCode,
	}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var txn models.Transaction
	if err := db.Where("order_id = ?", order.ID).First(&txn).Error; err != nil {
		t.Fatalf("transaction row missing: %v", err)
	}
	if !txn.TotalAmount.Equal(order.Total) {
		t.Errorf("total_amount = %s, want the order total %s", txn.TotalAmount, order.Total)
	}
	if txn.Status != models.TransactionStatusPending {
		t.Errorf("status = %s, want pending", txn.Status)
	}

	var reloaded models.Order
	db.First(&reloaded, order.ID)
	if reloaded.Status != models.OrderStatusAwaitingPayment {
		t.Errorf("order status = %s, want awaiting_payment", reloaded.Status)
	}
}

func TestCreateTransactionRequiresPendingOrder(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "buyer", models.RoleCustomer)
	order := createTestOrder(t, db, user.ID, models.OrderStatusPaid, "250.00")

	h := &TransactionHandler{Providers: map[string]payment.Provider{}}
	r := transactionRouter(h)

	w := performRequest(r, http.MethodPost, "/transactions", CreateTransactionRequest{
		OrderID: order.ID,
	}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for a paid order", w.Code)
	}

	var count int64
	db.Model(&models.Transaction{}).Count(&count)
	if count != 0 {
		t.Errorf("transaction rows = %d, want 0 after rejected attempt", count)
	}
}

func TestSecondPaymentAttemptBlocked(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "buyer", models.RoleCustomer)
	order := createTestOrder(t, db, user.ID, models.OrderStatusPending, "250.00")

	h := &TransactionHandler{Providers: map[string]payment.Provider{}}
	r := transactionRouter(h)

	w := performRequest(r, http.MethodPost, "/transactions", CreateTransactionRequest{OrderID: order.ID}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("first attempt status = %d", w.Code)
	}

	w = performRequest(r, http.MethodPost, "/transactions", CreateTransactionRequest{OrderID: order.ID}, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("second attempt status = %d, want 400", w.Code)
	}

	var count int64
	db.Model(&models.Transaction{}).Where("order_id = ?", order.ID).Count(&count)
	if count != 1 {
		t.Errorf("transaction rows = %d, want exactly 1 per order", count)
	}
}

func TestCancelReleasesOrderAndReusesRow(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "buyer", models.RoleCustomer)
	order := createTestOrder(t, db, user.ID, models.OrderStatusPending, "250.00")

	h := &TransactionHandler{Providers: map[string]payment.Provider{}}
	r := transactionRouter(h)

	w := performRequest(r, http.MethodPost, "/transactions", CreateTransactionRequest{OrderID: order.ID}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("first attempt status = %d", w.Code)
	}
	var first models.Transaction
	db.Where("order_id = ?", order.ID).First(&first)

	w = performRequest(r, http.MethodPost, fmt.Sprintf("/transactions/cancel/%d", order.ID), nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("cancel status = %d, body = %s", w.Code, w.Body.String())
	}

	var released models.Order
	db.First(&released, order.ID)
	if released.Status != models.OrderStatusPending {
		t.Errorf("order status after cancel = %s, want pending", released.Status)
	}

	// A fresh attempt reopens the cancelled row under the unique order index.
	w = performRequest(r, http.MethodPost, "/transactions", CreateTransactionRequest{
		OrderID:       order.ID,
		PaymentMethod: models.PaymentMethodVNPay,
	}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("retry status = %d, body = %s", w.Code, w.Body.String())
	}

	var second models.Transaction
	db.Where("order_id = ?", order.ID).First(&second)
	if second.ID != first.ID {
		t.Errorf("retry created row %d, want reopened row %d", second.ID, first.ID)
	}
	if second.Status != models.TransactionStatusPending || second.PaymentMethod != models.PaymentMethodVNPay {
		t.Errorf("reopened row = %+v, want pending vnpay attempt", second)
	}
	if second.TransactionNumber == first.TransactionNumber {
		t.Error("reopened attempt should carry a fresh reference")
	}
}

func TestCreateVNPayPaymentReturnsSignedURL(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "buyer", models.RoleCustomer)
	order := createTestOrder(t, db, user.ID, models.OrderStatusPending, "250.00")

	provider := payment.NewVNPayProvider(testVNPayConfig())
	h := &TransactionHandler{Providers: map[string]payment.Provider{models.PaymentMethodVNPay: provider}}
	r := transactionRouter(h)

	w := performRequest(r, http.MethodPost, "/transactions/vnpay", VNPayRequest{OrderID: order.ID}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var body struct {
		PaymentURL string `json:"payment_url"`
	}
	decodeJSON(t, w, &body)
	if !strings.HasPrefix(body.PaymentURL, testVNPayConfig().PayURL+"?") {
		t.Fatalf("payment_url = %s, want the gateway pay URL", body.PaymentURL)
	}
	parsed, err := url.Parse(body.PaymentURL)
	if err != nil {
		t.Fatalf("payment_url does not parse: %v", err)
	}
	q := parsed.Query()
	if q.Get("vnp_Amount") != "25000" {
		t.Errorf("vnp_Amount = %s, want 25000 minor units", q.Get("vnp_Amount"))
	}
	if q.Get("vnp_SecureHash") == "" {
		t.Error("payment_url carries no signature")
	}

	var txn models.Transaction
	if err := db.Where("order_id = ?", order.ID).First(&txn).Error; err != nil {
		t.Fatalf("transaction row missing: %v", err)
	}
	if txn.TransactionNumber != q.Get("vnp_TxnRef") {
		t.Errorf("transaction reference %s does not match URL vnp_TxnRef %s",
			txn.TransactionNumber, q.Get("vnp_TxnRef"))
	}
}

func signedReturnQuery(p *payment.VNPayProvider, reference, amount, responseCode string) string {
	params := url.Values{}
	params.Set("vnp_TxnRef", reference)
	params.Set("vnp_Amount", amount)
	params.Set("vnp_ResponseCode", responseCode)
	params.Set("vnp_TransactionNo", "14226112")
	sig := p.Sign(params)
	return params.Encode() + "&vnp_SecureHash=" + sig
}

func TestVNPayReturnConfirmsPayment(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "buyer", models.RoleCustomer)
	order := createTestOrder(t, db, user.ID, models.OrderStatusAwaitingPayment, "250.00")
	createTestTransaction(t, db, order.ID, "TRX-RETURN-1", models.PaymentMethodVNPay, models.TransactionStatusPending, "250.00")

	provider := payment.NewVNPayProvider(testVNPayConfig())
	h := &TransactionHandler{Providers: map[string]payment.Provider{models.PaymentMethodVNPay: provider}}
	r := transactionRouter(h)

	query := signedReturnQuery(provider, "TRX-RETURN-1", "25000", "00")
	w := performRequest(r, http.MethodGet, "/transactions/vnpay/return?"+query, nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var txn models.Transaction
	db.Where("transaction_number = ?", "TRX-RETURN-1").First(&txn)
	if txn.Status != models.TransactionStatusCompleted {
		t.Errorf("transaction status = %s, want completed", txn.Status)
	}
	if !txn.ReceivedAmount.Equal(decimal.RequireFromString("250.00")) {
		t.Errorf("received_amount = %s, want 250.00", txn.ReceivedAmount)
	}

	var paid models.Order
	db.First(&paid, order.ID)
	if paid.Status != models.OrderStatusPaid {
		t.Errorf("order status = %s, want paid", paid.Status)
	}

	// A replayed callback acknowledges without re-applying.
	w = performRequest(r, http.MethodGet, "/transactions/vnpay/return?"+query, nil, nil)
	if w.Code != http.StatusOK {
		t.Errorf("replay status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "already confirmed") {
		t.Errorf("replay body = %s, want already-confirmed acknowledgement", w.Body.String())
	}
}

func TestVNPayReturnRejectsTamperedSignature(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "buyer", models.RoleCustomer)
	order := createTestOrder(t, db, user.ID, models.OrderStatusAwaitingPayment, "250.00")
	createTestTransaction(t, db, order.ID, "TRX-TAMPER-1", models.PaymentMethodVNPay, models.TransactionStatusPending, "250.00")

	provider := payment.NewVNPayProvider(testVNPayConfig())
	h := &TransactionHandler{Providers: map[string]payment.Provider{models.PaymentMethodVNPay: provider}}
	r := transactionRouter(h)

	// Signed for 25000 minor units, delivered claiming 99.
	query := signedReturnQuery(provider, "TRX-TAMPER-1", "25000", "00")
	query = strings.Replace(query, "vnp_Amount=25000", "vnp_Amount=99", 1)

	w := performRequest(r, http.MethodGet, "/transactions/vnpay/return?"+query, nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for tampered callback", w.Code)
	}

	var txn models.Transaction
	db.Where("transaction_number = ?", "TRX-TAMPER-1").First(&txn)
	if txn.Status != models.TransactionStatusPending {
		t.Errorf("transaction status = %s, tampered callback must not mutate", txn.Status)
	}
	var untouched models.Order
	db.First(&untouched, order.ID)
	if untouched.Status != models.OrderStatusAwaitingPayment {
		t.Errorf("order status = %s, tampered callback must not mutate", untouched.Status)
	}
}

func TestVNPayReturnFailureCodeMutatesNothing(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "buyer", models.RoleCustomer)
	order := createTestOrder(t, db, user.ID, models.OrderStatusAwaitingPayment, "250.00")
	createTestTransaction(t, db, order.ID, "TRX-FAIL-1", models.PaymentMethodVNPay, models.TransactionStatusPending, "250.00")

	provider := payment.NewVNPayProvider(testVNPayConfig())
	h := &TransactionHandler{Providers: map[string]payment.Provider{models.PaymentMethodVNPay: provider}}
	r := transactionRouter(h)

	query := signedReturnQuery(provider, "TRX-FAIL-1", "25000", "24")
	w := performRequest(r, http.MethodGet, "/transactions/vnpay/return?"+query, nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"success":false`) {
		t.Errorf("body = %s, want success:false", w.Body.String())
	}

	var txn models.Transaction
	db.Where("transaction_number = ?", "TRX-FAIL-1").First(&txn)
	if txn.Status != models.TransactionStatusPending {
		t.Errorf("transaction status = %s, failed callback must not mutate", txn.Status)
	}
}

func TestCheckPaymentStatusShortCircuitsResolved(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "buyer", models.RoleCustomer)
	order := createTestOrder(t, db, user.ID, models.OrderStatusAwaitingPayment, "250.00")
	createTestTransaction(t, db, order.ID, "TRX-POLL-1", models.PaymentMethodQRCode, models.TransactionStatusPending, "250.00")

	stub := &stubProvider{pollStatus: payment.StatusPaid}
	h := &TransactionHandler{Providers: map[string]payment.Provider{models.PaymentMethodQRCode: stub}}
	r := transactionRouter(h)

	path := fmt.Sprintf("/transactions/status?orderId=%d", order.ID)

	w := performRequest(r, http.MethodGet, path, nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if stub.pollCalls != 1 {
		t.Fatalf("poll calls = %d, want 1", stub.pollCalls)
	}

	var paid models.Order
	db.First(&paid, order.ID)
	if paid.Status != models.OrderStatusPaid {
		t.Errorf("order status = %s, want paid after confirmed poll", paid.Status)
	}

	// The completed transaction is answered from the database.
	w = performRequest(r, http.MethodGet, path, nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("second status call = %d", w.Code)
	}
	if stub.pollCalls != 1 {
		t.Errorf("poll calls after resolution = %d, want still 1", stub.pollCalls)
	}
}

func TestCheckPaymentStatusFailsLoudlyOnGatewayError(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "buyer", models.RoleCustomer)
	order := createTestOrder(t, db, user.ID, models.OrderStatusAwaitingPayment, "250.00")
	createTestTransaction(t, db, order.ID, "TRX-POLL-2", models.PaymentMethodQRCode, models.TransactionStatusPending, "250.00")

	stub := &stubProvider{pollErr: fmt.Errorf("gateway timeout")}
	h := &TransactionHandler{Providers: map[string]payment.Provider{models.PaymentMethodQRCode: stub}}
	r := transactionRouter(h)

	w := performRequest(r, http.MethodGet, fmt.Sprintf("/transactions/status?orderId=%d", order.ID), nil, nil)
	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502 when the gateway is unreachable", w.Code)
	}
}

func TestGenerateQRCodeReturnsScannableImage(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "buyer", models.RoleCustomer)
	order := createTestOrder(t, db, user.ID, models.OrderStatusPending, "250.00")

	h := &TransactionHandler{Providers: map[string]payment.Provider{}}
	r := transactionRouter(h)

	w := performRequest(r, http.MethodPost, fmt.Sprintf("/transactions/qr/%d", order.ID), nil, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var body struct {
		QRImage string `json:"qr_image"`
	}
	decodeJSON(t, w, &body)
	if !strings.HasPrefix(body.QRImage, "data:image/png;base64,") {
		t.Errorf("qr_image does not look like a PNG data URI: %.40s", body.QRImage)
	}

	var txn models.Transaction
	if err := db.Where("order_id = ?", order.ID).First(&txn).Error; err != nil {
		t.Fatalf("qr_code attempt should open a transaction: %v", err)
	}
	if txn.PaymentMethod != models.PaymentMethodQRCode {
		t.Errorf("payment_method = %s, want qr_code", txn.PaymentMethod)
	}
}

func TestGenerateVietQROpensNoAttempt(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "buyer", models.RoleCustomer)
	product := createTestProduct(t, db, "Product A", "125.00", models.ProductStatusActive)
	order := createTestOrder(t, db, user.ID, models.OrderStatusPending, "250.00")
	if err := db.Create(&models.OrderDetail{
		OrderID: order.ID, ProductID: product.ID, Quantity: 2, Price: product.Price,
	}).Error; err != nil {
		t.Fatalf("failed to create detail: %v", err)
	}

	provider := payment.NewVietQRProvider(config.VietQRConfig{
		BankID:      "970415",
		AccountNo:   "113366668888",
		AccountName: "SHOPC JSC",
		ImageURL:    "https://img.vietqr.io/image",
	})
	h := &TransactionHandler{Providers: map[string]payment.Provider{models.PaymentMethodVietQR: provider}}
	r := transactionRouter(h)

	w := performRequest(r, http.MethodPost, fmt.Sprintf("/transactions/vietqr/%d", order.ID), nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var body struct {
		QRImage    string          `json:"qr_image"`
		TotalPrice decimal.Decimal `json:"total_price"`
	}
	decodeJSON(t, w, &body)
	if !strings.HasPrefix(body.QRImage, "data:image/png;base64,") {
		t.Errorf("qr_image does not look like a PNG data URI: %.40s", body.QRImage)
	}
	if !body.TotalPrice.Equal(order.Total) {
		t.Errorf("total_price = %s, want %s", body.TotalPrice, order.Total)
	}

	var count int64
	db.Model(&models.Transaction{}).Count(&count)
	if count != 0 {
		t.Errorf("transaction rows = %d, the VietQR render must not open an attempt", count)
	}
}
