package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/wxpay-bridge/internal/config"
	"github.com/wxpay-bridge/internal/constants"
	"github.com/wxpay-bridge/internal/metrics"
	"github.com/wxpay-bridge/internal/models"
	"github.com/wxpay-bridge/internal/payment/wxpay"
	"github.com/wxpay-bridge/internal/queue"
	"github.com/wxpay-bridge/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gorm.io/gorm"
)

const (
	testAppID      = "wx2421b1c4370ec43b"
	testMchID      = "10000100"
	testPartnerKey = "192006250b4c09247ec02edce69f6a2d"
)

// fakeWechatGateway 按接口路径返回预置报文
type fakeWechatGateway struct {
	mu       sync.Mutex
	calls    map[string]int
	requests map[string]wxpay.Params
	respond  func(path string, req wxpay.Params) []byte
}

func (g *fakeWechatGateway) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read request failed: %v", err)
			return
		}
		req, err := wxpay.DecodeXML(raw)
		if err != nil {
			t.Errorf("decode request failed: %v", err)
			return
		}
		g.mu.Lock()
		g.calls[r.URL.Path]++
		g.requests[r.URL.Path] = req
		respond := g.respond
		g.mu.Unlock()
		_, _ = w.Write(respond(r.URL.Path, req))
	}
}

func (g *fakeWechatGateway) setRespond(respond func(path string, req wxpay.Params) []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.respond = respond
}

func (g *fakeWechatGateway) callCount(path string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[path]
}

func (g *fakeWechatGateway) lastRequest(path string) wxpay.Params {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.requests[path]
}

func signedXML(t *testing.T, params wxpay.Params) []byte {
	t.Helper()
	out := params.Clone()
	out[wxpay.FieldSign] = wxpay.Sign(out, testPartnerKey)
	body, err := wxpay.EncodeXML(out)
	if err != nil {
		t.Fatalf("encode xml failed: %v", err)
	}
	return body
}

func tamperedXML(t *testing.T, params wxpay.Params) []byte {
	t.Helper()
	out := params.Clone()
	out[wxpay.FieldSign] = "00000000000000000000000000000000"
	body, err := wxpay.EncodeXML(out)
	if err != nil {
		t.Fatalf("encode xml failed: %v", err)
	}
	return body
}

type paymentServiceFixture struct {
	svc     *PaymentService
	db      *gorm.DB
	gateway *fakeWechatGateway
	metrics *metrics.Metrics
	notify  repository.NotificationRepository
}

func setupPaymentServiceTest(t *testing.T, respond func(path string, req wxpay.Params) []byte) *paymentServiceFixture {
	t.Helper()
	dsn := fmt.Sprintf("file:payment_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := models.Migrate(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	gateway := &fakeWechatGateway{
		calls:    map[string]int{},
		requests: map[string]wxpay.Params{},
		respond:  respond,
	}
	server := httptest.NewServer(gateway.handler(t))
	t.Cleanup(server.Close)

	m := metrics.New(prometheus.NewRegistry())
	exchangeRepo := repository.NewExchangeRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	client, err := wxpay.NewClient(
		wxpay.Credentials{AppID: testAppID, MchID: testMchID, PartnerKey: testPartnerKey},
		wxpay.WithBaseURL(server.URL),
		wxpay.WithObserver(wxpay.Observers(m.Observer(), NewExchangeRecorder(exchangeRepo).Observer())),
	)
	if err != nil {
		t.Fatalf("new wxpay client failed: %v", err)
	}
	queueClient, err := queue.NewClient(nil)
	if err != nil {
		t.Fatalf("new queue client failed: %v", err)
	}

	svc := NewPaymentService(PaymentServiceOptions{
		Gateway:          client,
		ExchangeRepo:     exchangeRepo,
		NotificationRepo: notificationRepo,
		QueueClient:      queueClient,
		Metrics:          m,
		Order: config.OrderConfig{
			Body:         "测试商品",
			TotalAmount:  "0.01",
			NotifyURL:    "https://example.com/pay",
			TransferDesc: "提现",
		},
		LocalIP: "127.0.0.1",
	})
	return &paymentServiceFixture{svc: svc, db: db, gateway: gateway, metrics: m, notify: notificationRepo}
}

func orderQueryResponse(t *testing.T, req wxpay.Params, tradeState, totalFee string) []byte {
	return signedXML(t, wxpay.Params{
		"return_code":    "SUCCESS",
		"result_code":    "SUCCESS",
		"appid":          testAppID,
		"mch_id":         testMchID,
		"nonce_str":      "qIXbJ3VbWjnvpHWL",
		"out_trade_no":   req.Get("out_trade_no"),
		"transaction_id": "4200000001",
		"trade_state":    tradeState,
		"total_fee":      totalFee,
	})
}

func notifyBody(t *testing.T, outTradeNo, transactionID string) []byte {
	return signedXML(t, wxpay.Params{
		"return_code":    "SUCCESS",
		"result_code":    "SUCCESS",
		"appid":          testAppID,
		"mch_id":         testMchID,
		"nonce_str":      "5K8264ILTKCH16CQ",
		"openid":         "oUpF8uMuAJO_M2pxb1Q9zNjWeS6o",
		"out_trade_no":   outTradeNo,
		"transaction_id": transactionID,
		"total_fee":      "1",
		"trade_type":     "APP",
	})
}

func TestCreateAppPaymentReturnsSignedPayParams(t *testing.T) {
	fx := setupPaymentServiceTest(t, func(path string, req wxpay.Params) []byte {
		return signedXML(t, wxpay.Params{
			"return_code": "SUCCESS",
			"result_code": "SUCCESS",
			"appid":       testAppID,
			"mch_id":      testMchID,
			"nonce_str":   "IITRi8Iabbblz1Jc",
			"prepay_id":   "wx201411101639507cbf6ffd8b0779950874",
			"trade_type":  "APP",
		})
	})
	fx.svc.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local) }

	params, err := fx.svc.CreateAppPayment(context.Background())
	if err != nil {
		t.Fatalf("create app payment failed: %v", err)
	}
	if params.Get("prepayid") != "wx201411101639507cbf6ffd8b0779950874" {
		t.Fatalf("prepayid mismatch: %+v", params)
	}
	if params.Get("timestamp") != fmt.Sprint(fx.svc.now().Unix()) || params.Get("package") != "Sign=WXPay" {
		t.Fatalf("unexpected pay params: %+v", params)
	}
	if !wxpay.Verify(params, testPartnerKey) {
		t.Fatalf("pay params sign should verify: %+v", params)
	}

	req := fx.gateway.lastRequest(wxpay.PathUnifiedOrder)
	if req.Get("total_fee") != "1" || req.Get("spbill_create_ip") != "127.0.0.1" || req.Get("trade_type") != "APP" {
		t.Fatalf("unexpected unified order request: %+v", req)
	}
	outTradeNo := req.Get("out_trade_no")
	if len(outTradeNo) != 18 || outTradeNo[:14] != "20240102030405" {
		t.Fatalf("out_trade_no should be timestamp plus 4 digits, got %s", outTradeNo)
	}
}

func TestCreateAppPaymentRejected(t *testing.T) {
	fx := setupPaymentServiceTest(t, func(path string, req wxpay.Params) []byte {
		return signedXML(t, wxpay.Params{
			"return_code":  "SUCCESS",
			"result_code":  "FAIL",
			"err_code":     "ORDERPAID",
			"err_code_des": "该订单已支付",
		})
	})
	_, err := fx.svc.CreateAppPayment(context.Background())
	if !errors.Is(err, ErrGatewayRejected) {
		t.Fatalf("want ErrGatewayRejected got %v", err)
	}

	rows, total, err := fx.svc.ListExchanges(repository.ExchangeListFilter{Operation: "unified_order"})
	if err != nil {
		t.Fatalf("list exchanges failed: %v", err)
	}
	if total != 1 || rows[0].ResultCode != "FAIL" || rows[0].ErrCode != "ORDERPAID" {
		t.Fatalf("exchange should be audited, got total=%d rows=%+v", total, rows)
	}
}

func TestCreateAppPaymentInvalidAmount(t *testing.T) {
	fx := setupPaymentServiceTest(t, func(path string, req wxpay.Params) []byte { return nil })
	fx.svc.orderCfg.TotalAmount = "abc"
	if _, err := fx.svc.CreateAppPayment(context.Background()); !errors.Is(err, ErrPaymentConfigInvalid) {
		t.Fatalf("want ErrPaymentConfigInvalid got %v", err)
	}
	if fx.gateway.callCount(wxpay.PathUnifiedOrder) != 0 {
		t.Fatalf("gateway should not be called")
	}
}

func TestHandleNotifyConfirmsAndDeduplicates(t *testing.T) {
	fx := setupPaymentServiceTest(t, func(path string, req wxpay.Params) []byte {
		return orderQueryResponse(t, req, "SUCCESS", "1")
	})
	ctx := context.Background()

	result, err := fx.svc.HandleNotify(ctx, notifyBody(t, "202401020304051234", "4200000001"))
	if err != nil {
		t.Fatalf("handle notify failed: %v", err)
	}
	if result.Duplicate || result.Ack != nil {
		t.Fatalf("first notify should not be duplicate: %+v", result)
	}
	stored, err := fx.notify.GetByID(result.Notification.ID)
	if err != nil || stored == nil {
		t.Fatalf("load notification failed: %v", err)
	}
	if stored.Status != constants.NotifyStatusConfirmed || stored.Attempts != 1 || stored.ConfirmedAt == nil {
		t.Fatalf("notification should be confirmed inline: %+v", stored)
	}
	if stored.TradeState != "SUCCESS" || stored.Payload["openid"] == "" || stored.Payload["sign"] != "" {
		t.Fatalf("unexpected stored payload: %+v", stored)
	}

	fx.svc.notifyCfg.ReplyXML = true
	again, err := fx.svc.HandleNotify(ctx, notifyBody(t, "202401020304051234", "4200000001"))
	if err != nil {
		t.Fatalf("handle duplicate notify failed: %v", err)
	}
	if !again.Duplicate || again.Notification.Status != constants.NotifyStatusDuplicate {
		t.Fatalf("second notify should be duplicate: %+v", again.Notification)
	}
	ack, err := wxpay.DecodeXML(again.Ack)
	if err != nil || ack.ReturnCode() != "SUCCESS" {
		t.Fatalf("ack should be SUCCESS xml, got %s err=%v", again.Ack, err)
	}
	if got := fx.gateway.callCount(wxpay.PathOrderQuery); got != 1 {
		t.Fatalf("duplicate notify should not query again, calls=%d", got)
	}
	if got := testutil.ToFloat64(fx.metrics.Notifications.WithLabelValues(constants.NotifyStatusConfirmed)); got != 1 {
		t.Fatalf("confirmed counter want 1 got %v", got)
	}
}

func TestHandleNotifyRejectsTamperedSignature(t *testing.T) {
	fx := setupPaymentServiceTest(t, func(path string, req wxpay.Params) []byte {
		t.Errorf("gateway should not be called for rejected notify")
		return nil
	})
	body := tamperedXML(t, wxpay.Params{
		"return_code":    "SUCCESS",
		"result_code":    "SUCCESS",
		"out_trade_no":   "202401020304050001",
		"transaction_id": "4200000009",
		"total_fee":      "1",
	})

	_, err := fx.svc.HandleNotify(context.Background(), body)
	if !errors.Is(err, ErrNotifySignatureInvalid) {
		t.Fatalf("want ErrNotifySignatureInvalid got %v", err)
	}
	verified := false
	rows, total, err := fx.svc.ListNotifications(repository.NotificationListFilter{Verified: &verified})
	if err != nil {
		t.Fatalf("list notifications failed: %v", err)
	}
	if total != 1 || rows[0].Status != constants.NotifyStatusRejected || rows[0].OutTradeNo != "202401020304050001" {
		t.Fatalf("rejected notify should be journaled, got total=%d rows=%+v", total, rows)
	}
}

func TestHandleNotifyInvalidBody(t *testing.T) {
	fx := setupPaymentServiceTest(t, func(path string, req wxpay.Params) []byte { return nil })
	_, err := fx.svc.HandleNotify(context.Background(), []byte("not xml"))
	if !errors.Is(err, ErrNotifyInvalid) {
		t.Fatalf("want ErrNotifyInvalid got %v", err)
	}
}

func TestHandleNotifyFailureResultIsMismatch(t *testing.T) {
	fx := setupPaymentServiceTest(t, func(path string, req wxpay.Params) []byte {
		t.Errorf("failed notify should not trigger order query")
		return nil
	})
	body := signedXML(t, wxpay.Params{
		"return_code":    "SUCCESS",
		"result_code":    "FAIL",
		"err_code":       "SYSTEMERROR",
		"out_trade_no":   "202401020304050002",
		"transaction_id": "4200000010",
	})
	result, err := fx.svc.HandleNotify(context.Background(), body)
	if err != nil {
		t.Fatalf("handle notify failed: %v", err)
	}
	if result.Notification.Status != constants.NotifyStatusMismatch || result.Notification.LastError != "SYSTEMERROR" {
		t.Fatalf("failed notify should be mismatch: %+v", result.Notification)
	}
}

func TestConfirmNotificationUnverifiedQueryThenPending(t *testing.T) {
	fx := setupPaymentServiceTest(t, func(path string, req wxpay.Params) []byte {
		return tamperedXML(t, wxpay.Params{"return_code": "SUCCESS", "result_code": "SUCCESS", "trade_state": "SUCCESS"})
	})
	ctx := context.Background()

	result, err := fx.svc.HandleNotify(ctx, notifyBody(t, "202401020304050003", "4200000011"))
	if err != nil {
		t.Fatalf("handle notify failed: %v", err)
	}
	id := result.Notification.ID
	stored, _ := fx.notify.GetByID(id)
	if stored.Status != constants.NotifyStatusUnverifiedQuery {
		t.Fatalf("tampered query should leave notification unverified, got %+v", stored)
	}
	if err := fx.svc.ConfirmNotification(ctx, id); !errors.Is(err, ErrGatewaySignatureMismatch) {
		t.Fatalf("want ErrGatewaySignatureMismatch got %v", err)
	}

	fx.gateway.setRespond(func(path string, req wxpay.Params) []byte {
		return orderQueryResponse(t, req, "SUCCESS", "1")
	})
	fx.svc.now = func() time.Time { return time.Now().Add(time.Hour) }
	processed, err := fx.svc.ConfirmPending(ctx)
	if err != nil {
		t.Fatalf("confirm pending failed: %v", err)
	}
	if processed != 1 {
		t.Fatalf("processed want 1 got %d", processed)
	}
	stored, _ = fx.notify.GetByID(id)
	if stored.Status != constants.NotifyStatusConfirmed || stored.Attempts != 3 {
		t.Fatalf("pending sweep should confirm notification: %+v", stored)
	}
	if err := fx.svc.ConfirmNotification(ctx, id); err != nil {
		t.Fatalf("confirm should be idempotent, got %v", err)
	}
	if got := fx.gateway.callCount(wxpay.PathOrderQuery); got != 3 {
		t.Fatalf("order query calls want 3 got %d", got)
	}

	rows, total, err := fx.svc.ListExchanges(repository.ExchangeListFilter{Outcome: wxpay.OutcomeSignatureMismatch})
	if err != nil {
		t.Fatalf("list exchanges failed: %v", err)
	}
	if total != 2 || !rows[0].SignatureMismatch {
		t.Fatalf("mismatched queries should be audited, got total=%d rows=%+v", total, rows)
	}
}

func TestConfirmNotificationFeeMismatch(t *testing.T) {
	fx := setupPaymentServiceTest(t, func(path string, req wxpay.Params) []byte {
		return orderQueryResponse(t, req, "SUCCESS", "100")
	})
	result, err := fx.svc.HandleNotify(context.Background(), notifyBody(t, "202401020304050004", "4200000001"))
	if err != nil {
		t.Fatalf("handle notify failed: %v", err)
	}
	stored, _ := fx.notify.GetByID(result.Notification.ID)
	if stored.Status != constants.NotifyStatusMismatch || stored.ConfirmedAt != nil {
		t.Fatalf("fee mismatch should not confirm: %+v", stored)
	}
	if stored.LastError != "total_fee 100 != 1" {
		t.Fatalf("unexpected last_error: %q", stored.LastError)
	}
}

func TestQueryOrderEmptyResultIsSignatureMismatch(t *testing.T) {
	fx := setupPaymentServiceTest(t, func(path string, req wxpay.Params) []byte {
		return tamperedXML(t, wxpay.Params{"return_code": "SUCCESS", "trade_state": "SUCCESS"})
	})
	if _, err := fx.svc.QueryOrder(context.Background(), "202401020304050005"); !errors.Is(err, ErrGatewaySignatureMismatch) {
		t.Fatalf("want ErrGatewaySignatureMismatch got %v", err)
	}
	if _, err := fx.svc.QueryOrder(context.Background(), " "); !errors.Is(err, ErrPaymentParamsInvalid) {
		t.Fatalf("want ErrPaymentParamsInvalid got %v", err)
	}
}

func TestCloseOrderRejected(t *testing.T) {
	fx := setupPaymentServiceTest(t, func(path string, req wxpay.Params) []byte {
		return signedXML(t, wxpay.Params{"return_code": "SUCCESS", "result_code": "FAIL", "err_code": "ORDERPAID"})
	})
	result, err := fx.svc.CloseOrder(context.Background(), "202401020304050006")
	if !errors.Is(err, ErrGatewayRejected) {
		t.Fatalf("want ErrGatewayRejected got %v", err)
	}
	if result.Get("err_code") != "ORDERPAID" {
		t.Fatalf("rejected result should be returned: %+v", result)
	}
}

func TestRefundValidation(t *testing.T) {
	fx := setupPaymentServiceTest(t, func(path string, req wxpay.Params) []byte {
		t.Errorf("gateway should not be reached")
		return nil
	})
	ctx := context.Background()

	_, err := fx.svc.Refund(ctx, RefundInput{OutTradeNo: "T1", TotalAmount: "1.00", RefundAmount: "2.00"})
	if !errors.Is(err, ErrPaymentParamsInvalid) {
		t.Fatalf("refund above total want ErrPaymentParamsInvalid got %v", err)
	}
	_, err = fx.svc.Refund(ctx, RefundInput{OutTradeNo: "T1", TotalAmount: "1.00", RefundAmount: "x"})
	if !errors.Is(err, ErrPaymentParamsInvalid) {
		t.Fatalf("bad amount want ErrPaymentParamsInvalid got %v", err)
	}
	_, err = fx.svc.Refund(ctx, RefundInput{OutTradeNo: "T1", TotalAmount: "1.00", RefundAmount: "0.50"})
	if !errors.Is(err, ErrCertificateUnavailable) {
		t.Fatalf("refund without certificate want ErrCertificateUnavailable got %v", err)
	}
	_, err = fx.svc.Transfer(ctx, TransferInput{OpenID: "o-user", Amount: "1.00"})
	if !errors.Is(err, ErrCertificateUnavailable) {
		t.Fatalf("transfer without certificate want ErrCertificateUnavailable got %v", err)
	}
}

func TestMapGatewayError(t *testing.T) {
	cases := []struct {
		err  error
		want error
	}{
		{fmt.Errorf("%w: %w", wxpay.ErrTransport, wxpay.ErrCertificateMissing), ErrCertificateUnavailable},
		{fmt.Errorf("%w: timeout", wxpay.ErrTransport), ErrGatewayRequestFailed},
		{fmt.Errorf("%w: root", wxpay.ErrParse), ErrGatewayResponseInvalid},
		{wxpay.ErrSignatureMismatch, ErrGatewaySignatureMismatch},
		{fmt.Errorf("%w: out_trade_no", wxpay.ErrParamsInvalid), ErrPaymentParamsInvalid},
		{wxpay.ErrConfigInvalid, ErrPaymentConfigInvalid},
		{errors.New("boom"), ErrGatewayRequestFailed},
	}
	for _, tc := range cases {
		if got := mapGatewayError(tc.err); !errors.Is(got, tc.want) {
			t.Fatalf("map %v want %v got %v", tc.err, tc.want, got)
		}
	}
	if mapGatewayError(nil) != nil {
		t.Fatalf("nil error should map to nil")
	}
}
