package workflow

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/mbilous/printnet-system/internal/api"
	"github.com/mbilous/printnet-system/internal/model"
)

type stubGateway struct {
	stubWalletGateway

	order    *api.Order
	orderErr error

	payment    *api.Payment
	paymentErr error

	orderCalls   int
	paymentCalls int

	lastOrderReq   api.CreateOrderRequest
	lastPaymentReq api.CreatePaymentRequest
}

func (s *stubGateway) CreateOrder(ctx context.Context, req api.CreateOrderRequest) (*api.Order, error) {
	s.orderCalls++
	s.lastOrderReq = req
	return s.order, s.orderErr
}

func (s *stubGateway) CreatePayment(ctx context.Context, req api.CreatePaymentRequest) (*api.Payment, error) {
	s.paymentCalls++
	s.lastPaymentReq = req
	return s.payment, s.paymentErr
}

func authedSession() *api.Session {
	s := api.NewSession()
	s.Set("token", "user-1")
	return s
}

func ptrFloat(v float64) *float64 { return &v }

func validForm() Form {
	return Form{
		MachineID: "machine-1",
		FileName:  "benchy.stl",
		FileSize:  1024,
		Settings:  model.PrintSettings{Material: "PLA", Infill: 20, LayerHeight: 0.2, Quantity: 1},
		Estimate:  ptrFloat(10.00),
		Balance:   ptrFloat(50.00),
	}
}

func TestSubmit_Success(t *testing.T) {
	gw := &stubGateway{
		stubWalletGateway: stubWalletGateway{balance: 40.00},
		order:             &api.Order{ID: "order-1"},
		payment:           &api.Payment{ID: "payment-1", OrderID: "order-1"},
	}

	seq := NewSequencer(gw, authedSession(), nil)
	seq.now = func() time.Time { return time.UnixMilli(1700000000000) }

	res, err := seq.Submit(context.Background(), validForm())
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}

	if res.OrderID != "order-1" {
		t.Fatalf("OrderID = %s, want order-1", res.OrderID)
	}
	if res.Wallet.Balance != 40.00 {
		t.Fatalf("refreshed balance = %v, want 40.00", res.Wallet.Balance)
	}

	if gw.orderCalls != 1 || gw.paymentCalls != 1 {
		t.Fatalf("calls = %d orders, %d payments; want 1 and 1", gw.orderCalls, gw.paymentCalls)
	}

	if gw.lastOrderReq.Cost != 10.00 || gw.lastOrderReq.MachineID != "machine-1" {
		t.Fatalf("unexpected order request: %+v", gw.lastOrderReq)
	}
	wantRef := "uploads/user-1/1700000000000_benchy.stl"
	if gw.lastOrderReq.ModelFileURL != wantRef {
		t.Fatalf("ModelFileURL = %s, want %s", gw.lastOrderReq.ModelFileURL, wantRef)
	}
	if gw.lastOrderReq.PrintSettings.FileName != "benchy.stl" || gw.lastOrderReq.PrintSettings.FileSize != 1024 {
		t.Fatalf("file metadata missing from settings: %+v", gw.lastOrderReq.PrintSettings)
	}

	if gw.lastPaymentReq.OrderID != "order-1" || gw.lastPaymentReq.Amount != 10.00 || gw.lastPaymentReq.Method != model.PaymentMethodWallet {
		t.Fatalf("unexpected payment request: %+v", gw.lastPaymentReq)
	}
}

func TestSubmit_InsufficientBalancePreflight(t *testing.T) {
	gw := &stubGateway{}
	seq := NewSequencer(gw, authedSession(), nil)

	form := validForm()
	form.Estimate = ptrFloat(10.00)
	form.Balance = ptrFloat(5.00)

	_, err := seq.Submit(context.Background(), form)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	if gw.orderCalls != 0 || gw.paymentCalls != 0 || gw.balanceCalls != 0 {
		t.Fatalf("no network calls expected, got orders=%d payments=%d balance=%d",
			gw.orderCalls, gw.paymentCalls, gw.balanceCalls)
	}
}

func TestSubmit_UnknownBalanceSkipsPreflight(t *testing.T) {
	gw := &stubGateway{
		order:   &api.Order{ID: "order-1"},
		payment: &api.Payment{ID: "payment-1"},
	}
	seq := NewSequencer(gw, authedSession(), nil)

	form := validForm()
	form.Balance = nil

	if _, err := seq.Submit(context.Background(), form); err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if gw.orderCalls != 1 {
		t.Fatalf("order calls = %d, want 1", gw.orderCalls)
	}
}

func TestSubmit_NoEstimate(t *testing.T) {
	gw := &stubGateway{}
	seq := NewSequencer(gw, authedSession(), nil)

	form := validForm()
	form.Estimate = nil

	_, err := seq.Submit(context.Background(), form)
	if !errors.Is(err, ErrNoEstimate) {
		t.Fatalf("expected ErrNoEstimate, got %v", err)
	}
	if gw.orderCalls != 0 || gw.paymentCalls != 0 {
		t.Fatalf("no network calls expected")
	}
}

func TestSubmit_NotAuthenticated(t *testing.T) {
	gw := &stubGateway{}
	seq := NewSequencer(gw, api.NewSession(), nil)

	_, err := seq.Submit(context.Background(), validForm())
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	if gw.orderCalls != 0 || gw.paymentCalls != 0 {
		t.Fatalf("no network calls expected")
	}
}

func TestSubmit_OrderFailureSkipsPayment(t *testing.T) {
	gw := &stubGateway{
		orderErr: &api.Error{StatusCode: http.StatusNotFound, Message: "vending machine not found"},
	}
	seq := NewSequencer(gw, authedSession(), nil)

	_, err := seq.Submit(context.Background(), validForm())
	if err == nil {
		t.Fatalf("expected error")
	}

	if gw.orderCalls != 1 {
		t.Fatalf("order calls = %d, want 1", gw.orderCalls)
	}
	if gw.paymentCalls != 0 {
		t.Fatalf("payment calls = %d, want 0", gw.paymentCalls)
	}
}

func TestSubmit_PaymentFailureLeavesOrder(t *testing.T) {
	gw := &stubGateway{
		order:      &api.Order{ID: "order-1"},
		paymentErr: &api.Error{StatusCode: http.StatusBadRequest, Message: "Недостатньо коштів на балансі гаманця"},
	}
	seq := NewSequencer(gw, authedSession(), nil)

	form := validForm()
	form.Balance = nil

	_, err := seq.Submit(context.Background(), form)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "create payment") {
		t.Fatalf("error must come from the payment step, got %v", err)
	}

	// Заказ создан ровно один раз и не отменяется после сбоя оплаты
	if gw.orderCalls != 1 || gw.paymentCalls != 1 {
		t.Fatalf("calls = %d orders, %d payments; want 1 and 1", gw.orderCalls, gw.paymentCalls)
	}
}

func TestSubmit_SecondSubmissionWhileInFlight(t *testing.T) {
	gw := &stubGateway{
		order:   &api.Order{ID: "order-1"},
		payment: &api.Payment{ID: "payment-1"},
	}
	seq := NewSequencer(gw, authedSession(), nil)

	started := make(chan struct{})
	release := make(chan struct{})
	seq.now = func() time.Time {
		close(started)
		<-release
		return time.Now()
	}

	done := make(chan error, 1)
	go func() {
		_, err := seq.Submit(context.Background(), validForm())
		done <- err
	}()

	<-started
	_, err := seq.Submit(context.Background(), validForm())
	if !errors.Is(err, ErrSubmissionInFlight) {
		t.Fatalf("expected ErrSubmissionInFlight, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first submission failed: %v", err)
	}
}

func TestSubmit_DismissDiscardsResult(t *testing.T) {
	gw := &stubGateway{
		order:   &api.Order{ID: "order-1"},
		payment: &api.Payment{ID: "payment-1"},
	}
	seq := NewSequencer(gw, authedSession(), nil)

	seq.now = func() time.Time {
		seq.Dismiss()
		return time.Now()
	}

	res, err := seq.Submit(context.Background(), validForm())
	if !errors.Is(err, ErrDismissed) {
		t.Fatalf("expected ErrDismissed, got %v", err)
	}
	if res != nil {
		t.Fatalf("dismissed submission must not return a result, got %+v", res)
	}
}
