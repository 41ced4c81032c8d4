package workflow

import (
	"context"
	"errors"
	"math"
	"net/http"
	"testing"

	"github.com/mbilous/printnet-system/internal/api"
)

type stubWalletGateway struct {
	balance    float64
	balanceErr error

	createWallet *api.Wallet
	createErr    error

	balanceCalls int
	createCalls  int
}

func (s *stubWalletGateway) WalletBalance(ctx context.Context) (float64, error) {
	s.balanceCalls++
	return s.balance, s.balanceErr
}

func (s *stubWalletGateway) CreateWallet(ctx context.Context) (*api.Wallet, error) {
	s.createCalls++
	return s.createWallet, s.createErr
}

func TestResolveOrCreateWallet_Existing(t *testing.T) {
	gw := &stubWalletGateway{balance: 42.5}

	state := ResolveOrCreateWallet(context.Background(), gw, nil)

	if state.Balance != 42.5 || state.Created {
		t.Fatalf("state = %+v, want balance 42.5 and created=false", state)
	}
	if gw.createCalls != 0 {
		t.Fatalf("CreateWallet calls = %d, want 0", gw.createCalls)
	}
}

func TestResolveOrCreateWallet_NotFoundCreates(t *testing.T) {
	gw := &stubWalletGateway{
		balanceErr:   &api.Error{StatusCode: http.StatusNotFound, Message: "wallet not found"},
		createWallet: &api.Wallet{ID: "w1", Balance: 0},
	}

	state := ResolveOrCreateWallet(context.Background(), gw, nil)

	if state.Balance != 0 || !state.Created {
		t.Fatalf("state = %+v, want balance 0 and created=true", state)
	}
	if gw.createCalls != 1 {
		t.Fatalf("CreateWallet calls = %d, want 1", gw.createCalls)
	}
}

func TestResolveOrCreateWallet_CreateFailureResolvesToZero(t *testing.T) {
	gw := &stubWalletGateway{
		balanceErr: &api.Error{StatusCode: http.StatusNotFound},
		createErr:  errors.New("server exploded"),
	}

	state := ResolveOrCreateWallet(context.Background(), gw, nil)

	if state.Balance != 0 || state.Created {
		t.Fatalf("state = %+v, want zero balance and created=false", state)
	}
}

func TestResolveOrCreateWallet_OtherFailuresResolveToZero(t *testing.T) {
	for _, balanceErr := range []error{
		errors.New("connection refused"),
		&api.Error{StatusCode: http.StatusInternalServerError},
		&api.Error{StatusCode: http.StatusUnauthorized},
	} {
		gw := &stubWalletGateway{balanceErr: balanceErr}

		state := ResolveOrCreateWallet(context.Background(), gw, nil)

		if state.Balance != 0 || math.IsNaN(state.Balance) {
			t.Fatalf("balance for %v = %v, want exactly 0", balanceErr, state.Balance)
		}
		if gw.createCalls != 0 {
			t.Fatalf("CreateWallet must not be called for %v", balanceErr)
		}
	}
}
