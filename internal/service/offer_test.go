package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/efreitasn/stockledger/internal/domain"
	"github.com/efreitasn/stockledger/internal/ledger"
	"github.com/efreitasn/stockledger/internal/store"
)

// testEnv bundles the services over one memory store.
type testEnv struct {
	store     *store.MemoryStore
	offerSvc  *OfferService
	walletSvc *WalletService
}

func newTestEnv() *testEnv {
	s := store.NewMemoryStore()
	logger := zap.NewNop()
	eng := ledger.NewEngine(s, nil, logger)
	return &testEnv{
		store:     s,
		offerSvc:  NewOfferService(eng, s, logger),
		walletSvc: NewWalletService(s),
	}
}

func (env *testEnv) submit(t *testing.T, op, broker, stock, price string, shares int64) *ledger.Result {
	t.Helper()
	res, err := env.offerSvc.SubmitOffer(context.Background(), SubmitOfferRequest{
		Operation: op,
		Broker:    broker,
		Stock:     stock,
		Price:     decimal.RequireFromString(price),
		Shares:    shares,
	})
	if err != nil {
		t.Fatalf("SubmitOffer: unexpected error: %v", err)
	}
	return res
}

// --- SubmitOffer ---

func TestSubmitOffer_NormalizesCasing(t *testing.T) {
	env := newTestEnv()

	res := env.submit(t, " BUY ", "Alice", "aapl", "10.0", 5)
	if res.Status != ledger.StatusAccepted {
		t.Fatalf("status = %s, want accepted", res.Status)
	}
	o := res.Offer
	if o.Operation != domain.OperationBuy || o.Broker != "alice" || o.Stock != "AAPL" {
		t.Errorf("got %s/%s/%s, want buy/alice/AAPL", o.Operation, o.Broker, o.Stock)
	}

	res = env.submit(t, "Sell", "ALICE", "Aapl", "12.0", 10)
	if res.Status != ledger.StatusRejected || res.Held != 5 {
		t.Fatalf("got %+v, want rejected with held=5", res)
	}
}

func TestSubmitOffer_InvalidOperation(t *testing.T) {
	env := newTestEnv()

	res := env.submit(t, "short", "alice", "AAPL", "1", 1)
	if res.Status != ledger.StatusInvalid || res.Reason != ledger.ReasonInvalidOperation {
		t.Fatalf("got %+v, want invalid_operation", res)
	}
}

func TestSubmitOffer_BlankBroker(t *testing.T) {
	env := newTestEnv()

	res := env.submit(t, "buy", "   ", "AAPL", "1", 1)
	if res.Status != ledger.StatusInvalid || res.Reason != ledger.ReasonInvalidOffer {
		t.Fatalf("got %+v, want invalid_offer", res)
	}
}

// --- QueryOffers ---

func TestQueryOffers_ByEachField(t *testing.T) {
	env := newTestEnv()
	env.submit(t, "buy", "alice", "AAPL", "10", 5)
	env.submit(t, "buy", "bob", "TSLA", "20", 1)
	env.submit(t, "sell", "alice", "AAPL", "11", 2)

	tests := []struct {
		field, value string
		want         int
	}{
		{"broker", "alice", 2},
		{"broker", "ALICE", 2},
		{"operation", "buy", 2},
		{"operation", "SELL", 1},
		{"stock", "aapl", 2},
		{"Stock", "TSLA", 1},
		{"broker", "nobody", 0},
	}
	for _, tt := range tests {
		t.Run(tt.field+"="+tt.value, func(t *testing.T) {
			offers, err := env.offerSvc.QueryOffers(context.Background(), tt.field, tt.value)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if offers == nil {
				t.Fatal("expected a non-nil slice")
			}
			if len(offers) != tt.want {
				t.Errorf("got %d offers, want %d", len(offers), tt.want)
			}
		})
	}
}

func TestQueryOffers_SubmissionOrder(t *testing.T) {
	env := newTestEnv()
	env.submit(t, "buy", "alice", "AAPL", "10.0", 5)
	env.submit(t, "sell", "alice", "AAPL", "12.0", 10)
	env.submit(t, "sell", "alice", "AAPL", "12.0", 5)

	offers, err := env.offerSvc.QueryOffers(context.Background(), "broker", "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(offers) != 2 {
		t.Fatalf("got %d offers, want 2", len(offers))
	}
	if offers[0].Operation != domain.OperationBuy || offers[0].Shares != 5 {
		t.Errorf("first = %+v", offers[0])
	}
	if offers[1].Operation != domain.OperationSell || offers[1].Shares != 5 {
		t.Errorf("second = %+v", offers[1])
	}
}

func TestQueryOffers_UnknownField(t *testing.T) {
	env := newTestEnv()

	for _, field := range []string{"price", "shares", "", "broker;drop"} {
		_, err := env.offerSvc.QueryOffers(context.Background(), field, "x")
		if !errors.Is(err, domain.ErrUnknownField) {
			t.Errorf("field %q: expected ErrUnknownField, got %v", field, err)
		}
	}
}

func TestQueryOffers_EmptyValue(t *testing.T) {
	env := newTestEnv()

	_, err := env.offerSvc.QueryOffers(context.Background(), "broker", "  ")
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

// failingHistory fails every query.
type failingHistory struct{ err error }

func (f failingHistory) QueryOffers(context.Context, domain.QueryField, string) ([]*domain.Offer, error) {
	return nil, f.err
}

func TestQueryOffers_StoreError(t *testing.T) {
	cause := domain.StoreError("scan index", errors.New("io"))
	svc := NewOfferService(nil, failingHistory{err: cause}, zap.NewNop())

	_, err := svc.QueryOffers(context.Background(), "stock", "AAPL")
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}
