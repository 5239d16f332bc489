package ledger

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/efreitasn/stockledger/internal/domain"
	"github.com/efreitasn/stockledger/internal/store"
)

// TestProperty_BuysSumToBalance verifies that any sequence of buys on a
// fresh wallet leaves a balance equal to the sum of the bought shares.
func TestProperty_BuysSumToBalance(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := store.NewMemoryStore()
		e := NewEngine(s, nil, zap.NewNop())

		n := rapid.IntRange(1, 30).Draw(t, "n")
		var want int64
		for i := 0; i < n; i++ {
			shares := rapid.Int64Range(1, 1_000_000).Draw(t, fmt.Sprintf("shares-%d", i))
			res, err := e.Submit(context.Background(), offer("buy", "alice", "AAPL", "1.5", shares))
			if err != nil {
				t.Fatalf("submit: %v", err)
			}
			if res.Status != StatusAccepted {
				t.Fatalf("buy %d: status = %s", i, res.Status)
			}
			want += shares
		}

		got, _, _ := s.GetShares(context.Background(), "alice", "AAPL")
		if got != want {
			t.Fatalf("balance = %d, want %d", got, want)
		}
	})
}

// TestProperty_BalanceNeverNegative runs random buy/sell sequences against
// a model balance. Oversells must be rejected without changing anything.
func TestProperty_BalanceNeverNegative(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := store.NewMemoryStore()
		e := NewEngine(s, nil, zap.NewNop())
		ctx := context.Background()

		var (
			model    int64
			exists   bool
			accepted int
		)
		n := rapid.IntRange(1, 50).Draw(t, "n")
		for i := 0; i < n; i++ {
			op := rapid.SampledFrom([]string{"buy", "sell"}).Draw(t, fmt.Sprintf("op-%d", i))
			shares := rapid.Int64Range(1, 100).Draw(t, fmt.Sprintf("shares-%d", i))

			res, err := e.Submit(ctx, offer(op, "alice", "AAPL", "10", shares))
			if err != nil {
				t.Fatalf("submit: %v", err)
			}

			switch {
			case op == "buy":
				model += shares
				exists = true
				if res.Status != StatusAccepted {
					t.Fatalf("buy rejected: %+v", res)
				}
				accepted++
			case !exists || model < shares:
				if res.Status != StatusRejected || res.Held != model {
					t.Fatalf("sell %d of %d: got %+v, want rejected with held=%d", shares, model, res, model)
				}
			default:
				model -= shares
				if res.Status != StatusAccepted {
					t.Fatalf("sell %d of %d rejected", shares, model+shares)
				}
				accepted++
			}

			got, found, _ := s.GetShares(ctx, "alice", "AAPL")
			if got < 0 {
				t.Fatalf("balance went negative: %d", got)
			}
			if got != model || found != exists {
				t.Fatalf("balance = %d (found=%v), model = %d (exists=%v)", got, found, model, exists)
			}
		}

		history, _ := s.QueryOffers(ctx, domain.FieldBroker, "alice")
		if len(history) != accepted {
			t.Fatalf("history has %d records, want %d accepted", len(history), accepted)
		}
	})
}

// TestProperty_HistoryRetrievableByEachField verifies that after N
// accepted offers the history holds exactly N records and each one is
// found by its own broker, operation and stock filters.
func TestProperty_HistoryRetrievableByEachField(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := store.NewMemoryStore()
		e := NewEngine(s, nil, zap.NewNop())
		ctx := context.Background()

		brokers := []string{"alice", "bob", "carol"}
		stocks := []string{"AAPL", "TSLA", "PETR4"}

		n := rapid.IntRange(1, 25).Draw(t, "n")
		var recorded []*domain.Offer
		for i := 0; i < n; i++ {
			in := domain.OfferInput{
				Operation: domain.OperationBuy,
				Broker:    rapid.SampledFrom(brokers).Draw(t, fmt.Sprintf("broker-%d", i)),
				Stock:     rapid.SampledFrom(stocks).Draw(t, fmt.Sprintf("stock-%d", i)),
				Price:     decimal.New(rapid.Int64Range(1, 100000).Draw(t, fmt.Sprintf("cents-%d", i)), -2),
				Shares:    rapid.Int64Range(1, 1000).Draw(t, fmt.Sprintf("shares-%d", i)),
			}
			res, err := e.Submit(ctx, in)
			if err != nil || res.Status != StatusAccepted {
				t.Fatalf("submit: res=%+v err=%v", res, err)
			}
			recorded = append(recorded, res.Offer)
		}

		all, _ := s.QueryOffers(ctx, domain.FieldOperation, "buy")
		if len(all) != n {
			t.Fatalf("history has %d records, want %d", len(all), n)
		}

		for _, o := range recorded {
			for _, f := range domain.QueryFields {
				found := false
				matches, err := s.QueryOffers(ctx, f, o.Field(f))
				if err != nil {
					t.Fatalf("query %s: %v", f, err)
				}
				for _, m := range matches {
					if m.Field(f) != o.Field(f) {
						t.Fatalf("query %s=%s returned %s", f, o.Field(f), m.Field(f))
					}
					if m.Seq == o.Seq {
						found = true
					}
				}
				if !found {
					t.Fatalf("offer seq %d not found by %s=%s", o.Seq, f, o.Field(f))
				}
			}
		}
	})
}
