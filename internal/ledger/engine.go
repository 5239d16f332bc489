package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/efreitasn/stockledger/internal/domain"
	"github.com/efreitasn/stockledger/internal/events"
	"github.com/efreitasn/stockledger/internal/store"
)

// Status is the outcome of submitting an offer.
type Status string

const (
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
	StatusInvalid  Status = "invalid"
)

// Rejection and invalidity reasons, as reported to clients.
var (
	ReasonInsufficientShares = domain.ErrInsufficientShares.Error()
	ReasonInvalidOffer       = domain.ErrInvalidOffer.Error()
	ReasonInvalidOperation   = domain.ErrInvalidOperation.Error()
)

var errBalanceOverflow = errors.New("balance overflow")

// Result is the tagged outcome of Submit. Offer is set only when
// accepted; Held only when rejected.
type Result struct {
	Status  Status
	Offer   *domain.Offer
	Reason  string
	Message string
	Held    int64
}

// Engine accepts or rejects offers and keeps each wallet consistent with
// the history log. It holds no per-wallet state of its own; the store
// serializes work on a wallet.
type Engine struct {
	store     store.Store
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewEngine creates an Engine. A nil publisher discards events.
func NewEngine(s store.Store, publisher events.Publisher, logger *zap.Logger) *Engine {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Engine{
		store:     s,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Submit validates in, then reads, checks and updates the wallet and
// appends the offer to history in one store transaction. Domain outcomes
// (accepted, rejected, invalid) are reported through Result; the error
// is non-nil only for storage faults and key collisions.
//
// in is expected to be normalized already (see domain.NormalizeOffer).
func (e *Engine) Submit(ctx context.Context, in domain.OfferInput) (*Result, error) {
	if res := validate(in); res != nil {
		return e.invalid(res), nil
	}

	var accepted *domain.Offer
	err := e.store.Update(ctx, in.Key(), func(tx store.Tx) error {
		accepted = nil

		held, found, err := tx.Shares()
		if err != nil {
			return err
		}

		var balance int64
		switch in.Operation {
		case domain.OperationBuy:
			if held > math.MaxInt64-in.Shares {
				return errBalanceOverflow
			}
			balance = held + in.Shares
		case domain.OperationSell:
			if !found || held < in.Shares {
				return &domain.InsufficientSharesError{Held: held}
			}
			balance = held - in.Shares
		}

		seq, err := tx.NextSeq()
		if err != nil {
			return err
		}
		now := e.now().UTC()
		offer := &domain.Offer{
			Seq:       seq,
			ID:        uuid.New().String(),
			Timestamp: now,
			DateTime:  now.Format(domain.DateTimeLayout),
			Operation: in.Operation,
			Broker:    in.Broker,
			Stock:     in.Stock,
			Price:     in.Price,
			Shares:    in.Shares,
		}

		if err := tx.SetShares(balance); err != nil {
			return err
		}
		if err := tx.AppendOffer(offer); err != nil {
			return err
		}
		accepted = offer
		return nil
	})

	var insufficient *domain.InsufficientSharesError
	switch {
	case err == nil:
		e.logger.Info("offer accepted",
			zap.Uint64("seq", accepted.Seq),
			zap.String("operation", string(accepted.Operation)),
			zap.String("broker", accepted.Broker),
			zap.String("stock", accepted.Stock),
			zap.Int64("shares", accepted.Shares),
		)
		e.publish(ctx, events.OfferEvent{
			Type:  events.TypeOfferAccepted,
			Time:  accepted.Timestamp,
			Offer: accepted,
		})
		return &Result{Status: StatusAccepted, Offer: accepted}, nil

	case errors.As(err, &insufficient):
		e.logger.Info("offer rejected",
			zap.String("reason", ReasonInsufficientShares),
			zap.String("broker", in.Broker),
			zap.String("stock", in.Stock),
			zap.Int64("requested", in.Shares),
			zap.Int64("held", insufficient.Held),
		)
		e.publish(ctx, events.OfferEvent{
			Type:   events.TypeOfferRejected,
			Time:   e.now().UTC(),
			Input:  in,
			Held:   insufficient.Held,
			Reason: ReasonInsufficientShares,
		})
		return &Result{
			Status:  StatusRejected,
			Reason:  ReasonInsufficientShares,
			Message: rejectionMessage(insufficient.Held, in.Stock),
			Held:    insufficient.Held,
		}, nil

	case errors.Is(err, errBalanceOverflow):
		return e.invalid(&Result{
			Status:  StatusInvalid,
			Reason:  ReasonInvalidOffer,
			Message: "resulting balance exceeds the maximum share count",
		}), nil

	default:
		e.logger.Error("offer failed",
			zap.String("broker", in.Broker),
			zap.String("stock", in.Stock),
			zap.Bool("duplicate_key", errors.Is(err, domain.ErrDuplicateKey)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("submit offer: %w", err)
	}
}

func (e *Engine) invalid(res *Result) *Result {
	e.logger.Info("offer invalid",
		zap.String("reason", res.Reason),
		zap.String("message", res.Message),
	)
	return res
}

// publish hands ev to the publisher. The offer is already committed, so
// a failure is logged and not returned. Publishers must not block on
// their sink; see events.KafkaPublisher.
func (e *Engine) publish(ctx context.Context, ev events.OfferEvent) {
	if err := e.publisher.Publish(ctx, ev); err != nil {
		e.logger.Warn("publish offer event",
			zap.String("event", ev.Type),
			zap.String("wallet", ev.Key()),
			zap.Error(err),
		)
	}
}

// validate re-checks the preconditions the caller should already have
// enforced. It returns nil for an admissible offer.
func validate(in domain.OfferInput) *Result {
	invalid := func(reason, msg string) *Result {
		return &Result{Status: StatusInvalid, Reason: reason, Message: msg}
	}

	switch {
	case !in.Operation.Valid():
		return invalid(ReasonInvalidOperation, fmt.Sprintf("operation must be 'buy' or 'sell', got %q", in.Operation))
	case in.Broker == "":
		return invalid(ReasonInvalidOffer, "broker is required")
	case in.Stock == "":
		return invalid(ReasonInvalidOffer, "stock is required")
	case in.Shares <= 0:
		return invalid(ReasonInvalidOffer, "shares must be a positive integer")
	case !in.Price.IsPositive():
		return invalid(ReasonInvalidOffer, "price must be greater than 0")
	}
	return nil
}

func rejectionMessage(held int64, stock string) string {
	if held == 0 {
		return fmt.Sprintf("You do not have any shares from %s", stock)
	}
	return fmt.Sprintf("You only have %d shares from %s", held, stock)
}
