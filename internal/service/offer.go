package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/efreitasn/stockledger/internal/domain"
	"github.com/efreitasn/stockledger/internal/ledger"
	"github.com/efreitasn/stockledger/internal/store"
)

// SubmitOfferRequest represents the input for submitting an offer.
type SubmitOfferRequest struct {
	Operation string
	Broker    string
	Stock     string
	Price     decimal.Decimal
	Shares    int64
}

// OfferService handles offer submission and history queries.
type OfferService struct {
	engine  *ledger.Engine
	history store.HistoryReader
	logger  *zap.Logger
}

// NewOfferService creates a new OfferService.
func NewOfferService(engine *ledger.Engine, history store.HistoryReader, logger *zap.Logger) *OfferService {
	return &OfferService{
		engine:  engine,
		history: history,
		logger:  logger,
	}
}

// SubmitOffer normalizes the request and hands it to the ledger. Domain
// outcomes are reported in the result; the error is set only for
// storage faults.
func (s *OfferService) SubmitOffer(ctx context.Context, req SubmitOfferRequest) (*ledger.Result, error) {
	in := domain.NormalizeOffer(domain.OfferInput{
		Operation: domain.Operation(req.Operation),
		Broker:    req.Broker,
		Stock:     req.Stock,
		Price:     req.Price,
		Shares:    req.Shares,
	})
	return s.engine.Submit(ctx, in)
}

// QueryOffers returns the offers whose field equals value, oldest first.
// The value is matched against the field's stored casing. Unknown fields
// return domain.ErrUnknownField.
func (s *OfferService) QueryOffers(ctx context.Context, field, value string) ([]*domain.Offer, error) {
	f, err := domain.ParseQueryField(field)
	if err != nil {
		return nil, err
	}
	value = f.NormalizeValue(value)
	if value == "" {
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("%s must not be empty", f),
		}
	}

	offers, err := s.history.QueryOffers(ctx, f, value)
	if err != nil {
		s.logger.Error("query offers",
			zap.String("field", string(f)),
			zap.String("value", value),
			zap.Error(err),
		)
		return nil, fmt.Errorf("query offers by %s: %w", f, err)
	}
	return offers, nil
}
