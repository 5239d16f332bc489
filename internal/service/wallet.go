package service

import (
	"context"
	"fmt"

	"github.com/efreitasn/stockledger/internal/domain"
	"github.com/efreitasn/stockledger/internal/store"
)

// WalletService answers balance queries.
type WalletService struct {
	wallets store.WalletReader
}

// NewWalletService creates a new WalletService.
func NewWalletService(wallets store.WalletReader) *WalletService {
	return &WalletService{wallets: wallets}
}

// GetWallet returns the broker's current position in stock. Returns
// domain.ErrWalletNotFound if the broker never bought it.
func (s *WalletService) GetWallet(ctx context.Context, broker, stock string) (*domain.Wallet, error) {
	broker = domain.NormalizeBroker(broker)
	stock = domain.NormalizeStock(stock)
	if broker == "" || stock == "" {
		return nil, &domain.ValidationError{Message: "broker and stock are required"}
	}

	shares, found, err := s.wallets.GetShares(ctx, broker, stock)
	if err != nil {
		return nil, fmt.Errorf("get wallet %s/%s: %w", broker, stock, err)
	}
	if !found {
		return nil, domain.ErrWalletNotFound
	}
	return &domain.Wallet{Broker: broker, Stock: stock, Shares: shares}, nil
}
