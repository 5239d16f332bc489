package store

import (
	"context"

	"github.com/efreitasn/stockledger/internal/domain"
)

// Tx is the view of one wallet and the history log inside Update.
// Writes are staged and become visible only if the update function
// returns nil; otherwise nothing is persisted.
type Tx interface {
	// Shares returns the transaction wallet's balance and whether the
	// wallet exists.
	Shares() (shares int64, found bool, err error)
	// SetShares upserts the transaction wallet's balance. Negative values
	// are rejected with domain.ErrNegativeBalance.
	SetShares(shares int64) error
	// NextSeq reserves a history key. Keys are unique across the store;
	// a rolled back transaction may leave a gap.
	NextSeq() (uint64, error)
	// AppendOffer stages a history record. It fails with
	// domain.ErrDuplicateKey if the record's Seq is already taken.
	AppendOffer(o *domain.Offer) error
}

// WalletReader reads wallet balances outside a transaction.
type WalletReader interface {
	GetShares(ctx context.Context, broker, stock string) (shares int64, found bool, err error)
}

// HistoryReader filters the offer history.
type HistoryReader interface {
	// QueryOffers returns the offers whose field equals value, ordered by
	// Seq ascending. Returns an empty slice when nothing matches.
	QueryOffers(ctx context.Context, field domain.QueryField, value string) ([]*domain.Offer, error)
}

// Store is a wallet table plus an append-only history log whose
// mutations for one wallet key are serialized and committed atomically.
type Store interface {
	WalletReader
	HistoryReader
	// Update runs fn with exclusive access to key's wallet. Wallet and
	// history writes staged by fn are committed together, or not at all
	// when fn returns an error. That error is returned unchanged.
	Update(ctx context.Context, key domain.WalletKey, fn func(tx Tx) error) error
	Close() error
}
