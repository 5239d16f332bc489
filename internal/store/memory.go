package store

import (
	"context"
	"sync"

	"github.com/google/btree"

	"github.com/efreitasn/stockledger/internal/domain"
)

// Compile-time check to ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

func seqLess(a, b *domain.Offer) bool {
	return a.Seq < b.Seq
}

// MemoryStore is a thread-safe in-memory Store. History is kept in a
// B-tree ordered by Seq, with one secondary B-tree per (field, value).
type MemoryStore struct {
	locks KeyLocks
	seq   *domain.Sequencer

	mu      sync.RWMutex
	wallets map[domain.WalletKey]int64
	history *btree.BTreeG[*domain.Offer]
	index   map[domain.QueryField]map[string]*btree.BTreeG[*domain.Offer]
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	index := make(map[domain.QueryField]map[string]*btree.BTreeG[*domain.Offer], len(domain.QueryFields))
	for _, f := range domain.QueryFields {
		index[f] = make(map[string]*btree.BTreeG[*domain.Offer])
	}
	return &MemoryStore{
		seq:     domain.NewSequencer(0),
		wallets: make(map[domain.WalletKey]int64),
		history: btree.NewG[*domain.Offer](32, seqLess),
		index:   index,
	}
}

// GetShares returns the balance for (broker, stock).
func (s *MemoryStore) GetShares(_ context.Context, broker, stock string) (int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	shares, ok := s.wallets[domain.WalletKey{Broker: broker, Stock: stock}]
	return shares, ok, nil
}

// QueryOffers returns copies of the matching offers in Seq order.
func (s *MemoryStore) QueryOffers(_ context.Context, field domain.QueryField, value string) ([]*domain.Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Offer, 0)
	tree, ok := s.index[field][value]
	if !ok {
		return result, nil
	}
	tree.Ascend(func(o *domain.Offer) bool {
		cp := *o
		result = append(result, &cp)
		return true
	})
	return result, nil
}

// Update runs fn under key's stripe lock and applies the staged writes
// under the store lock only when fn succeeds.
func (s *MemoryStore) Update(ctx context.Context, key domain.WalletKey, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	unlock := s.locks.Lock(key)
	defer unlock()

	tx := &memoryTx{store: s, key: key}
	if err := fn(tx); err != nil {
		return err
	}
	return s.commit(tx)
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) commit(tx *memoryTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-check under the write lock: another wallet's transaction may have
	// appended the same Seq after this one staged it.
	for _, o := range tx.offers {
		if s.history.Has(o) {
			return domain.ErrDuplicateKey
		}
	}

	if tx.dirty {
		s.wallets[tx.key] = tx.shares
	}
	for _, o := range tx.offers {
		s.history.ReplaceOrInsert(o)
		for _, f := range domain.QueryFields {
			v := o.Field(f)
			tree, ok := s.index[f][v]
			if !ok {
				tree = btree.NewG[*domain.Offer](32, seqLess)
				s.index[f][v] = tree
			}
			tree.ReplaceOrInsert(o)
		}
	}
	return nil
}

type memoryTx struct {
	store  *MemoryStore
	key    domain.WalletKey
	shares int64
	dirty  bool
	offers []*domain.Offer
}

func (tx *memoryTx) Shares() (int64, bool, error) {
	if tx.dirty {
		return tx.shares, true, nil
	}
	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()

	shares, ok := tx.store.wallets[tx.key]
	return shares, ok, nil
}

func (tx *memoryTx) SetShares(shares int64) error {
	if shares < 0 {
		return domain.ErrNegativeBalance
	}
	tx.shares = shares
	tx.dirty = true
	return nil
}

func (tx *memoryTx) NextSeq() (uint64, error) {
	return tx.store.seq.Next(), nil
}

func (tx *memoryTx) AppendOffer(o *domain.Offer) error {
	for _, staged := range tx.offers {
		if staged.Seq == o.Seq {
			return domain.ErrDuplicateKey
		}
	}

	tx.store.mu.RLock()
	exists := tx.store.history.Has(o)
	tx.store.mu.RUnlock()
	if exists {
		return domain.ErrDuplicateKey
	}

	cp := *o
	tx.offers = append(tx.offers, &cp)
	return nil
}
