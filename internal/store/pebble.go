package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"strconv"

	"github.com/cockroachdb/pebble"

	"github.com/efreitasn/stockledger/internal/domain"
)

// Compile-time check to ensure PebbleStore implements Store.
var _ Store = (*PebbleStore)(nil)

// Key layout:
//
//	w/<wallet key>                       → shares, uint64 big-endian
//	o/<seq>                              → offer JSON
//	i/<field>/<len>:<value>/<seq>        → empty
//
// seq is an 8-byte big-endian integer so byte order matches Seq order.
const (
	walletKeyPrefix = "w/"
	offerKeyPrefix  = "o/"
	indexKeyPrefix  = "i/"
)

// PebbleStore is a durable Store backed by a pebble database. Each
// Update is one batch committed with pebble.Sync.
type PebbleStore struct {
	db    *pebble.DB
	locks KeyLocks
	seq   *domain.Sequencer
}

// OpenPebble opens (creating if needed) the database in dir and seeds
// the sequencer from the highest stored offer key.
func OpenPebble(dir string) (*PebbleStore, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, domain.StoreError("open pebble", err)
	}

	s := &PebbleStore{db: db}
	last, err := s.LastSeq()
	if err != nil {
		db.Close()
		return nil, err
	}
	s.seq = domain.NewSequencer(last)
	return s, nil
}

// Close flushes and closes the database.
func (s *PebbleStore) Close() error {
	return s.db.Close()
}

// LastSeq returns the highest offer Seq stored, or 0 for an empty log.
func (s *PebbleStore) LastSeq() (uint64, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(offerKeyPrefix),
		UpperBound: prefixEnd([]byte(offerKeyPrefix)),
	})
	if err != nil {
		return 0, domain.StoreError("scan offers", err)
	}
	defer iter.Close()

	if !iter.Last() {
		return 0, nil
	}
	key := iter.Key()
	return binary.BigEndian.Uint64(key[len(key)-8:]), nil
}

// GetShares returns the balance for (broker, stock).
func (s *PebbleStore) GetShares(ctx context.Context, broker, stock string) (int64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	return readShares(s.db, walletKey(domain.WalletKey{Broker: broker, Stock: stock}))
}

// QueryOffers scans the (field, value) index and loads each offer.
func (s *PebbleStore) QueryOffers(ctx context.Context, field domain.QueryField, value string) ([]*domain.Offer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := indexPrefix(field, value)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixEnd(prefix),
	})
	if err != nil {
		return nil, domain.StoreError("scan index", err)
	}
	defer iter.Close()

	result := make([]*domain.Offer, 0)
	for iter.First(); iter.Valid(); iter.Next() {
		key := iter.Key()
		seq := binary.BigEndian.Uint64(key[len(key)-8:])

		o, err := s.loadOffer(seq)
		if err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	if err := iter.Error(); err != nil {
		return nil, domain.StoreError("scan index", err)
	}
	return result, nil
}

// Update runs fn under key's stripe lock against an indexed batch and
// commits the batch if fn succeeds.
func (s *PebbleStore) Update(ctx context.Context, key domain.WalletKey, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	unlock := s.locks.Lock(key)
	defer unlock()

	batch := s.db.NewIndexedBatch()
	defer batch.Close()

	tx := &pebbleTx{store: s, batch: batch, key: key}
	if err := fn(tx); err != nil {
		return err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return domain.StoreError("commit batch", err)
	}
	return nil
}

func (s *PebbleStore) loadOffer(seq uint64) (*domain.Offer, error) {
	val, closer, err := s.db.Get(offerKey(seq))
	if err != nil {
		return nil, domain.StoreError("load offer "+strconv.FormatUint(seq, 10), err)
	}
	defer closer.Close()

	var o domain.Offer
	if err := json.Unmarshal(val, &o); err != nil {
		return nil, domain.StoreError("decode offer", err)
	}
	return &o, nil
}

type pebbleTx struct {
	store *PebbleStore
	batch *pebble.Batch
	key   domain.WalletKey
}

func (tx *pebbleTx) Shares() (int64, bool, error) {
	return readShares(tx.batch, walletKey(tx.key))
}

func (tx *pebbleTx) SetShares(shares int64) error {
	if shares < 0 {
		return domain.ErrNegativeBalance
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(shares))
	if err := tx.batch.Set(walletKey(tx.key), buf, nil); err != nil {
		return domain.StoreError("stage wallet", err)
	}
	return nil
}

func (tx *pebbleTx) NextSeq() (uint64, error) {
	return tx.store.seq.Next(), nil
}

func (tx *pebbleTx) AppendOffer(o *domain.Offer) error {
	key := offerKey(o.Seq)

	_, closer, err := tx.batch.Get(key)
	switch {
	case err == nil:
		closer.Close()
		return domain.ErrDuplicateKey
	case !errors.Is(err, pebble.ErrNotFound):
		return domain.StoreError("check offer key", err)
	}

	val, err := json.Marshal(o)
	if err != nil {
		return domain.StoreError("encode offer", err)
	}
	if err := tx.batch.Set(key, val, nil); err != nil {
		return domain.StoreError("stage offer", err)
	}
	for _, f := range domain.QueryFields {
		ik := append(indexPrefix(f, o.Field(f)), key[len(offerKeyPrefix):]...)
		if err := tx.batch.Set(ik, nil, nil); err != nil {
			return domain.StoreError("stage index", err)
		}
	}
	return nil
}

// pebbleReader is satisfied by both *pebble.DB and an indexed *pebble.Batch.
type pebbleReader interface {
	Get(key []byte) ([]byte, io.Closer, error)
}

func readShares(r pebbleReader, key []byte) (int64, bool, error) {
	val, closer, err := r.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, domain.StoreError("read wallet", err)
	}
	defer closer.Close()

	if len(val) != 8 {
		return 0, false, domain.StoreError("read wallet", errors.New("corrupt wallet value"))
	}
	return int64(binary.BigEndian.Uint64(val)), true, nil
}

func walletKey(k domain.WalletKey) []byte {
	return []byte(walletKeyPrefix + k.Encode())
}

func offerKey(seq uint64) []byte {
	buf := make([]byte, len(offerKeyPrefix)+8)
	copy(buf, offerKeyPrefix)
	binary.BigEndian.PutUint64(buf[len(offerKeyPrefix):], seq)
	return buf
}

func indexPrefix(field domain.QueryField, value string) []byte {
	return []byte(indexKeyPrefix + string(field) + "/" + strconv.Itoa(len(value)) + ":" + value + "/")
}

// prefixEnd returns the smallest key greater than every key that starts
// with prefix.
func prefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
