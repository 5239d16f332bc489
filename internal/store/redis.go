package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/efreitasn/stockledger/internal/domain"
)

const (
	redisWalletPrefix = "wallet:"
	redisOfferPrefix  = "offer:"
	redisIndexPrefix  = "offers:"
	redisSeqKey       = "offers:seq"
)

// Compile-time check to ensure RedisStore implements Store.
var _ Store = (*RedisStore)(nil)

var errTooManyRetries = errors.New("optimistic transaction retries exhausted")

// RedisStore is a Store backed by redis. Update is an optimistic
// compare-and-swap: the wallet key is WATCHed, read, and rewritten in a
// MULTI/EXEC together with the history writes. A concurrent change to
// the wallet aborts EXEC and the whole update function is retried.
type RedisStore struct {
	client     *redis.Client
	maxRetries int
}

// NewRedisStore wraps client. maxRetries bounds the CAS attempts per
// Update; values below 1 are treated as 1.
func NewRedisStore(client *redis.Client, maxRetries int) *RedisStore {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &RedisStore{
		client:     client,
		maxRetries: maxRetries,
	}
}

// GetShares returns the balance for (broker, stock).
func (s *RedisStore) GetShares(ctx context.Context, broker, stock string) (int64, bool, error) {
	return redisReadShares(ctx, s.client, redisWalletKey(domain.WalletKey{Broker: broker, Stock: stock}))
}

// QueryOffers reads the (field, value) sorted set and loads each offer.
func (s *RedisStore) QueryOffers(ctx context.Context, field domain.QueryField, value string) ([]*domain.Offer, error) {
	seqs, err := s.client.ZRange(ctx, redisIndexKey(field, value), 0, -1).Result()
	if err != nil {
		return nil, domain.StoreError("read index", err)
	}

	result := make([]*domain.Offer, 0, len(seqs))
	if len(seqs) == 0 {
		return result, nil
	}

	keys := make([]string, len(seqs))
	for i, seq := range seqs {
		keys[i] = redisOfferPrefix + seq
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, domain.StoreError("load offers", err)
	}

	for i, val := range vals {
		payload, ok := val.(string)
		if !ok {
			return nil, domain.StoreError("load offers", errors.New("missing offer "+keys[i]))
		}
		var o domain.Offer
		if err := json.Unmarshal([]byte(payload), &o); err != nil {
			return nil, domain.StoreError("decode offer", err)
		}
		result = append(result, &o)
	}
	return result, nil
}

// Update runs fn inside a WATCH on key's wallet and commits with
// MULTI/EXEC, retrying when the watched keys change underneath.
func (s *RedisStore) Update(ctx context.Context, key domain.WalletKey, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	wk := redisWalletKey(key)

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		var ran bool
		err := s.client.Watch(ctx, func(rtx *redis.Tx) error {
			ran = true
			tx := &redisTx{ctx: ctx, rtx: rtx, walletKey: wk}
			if err := fn(tx); err != nil {
				return err
			}
			_, err := rtx.TxPipelined(ctx, tx.flush)
			if err != nil && !errors.Is(err, redis.TxFailedErr) {
				return domain.StoreError("exec transaction", err)
			}
			return err
		}, wk)

		switch {
		case errors.Is(err, redis.TxFailedErr):
			continue
		case err != nil && !ran:
			return domain.StoreError("watch wallet", err)
		default:
			return err
		}
	}
	return domain.StoreError("update wallet "+key.String(), errTooManyRetries)
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

type redisTx struct {
	ctx       context.Context
	rtx       *redis.Tx
	walletKey string

	shares *int64
	offers []stagedOffer
}

type stagedOffer struct {
	offer   *domain.Offer
	payload []byte
}

func (tx *redisTx) Shares() (int64, bool, error) {
	if tx.shares != nil {
		return *tx.shares, true, nil
	}
	return redisReadShares(tx.ctx, tx.rtx, tx.walletKey)
}

func (tx *redisTx) SetShares(shares int64) error {
	if shares < 0 {
		return domain.ErrNegativeBalance
	}
	tx.shares = &shares
	return nil
}

func (tx *redisTx) NextSeq() (uint64, error) {
	seq, err := tx.rtx.Incr(tx.ctx, redisSeqKey).Uint64()
	if err != nil {
		return 0, domain.StoreError("next seq", err)
	}
	return seq, nil
}

func (tx *redisTx) AppendOffer(o *domain.Offer) error {
	key := redisOfferPrefix + strconv.FormatUint(o.Seq, 10)

	for _, staged := range tx.offers {
		if staged.offer.Seq == o.Seq {
			return domain.ErrDuplicateKey
		}
	}

	// Watching the offer key makes EXEC fail if anyone else writes it
	// between this check and the commit.
	if err := tx.rtx.Watch(tx.ctx, key).Err(); err != nil {
		return domain.StoreError("watch offer", err)
	}
	n, err := tx.rtx.Exists(tx.ctx, key).Result()
	if err != nil {
		return domain.StoreError("check offer key", err)
	}
	if n > 0 {
		return domain.ErrDuplicateKey
	}

	payload, err := json.Marshal(o)
	if err != nil {
		return domain.StoreError("encode offer", err)
	}
	cp := *o
	tx.offers = append(tx.offers, stagedOffer{offer: &cp, payload: payload})
	return nil
}

// flush queues the staged writes into the MULTI block.
func (tx *redisTx) flush(pipe redis.Pipeliner) error {
	if tx.shares != nil {
		pipe.Set(tx.ctx, tx.walletKey, *tx.shares, 0)
	}
	for _, staged := range tx.offers {
		seq := strconv.FormatUint(staged.offer.Seq, 10)
		member := redis.Z{Score: float64(staged.offer.Seq), Member: seq}

		pipe.Set(tx.ctx, redisOfferPrefix+seq, staged.payload, 0)
		for _, f := range domain.QueryFields {
			pipe.ZAdd(tx.ctx, redisIndexKey(f, staged.offer.Field(f)), member)
		}
	}
	return nil
}

// redisGetter is satisfied by both *redis.Client and *redis.Tx.
type redisGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func redisReadShares(ctx context.Context, c redisGetter, key string) (int64, bool, error) {
	shares, err := c.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, domain.StoreError("read wallet", err)
	}
	return shares, true, nil
}

func redisWalletKey(k domain.WalletKey) string {
	return redisWalletPrefix + k.Encode()
}

func redisIndexKey(field domain.QueryField, value string) string {
	return redisIndexPrefix + string(field) + ":" + strconv.Itoa(len(value)) + ":" + value
}
