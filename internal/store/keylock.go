package store

import (
	"hash/fnv"
	"sync"

	"github.com/efreitasn/stockledger/internal/domain"
)

const lockStripes = 256

// KeyLocks serializes work per wallet key using a fixed set of mutexes.
// The same key always hashes to the same stripe; unrelated keys may
// share one.
type KeyLocks struct {
	stripes [lockStripes]sync.Mutex
}

// Lock blocks until key's stripe is held and returns its unlock func.
func (l *KeyLocks) Lock(key domain.WalletKey) func() {
	m := &l.stripes[stripeFor(key)]
	m.Lock()
	return m.Unlock
}

func stripeFor(key domain.WalletKey) int {
	h := fnv.New32a()
	h.Write([]byte(key.Encode()))
	return int(h.Sum32() % lockStripes)
}
