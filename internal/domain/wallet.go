package domain

import "strconv"

// WalletKey identifies a broker's position in one stock.
type WalletKey struct {
	Broker string
	Stock  string
}

// String renders the key as broker/stock. Use Encode for storage keys.
func (k WalletKey) String() string {
	return k.Broker + "/" + k.Stock
}

// Encode returns an unambiguous byte form of the key. Both parts are
// length-prefixed so separators inside broker or stock cannot make two
// distinct keys collide.
func (k WalletKey) Encode() string {
	return strconv.Itoa(len(k.Broker)) + ":" + k.Broker + strconv.Itoa(len(k.Stock)) + ":" + k.Stock
}

// Wallet is the current share balance a broker holds for a stock.
type Wallet struct {
	Broker string `json:"broker"`
	Stock  string `json:"stock"`
	Shares int64  `json:"shares"`
}
