package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateTimeLayout is the human-readable rendering of an offer's timestamp.
const DateTimeLayout = "2006/01/02 15:04:05"

// Operation indicates whether an offer adds or removes shares.
type Operation string

const (
	OperationBuy  Operation = "buy"
	OperationSell Operation = "sell"
)

// Valid reports whether o is one of the known operations.
func (o Operation) Valid() bool {
	return o == OperationBuy || o == OperationSell
}

// Offer is an accepted buy or sell instruction. Once appended to history
// it is never mutated.
type Offer struct {
	Seq       uint64          `json:"seq"`
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	DateTime  string          `json:"datetime"`
	Operation Operation       `json:"operation"`
	Broker    string          `json:"broker"`
	Stock     string          `json:"stock"`
	Price     decimal.Decimal `json:"price"`
	Shares    int64           `json:"shares"`
}

// Key returns the wallet the offer mutates.
func (o *Offer) Key() WalletKey {
	return WalletKey{Broker: o.Broker, Stock: o.Stock}
}

// Field returns the stored value of a query field.
func (o *Offer) Field(f QueryField) string {
	switch f {
	case FieldBroker:
		return o.Broker
	case FieldOperation:
		return string(o.Operation)
	case FieldStock:
		return o.Stock
	}
	return ""
}

// OfferInput is an offer as submitted, before the ledger accepts it.
type OfferInput struct {
	Operation Operation
	Broker    string
	Stock     string
	Price     decimal.Decimal
	Shares    int64
}

// Key returns the wallet the input targets.
func (in OfferInput) Key() WalletKey {
	return WalletKey{Broker: in.Broker, Stock: in.Stock}
}

// NormalizeOffer applies the casing rules used throughout storage:
// operation and broker lowercase, stock uppercase. Surrounding
// whitespace is trimmed. It performs no validation.
func NormalizeOffer(in OfferInput) OfferInput {
	in.Operation = Operation(strings.ToLower(strings.TrimSpace(string(in.Operation))))
	in.Broker = NormalizeBroker(in.Broker)
	in.Stock = NormalizeStock(in.Stock)
	return in
}

// NormalizeBroker lowercases a broker identifier.
func NormalizeBroker(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeStock uppercases a ticker.
func NormalizeStock(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// QueryField is a history column that offers can be filtered by.
type QueryField string

const (
	FieldBroker    QueryField = "broker"
	FieldOperation QueryField = "operation"
	FieldStock     QueryField = "stock"
)

// QueryFields lists the filterable fields in a stable order.
var QueryFields = []QueryField{FieldBroker, FieldOperation, FieldStock}

// ParseQueryField returns ErrUnknownField for anything but broker,
// operation or stock.
func ParseQueryField(s string) (QueryField, error) {
	switch f := QueryField(strings.ToLower(strings.TrimSpace(s))); f {
	case FieldBroker, FieldOperation, FieldStock:
		return f, nil
	}
	return "", ErrUnknownField
}

// NormalizeValue applies the field's storage casing to a filter value.
func (f QueryField) NormalizeValue(v string) string {
	switch f {
	case FieldBroker, FieldOperation:
		return strings.ToLower(strings.TrimSpace(v))
	case FieldStock:
		return NormalizeStock(v)
	}
	return v
}
