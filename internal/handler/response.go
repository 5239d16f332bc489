package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/efreitasn/stockledger/internal/domain"
)

// WriteJSON writes a JSON response with the given status code and data.
// Sets Content-Type to application/json before writing the status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data) // Write error intentionally ignored in response helper
}

// errorResponse is the standard error response format.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes a standard error response with the given status code,
// error code, and human-readable message.
func WriteError(w http.ResponseWriter, status int, errorCode, message string) {
	WriteJSON(w, status, errorResponse{
		Error:   errorCode,
		Message: message,
	})
}

// ParseJSON decodes the request body as JSON into v. Unknown fields and
// trailing garbage are rejected.
func ParseJSON(r *http.Request, v any) error {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(ct, "application/json") {
		return fmt.Errorf("Request body must be valid JSON with Content-Type: application/json")
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("Request body must be valid JSON with Content-Type: application/json")
	}
	if dec.More() {
		return fmt.Errorf("Request body must contain a single JSON object")
	}

	return nil
}

// offerResponse is a history record as rendered to clients.
type offerResponse struct {
	Seq       uint64 `json:"seq"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	DateTime  string `json:"datetime"`
	Operation string `json:"operation"`
	Broker    string `json:"broker"`
	Stock     string `json:"stock"`
	Price     string `json:"price"`
	Shares    int64  `json:"shares"`
}

func buildOfferResponse(o *domain.Offer) offerResponse {
	return offerResponse{
		Seq:       o.Seq,
		ID:        o.ID,
		Timestamp: o.Timestamp.UTC().Format(time.RFC3339Nano),
		DateTime:  o.DateTime,
		Operation: string(o.Operation),
		Broker:    o.Broker,
		Stock:     o.Stock,
		Price:     o.Price.String(),
		Shares:    o.Shares,
	}
}
