package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/stockledger/internal/domain"
	"github.com/efreitasn/stockledger/internal/ledger"
	"github.com/efreitasn/stockledger/internal/service"
)

// OfferHandler handles HTTP requests for offer endpoints.
type OfferHandler struct {
	offerSvc *service.OfferService
}

// NewOfferHandler creates a new OfferHandler.
func NewOfferHandler(offerSvc *service.OfferService) *OfferHandler {
	return &OfferHandler{offerSvc: offerSvc}
}

// submitOfferRequest is the JSON request body for POST /offers. Price
// accepts a JSON number or a decimal string.
type submitOfferRequest struct {
	Operation string          `json:"operation"`
	Broker    string          `json:"broker"`
	Stock     string          `json:"stock"`
	Price     decimal.Decimal `json:"price"`
	Shares    int64           `json:"shares"`
}

type acceptedResponse struct {
	Status string        `json:"status"`
	Offer  offerResponse `json:"offer"`
}

type rejectedResponse struct {
	Status  string `json:"status"`
	Reason  string `json:"reason"`
	Held    int64  `json:"held"`
	Message string `json:"message"`
}

type offerListResponse struct {
	Offers []offerResponse `json:"offers"`
}

// SubmitPath handles GET /offer/{operation};{broker};{stock};{price};{shares}.
func (h *OfferHandler) SubmitPath(w http.ResponseWriter, r *http.Request) {
	parts, ok := splitEscaped(rawTail(r, "/offer/"), ";", -1)
	if !ok || len(parts) != 5 {
		writeHelp(w, http.StatusNotFound)
		return
	}

	price, err := domain.ParsePrice(parts[3])
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	shares, err := strconv.ParseInt(strings.TrimSpace(parts[4]), 10, 64)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error",
			fmt.Sprintf("shares must be an integer, got %q", parts[4]))
		return
	}

	h.submit(w, r, service.SubmitOfferRequest{
		Operation: parts[0],
		Broker:    parts[1],
		Stock:     parts[2],
		Price:     price,
		Shares:    shares,
	})
}

// Submit handles POST /offers.
func (h *OfferHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitOfferRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	h.submit(w, r, service.SubmitOfferRequest{
		Operation: req.Operation,
		Broker:    req.Broker,
		Stock:     req.Stock,
		Price:     req.Price,
		Shares:    req.Shares,
	})
}

func (h *OfferHandler) submit(w http.ResponseWriter, r *http.Request, req service.SubmitOfferRequest) {
	res, err := h.offerSvc.SubmitOffer(r.Context(), req)
	if err != nil {
		mapOfferError(w, err)
		return
	}

	switch res.Status {
	case ledger.StatusAccepted:
		WriteJSON(w, http.StatusCreated, acceptedResponse{
			Status: string(res.Status),
			Offer:  buildOfferResponse(res.Offer),
		})
	case ledger.StatusRejected:
		WriteJSON(w, http.StatusConflict, rejectedResponse{
			Status:  string(res.Status),
			Reason:  res.Reason,
			Held:    res.Held,
			Message: res.Message,
		})
	default:
		WriteError(w, http.StatusBadRequest, "validation_error", res.Message)
	}
}

// QueryPath handles GET /info/{field}={value}. Malformed or unknown
// filters get the help page.
func (h *OfferHandler) QueryPath(w http.ResponseWriter, r *http.Request) {
	parts, ok := splitEscaped(rawTail(r, "/info/"), "=", 2)
	if !ok || len(parts) != 2 {
		writeHelp(w, http.StatusNotFound)
		return
	}

	offers, err := h.offerSvc.QueryOffers(r.Context(), parts[0], parts[1])
	if errors.Is(err, domain.ErrUnknownField) {
		writeHelp(w, http.StatusNotFound)
		return
	}
	if err != nil {
		mapOfferError(w, err)
		return
	}
	writeOfferList(w, offers)
}

// Query handles GET /offers?{field}={value}. Exactly one of broker,
// operation or stock must be given.
func (h *OfferHandler) Query(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var field, value string
	for key := range q {
		if field != "" {
			WriteError(w, http.StatusBadRequest, "validation_error",
				"exactly one of broker, operation or stock is required")
			return
		}
		field, value = key, q.Get(key)
	}
	if field == "" {
		WriteError(w, http.StatusBadRequest, "validation_error",
			"exactly one of broker, operation or stock is required")
		return
	}

	offers, err := h.offerSvc.QueryOffers(r.Context(), field, value)
	if err != nil {
		mapOfferError(w, err)
		return
	}
	writeOfferList(w, offers)
}

// rawTail returns the still-escaped request path after prefix. Separators
// are matched before decoding, so an escaped ';' or '=' stays part of a
// value and every segment is decoded exactly once.
func rawTail(r *http.Request, prefix string) string {
	return strings.TrimPrefix(r.URL.EscapedPath(), prefix)
}

// splitEscaped splits raw on sep into at most n parts (n < 0 for all)
// and decodes each part. ok is false if a part is not valid escaping.
func splitEscaped(raw, sep string, n int) ([]string, bool) {
	parts := strings.SplitN(raw, sep, n)
	for i, p := range parts {
		decoded, err := url.PathUnescape(p)
		if err != nil {
			return nil, false
		}
		parts[i] = decoded
	}
	return parts, true
}

func writeOfferList(w http.ResponseWriter, offers []*domain.Offer) {
	resp := offerListResponse{Offers: make([]offerResponse, 0, len(offers))}
	for _, o := range offers {
		resp.Offers = append(resp.Offers, buildOfferResponse(o))
	}
	WriteJSON(w, http.StatusOK, resp)
}

// mapOfferError maps service errors to HTTP responses.
func mapOfferError(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		WriteError(w, http.StatusBadRequest, "validation_error", ve.Message)
	case errors.Is(err, domain.ErrUnknownField):
		WriteError(w, http.StatusBadRequest, "validation_error",
			"field must be one of broker, operation or stock")
	case errors.Is(err, domain.ErrStoreUnavailable):
		WriteError(w, http.StatusServiceUnavailable, "store_unavailable", "Storage is temporarily unavailable")
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
