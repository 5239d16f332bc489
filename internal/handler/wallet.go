package handler

import (
	"errors"
	"net/http"

	"github.com/efreitasn/stockledger/internal/domain"
	"github.com/efreitasn/stockledger/internal/service"
)

// WalletHandler handles HTTP requests for wallet endpoints.
type WalletHandler struct {
	walletSvc *service.WalletService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc *service.WalletService) *WalletHandler {
	return &WalletHandler{walletSvc: walletSvc}
}

type walletResponse struct {
	Broker string `json:"broker"`
	Stock  string `json:"stock"`
	Shares int64  `json:"shares"`
}

// GetWallet handles GET /wallets/{broker}/{stock}.
func (h *WalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	parts, ok := splitEscaped(rawTail(r, "/wallets/"), "/", 2)
	if !ok || len(parts) != 2 {
		WriteError(w, http.StatusBadRequest, "validation_error", "broker and stock must be valid path segments")
		return
	}

	wallet, err := h.walletSvc.GetWallet(r.Context(), parts[0], parts[1])
	if err != nil {
		var ve *domain.ValidationError
		switch {
		case errors.Is(err, domain.ErrWalletNotFound):
			WriteError(w, http.StatusNotFound, "not_found", "Wallet not found")
		case errors.As(err, &ve):
			WriteError(w, http.StatusBadRequest, "validation_error", ve.Message)
		default:
			mapOfferError(w, err)
		}
		return
	}

	WriteJSON(w, http.StatusOK, walletResponse{
		Broker: wallet.Broker,
		Stock:  wallet.Stock,
		Shares: wallet.Shares,
	})
}
