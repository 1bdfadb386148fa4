package wallet

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ficore/wallet-api/internal/middleware"
	"github.com/ficore/wallet-api/internal/pkg/response"
	"github.com/ficore/wallet-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type debitRequest struct {
	Amount    int64  `json:"amount" validate:"required,gt=0"`
	Reference string `json:"reference" validate:"required"`
	PIN       string `json:"pin" validate:"required,pin4"`
}

type creditRequest struct {
	UserID    string `json:"user_id" validate:"required,uuid"`
	Amount    int64  `json:"amount" validate:"required,gt=0"`
	Reference string `json:"reference" validate:"required"`
	Type      string `json:"type"`
}

type pinSetupRequest struct {
	PIN string `json:"pin" validate:"required,pin4"`
}

type pinChangeRequest struct {
	CurrentPIN string `json:"current_pin" validate:"required,pin4"`
	NewPIN     string `json:"new_pin" validate:"required,pin4"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	wallet, err := h.svc.CreateWallet(r.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, ErrWalletExists):
			response.Conflict(w, "wallet already exists")
		case errors.Is(err, ErrKYCRequired):
			response.Error(w, http.StatusForbidden, "kyc_required", "complete BVN and NIN verification first")
		default:
			response.InternalError(w)
		}
		return
	}
	response.Created(w, wallet)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	wallet, err := h.svc.GetWallet(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrWalletNotFound) {
			response.NotFound(w, "wallet not found")
			return
		}
		response.InternalError(w)
		return
	}
	response.OK(w, wallet)
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	balance, err := h.svc.GetBalance(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrWalletNotFound) {
			response.NotFound(w, "wallet not found")
			return
		}
		response.InternalError(w)
		return
	}
	response.OK(w, map[string]interface{}{"balance": balance})
}

func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	txns, err := h.svc.ListTransactions(r.Context(), userID, limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}
	if txns == nil {
		txns = []*Transaction{}
	}
	response.OK(w, txns)
}

// Debit spends wallet funds; the transaction PIN authorizes the withdrawal.
func (h *Handler) Debit(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req debitRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	if err := h.svc.ValidatePIN(r.Context(), userID, req.PIN); err != nil {
		h.writePINError(w, err)
		return
	}

	balance, err := h.svc.Debit(r.Context(), userID, req.Amount, TransactionTypePurchase, req.Reference)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidAmount):
			response.BadRequest(w, "amount must be greater than zero and reference is required")
		case errors.Is(err, ErrInsufficientFunds):
			response.Conflict(w, "insufficient wallet balance")
		case errors.Is(err, ErrReferenceConflict):
			response.Conflict(w, "reference already used with a different amount")
		case errors.Is(err, ErrWalletNotFound):
			response.NotFound(w, "wallet not found")
		default:
			response.InternalError(w)
		}
		return
	}
	response.OK(w, map[string]interface{}{"balance": balance})
}

// Credit is the admin adjustment endpoint for refunds and manual top-ups.
func (h *Handler) Credit(w http.ResponseWriter, r *http.Request) {
	var req creditRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	targetID, err := uuid.Parse(req.UserID)
	if err != nil {
		response.BadRequest(w, "invalid user_id")
		return
	}

	txType := TransactionTypeManual
	if req.Type == string(TransactionTypeRefund) {
		txType = TransactionTypeRefund
	}

	balance, err := h.svc.Credit(r.Context(), targetID, req.Amount, txType, req.Reference)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidAmount):
			response.BadRequest(w, "amount must be greater than zero and reference is required")
		case errors.Is(err, ErrWalletNotFound):
			response.NotFound(w, "wallet not found")
		default:
			response.InternalError(w)
		}
		return
	}
	response.OK(w, map[string]interface{}{"balance": balance})
}

func (h *Handler) SetupPIN(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req pinSetupRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	if err := h.svc.SetupPIN(r.Context(), userID, req.PIN); err != nil {
		h.writePINError(w, err)
		return
	}
	response.OK(w, map[string]interface{}{"message": "pin set"})
}

func (h *Handler) ChangePIN(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req pinChangeRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	if err := h.svc.ChangePIN(r.Context(), userID, req.CurrentPIN, req.NewPIN); err != nil {
		h.writePINError(w, err)
		return
	}
	response.OK(w, map[string]interface{}{"message": "pin changed"})
}

// ValidatePIN lets clients confirm a PIN before building a purchase flow
// around it. Failures count toward the lockout like any other attempt.
func (h *Handler) ValidatePIN(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req pinSetupRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	if err := h.svc.ValidatePIN(r.Context(), userID, req.PIN); err != nil {
		h.writePINError(w, err)
		return
	}
	response.OK(w, map[string]interface{}{"valid": true})
}

func (h *Handler) PINStatus(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	status, err := h.svc.GetPINStatus(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrWalletNotFound) {
			response.NotFound(w, "wallet not found")
			return
		}
		response.InternalError(w)
		return
	}
	response.OK(w, status)
}

func (h *Handler) writePINError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrPINBadInput):
		response.BadRequest(w, "pin must be exactly 4 digits")
	case errors.Is(err, ErrPINTooWeak):
		response.BadRequest(w, "pin is too easy to guess")
	case errors.Is(err, ErrPINNotSet):
		response.Error(w, http.StatusPreconditionFailed, "pin_not_set", "set a transaction pin first")
	case errors.Is(err, ErrPINExists):
		response.Conflict(w, "pin already set, use change instead")
	case errors.Is(err, ErrPINInvalid):
		response.Unauthorized(w, "incorrect pin")
	case errors.Is(err, ErrPINLocked):
		response.Error(w, http.StatusLocked, "pin_locked", "pin locked for 15 minutes after 3 failed attempts")
	case errors.Is(err, ErrWalletNotFound):
		response.NotFound(w, "wallet not found")
	default:
		response.InternalError(w)
	}
}

func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Post("/", h.Create)
	r.Get("/", h.Get)
	r.Get("/balance", h.Balance)
	r.Get("/transactions", h.Transactions)
	r.Post("/debit", h.Debit)
	r.Post("/pin", h.SetupPIN)
	r.Put("/pin", h.ChangePIN)
	r.Post("/pin/validate", h.ValidatePIN)
	r.Get("/pin/status", h.PINStatus)
	r.With(middleware.RequireAdmin()).Post("/credit", h.Credit)
	return r
}
