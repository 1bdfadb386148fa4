package settlement

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/ficore/wallet-api/internal/pkg/monnify"
	"github.com/ficore/wallet-api/internal/pkg/response"
)

// Gateway payloads are small; anything past this is not a webhook.
const maxWebhookBody = 1 << 20

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Webhook handles POST /webhooks/monnify. The raw body is read before any
// decoding because the signature covers the exact bytes the gateway sent.
// 401 is reserved for signature failures; every other decision is a 200 ack.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		response.BadRequest(w, "unreadable body")
		return
	}

	signature := r.Header.Get(monnify.SignatureHeader)

	result, err := h.svc.ProcessWebhook(r.Context(), body, signature)
	if err != nil {
		switch {
		case errors.Is(err, ErrBadSignature):
			log.Warn().Str("remote", r.RemoteAddr).Msg("webhook rejected, bad signature")
			response.Unauthorized(w, "invalid signature")
		case errors.Is(err, ErrMalformed):
			response.BadRequest(w, "malformed payload")
		default:
			// Infrastructure failure: let the gateway redeliver.
			log.Error().Err(err).Msg("webhook processing failed")
			response.InternalError(w)
		}
		return
	}

	response.OK(w, map[string]string{"status": result.Outcome})
}

// WebhookRoutes returns the unauthenticated webhook router. Signature
// verification stands in for auth here.
func (h *Handler) WebhookRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/monnify", h.Webhook)
	return r
}
