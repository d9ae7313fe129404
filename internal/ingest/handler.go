package ingest

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/mailspool/internal/pkg/httputil"
)

// 1x1 transparent GIF
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00,
	0x80, 0x00, 0x00, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x2c,
	0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x02,
	0x02, 0x44, 0x01, 0x00, 0x3b,
}

// Handler exposes the public tracking endpoints and the provider webhooks.
type Handler struct {
	ingestor *Ingestor
}

func NewHandler(ingestor *Ingestor) *Handler {
	return &Handler{ingestor: ingestor}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/track/pixel/{token}/", h.HandlePixel)
	r.Get("/track/click/{token}/", h.HandleClick)
	r.Post("/webhooks/bounce", h.HandleBounce)
	r.Post("/webhooks/delivery", h.HandleDelivery)
	r.Get("/health", h.HandleHealth)
	return r
}

// HandlePixel records an open and serves the pixel. The pixel is served
// unconditionally, even for tokens we cannot attribute: mail clients must
// never see an error from image fetches.
func (h *Handler) HandlePixel(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	if err := h.ingestor.RecordOpen(r.Context(), token, realIP(r), r.UserAgent()); err != nil {
		log.Printf("[Ingest] open for token %s not recorded: %v", token, err)
	} else {
		log.Printf("OPEN token=%s", token)
	}
	h.servePixel(w)
}

// HandleClick records a click and redirects to the url query parameter.
// Unattributable clicks still redirect so the recipient lands somewhere.
func (h *Handler) HandleClick(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	dest := r.URL.Query().Get("url")
	if dest == "" {
		dest = "/"
	}

	if err := h.ingestor.RecordClick(r.Context(), token, dest, realIP(r), r.UserAgent()); err != nil {
		log.Printf("[Ingest] click for token %s not recorded: %v", token, err)
	} else {
		log.Printf("CLICK token=%s url=%s", token, dest)
	}
	http.Redirect(w, r, dest, http.StatusFound)
}

type bounceNotification struct {
	Email      string `json:"email"`
	TrackingID string `json:"tracking_id"`
	Event      string `json:"event"`
	BounceType string `json:"bounce_type"`
	Reason     string `json:"reason"`
}

// HandleBounce ingests a provider bounce or complaint notification.
func (h *Handler) HandleBounce(w http.ResponseWriter, r *http.Request) {
	raw, payload, ok := decodeNotification(w, r)
	if !ok {
		return
	}

	err := h.ingestor.RecordBounce(r.Context(), payload.TrackingID, payload.Email,
		payload.Event, payload.BounceType, payload.Reason, raw)
	if errors.Is(err, ErrUnknownRecipient) {
		httputil.JSON(w, http.StatusNotFound, ack{Status: "error", Message: "recipient not found"})
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, ack{Status: "ok", Message: "bounce recorded"})
}

// HandleDelivery ingests a provider delivery confirmation. Repeated
// confirmations for the same candidate are acknowledged without writing a
// second event.
func (h *Handler) HandleDelivery(w http.ResponseWriter, r *http.Request) {
	raw, payload, ok := decodeNotification(w, r)
	if !ok {
		return
	}

	recorded, err := h.ingestor.RecordDelivery(r.Context(), payload.TrackingID, payload.Email, raw)
	if errors.Is(err, ErrUnknownRecipient) {
		httputil.JSON(w, http.StatusNotFound, ack{Status: "error", Message: "recipient not found"})
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	msg := "delivery recorded"
	if !recorded {
		msg = "delivery already recorded"
	}
	httputil.JSON(w, http.StatusOK, ack{Status: "ok", Message: msg})
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// ack is the webhook response envelope.
type ack struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func decodeNotification(w http.ResponseWriter, r *http.Request) (json.RawMessage, bounceNotification, bool) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		httputil.JSON(w, http.StatusBadRequest, ack{Status: "error", Message: "invalid JSON payload"})
		return nil, bounceNotification{}, false
	}

	// Either identifier is enough; resolution tries the token first and
	// falls back to the address.
	var payload bounceNotification
	if err := json.Unmarshal(raw, &payload); err != nil || (payload.Email == "" && payload.TrackingID == "") {
		httputil.JSON(w, http.StatusBadRequest, ack{Status: "error", Message: "tracking_id or email is required"})
		return nil, bounceNotification{}, false
	}
	return raw, payload, true
}

func (h *Handler) servePixel(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Write(pixelGIF)
}

func realIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return xff
	}
	if xri := r.Header.Get("X-Real-Ip"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
