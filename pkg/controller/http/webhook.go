package http

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"

	"github.com/isaac-j-miller/git-watcher/pkg/domain/interfaces"
	"github.com/isaac-j-miller/git-watcher/pkg/domain/model"
	"github.com/isaac-j-miller/git-watcher/pkg/logging"
	"github.com/isaac-j-miller/git-watcher/pkg/utils/errutil"
)

// WebhookHandler receives deliveries for one webhook subscription
type WebhookHandler struct {
	sub       *model.Subscription
	webhookUC interfaces.WebhookUseCase
	secret    model.Credential
}

// NewWebhookHandler creates a WebhookHandler. An empty secret disables
// signature verification.
func NewWebhookHandler(sub *model.Subscription, webhookUC interfaces.WebhookUseCase, secret model.Credential) *WebhookHandler {
	return &WebhookHandler{
		sub:       sub,
		webhookUC: webhookUC,
		secret:    secret,
	}
}

// Handle processes webhook requests
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	logger := logging.Child(logging.From(r.Context()), "webhook").With("subscription", h.sub.Key())
	ctx := logging.With(r.Context(), logger)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Error("Failed to read request body", "error", err)
		writeError(ctx, w, goerr.Wrap(err, "failed to read request body"), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if h.secret != "" && !h.verifySignature(body, r.Header.Get("X-Hub-Signature-256")) {
		logger.Warn("Invalid webhook signature")
		writeError(ctx, w, goerr.New("invalid signature"), http.StatusUnauthorized)
		return
	}

	payload, err := decodePayload(r.Header.Get("Content-Type"), body)
	if err != nil {
		logger.Warn("Failed to parse webhook payload", "error", err)
		writeError(ctx, w, err, http.StatusBadRequest)
		return
	}

	delivery := &model.WebhookDelivery{
		ID:           r.Header.Get("X-GitHub-Delivery"),
		Event:        payload.Action,
		Subscription: h.sub.Key(),
		Sender:       payload.SenderLogin(),
		ReceivedAt:   time.Now(),
	}
	if delivery.ID == "" {
		delivery.ID = uuid.NewString()
	}
	if delivery.Event == "" {
		delivery.Event = r.Header.Get("X-GitHub-Event")
	}

	ran, err := h.webhookUC.HandleDelivery(ctx, h.sub, delivery)
	if err != nil {
		errutil.Handle(ctx, slog.LevelError, "Failed to process webhook delivery", err)
		writeError(ctx, w, err, http.StatusInternalServerError)
		return
	}
	logger.Debug("Webhook delivery processed", "id", delivery.ID, "actions_ran", ran)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]bool{
		"success": true,
	}); err != nil {
		logger.Error("Failed to encode success response", "error", err)
	}
}

// decodePayload parses a JSON delivery. An empty body, or a body of another
// media type, is a payload without an action.
func decodePayload(contentType string, body []byte) (model.WebhookPayload, error) {
	var payload model.WebhookPayload
	if len(bytes.TrimSpace(body)) == 0 || !isJSON(contentType) {
		return payload, nil
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return payload, goerr.Wrap(err, "invalid JSON payload")
	}
	return payload, nil
}

// isJSON reports whether contentType names JSON. A missing header counts.
func isJSON(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// verifySignature checks an X-Hub-Signature-256 value against the body
func (h *WebhookHandler) verifySignature(payload []byte, signature string) bool {
	if signature == "" {
		return false
	}

	// Remove "sha256=" prefix if present
	signature = strings.TrimPrefix(signature, "sha256=")

	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(payload)
	expectedMAC := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(signature), []byte(expectedMAC))
}
