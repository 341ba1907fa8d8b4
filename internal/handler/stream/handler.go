package stream

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/agromic/agrobot/backend/internal/model/chat"
	chatService "github.com/agromic/agrobot/backend/internal/service/chat"
	"github.com/agromic/agrobot/backend/pkg/utils"
)

const defaultKeepAlive = 15 * time.Second

// Handler pushes session events to the widget over Server-Sent Events
type Handler struct {
	chatSvc   *chatService.Service
	keepAlive time.Duration
}

// New creates a new stream handler
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{
		chatSvc:   chatSvc,
		keepAlive: defaultKeepAlive,
	}
}

// RegisterRoutes mounts the event stream endpoint
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/sessions/{sessionID}/events", h.handleEvents)
}

// handleEvents sends a snapshot first, then every message and status change
// until the client disconnects or the session is destroyed.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx := r.Context()
	sessionID := chi.URLParam(r, "sessionID")

	events, cancel, err := h.chatSvc.Subscribe(ctx, sessionID)
	if err != nil {
		if errors.Is(err, chatService.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, err.Error())
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer cancel()

	snapshot, err := h.chatSvc.Snapshot(ctx, sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	if err := utils.SendSSEEvent(w, flusher, "snapshot", snapshot); err != nil {
		return
	}

	slog.Debug("sse stream opened", "session_id", sessionID)
	defer slog.Debug("sse stream closed", "session_id", sessionID)

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, open := <-events:
			if !open {
				_ = utils.SendSSEEvent(w, flusher, "closed", map[string]string{"sessionId": sessionID})
				return
			}
			if err := utils.SendSSEEvent(w, flusher, eventName(evt), evt); err != nil {
				return
			}
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "keepalive"); err != nil {
				return
			}
		}
	}
}

func eventName(evt chat.Event) string {
	if evt.Type == "" {
		return string(chat.EventMessage)
	}
	return string(evt.Type)
}
