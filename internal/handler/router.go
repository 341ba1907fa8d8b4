package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/agromic/agrobot/backend/internal/handler/chat"
	"github.com/agromic/agrobot/backend/internal/handler/contact"
	"github.com/agromic/agrobot/backend/internal/handler/persona"
	"github.com/agromic/agrobot/backend/internal/handler/realtime"
	"github.com/agromic/agrobot/backend/internal/handler/stream"
	middlewarePkg "github.com/agromic/agrobot/backend/internal/middleware"
	personaModel "github.com/agromic/agrobot/backend/internal/model/persona"
	chatService "github.com/agromic/agrobot/backend/internal/service/chat"
	contactService "github.com/agromic/agrobot/backend/internal/service/contact"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(personas personaModel.Store, chatSvc *chatService.Service, contactSvc *contactService.Service, allowedOrigins []string, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/health"))
	r.Use(middlewarePkg.CORS(allowedOrigins))

	personaHandler := persona.New(personas)
	chatHandler := chat.New(chatSvc)
	streamHandler := stream.New(chatSvc)
	realtimeHandler := realtime.New(chatSvc, allowedOrigins)
	contactHandler := contact.New(contactSvc)

	r.Route("/api", func(api chi.Router) {
		personaHandler.RegisterRoutes(api)
		contactHandler.RegisterRoutes(api)

		api.Route("/assistant", func(assistant chi.Router) {
			chatHandler.RegisterRoutes(assistant)
			streamHandler.RegisterRoutes(assistant)
			realtimeHandler.RegisterRoutes(assistant)
		})
	})

	return r
}
