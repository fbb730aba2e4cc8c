package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ebuka-odih/nyem-backend/internal/config"
	authsvc "github.com/ebuka-odih/nyem-backend/internal/services/auth"
	convsvc "github.com/ebuka-odih/nyem-backend/internal/services/conversations"
	escrowsvc "github.com/ebuka-odih/nyem-backend/internal/services/escrow"
	lifecyclesvc "github.com/ebuka-odih/nyem-backend/internal/services/lifecycle"
	listingssvc "github.com/ebuka-odih/nyem-backend/internal/services/listings"
	messagessvc "github.com/ebuka-odih/nyem-backend/internal/services/messages"
	requestssvc "github.com/ebuka-odih/nyem-backend/internal/services/requests"
	"github.com/ebuka-odih/nyem-backend/internal/transport/http/handlers"
)

type Dependencies struct {
	AuthService         *authsvc.Service
	ListingService      *listingssvc.Service
	RequestService      *requestssvc.Service
	ConversationService *convsvc.Service
	MessageService      *messagessvc.Service
	EscrowService       *escrowsvc.Service
	LifecycleService    *lifecyclesvc.Service
	Logger              *zap.Logger
	Config              config.Config
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler()
	authHandler := handlers.NewAuthHandler(deps.AuthService)
	listingsHandler := handlers.NewListingsHandler(deps.ListingService)
	requestsHandler := handlers.NewRequestsHandler(deps.RequestService, deps.LifecycleService)
	conversationsHandler := handlers.NewConversationsHandler(deps.ConversationService)
	messagesHandler := handlers.NewMessagesHandler(deps.MessageService)
	escrowHandler := handlers.NewEscrowHandler(deps.EscrowService)
	lifecycleHandler := handlers.NewLifecycleHandler(deps.LifecycleService)

	authMW := AuthMiddleware(deps.AuthService, deps.Logger)

	r.Get("/healthz", healthHandler.Get)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.Refresh)
		r.With(authMW).Post("/logout", authHandler.Logout)
	})

	r.With(authMW).Get("/listings/{id}", listingsHandler.Get)
	r.With(authMW).Get("/listings/mine", listingsHandler.Mine)

	r.Route("/requests", func(r chi.Router) {
		r.Use(authMW)
		r.Post("/", requestsHandler.Submit)
		r.Get("/pending", requestsHandler.Pending)
		r.Get("/sent", requestsHandler.Sent)
		r.Post("/{id}/resolve", requestsHandler.Resolve)
	})

	r.Route("/conversations", func(r chi.Router) {
		r.Use(authMW)
		r.Get("/", conversationsHandler.List)
		r.Post("/close", lifecycleHandler.Close)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", conversationsHandler.Get)
			r.Post("/leave", conversationsHandler.Leave)
			r.Post("/open", lifecycleHandler.Open)
			r.Get("/messages", messagesHandler.History)
			r.Post("/messages", messagesHandler.Send)
			r.Post("/read", messagesHandler.MarkRead)
			r.Route("/escrow", func(r chi.Router) {
				r.Get("/", escrowHandler.Get)
				r.Post("/", escrowHandler.SetActive)
				r.Post("/checkout", escrowHandler.Checkout)
				r.Post("/cancel", escrowHandler.Cancel)
				r.Post("/confirm", escrowHandler.Confirm)
			})
		})
	})

	r.With(authMW).Get("/signal", messagesHandler.Signal)
	r.With(authMW).Get("/refresh-snapshot", lifecycleHandler.Refresh)
}
