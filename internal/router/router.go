package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"chatrelay-backend/internal/handlers"
	"chatrelay-backend/internal/middleware"
)

type Limiters struct {
	Auth *middleware.RateLimiter // per IP on login/register/refresh
	Chat *middleware.RateLimiter // per user on model-backed routes
}

func New(
	jwtAuth *middleware.JWTAuth,
	authHandler *handlers.AuthHandler,
	chatHandler *handlers.ChatHandler,
	wsHandler http.HandlerFunc,
	limiters Limiters,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	if limiters.Auth == nil {
		limiters.Auth = middleware.NewRateLimiter(10, time.Minute)
	}
	if limiters.Chat == nil {
		limiters.Chat = middleware.NewRateLimiter(60, time.Minute)
	}

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── User Routes ────
		r.Route("/users", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(limiters.Auth.Middleware)
				r.Post("/register", authHandler.Register)
				r.Post("/login", authHandler.Login)
				r.Post("/refresh", authHandler.Refresh)
			})

			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Post("/logout", authHandler.Logout)
				r.Get("/me", authHandler.Me)
			})
		})

		// ──── Chat Routes ────
		r.Route("/chat", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/start", chatHandler.Start)
			r.Get("/{userId}", chatHandler.Sessions)
			r.Get("/{userId}/{sessionId}", chatHandler.History)

			r.Group(func(r chi.Router) {
				r.Use(limiters.Chat.Middleware)
				r.Post("/send", chatHandler.Send)
				r.Post("/ask", chatHandler.Ask)
			})
		})

		// ──── Raw Generation ────
		r.Group(func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Use(limiters.Chat.Middleware)
			r.Post("/generate", chatHandler.Generate)
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHandler)
	})

	return r
}
