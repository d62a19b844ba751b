package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	// The consumer is a browser app, so preflight requests must be answered.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// All API routes will be under /api
	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Post("/login", apiHandler.LoginHandler)
		r.Post("/register", apiHandler.RegisterHandler)
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})

		// User-authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.JWTAuthMiddleware)

			r.Post("/logout", apiHandler.LogoutHandler)

			// Chat routes
			r.Get("/chats", apiHandler.ListChatsHandler)
			r.Post("/chats", apiHandler.NewChatHandler)
			r.Post("/chats/{chatID}/select", apiHandler.SelectChatHandler)
			r.Post("/messages", apiHandler.SendMessageHandler)

			// Admin routes
			r.Group(func(r chi.Router) {
				r.Use(apiHandler.AdminOnlyMiddleware)

				r.Get("/admin/users", apiHandler.AdminListUsersHandler)
				r.Get("/admin/users/{userID}/chats", apiHandler.AdminUserChatsHandler)
			})
		})
	})

	return r
}
