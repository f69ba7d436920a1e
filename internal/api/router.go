/**
 * @description
 * This file sets up the HTTP router for the post-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies
 * middleware for logging, panic recovery, CORS and authentication. Read-only
 * content endpoints are public; anything that writes, or that reads
 * caller-specific data, requires a verified bearer token.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware for browser clients.
 */

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// PostRoutes creates and returns the router for the post service.
func PostRoutes(h *PostHandlers, authCfg AuthMiddlewareConfig, corsAllowedOrigins string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	allowedOrigins := []string{"*"}
	if trimmed := strings.TrimSpace(corsAllowedOrigins); trimmed != "" && trimmed != "*" {
		allowedOrigins = strings.Split(trimmed, ",")
		for i := range allowedOrigins {
			allowedOrigins[i] = strings.TrimSpace(allowedOrigins[i])
		}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Public read-only endpoints.
	r.Group(func(r chi.Router) {
		r.Get("/posts", h.ListPostsHandler)
		r.Get("/posts/{postID}", h.GetPostHandler)
		r.Get("/posts/{postID}/comments", h.ListCommentsHandler)
		r.Get("/shop/products", h.ListProductsHandler)
		r.Get("/shop/products/{productID}/stats", h.ProductStatsHandler)
		r.Get("/leaderboard", h.LeaderboardHandler)
		r.Get("/users/{userID}/coins", h.GetUserCoinsHandler)
	})

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(authCfg))

		// Account endpoints
		r.Post("/newuser", h.RegisterUserHandler)
		r.Get("/getcoins", h.GetOwnCoinsHandler)
		r.Get("/myposts", h.MyPostsHandler)

		// Post endpoints
		r.Post("/posts", h.CreatePostHandler)
		r.Delete("/posts/{postID}", h.DeletePostHandler)
		r.Post("/posts/{postID}/like", h.LikePostHandler)
		r.Delete("/posts/{postID}/like", h.UnlikePostHandler)
		r.Post("/posts/{postID}/view", h.ViewPostHandler)

		// Comment endpoints
		r.Post("/posts/{postID}/comments", h.CreateCommentHandler)
		r.Post("/comments/{commentID}/like", h.LikeCommentHandler)
		r.Delete("/comments/{commentID}/like", h.UnlikeCommentHandler)
		r.Post("/comments/{commentID}/view", h.ViewCommentHandler)

		// Shop endpoints
		r.Post("/shop/products", h.CreateProductHandler)
		r.Post("/shop/products/{productID}/buy", h.BuyProductHandler)
		r.Get("/shop/my-library", h.LibraryHandler)

		// Operator endpoints
		r.Get("/admin/check", h.AdminCheckHandler)
		r.Get("/admin/users", h.AdminListUsersHandler)
		r.Post("/admin/users/{userID}/coins", h.AdminGrantCoinsHandler)
	})

	return r
}
