/**
 * @description
 * This file contains the HTTP handlers for the post-service's user, post and
 * comment endpoints. Handlers are responsible for parsing incoming requests,
 * calling the appropriate methods on the application service, and writing the
 * HTTP response. They act as the bridge between the web layer and the
 * business logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - github.com/go-chi/chi/v5: For URL parameter extraction.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/postline/post-service/internal/app"
	"github.com/postline/post-service/internal/domain"
	"github.com/postline/post-service/internal/store"
)

// PostHandlers holds the application service that handlers will use.
type PostHandlers struct {
	service *app.Service
}

// NewPostHandlers creates a new instance of PostHandlers.
func NewPostHandlers(service *app.Service) *PostHandlers {
	return &PostHandlers{service: service}
}

// writeJSON is a helper for writing JSON responses.
func (h *PostHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *PostHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError translates service and store errors into HTTP responses.
func (h *PostHandlers) writeServiceError(w http.ResponseWriter, err error) {
	var rateLimited *app.RateLimitError
	if errors.As(err, &rateLimited) {
		w.Header().Set("Retry-After", strconv.Itoa(rateLimited.RetryAfterSeconds))
		h.writeError(w, http.StatusTooManyRequests, "Too many requests. Please slow down.")
		return
	}

	switch {
	case errors.Is(err, store.ErrUserNotFound):
		h.writeError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, store.ErrPostNotFound):
		h.writeError(w, http.StatusNotFound, "Post not found")
	case errors.Is(err, store.ErrCommentNotFound):
		h.writeError(w, http.StatusNotFound, "Comment not found")
	case errors.Is(err, store.ErrProductNotFound):
		h.writeError(w, http.StatusNotFound, "Product not found")
	case errors.Is(err, store.ErrNotPostOwner):
		h.writeError(w, http.StatusForbidden, "You can only delete your own posts")
	case errors.Is(err, store.ErrInsufficientCoins):
		h.writeError(w, http.StatusPaymentRequired, "Insufficient coin balance")
	case errors.Is(err, store.ErrSelfPurchase):
		h.writeError(w, http.StatusBadRequest, "You cannot buy your own product")
	case errors.Is(err, store.ErrAlreadyOwned):
		h.writeError(w, http.StatusBadRequest, "You already own this product")
	case errors.Is(err, app.ErrNotOperator):
		h.writeError(w, http.StatusForbidden, "Operator access required")
	case errors.Is(err, app.ErrInvalidTitle),
		errors.Is(err, app.ErrInvalidContent),
		errors.Is(err, app.ErrInvalidDescription),
		errors.Is(err, app.ErrInvalidPrice),
		errors.Is(err, app.ErrInvalidGrantAmount):
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("level=error component=api msg=\"unhandled service error\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "An internal error occurred")
	}
}

// identity returns the verified caller or writes a 401.
func (h *PostHandlers) identity(w http.ResponseWriter, r *http.Request) (Identity, bool) {
	identity, ok := GetIdentity(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Could not identify user from token")
		return Identity{}, false
	}
	return identity, true
}

// limitFromQuery parses an optional ?limit= query parameter, falling back
// when it is absent or not a positive integer.
func limitFromQuery(r *http.Request, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return fallback
	}
	return limit
}

// pathID parses a numeric {param} from the URL or writes a 400.
func (h *PostHandlers) pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	raw := chi.URLParam(r, param)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "Invalid "+param+" in URL")
		return 0, false
	}
	return id, true
}

// --- Users and coins ---

// RegisterUserHandler upserts the caller's account from their verified identity.
func (h *PostHandlers) RegisterUserHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	user, err := h.service.RegisterUser(r.Context(), identity.Subject, identity.Name)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, user)
}

// GetOwnCoinsHandler returns the caller's coin balance.
func (h *PostHandlers) GetOwnCoinsHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	coins, err := h.service.GetOwnCoins(r.Context(), identity.Subject)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int64{"coins": coins})
}

// GetUserCoinsHandler returns any user's coin balance by id.
func (h *PostHandlers) GetUserCoinsHandler(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, "Invalid user id in URL")
		return
	}

	coins, err := h.service.GetUserCoins(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"user_id": userID, "coins": coins})
}

// LeaderboardHandler returns the top users ordered by coin balance. The
// optional ?limit= query parameter bounds the result size.
func (h *PostHandlers) LeaderboardHandler(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.Leaderboard(r.Context(), limitFromQuery(r, 10))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}
	h.writeJSON(w, http.StatusOK, entries)
}

// --- Posts ---

// CreatePostHandler creates a new post authored by the caller.
func (h *PostHandlers) CreatePostHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req domain.CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	post, err := h.service.CreatePost(r.Context(), identity.Subject, identity.Name, req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, post)
}

// ListPostsHandler returns every post, newest first.
func (h *PostHandlers) ListPostsHandler(w http.ResponseWriter, r *http.Request) {
	posts, err := h.service.ListPosts(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if posts == nil {
		posts = []domain.Post{}
	}
	h.writeJSON(w, http.StatusOK, posts)
}

// MyPostsHandler returns the caller's own posts.
func (h *PostHandlers) MyPostsHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	posts, err := h.service.MyPosts(r.Context(), identity.Subject)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if posts == nil {
		posts = []domain.Post{}
	}
	h.writeJSON(w, http.StatusOK, posts)
}

// GetPostHandler returns a single post by id.
func (h *PostHandlers) GetPostHandler(w http.ResponseWriter, r *http.Request) {
	postID, ok := h.pathID(w, r, "postID")
	if !ok {
		return
	}

	post, err := h.service.GetPost(r.Context(), postID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, post)
}

// DeletePostHandler deletes the caller's own post.
func (h *PostHandlers) DeletePostHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	postID, ok := h.pathID(w, r, "postID")
	if !ok {
		return
	}

	if err := h.service.DeletePost(r.Context(), postID, identity.Subject); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "post deleted"})
}

// LikePostHandler records the caller's like on a post.
func (h *PostHandlers) LikePostHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	postID, ok := h.pathID(w, r, "postID")
	if !ok {
		return
	}

	post, err := h.service.LikePost(r.Context(), postID, identity.Subject)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, post)
}

// UnlikePostHandler removes the caller's like from a post.
func (h *PostHandlers) UnlikePostHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	postID, ok := h.pathID(w, r, "postID")
	if !ok {
		return
	}

	post, err := h.service.UnlikePost(r.Context(), postID, identity.Subject)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, post)
}

// ViewPostHandler records that the caller viewed a post.
func (h *PostHandlers) ViewPostHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	postID, ok := h.pathID(w, r, "postID")
	if !ok {
		return
	}

	post, err := h.service.ViewPost(r.Context(), postID, identity.Subject)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, post)
}

// --- Comments ---

// CreateCommentHandler creates a new comment under a post.
func (h *PostHandlers) CreateCommentHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	postID, ok := h.pathID(w, r, "postID")
	if !ok {
		return
	}

	var req domain.CreateCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	comment, err := h.service.CreateComment(r.Context(), postID, identity.Subject, identity.Name, req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, comment)
}

// ListCommentsHandler returns every comment under a post.
func (h *PostHandlers) ListCommentsHandler(w http.ResponseWriter, r *http.Request) {
	postID, ok := h.pathID(w, r, "postID")
	if !ok {
		return
	}

	comments, err := h.service.ListComments(r.Context(), postID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if comments == nil {
		comments = []domain.Comment{}
	}
	h.writeJSON(w, http.StatusOK, comments)
}

// LikeCommentHandler records the caller's like on a comment.
func (h *PostHandlers) LikeCommentHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	commentID, ok := h.pathID(w, r, "commentID")
	if !ok {
		return
	}

	comment, err := h.service.LikeComment(r.Context(), commentID, identity.Subject)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, comment)
}

// UnlikeCommentHandler removes the caller's like from a comment.
func (h *PostHandlers) UnlikeCommentHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	commentID, ok := h.pathID(w, r, "commentID")
	if !ok {
		return
	}

	comment, err := h.service.UnlikeComment(r.Context(), commentID, identity.Subject)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, comment)
}

// ViewCommentHandler records that the caller viewed a comment.
func (h *PostHandlers) ViewCommentHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	commentID, ok := h.pathID(w, r, "commentID")
	if !ok {
		return
	}

	comment, err := h.service.ViewComment(r.Context(), commentID, identity.Subject)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, comment)
}
