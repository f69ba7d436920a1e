/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for all
 * data access operations required by the post-service. By defining an interface,
 * we decouple the application's business logic from the specific database implementation
 * (e.g., PostgreSQL), making the code more modular and easier to test.
 *
 * Every coin-affecting method is a single atomic transaction on the
 * implementation side: the balance mutation, its dedup record (like row or
 * purchase row) and the ledger audit entry commit together or not at all.
 *
 * @dependencies
 * - context: Standard Go library.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"

	"github.com/postline/post-service/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// User and account methods
	UpsertUser(ctx context.Context, userID, name string) (*domain.User, error)
	FindUserByID(ctx context.Context, userID string) (*domain.User, error)
	GetCoins(ctx context.Context, userID string) (int64, error)
	ListUsersByCoins(ctx context.Context) ([]domain.User, error)
	ListLeaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
	GrantCoins(ctx context.Context, userID string, amount int64, grantedBy string) (int64, error)

	// Post methods
	CreatePost(ctx context.Context, post *domain.Post) error
	ListPosts(ctx context.Context) ([]domain.Post, error)
	ListPostsByUser(ctx context.Context, userID string) ([]domain.Post, error)
	FindPostByID(ctx context.Context, postID int64) (*domain.Post, error)
	DeletePost(ctx context.Context, postID int64, userID string) error
	// The boolean result reports whether the like/unlike applied (false when
	// it was an idempotent no-op), so callers can publish ledger events only
	// for mutations that actually happened.
	LikePost(ctx context.Context, postID int64, actorID string) (*domain.Post, bool, error)
	UnlikePost(ctx context.Context, postID int64, actorID string) (*domain.Post, bool, error)
	ViewPost(ctx context.Context, postID int64, actorID string) (*domain.Post, error)

	// Comment methods
	CreateComment(ctx context.Context, comment *domain.Comment) error
	ListComments(ctx context.Context, postID int64) ([]domain.Comment, error)
	FindCommentByID(ctx context.Context, commentID int64) (*domain.Comment, error)
	LikeComment(ctx context.Context, commentID int64, actorID string) (*domain.Comment, bool, error)
	UnlikeComment(ctx context.Context, commentID int64, actorID string) (*domain.Comment, bool, error)
	ViewComment(ctx context.Context, commentID int64, actorID string) (*domain.Comment, error)

	// Shop methods
	CreateProduct(ctx context.Context, product *domain.Product) error
	ListProducts(ctx context.Context) ([]domain.Product, error)
	FindProductByID(ctx context.Context, productID int64) (*domain.Product, error)
	PurchaseProduct(ctx context.Context, buyerID string, productID int64) (*domain.Purchase, error)
	CountPurchases(ctx context.Context, productID int64) (int, error)
	ListLibrary(ctx context.Context, buyerID string) ([]domain.LibraryItem, error)
}
