/**
 * @description
 * This file defines the core domain models for the post-service.
 * These structs represent the main entities and data transfer objects (DTOs)
 * used throughout the service's business logic, database interactions, and API layers.
 *
 * @notes
 * - Coin amounts are stored as `int64`; balances are whole coins and the
 *   database enforces `coins >= 0` with a check constraint.
 * - `Likes` and `Views` on posts and comments are id-sets (one row per user
 *   in the corresponding join table), aggregated into string slices for the
 *   API responses. The id-set semantics make likes idempotent and reversible.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// User represents an account holder keyed by the identity provider's subject id.
// This struct maps directly to the `users` table in the database.
type User struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Coins     int64     `json:"coins"`
	CreatedAt time.Time `json:"created_at"`
}

// Post represents a user-authored post along with its like/view id-sets.
type Post struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Creator   string    `json:"creator"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Contains  string    `json:"contains"`
	Likes     []string  `json:"likes"`
	Views     []string  `json:"views"`
}

// Comment represents a comment on a post along with its like/view id-sets.
type Comment struct {
	ID        int64     `json:"id"`
	PostID    int64     `json:"post_id"`
	UserID    string    `json:"user_id"`
	Creator   string    `json:"creator"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Likes     []string  `json:"likes"`
	Views     []string  `json:"views"`
}

// Product represents a digital product listed in the shop, priced in coins.
type Product struct {
	ID          int64     `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	SellerID    string    `json:"seller_id"`
	SellerName  string    `json:"seller_name"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Price       int64     `json:"price"`
	FileURL     string    `json:"file_url"`
}

// Purchase is the record of one buyer owning one product. The database
// enforces uniqueness on (buyer_id, product_id): a buyer may purchase a
// given product at most once.
type Purchase struct {
	ID        uuid.UUID `json:"id"`
	BuyerID   string    `json:"buyer_id"`
	ProductID int64     `json:"product_id"`
	CreatedAt time.Time `json:"created_at"`
}

// LibraryItem is one entry in a buyer's library: the purchased product.
type LibraryItem struct {
	Product Product `json:"product"`
}

// LeaderboardEntry is one row of the coins leaderboard.
type LeaderboardEntry struct {
	UserID string `json:"user_id"`
	Coins  int64  `json:"coins"`
	Rank   int    `json:"rank"`
}

// Coin ledger entry reasons. Every balance mutation appends one entry per
// affected account, so the `coin_entries` table is a full audit trail.
const (
	CoinReasonLike           = "like"
	CoinReasonUnlike         = "unlike"
	CoinReasonPurchaseDebit  = "purchase_debit"
	CoinReasonPurchaseCredit = "purchase_credit"
	CoinReasonAdminGrant     = "admin_grant"
)

// CoinEntry is an append-only ledger record of a single balance mutation.
type CoinEntry struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"user_id"`
	Delta     int64     `json:"delta"`
	Reason    string    `json:"reason"`
	Ref       string    `json:"ref"`
	CreatedAt time.Time `json:"created_at"`
}

// ProductStats reports aggregate purchase data for one product.
type ProductStats struct {
	ProductID     int64 `json:"product_id"`
	PurchaseCount int   `json:"purchase_count"`
}

// CreatePostRequest is the DTO for creating a new post.
type CreatePostRequest struct {
	Title    string `json:"title"`
	Contains string `json:"contains"`
}

// CreateCommentRequest is the DTO for creating a comment on a post.
type CreateCommentRequest struct {
	Content string `json:"content"`
}

// CreateProductRequest is the DTO for listing a new product in the shop.
type CreateProductRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	FileURL     string `json:"file_url"`
}

// GrantCoinsRequest is the DTO for an operator granting coins to a user.
type GrantCoinsRequest struct {
	Amount int64 `json:"amount"`
}

// PurchaseReceipt is returned to the buyer after a committed purchase.
type PurchaseReceipt struct {
	Message    string    `json:"message"`
	PurchaseID uuid.UUID `json:"purchase_id"`
}
