/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It contains all the necessary SQL queries to interact with the database tables
 * related to users, posts, comments, products, purchases and the coin ledger.
 *
 * Coin-affecting operations (like, unlike, purchase, grant) are single
 * transactions: the dedup record (like row, purchase row), the balance
 * mutation and the ledger audit entry commit together. Balance rows are
 * locked with `SELECT ... FOR UPDATE` where the outcome depends on the
 * current balance, so concurrent requests against the same account serialize
 * instead of racing.
 *
 * @dependencies
 * - context, errors, fmt, sort: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - github.com/google/uuid: For purchase and ledger entry identifiers.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/postline/post-service/internal/domain"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrPostNotFound      = errors.New("post not found")
	ErrCommentNotFound   = errors.New("comment not found")
	ErrProductNotFound   = errors.New("product not found")
	ErrNotPostOwner      = errors.New("post is owned by another user")
	ErrInsufficientCoins = errors.New("insufficient coin balance")
	ErrSelfPurchase      = errors.New("cannot purchase own product")
	ErrAlreadyOwned      = errors.New("product already purchased")
)

const postColumns = `
	p.id, p.created_at, p.creator, p.user_id, p.title, p.contains,
	COALESCE((SELECT array_agg(l.user_id ORDER BY l.created_at) FROM post_likes l WHERE l.post_id = p.id), '{}'),
	COALESCE((SELECT array_agg(v.user_id ORDER BY v.created_at) FROM post_views v WHERE v.post_id = p.id), '{}')
`

const commentColumns = `
	c.id, c.post_id, c.user_id, c.creator, c.content, c.created_at,
	COALESCE((SELECT array_agg(l.user_id ORDER BY l.created_at) FROM comment_likes l WHERE l.comment_id = c.id), '{}'),
	COALESCE((SELECT array_agg(v.user_id ORDER BY v.created_at) FROM comment_views v WHERE v.comment_id = c.id), '{}')
`

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// UpsertUser lazily creates the account row for an authenticated subject,
// refreshing the display name on subsequent calls. New accounts start at
// zero coins.
func (r *PostgresRepository) UpsertUser(ctx context.Context, userID, name string) (*domain.User, error) {
	var user domain.User
	query := `
		INSERT INTO users (user_id, name, coins)
		VALUES ($1, $2, 0)
		ON CONFLICT (user_id) DO UPDATE SET name = EXCLUDED.name
		RETURNING user_id, name, coins, created_at
	`
	err := r.db.QueryRow(ctx, query, userID, name).Scan(&user.UserID, &user.Name, &user.Coins, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindUserByID retrieves a user from the database by their identity subject id.
func (r *PostgresRepository) FindUserByID(ctx context.Context, userID string) (*domain.User, error) {
	var user domain.User
	query := `SELECT user_id, name, coins, created_at FROM users WHERE user_id = $1`
	err := r.db.QueryRow(ctx, query, userID).Scan(&user.UserID, &user.Name, &user.Coins, &user.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetCoins returns the current coin balance for a user.
func (r *PostgresRepository) GetCoins(ctx context.Context, userID string) (int64, error) {
	var coins int64
	err := r.db.QueryRow(ctx, `SELECT coins FROM users WHERE user_id = $1`, userID).Scan(&coins)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, ErrUserNotFound
		}
		return 0, err
	}
	return coins, nil
}

// ListUsersByCoins retrieves all users ordered by balance, richest first.
func (r *PostgresRepository) ListUsersByCoins(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.Query(ctx, `SELECT user_id, name, coins, created_at FROM users ORDER BY coins DESC, user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(&user.UserID, &user.Name, &user.Coins, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// ListLeaderboard returns the top users by balance with their rank.
func (r *PostgresRepository) ListLeaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	rows, err := r.db.Query(ctx, `SELECT user_id, coins FROM users ORDER BY coins DESC, user_id LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.LeaderboardEntry
	rank := 0
	for rows.Next() {
		rank++
		entry := domain.LeaderboardEntry{Rank: rank}
		if err := rows.Scan(&entry.UserID, &entry.Coins); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// GrantCoins applies an operator grant as a single read-modify-write
// transaction and returns the new balance. The caller validates amount > 0.
func (r *PostgresRepository) GrantCoins(ctx context.Context, userID string, amount int64, grantedBy string) (int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var newBalance int64
	err = tx.QueryRow(ctx, `UPDATE users SET coins = coins + $1 WHERE user_id = $2 RETURNING coins`, amount, userID).Scan(&newBalance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, ErrUserNotFound
		}
		return 0, err
	}

	if err := appendCoinEntry(ctx, tx, userID, amount, domain.CoinReasonAdminGrant, "operator:"+grantedBy); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return newBalance, nil
}

// CreatePost inserts a new post and fills in its generated id and timestamp.
func (r *PostgresRepository) CreatePost(ctx context.Context, post *domain.Post) error {
	query := `
		INSERT INTO posts (creator, user_id, title, contains)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	if err := r.db.QueryRow(ctx, query, post.Creator, post.UserID, post.Title, post.Contains).Scan(&post.ID, &post.CreatedAt); err != nil {
		return err
	}
	post.Likes = []string{}
	post.Views = []string{}
	return nil
}

// ListPosts retrieves all posts, newest first.
func (r *PostgresRepository) ListPosts(ctx context.Context) ([]domain.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts p ORDER BY p.created_at DESC`
	return r.queryPosts(ctx, query)
}

// ListPostsByUser retrieves all posts created by one user, newest first.
func (r *PostgresRepository) ListPostsByUser(ctx context.Context, userID string) ([]domain.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts p WHERE p.user_id = $1 ORDER BY p.created_at DESC`
	return r.queryPosts(ctx, query, userID)
}

func (r *PostgresRepository) queryPosts(ctx context.Context, query string, args ...any) ([]domain.Post, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		var post domain.Post
		if err := rows.Scan(&post.ID, &post.CreatedAt, &post.Creator, &post.UserID, &post.Title, &post.Contains, &post.Likes, &post.Views); err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// FindPostByID retrieves a post with its like/view id-sets.
func (r *PostgresRepository) FindPostByID(ctx context.Context, postID int64) (*domain.Post, error) {
	var post domain.Post
	query := `SELECT ` + postColumns + ` FROM posts p WHERE p.id = $1`
	err := r.db.QueryRow(ctx, query, postID).Scan(&post.ID, &post.CreatedAt, &post.Creator, &post.UserID, &post.Title, &post.Contains, &post.Likes, &post.Views)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return &post, nil
}

// DeletePost removes a post owned by the given user, along with its comments
// and like/view rows, in one transaction.
func (r *PostgresRepository) DeletePost(ctx context.Context, postID int64, userID string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var ownerID string
	err = tx.QueryRow(ctx, `SELECT user_id FROM posts WHERE id = $1`, postID).Scan(&ownerID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrPostNotFound
		}
		return err
	}
	if ownerID != userID {
		return ErrNotPostOwner
	}

	statements := []string{
		`DELETE FROM comment_likes WHERE comment_id IN (SELECT id FROM comments WHERE post_id = $1)`,
		`DELETE FROM comment_views WHERE comment_id IN (SELECT id FROM comments WHERE post_id = $1)`,
		`DELETE FROM comments WHERE post_id = $1`,
		`DELETE FROM post_likes WHERE post_id = $1`,
		`DELETE FROM post_views WHERE post_id = $1`,
		`DELETE FROM posts WHERE id = $1`,
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt, postID); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// LikePost records a like and credits the post creator one coin in the same
// transaction. The primary key on (post_id, user_id) is the dedup key: a
// repeated like from the same user inserts nothing and mints nothing.
func (r *PostgresRepository) LikePost(ctx context.Context, postID int64, actorID string) (*domain.Post, bool, error) {
	applied, err := r.likeContent(ctx, likeTarget{
		ownerQuery:  `SELECT user_id FROM posts WHERE id = $1`,
		insertQuery: `INSERT INTO post_likes (post_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		notFound:    ErrPostNotFound,
		reason:      domain.CoinReasonLike,
		ref:         fmt.Sprintf("post:%d", postID),
	}, postID, actorID)
	if err != nil {
		return nil, false, err
	}
	post, err := r.FindPostByID(ctx, postID)
	return post, applied, err
}

// UnlikePost removes a like and debits the creator the coin it minted, in
// the same transaction. Unliking something that was never liked is a no-op.
func (r *PostgresRepository) UnlikePost(ctx context.Context, postID int64, actorID string) (*domain.Post, bool, error) {
	applied, err := r.unlikeContent(ctx, likeTarget{
		ownerQuery:  `SELECT user_id FROM posts WHERE id = $1`,
		deleteQuery: `DELETE FROM post_likes WHERE post_id = $1 AND user_id = $2`,
		notFound:    ErrPostNotFound,
		reason:      domain.CoinReasonUnlike,
		ref:         fmt.Sprintf("post:%d", postID),
	}, postID, actorID)
	if err != nil {
		return nil, false, err
	}
	post, err := r.FindPostByID(ctx, postID)
	return post, applied, err
}

// ViewPost records a view. Views carry no coin effect, so a plain idempotent
// insert suffices.
func (r *PostgresRepository) ViewPost(ctx context.Context, postID int64, actorID string) (*domain.Post, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM posts WHERE id = $1)`, postID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrPostNotFound
	}
	if _, err := r.db.Exec(ctx, `INSERT INTO post_views (post_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, postID, actorID); err != nil {
		return nil, err
	}
	return r.FindPostByID(ctx, postID)
}

// CreateComment inserts a comment after verifying the parent post exists.
func (r *PostgresRepository) CreateComment(ctx context.Context, comment *domain.Comment) error {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM posts WHERE id = $1)`, comment.PostID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrPostNotFound
	}

	query := `
		INSERT INTO comments (post_id, user_id, creator, content)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	if err := r.db.QueryRow(ctx, query, comment.PostID, comment.UserID, comment.Creator, comment.Content).Scan(&comment.ID, &comment.CreatedAt); err != nil {
		return err
	}
	comment.Likes = []string{}
	comment.Views = []string{}
	return nil
}

// ListComments retrieves all comments on a post, newest first.
func (r *PostgresRepository) ListComments(ctx context.Context, postID int64) ([]domain.Comment, error) {
	query := `SELECT ` + commentColumns + ` FROM comments c WHERE c.post_id = $1 ORDER BY c.created_at DESC`
	rows, err := r.db.Query(ctx, query, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []domain.Comment
	for rows.Next() {
		var comment domain.Comment
		if err := rows.Scan(&comment.ID, &comment.PostID, &comment.UserID, &comment.Creator, &comment.Content, &comment.CreatedAt, &comment.Likes, &comment.Views); err != nil {
			return nil, err
		}
		comments = append(comments, comment)
	}
	return comments, rows.Err()
}

// FindCommentByID retrieves a comment with its like/view id-sets.
func (r *PostgresRepository) FindCommentByID(ctx context.Context, commentID int64) (*domain.Comment, error) {
	var comment domain.Comment
	query := `SELECT ` + commentColumns + ` FROM comments c WHERE c.id = $1`
	err := r.db.QueryRow(ctx, query, commentID).Scan(&comment.ID, &comment.PostID, &comment.UserID, &comment.Creator, &comment.Content, &comment.CreatedAt, &comment.Likes, &comment.Views)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrCommentNotFound
		}
		return nil, err
	}
	return &comment, nil
}

// LikeComment mirrors LikePost for comments.
func (r *PostgresRepository) LikeComment(ctx context.Context, commentID int64, actorID string) (*domain.Comment, bool, error) {
	applied, err := r.likeContent(ctx, likeTarget{
		ownerQuery:  `SELECT user_id FROM comments WHERE id = $1`,
		insertQuery: `INSERT INTO comment_likes (comment_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		notFound:    ErrCommentNotFound,
		reason:      domain.CoinReasonLike,
		ref:         fmt.Sprintf("comment:%d", commentID),
	}, commentID, actorID)
	if err != nil {
		return nil, false, err
	}
	comment, err := r.FindCommentByID(ctx, commentID)
	return comment, applied, err
}

// UnlikeComment mirrors UnlikePost for comments.
func (r *PostgresRepository) UnlikeComment(ctx context.Context, commentID int64, actorID string) (*domain.Comment, bool, error) {
	applied, err := r.unlikeContent(ctx, likeTarget{
		ownerQuery:  `SELECT user_id FROM comments WHERE id = $1`,
		deleteQuery: `DELETE FROM comment_likes WHERE comment_id = $1 AND user_id = $2`,
		notFound:    ErrCommentNotFound,
		reason:      domain.CoinReasonUnlike,
		ref:         fmt.Sprintf("comment:%d", commentID),
	}, commentID, actorID)
	if err != nil {
		return nil, false, err
	}
	comment, err := r.FindCommentByID(ctx, commentID)
	return comment, applied, err
}

// ViewComment records a view on a comment.
func (r *PostgresRepository) ViewComment(ctx context.Context, commentID int64, actorID string) (*domain.Comment, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM comments WHERE id = $1)`, commentID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrCommentNotFound
	}
	if _, err := r.db.Exec(ctx, `INSERT INTO comment_views (comment_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, commentID, actorID); err != nil {
		return nil, err
	}
	return r.FindCommentByID(ctx, commentID)
}

// likeTarget parameterizes the shared like/unlike transaction over posts and comments.
type likeTarget struct {
	ownerQuery  string
	insertQuery string
	deleteQuery string
	notFound    error
	reason      string
	ref         string
}

func (r *PostgresRepository) likeContent(ctx context.Context, target likeTarget, contentID int64, actorID string) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	var creatorID string
	err = tx.QueryRow(ctx, target.ownerQuery, contentID).Scan(&creatorID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, target.notFound
		}
		return false, err
	}

	result, err := tx.Exec(ctx, target.insertQuery, contentID, actorID)
	if err != nil {
		return false, err
	}
	if result.RowsAffected() == 0 {
		// Already liked; nothing to mint.
		return false, nil
	}

	// The creator may have posted without ever calling /newuser. The credit
	// lazily creates the account row so the balance, the audit entry and the
	// published event stay in step.
	if _, err := tx.Exec(ctx, `
		INSERT INTO users (user_id, name, coins)
		VALUES ($1, $1, 1)
		ON CONFLICT (user_id) DO UPDATE SET coins = users.coins + 1
	`, creatorID); err != nil {
		return false, err
	}
	if err := appendCoinEntry(ctx, tx, creatorID, 1, target.reason, target.ref); err != nil {
		return false, err
	}

	return true, tx.Commit(ctx)
}

func (r *PostgresRepository) unlikeContent(ctx context.Context, target likeTarget, contentID int64, actorID string) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	var creatorID string
	err = tx.QueryRow(ctx, target.ownerQuery, contentID).Scan(&creatorID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, target.notFound
		}
		return false, err
	}

	result, err := tx.Exec(ctx, target.deleteQuery, contentID, actorID)
	if err != nil {
		return false, err
	}
	if result.RowsAffected() == 0 {
		// Never liked; nothing to burn.
		return false, nil
	}

	// Lock the creator's balance so the debit decision sees a stable value.
	// The debit is clamped at zero: an operator may have drained the account
	// since the like minted its coin, and unliking must still succeed.
	var balance int64
	err = tx.QueryRow(ctx, `SELECT coins FROM users WHERE user_id = $1 FOR UPDATE`, creatorID).Scan(&balance)
	if err != nil {
		if err != pgx.ErrNoRows {
			return false, err
		}
		// No account row means no balance to burn; the like row still goes.
		balance = 0
	}

	debit := int64(1)
	if balance < debit {
		debit = balance
	}
	if debit > 0 {
		if _, err := tx.Exec(ctx, `UPDATE users SET coins = coins - $1 WHERE user_id = $2`, debit, creatorID); err != nil {
			return false, err
		}
		if err := appendCoinEntry(ctx, tx, creatorID, -debit, target.reason, target.ref); err != nil {
			return false, err
		}
	}

	return true, tx.Commit(ctx)
}

// CreateProduct inserts a new shop listing and fills in its id and timestamp.
func (r *PostgresRepository) CreateProduct(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (seller_id, seller_name, title, description, price, file_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	return r.db.QueryRow(ctx, query,
		product.SellerID,
		product.SellerName,
		product.Title,
		product.Description,
		product.Price,
		product.FileURL,
	).Scan(&product.ID, &product.CreatedAt)
}

// ListProducts retrieves all products, newest first.
func (r *PostgresRepository) ListProducts(ctx context.Context) ([]domain.Product, error) {
	query := `
		SELECT id, created_at, seller_id, seller_name, title, description, price, file_url
		FROM products
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var product domain.Product
		if err := rows.Scan(&product.ID, &product.CreatedAt, &product.SellerID, &product.SellerName, &product.Title, &product.Description, &product.Price, &product.FileURL); err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, rows.Err()
}

// FindProductByID retrieves a single product.
func (r *PostgresRepository) FindProductByID(ctx context.Context, productID int64) (*domain.Product, error) {
	var product domain.Product
	query := `
		SELECT id, created_at, seller_id, seller_name, title, description, price, file_url
		FROM products
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, productID).Scan(&product.ID, &product.CreatedAt, &product.SellerID, &product.SellerName, &product.Title, &product.Description, &product.Price, &product.FileURL)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return &product, nil
}

// PurchaseProduct executes the whole purchase as one transaction: the
// self-purchase and re-purchase guards, the buyer debit, the seller credit
// and the purchase record all commit atomically or not at all. Buyer and
// seller rows are locked in user-id order so two concurrent purchases that
// touch the same accounts cannot deadlock.
func (r *PostgresRepository) PurchaseProduct(ctx context.Context, buyerID string, productID int64) (*domain.Purchase, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var sellerID string
	var price int64
	err = tx.QueryRow(ctx, `SELECT seller_id, price FROM products WHERE id = $1`, productID).Scan(&sellerID, &price)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	if sellerID == buyerID {
		return nil, ErrSelfPurchase
	}

	// Lock both balance rows before deciding anything balance-dependent.
	lockOrder := []string{buyerID, sellerID}
	sort.Strings(lockOrder)
	var buyerBalance int64
	for _, id := range lockOrder {
		var balance int64
		if err := tx.QueryRow(ctx, `SELECT coins FROM users WHERE user_id = $1 FOR UPDATE`, id).Scan(&balance); err != nil {
			if err == pgx.ErrNoRows {
				return nil, ErrUserNotFound
			}
			return nil, err
		}
		if id == buyerID {
			buyerBalance = balance
		}
	}

	// The unique constraint on (buyer_id, product_id) is the dedup key; with
	// the buyer row locked above, a concurrent duplicate purchase serializes
	// here and observes the conflict.
	purchase := domain.Purchase{ID: uuid.New(), BuyerID: buyerID, ProductID: productID}
	err = tx.QueryRow(ctx, `
		INSERT INTO purchases (id, buyer_id, product_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (buyer_id, product_id) DO NOTHING
		RETURNING created_at
	`, purchase.ID, buyerID, productID).Scan(&purchase.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAlreadyOwned
		}
		return nil, err
	}

	if buyerBalance < price {
		return nil, ErrInsufficientCoins
	}

	if _, err := tx.Exec(ctx, `UPDATE users SET coins = coins - $1 WHERE user_id = $2`, price, buyerID); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `UPDATE users SET coins = coins + $1 WHERE user_id = $2`, price, sellerID); err != nil {
		return nil, err
	}

	ref := fmt.Sprintf("purchase:%s", purchase.ID)
	if err := appendCoinEntry(ctx, tx, buyerID, -price, domain.CoinReasonPurchaseDebit, ref); err != nil {
		return nil, err
	}
	if err := appendCoinEntry(ctx, tx, sellerID, price, domain.CoinReasonPurchaseCredit, ref); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &purchase, nil
}

// CountPurchases returns how many buyers own a product.
func (r *PostgresRepository) CountPurchases(ctx context.Context, productID int64) (int, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists); err != nil {
		return 0, err
	}
	if !exists {
		return 0, ErrProductNotFound
	}

	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM purchases WHERE product_id = $1`, productID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// ListLibrary retrieves the products a buyer has purchased, newest purchase first.
func (r *PostgresRepository) ListLibrary(ctx context.Context, buyerID string) ([]domain.LibraryItem, error) {
	query := `
		SELECT pr.id, pr.created_at, pr.seller_id, pr.seller_name, pr.title, pr.description, pr.price, pr.file_url
		FROM purchases pu
		JOIN products pr ON pr.id = pu.product_id
		WHERE pu.buyer_id = $1
		ORDER BY pu.created_at DESC
	`
	rows, err := r.db.Query(ctx, query, buyerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.LibraryItem
	for rows.Next() {
		var product domain.Product
		if err := rows.Scan(&product.ID, &product.CreatedAt, &product.SellerID, &product.SellerName, &product.Title, &product.Description, &product.Price, &product.FileURL); err != nil {
			return nil, err
		}
		items = append(items, domain.LibraryItem{Product: product})
	}
	return items, rows.Err()
}

// appendCoinEntry writes one append-only ledger row inside the caller's transaction.
func appendCoinEntry(ctx context.Context, tx pgx.Tx, userID string, delta int64, reason, ref string) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO coin_entries (id, user_id, delta, reason, ref) VALUES ($1, $2, $3, $4, $5)`,
		uuid.New(), userID, delta, reason, ref,
	)
	return err
}
