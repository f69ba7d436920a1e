/**
 * @description
 * This file contains the core business logic for the post-service. The Service
 * struct orchestrates operations between the API layer and the data store,
 * validates incoming payloads, enforces the operator allow-list and rate
 * limits, and publishes ledger events after the store commits a mutation.
 *
 * @dependencies
 * - internal/config: For the parsed operator allow-list.
 * - internal/domain: For the service's domain models.
 * - internal/store: For database interactions via the Repository interface.
 * - pkg/rabbitmq: For publishing coin and purchase events.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/postline/post-service/internal/config"
	"github.com/postline/post-service/internal/domain"
	"github.com/postline/post-service/internal/store"
	"github.com/postline/post-service/pkg/rabbitmq"
)

// Validation and authorization errors surfaced to the API layer.
var (
	ErrInvalidTitle       = errors.New("title must be at least 3 characters long")
	ErrInvalidContent     = errors.New("content must not be empty")
	ErrInvalidDescription = errors.New("description must be at least 10 characters long")
	ErrInvalidPrice       = errors.New("price must be a positive whole number of coins")
	ErrInvalidGrantAmount = errors.New("grant amount must be a positive whole number of coins")
	ErrNotOperator        = errors.New("caller is not on the operator allow-list")
)

// RateLimitError is returned when a caller exceeds a per-user request budget.
type RateLimitError struct {
	Scope             string
	RetryAfterSeconds int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s; retry in %ds", e.Scope, e.RetryAfterSeconds)
}

const defaultLeaderboardLimit = 10

// Service provides the business logic for posts, comments, the shop and the
// coin ledger.
type Service struct {
	repo      store.Repository
	events    rabbitmq.Publisher
	operators config.OperatorSet
	limiter   RateLimiter
	likeLimit int
	buyLimit  int
}

// NewService creates a new instance of the application service.
func NewService(repo store.Repository, events rabbitmq.Publisher, operators config.OperatorSet, limiter RateLimiter, likeLimit, buyLimit int) *Service {
	return &Service{
		repo:      repo,
		events:    events,
		operators: operators,
		limiter:   limiter,
		likeLimit: likeLimit,
		buyLimit:  buyLimit,
	}
}

// checkRateLimit consumes one unit of the caller's budget for the given
// scope. It fails open: a limiter error is logged and the request proceeds.
func (s *Service) checkRateLimit(ctx context.Context, scope, subject string, limit int) error {
	if s.limiter == nil || limit <= 0 {
		return nil
	}
	count, retryAfter, err := s.limiter.ConsumeRateLimit(ctx, scope, subject, limit, time.Minute)
	if err != nil {
		log.Printf("level=warn component=service msg=\"rate limiter unavailable; allowing request\" scope=%s err=%v", scope, err)
		return nil
	}
	if count > limit {
		return &RateLimitError{Scope: scope, RetryAfterSeconds: retryAfter}
	}
	return nil
}

// publishCoinEvent publishes a ledger event for a committed balance change.
// Publishing is best-effort: the database commit is the source of truth.
func (s *Service) publishCoinEvent(ctx context.Context, userID string, delta int64, reason, ref string) {
	if s.events == nil {
		return
	}
	event := rabbitmq.CoinEvent{
		UserID:    userID,
		Delta:     delta,
		Reason:    reason,
		Ref:       ref,
		Timestamp: time.Now().UTC(),
	}
	if err := s.events.PublishCoinEvent(ctx, event); err != nil {
		log.Printf("level=warn component=service msg=\"failed to publish coin event\" user_id=%s reason=%s err=%v", userID, reason, err)
	}
}

// --- Users and coins ---

// RegisterUser upserts the caller's account row, keeping the display name in
// sync with the identity provider.
func (s *Service) RegisterUser(ctx context.Context, userID, name string) (*domain.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = userID
	}
	return s.repo.UpsertUser(ctx, userID, name)
}

// GetOwnCoins returns the caller's balance. Unknown users read as zero so a
// freshly signed-up caller sees a balance before their first write.
func (s *Service) GetOwnCoins(ctx context.Context, userID string) (int64, error) {
	coins, err := s.repo.GetCoins(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return coins, nil
}

// GetUserCoins returns any user's balance by id.
func (s *Service) GetUserCoins(ctx context.Context, userID string) (int64, error) {
	return s.repo.GetCoins(ctx, userID)
}

// Leaderboard returns the top users ordered by balance. Non-positive limits
// fall back to the default; the store clamps the upper bound.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	return s.repo.ListLeaderboard(ctx, limit)
}

// IsOperator reports whether the caller is on the operator allow-list.
func (s *Service) IsOperator(subject, email string) bool {
	return s.operators.IsOperator(subject, email)
}

// ListUsers returns every user ordered by balance. Operator only.
func (s *Service) ListUsers(ctx context.Context, callerSubject, callerEmail string) ([]domain.User, error) {
	if !s.operators.IsOperator(callerSubject, callerEmail) {
		return nil, ErrNotOperator
	}
	return s.repo.ListUsersByCoins(ctx)
}

// GrantCoins credits an arbitrary amount to a user. Operator only.
func (s *Service) GrantCoins(ctx context.Context, callerSubject, callerEmail, targetUserID string, amount int64) (int64, error) {
	if !s.operators.IsOperator(callerSubject, callerEmail) {
		return 0, ErrNotOperator
	}
	if amount <= 0 {
		return 0, ErrInvalidGrantAmount
	}

	balance, err := s.repo.GrantCoins(ctx, targetUserID, amount, callerSubject)
	if err != nil {
		return 0, err
	}

	log.Printf("level=info component=service msg=\"operator granted coins\" operator=%s target=%s amount=%d", callerSubject, targetUserID, amount)
	s.publishCoinEvent(ctx, targetUserID, amount, domain.CoinReasonAdminGrant, "operator:"+callerSubject)
	return balance, nil
}

// --- Posts ---

// CreatePost validates and stores a new post for the caller.
func (s *Service) CreatePost(ctx context.Context, userID, creatorName string, req domain.CreatePostRequest) (*domain.Post, error) {
	title := strings.TrimSpace(req.Title)
	body := strings.TrimSpace(req.Contains)
	if len(title) < 3 {
		return nil, ErrInvalidTitle
	}
	if len(body) < 3 {
		return nil, ErrInvalidContent
	}

	post := &domain.Post{
		Creator:  creatorName,
		UserID:   userID,
		Title:    title,
		Contains: body,
	}
	if err := s.repo.CreatePost(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// ListPosts returns every post, newest first.
func (s *Service) ListPosts(ctx context.Context) ([]domain.Post, error) {
	return s.repo.ListPosts(ctx)
}

// MyPosts returns the caller's posts, newest first.
func (s *Service) MyPosts(ctx context.Context, userID string) ([]domain.Post, error) {
	return s.repo.ListPostsByUser(ctx, userID)
}

// GetPost returns a single post by id.
func (s *Service) GetPost(ctx context.Context, postID int64) (*domain.Post, error) {
	return s.repo.FindPostByID(ctx, postID)
}

// DeletePost removes the caller's own post along with its comments.
func (s *Service) DeletePost(ctx context.Context, postID int64, userID string) error {
	return s.repo.DeletePost(ctx, postID, userID)
}

// LikePost records the caller's like and credits the post creator one coin.
// Liking a post twice is a no-op and does not credit again.
func (s *Service) LikePost(ctx context.Context, postID int64, actorID string) (*domain.Post, error) {
	if err := s.checkRateLimit(ctx, "like", actorID, s.likeLimit); err != nil {
		return nil, err
	}

	post, applied, err := s.repo.LikePost(ctx, postID, actorID)
	if err != nil {
		return nil, err
	}
	if applied {
		s.publishCoinEvent(ctx, post.UserID, 1, domain.CoinReasonLike, fmt.Sprintf("post:%d", postID))
	}
	return post, nil
}

// UnlikePost removes the caller's like and debits the creator one coin,
// clamped so the balance never goes negative.
func (s *Service) UnlikePost(ctx context.Context, postID int64, actorID string) (*domain.Post, error) {
	if err := s.checkRateLimit(ctx, "like", actorID, s.likeLimit); err != nil {
		return nil, err
	}

	post, applied, err := s.repo.UnlikePost(ctx, postID, actorID)
	if err != nil {
		return nil, err
	}
	if applied {
		s.publishCoinEvent(ctx, post.UserID, -1, domain.CoinReasonUnlike, fmt.Sprintf("post:%d", postID))
	}
	return post, nil
}

// ViewPost records that the caller viewed a post. Views never affect coins.
func (s *Service) ViewPost(ctx context.Context, postID int64, actorID string) (*domain.Post, error) {
	return s.repo.ViewPost(ctx, postID, actorID)
}

// --- Comments ---

// CreateComment validates and stores a new comment under a post.
func (s *Service) CreateComment(ctx context.Context, postID int64, userID, creatorName string, req domain.CreateCommentRequest) (*domain.Comment, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, ErrInvalidContent
	}

	// Reject comments on posts that do not exist.
	if _, err := s.repo.FindPostByID(ctx, postID); err != nil {
		return nil, err
	}

	comment := &domain.Comment{
		PostID:  postID,
		Creator: creatorName,
		UserID:  userID,
		Content: content,
	}
	if err := s.repo.CreateComment(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// ListComments returns every comment under a post, oldest first.
func (s *Service) ListComments(ctx context.Context, postID int64) ([]domain.Comment, error) {
	if _, err := s.repo.FindPostByID(ctx, postID); err != nil {
		return nil, err
	}
	return s.repo.ListComments(ctx, postID)
}

// LikeComment records the caller's like and credits the comment author.
func (s *Service) LikeComment(ctx context.Context, commentID int64, actorID string) (*domain.Comment, error) {
	if err := s.checkRateLimit(ctx, "like", actorID, s.likeLimit); err != nil {
		return nil, err
	}

	comment, applied, err := s.repo.LikeComment(ctx, commentID, actorID)
	if err != nil {
		return nil, err
	}
	if applied {
		s.publishCoinEvent(ctx, comment.UserID, 1, domain.CoinReasonLike, fmt.Sprintf("comment:%d", commentID))
	}
	return comment, nil
}

// UnlikeComment removes the caller's like and debits the comment author.
func (s *Service) UnlikeComment(ctx context.Context, commentID int64, actorID string) (*domain.Comment, error) {
	if err := s.checkRateLimit(ctx, "like", actorID, s.likeLimit); err != nil {
		return nil, err
	}

	comment, applied, err := s.repo.UnlikeComment(ctx, commentID, actorID)
	if err != nil {
		return nil, err
	}
	if applied {
		s.publishCoinEvent(ctx, comment.UserID, -1, domain.CoinReasonUnlike, fmt.Sprintf("comment:%d", commentID))
	}
	return comment, nil
}

// ViewComment records that the caller viewed a comment.
func (s *Service) ViewComment(ctx context.Context, commentID int64, actorID string) (*domain.Comment, error) {
	return s.repo.ViewComment(ctx, commentID, actorID)
}

// --- Shop ---

// CreateProduct validates and stores a new product listing for the caller.
func (s *Service) CreateProduct(ctx context.Context, sellerID, sellerName string, req domain.CreateProductRequest) (*domain.Product, error) {
	title := strings.TrimSpace(req.Title)
	description := strings.TrimSpace(req.Description)
	if len(title) < 3 {
		return nil, ErrInvalidTitle
	}
	if len(description) < 10 {
		return nil, ErrInvalidDescription
	}
	if req.Price <= 0 {
		return nil, ErrInvalidPrice
	}

	product := &domain.Product{
		SellerID:    sellerID,
		SellerName:  sellerName,
		Title:       title,
		Description: description,
		Price:       req.Price,
		FileURL:     strings.TrimSpace(req.FileURL),
	}
	if err := s.repo.CreateProduct(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

// ListProducts returns every product listing, newest first.
func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

// BuyProduct performs the atomic purchase: debit the buyer, credit the
// seller, and record the purchase, all in one database transaction.
func (s *Service) BuyProduct(ctx context.Context, buyerID string, productID int64) (*domain.PurchaseReceipt, error) {
	if err := s.checkRateLimit(ctx, "buy", buyerID, s.buyLimit); err != nil {
		return nil, err
	}

	product, err := s.repo.FindProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	purchase, err := s.repo.PurchaseProduct(ctx, buyerID, productID)
	if err != nil {
		return nil, err
	}

	log.Printf("level=info component=service msg=\"purchase completed\" purchase_id=%s buyer_id=%s product_id=%d price=%d", purchase.ID, buyerID, productID, product.Price)

	s.publishCoinEvent(ctx, buyerID, -product.Price, domain.CoinReasonPurchaseDebit, fmt.Sprintf("product:%d", productID))
	s.publishCoinEvent(ctx, product.SellerID, product.Price, domain.CoinReasonPurchaseCredit, fmt.Sprintf("product:%d", productID))
	if s.events != nil {
		event := rabbitmq.PurchaseEvent{
			PurchaseID: purchase.ID,
			BuyerID:    buyerID,
			SellerID:   product.SellerID,
			ProductID:  productID,
			Price:      product.Price,
			Timestamp:  time.Now().UTC(),
		}
		if err := s.events.PublishPurchaseEvent(ctx, event); err != nil {
			log.Printf("level=warn component=service msg=\"failed to publish purchase event\" purchase_id=%s err=%v", purchase.ID, err)
		}
	}

	return &domain.PurchaseReceipt{
		Message:    "purchase successful",
		PurchaseID: purchase.ID,
	}, nil
}

// ProductStats returns the sales count for a product.
func (s *Service) ProductStats(ctx context.Context, productID int64) (*domain.ProductStats, error) {
	product, err := s.repo.FindProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	count, err := s.repo.CountPurchases(ctx, productID)
	if err != nil {
		return nil, err
	}
	return &domain.ProductStats{
		ProductID:     product.ID,
		PurchaseCount: count,
	}, nil
}

// Library returns the products the caller has purchased.
func (s *Service) Library(ctx context.Context, buyerID string) ([]domain.LibraryItem, error) {
	return s.repo.ListLibrary(ctx, buyerID)
}
