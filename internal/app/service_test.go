package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/postline/post-service/internal/config"
	"github.com/postline/post-service/internal/domain"
	"github.com/postline/post-service/internal/store"
	"github.com/postline/post-service/pkg/rabbitmq"
)

// fakeRepository is an in-memory Repository honoring the same contract as the
// Postgres implementation: id-set likes, non-negative balances, at most one
// purchase per (buyer, product).
type fakeRepository struct {
	users     map[string]*domain.User
	posts     map[int64]*domain.Post
	postLikes map[int64]map[string]bool
	comments  map[int64]*domain.Comment
	products  map[int64]*domain.Product
	purchases map[string]map[int64]domain.Purchase
	nextID    int64

	leaderboardLimit int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		users:     map[string]*domain.User{},
		posts:     map[int64]*domain.Post{},
		postLikes: map[int64]map[string]bool{},
		comments:  map[int64]*domain.Comment{},
		products:  map[int64]*domain.Product{},
		purchases: map[string]map[int64]domain.Purchase{},
	}
}

func (f *fakeRepository) addUser(userID string, coins int64) {
	f.users[userID] = &domain.User{UserID: userID, Name: userID, Coins: coins}
}

func (f *fakeRepository) addPost(creatorID string) int64 {
	f.nextID++
	f.posts[f.nextID] = &domain.Post{ID: f.nextID, UserID: creatorID, Creator: creatorID, Title: "title", Contains: "body"}
	f.postLikes[f.nextID] = map[string]bool{}
	return f.nextID
}

func (f *fakeRepository) addProduct(sellerID string, price int64) int64 {
	f.nextID++
	f.products[f.nextID] = &domain.Product{ID: f.nextID, SellerID: sellerID, SellerName: sellerID, Title: "product", Price: price}
	return f.nextID
}

func (f *fakeRepository) coins(userID string) int64 {
	if user, ok := f.users[userID]; ok {
		return user.Coins
	}
	return 0
}

func (f *fakeRepository) UpsertUser(ctx context.Context, userID, name string) (*domain.User, error) {
	if user, ok := f.users[userID]; ok {
		user.Name = name
		return user, nil
	}
	user := &domain.User{UserID: userID, Name: name}
	f.users[userID] = user
	return user, nil
}

func (f *fakeRepository) FindUserByID(ctx context.Context, userID string) (*domain.User, error) {
	user, ok := f.users[userID]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeRepository) GetCoins(ctx context.Context, userID string) (int64, error) {
	user, ok := f.users[userID]
	if !ok {
		return 0, store.ErrUserNotFound
	}
	return user.Coins, nil
}

func (f *fakeRepository) ListUsersByCoins(ctx context.Context) ([]domain.User, error) {
	users := make([]domain.User, 0, len(f.users))
	for _, user := range f.users {
		users = append(users, *user)
	}
	return users, nil
}

func (f *fakeRepository) ListLeaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	f.leaderboardLimit = limit
	entries := make([]domain.LeaderboardEntry, 0, len(f.users))
	for _, user := range f.users {
		entries = append(entries, domain.LeaderboardEntry{UserID: user.UserID, Coins: user.Coins})
	}
	return entries, nil
}

func (f *fakeRepository) GrantCoins(ctx context.Context, userID string, amount int64, grantedBy string) (int64, error) {
	user, ok := f.users[userID]
	if !ok {
		return 0, store.ErrUserNotFound
	}
	user.Coins += amount
	return user.Coins, nil
}

func (f *fakeRepository) CreatePost(ctx context.Context, post *domain.Post) error {
	f.nextID++
	post.ID = f.nextID
	f.posts[post.ID] = post
	f.postLikes[post.ID] = map[string]bool{}
	return nil
}

func (f *fakeRepository) ListPosts(ctx context.Context) ([]domain.Post, error) { return nil, nil }

func (f *fakeRepository) ListPostsByUser(ctx context.Context, userID string) ([]domain.Post, error) {
	return nil, nil
}

func (f *fakeRepository) FindPostByID(ctx context.Context, postID int64) (*domain.Post, error) {
	post, ok := f.posts[postID]
	if !ok {
		return nil, store.ErrPostNotFound
	}
	return post, nil
}

func (f *fakeRepository) DeletePost(ctx context.Context, postID int64, userID string) error {
	post, ok := f.posts[postID]
	if !ok {
		return store.ErrPostNotFound
	}
	if post.UserID != userID {
		return store.ErrNotPostOwner
	}
	delete(f.posts, postID)
	return nil
}

func (f *fakeRepository) LikePost(ctx context.Context, postID int64, actorID string) (*domain.Post, bool, error) {
	post, ok := f.posts[postID]
	if !ok {
		return nil, false, store.ErrPostNotFound
	}
	if f.postLikes[postID][actorID] {
		return post, false, nil
	}
	f.postLikes[postID][actorID] = true
	// The credit lazily creates the creator's account row, as the store does.
	creator, ok := f.users[post.UserID]
	if !ok {
		creator = &domain.User{UserID: post.UserID, Name: post.UserID}
		f.users[post.UserID] = creator
	}
	creator.Coins++
	return post, true, nil
}

func (f *fakeRepository) UnlikePost(ctx context.Context, postID int64, actorID string) (*domain.Post, bool, error) {
	post, ok := f.posts[postID]
	if !ok {
		return nil, false, store.ErrPostNotFound
	}
	if !f.postLikes[postID][actorID] {
		return post, false, nil
	}
	delete(f.postLikes[postID], actorID)
	if creator, ok := f.users[post.UserID]; ok && creator.Coins > 0 {
		creator.Coins--
	}
	return post, true, nil
}

func (f *fakeRepository) ViewPost(ctx context.Context, postID int64, actorID string) (*domain.Post, error) {
	post, ok := f.posts[postID]
	if !ok {
		return nil, store.ErrPostNotFound
	}
	return post, nil
}

func (f *fakeRepository) CreateComment(ctx context.Context, comment *domain.Comment) error {
	f.nextID++
	comment.ID = f.nextID
	f.comments[comment.ID] = comment
	return nil
}

func (f *fakeRepository) ListComments(ctx context.Context, postID int64) ([]domain.Comment, error) {
	return nil, nil
}

func (f *fakeRepository) FindCommentByID(ctx context.Context, commentID int64) (*domain.Comment, error) {
	comment, ok := f.comments[commentID]
	if !ok {
		return nil, store.ErrCommentNotFound
	}
	return comment, nil
}

func (f *fakeRepository) LikeComment(ctx context.Context, commentID int64, actorID string) (*domain.Comment, bool, error) {
	comment, ok := f.comments[commentID]
	if !ok {
		return nil, false, store.ErrCommentNotFound
	}
	return comment, true, nil
}

func (f *fakeRepository) UnlikeComment(ctx context.Context, commentID int64, actorID string) (*domain.Comment, bool, error) {
	comment, ok := f.comments[commentID]
	if !ok {
		return nil, false, store.ErrCommentNotFound
	}
	return comment, false, nil
}

func (f *fakeRepository) ViewComment(ctx context.Context, commentID int64, actorID string) (*domain.Comment, error) {
	comment, ok := f.comments[commentID]
	if !ok {
		return nil, store.ErrCommentNotFound
	}
	return comment, nil
}

func (f *fakeRepository) CreateProduct(ctx context.Context, product *domain.Product) error {
	f.nextID++
	product.ID = f.nextID
	f.products[product.ID] = product
	return nil
}

func (f *fakeRepository) ListProducts(ctx context.Context) ([]domain.Product, error) { return nil, nil }

func (f *fakeRepository) FindProductByID(ctx context.Context, productID int64) (*domain.Product, error) {
	product, ok := f.products[productID]
	if !ok {
		return nil, store.ErrProductNotFound
	}
	return product, nil
}

func (f *fakeRepository) PurchaseProduct(ctx context.Context, buyerID string, productID int64) (*domain.Purchase, error) {
	product, ok := f.products[productID]
	if !ok {
		return nil, store.ErrProductNotFound
	}
	if product.SellerID == buyerID {
		return nil, store.ErrSelfPurchase
	}
	if _, owned := f.purchases[buyerID][productID]; owned {
		return nil, store.ErrAlreadyOwned
	}
	buyer, ok := f.users[buyerID]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	if buyer.Coins < product.Price {
		return nil, store.ErrInsufficientCoins
	}
	buyer.Coins -= product.Price
	if seller, ok := f.users[product.SellerID]; ok {
		seller.Coins += product.Price
	}
	purchase := domain.Purchase{ID: uuid.New(), BuyerID: buyerID, ProductID: productID, CreatedAt: time.Now()}
	if f.purchases[buyerID] == nil {
		f.purchases[buyerID] = map[int64]domain.Purchase{}
	}
	f.purchases[buyerID][productID] = purchase
	return &purchase, nil
}

func (f *fakeRepository) CountPurchases(ctx context.Context, productID int64) (int, error) {
	count := 0
	for _, owned := range f.purchases {
		if _, ok := owned[productID]; ok {
			count++
		}
	}
	return count, nil
}

func (f *fakeRepository) ListLibrary(ctx context.Context, buyerID string) ([]domain.LibraryItem, error) {
	return nil, nil
}

// fakePublisher records published events.
type fakePublisher struct {
	coinEvents     []rabbitmq.CoinEvent
	purchaseEvents []rabbitmq.PurchaseEvent
}

func (p *fakePublisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	return nil
}

func (p *fakePublisher) PublishCoinEvent(ctx context.Context, event rabbitmq.CoinEvent) error {
	p.coinEvents = append(p.coinEvents, event)
	return nil
}

func (p *fakePublisher) PublishPurchaseEvent(ctx context.Context, event rabbitmq.PurchaseEvent) error {
	p.purchaseEvents = append(p.purchaseEvents, event)
	return nil
}

func (p *fakePublisher) Close() {}

// fakeLimiter returns a fixed count per call, optionally erroring.
type fakeLimiter struct {
	count int
	err   error
	calls int
}

func (l *fakeLimiter) ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (int, int, error) {
	l.calls++
	return l.count, 30, l.err
}

func newTestService(repo store.Repository, events rabbitmq.Publisher, operators string) *Service {
	return NewService(repo, events, config.ParseOperatorSet(operators), nil, 0, 0)
}

func TestLikePostCreditsCreatorOnce(t *testing.T) {
	repo := newFakeRepository()
	repo.addUser("creator", 0)
	repo.addUser("liker", 0)
	postID := repo.addPost("creator")

	events := &fakePublisher{}
	svc := newTestService(repo, events, "")

	for i := 0; i < 3; i++ {
		if _, err := svc.LikePost(context.Background(), postID, "liker"); err != nil {
			t.Fatalf("LikePost returned error on attempt %d: %v", i+1, err)
		}
	}

	if got := repo.coins("creator"); got != 1 {
		t.Fatalf("expected creator balance 1 after repeated likes, got %d", got)
	}
	if len(events.coinEvents) != 1 {
		t.Fatalf("expected exactly one coin event, got %d", len(events.coinEvents))
	}
	if events.coinEvents[0].Delta != 1 || events.coinEvents[0].Reason != domain.CoinReasonLike {
		t.Fatalf("unexpected coin event: %+v", events.coinEvents[0])
	}
}

func TestLikePostCreditsUnregisteredCreator(t *testing.T) {
	repo := newFakeRepository()
	repo.addUser("liker", 0)
	// The creator posted but never called /newuser, so no account row exists.
	postID := repo.addPost("ghost_creator")

	events := &fakePublisher{}
	svc := newTestService(repo, events, "")

	if _, err := svc.LikePost(context.Background(), postID, "liker"); err != nil {
		t.Fatalf("LikePost returned error: %v", err)
	}
	if got := repo.coins("ghost_creator"); got != 1 {
		t.Fatalf("expected the credit to create the creator's account with balance 1, got %d", got)
	}
	if len(events.coinEvents) != 1 {
		t.Fatalf("expected one coin event, got %d", len(events.coinEvents))
	}

	// The mirrored unlike must succeed and burn the minted coin.
	if _, err := svc.UnlikePost(context.Background(), postID, "liker"); err != nil {
		t.Fatalf("UnlikePost returned error: %v", err)
	}
	if got := repo.coins("ghost_creator"); got != 0 {
		t.Fatalf("expected balance back at 0 after unlike, got %d", got)
	}
}

func TestLeaderboardLimit(t *testing.T) {
	repo := newFakeRepository()
	repo.addUser("someone", 3)
	svc := newTestService(repo, &fakePublisher{}, "")

	if _, err := svc.Leaderboard(context.Background(), 25); err != nil {
		t.Fatalf("Leaderboard returned error: %v", err)
	}
	if repo.leaderboardLimit != 25 {
		t.Fatalf("expected limit 25 passed through, got %d", repo.leaderboardLimit)
	}

	if _, err := svc.Leaderboard(context.Background(), 0); err != nil {
		t.Fatalf("Leaderboard returned error: %v", err)
	}
	if repo.leaderboardLimit != 10 {
		t.Fatalf("expected default limit 10 for non-positive input, got %d", repo.leaderboardLimit)
	}
}

func TestUnlikePostRestoresBalance(t *testing.T) {
	repo := newFakeRepository()
	repo.addUser("creator", 5)
	repo.addUser("liker", 0)
	postID := repo.addPost("creator")

	events := &fakePublisher{}
	svc := newTestService(repo, events, "")

	if _, err := svc.LikePost(context.Background(), postID, "liker"); err != nil {
		t.Fatalf("LikePost returned error: %v", err)
	}
	if _, err := svc.UnlikePost(context.Background(), postID, "liker"); err != nil {
		t.Fatalf("UnlikePost returned error: %v", err)
	}

	if got := repo.coins("creator"); got != 5 {
		t.Fatalf("expected creator balance restored to 5, got %d", got)
	}
	if len(events.coinEvents) != 2 {
		t.Fatalf("expected two coin events (credit then debit), got %d", len(events.coinEvents))
	}
	if events.coinEvents[1].Delta != -1 || events.coinEvents[1].Reason != domain.CoinReasonUnlike {
		t.Fatalf("unexpected debit event: %+v", events.coinEvents[1])
	}
}

func TestUnlikeWithoutPriorLikeIsNoOp(t *testing.T) {
	repo := newFakeRepository()
	repo.addUser("creator", 5)
	repo.addUser("stranger", 0)
	postID := repo.addPost("creator")

	events := &fakePublisher{}
	svc := newTestService(repo, events, "")

	if _, err := svc.UnlikePost(context.Background(), postID, "stranger"); err != nil {
		t.Fatalf("UnlikePost returned error: %v", err)
	}
	if got := repo.coins("creator"); got != 5 {
		t.Fatalf("expected creator balance unchanged at 5, got %d", got)
	}
	if len(events.coinEvents) != 0 {
		t.Fatalf("expected no coin events for a no-op unlike, got %d", len(events.coinEvents))
	}
}

func TestBuyProductMovesCoinsAndPublishes(t *testing.T) {
	repo := newFakeRepository()
	repo.addUser("seller", 0)
	repo.addUser("buyer", 100)
	productID := repo.addProduct("seller", 40)

	events := &fakePublisher{}
	svc := newTestService(repo, events, "")

	receipt, err := svc.BuyProduct(context.Background(), "buyer", productID)
	if err != nil {
		t.Fatalf("BuyProduct returned error: %v", err)
	}
	if receipt.PurchaseID == uuid.Nil {
		t.Fatal("expected a purchase id in the receipt")
	}

	if got := repo.coins("buyer"); got != 60 {
		t.Fatalf("expected buyer balance 60, got %d", got)
	}
	if got := repo.coins("seller"); got != 40 {
		t.Fatalf("expected seller balance 40, got %d", got)
	}
	if len(events.purchaseEvents) != 1 {
		t.Fatalf("expected one purchase event, got %d", len(events.purchaseEvents))
	}
	if len(events.coinEvents) != 2 {
		t.Fatalf("expected debit and credit coin events, got %d", len(events.coinEvents))
	}
}

func TestBuyProductExactBalanceDrainsToZero(t *testing.T) {
	repo := newFakeRepository()
	repo.addUser("seller", 0)
	repo.addUser("buyer", 40)
	productID := repo.addProduct("seller", 40)

	svc := newTestService(repo, &fakePublisher{}, "")

	if _, err := svc.BuyProduct(context.Background(), "buyer", productID); err != nil {
		t.Fatalf("BuyProduct returned error: %v", err)
	}
	if got := repo.coins("buyer"); got != 0 {
		t.Fatalf("expected buyer drained to 0, got %d", got)
	}
}

func TestBuyProductErrors(t *testing.T) {
	tests := []struct {
		name       string
		buyerID    string
		buyerCoins int64
		setup      func(repo *fakeRepository, productID int64)
		wantErr    error
	}{
		{
			name:       "insufficient balance",
			buyerID:    "buyer",
			buyerCoins: 10,
			wantErr:    store.ErrInsufficientCoins,
		},
		{
			name:       "self purchase",
			buyerID:    "seller",
			buyerCoins: 100,
			wantErr:    store.ErrSelfPurchase,
		},
		{
			name:       "already owned",
			buyerID:    "buyer",
			buyerCoins: 100,
			setup: func(repo *fakeRepository, productID int64) {
				if _, err := repo.PurchaseProduct(context.Background(), "buyer", productID); err != nil {
					panic(err)
				}
			},
			wantErr: store.ErrAlreadyOwned,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRepository()
			repo.addUser("seller", 0)
			repo.addUser("buyer", tt.buyerCoins)
			productID := repo.addProduct("seller", 40)
			if tt.setup != nil {
				tt.setup(repo, productID)
			}

			events := &fakePublisher{}
			svc := newTestService(repo, events, "")

			_, err := svc.BuyProduct(context.Background(), tt.buyerID, productID)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if len(events.purchaseEvents) != 0 {
				t.Fatalf("expected no purchase events for failed purchase, got %d", len(events.purchaseEvents))
			}
		})
	}
}

func TestGrantCoinsRequiresOperator(t *testing.T) {
	repo := newFakeRepository()
	repo.addUser("target", 0)

	svc := newTestService(repo, &fakePublisher{}, "admin@example.com")

	if _, err := svc.GrantCoins(context.Background(), "user_1", "someone@example.com", "target", 50); !errors.Is(err, ErrNotOperator) {
		t.Fatalf("expected ErrNotOperator, got %v", err)
	}
	if got := repo.coins("target"); got != 0 {
		t.Fatalf("expected target balance unchanged, got %d", got)
	}

	balance, err := svc.GrantCoins(context.Background(), "user_1", "admin@example.com", "target", 50)
	if err != nil {
		t.Fatalf("GrantCoins returned error for operator: %v", err)
	}
	if balance != 50 {
		t.Fatalf("expected new balance 50, got %d", balance)
	}
}

func TestGrantCoinsRejectsNonPositiveAmounts(t *testing.T) {
	repo := newFakeRepository()
	repo.addUser("target", 10)

	svc := newTestService(repo, &fakePublisher{}, "admin@example.com")

	for _, amount := range []int64{0, -5} {
		if _, err := svc.GrantCoins(context.Background(), "user_1", "admin@example.com", "target", amount); !errors.Is(err, ErrInvalidGrantAmount) {
			t.Fatalf("expected ErrInvalidGrantAmount for amount %d, got %v", amount, err)
		}
	}
	if got := repo.coins("target"); got != 10 {
		t.Fatalf("expected target balance unchanged at 10, got %d", got)
	}
}

func TestListUsersRequiresOperator(t *testing.T) {
	repo := newFakeRepository()
	repo.addUser("someone", 3)

	svc := newTestService(repo, &fakePublisher{}, "user_admin")

	if _, err := svc.ListUsers(context.Background(), "user_other", ""); !errors.Is(err, ErrNotOperator) {
		t.Fatalf("expected ErrNotOperator, got %v", err)
	}
	users, err := svc.ListUsers(context.Background(), "user_admin", "")
	if err != nil {
		t.Fatalf("ListUsers returned error for operator: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("expected one user, got %d", len(users))
	}
}

func TestGetOwnCoinsUnknownUserReadsZero(t *testing.T) {
	svc := newTestService(newFakeRepository(), &fakePublisher{}, "")

	coins, err := svc.GetOwnCoins(context.Background(), "user_brand_new")
	if err != nil {
		t.Fatalf("GetOwnCoins returned error: %v", err)
	}
	if coins != 0 {
		t.Fatalf("expected zero balance for unknown user, got %d", coins)
	}
}

func TestLikePostRateLimited(t *testing.T) {
	repo := newFakeRepository()
	repo.addUser("creator", 0)
	repo.addUser("liker", 0)
	postID := repo.addPost("creator")

	limiter := &fakeLimiter{count: 61}
	svc := NewService(repo, &fakePublisher{}, config.ParseOperatorSet(""), limiter, 60, 20)

	_, err := svc.LikePost(context.Background(), postID, "liker")
	var rateLimited *RateLimitError
	if !errors.As(err, &rateLimited) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if rateLimited.RetryAfterSeconds != 30 {
		t.Fatalf("expected retry-after 30, got %d", rateLimited.RetryAfterSeconds)
	}
	if got := repo.coins("creator"); got != 0 {
		t.Fatalf("expected no credit for rate limited like, got %d", got)
	}
}

func TestRateLimiterFailsOpen(t *testing.T) {
	repo := newFakeRepository()
	repo.addUser("creator", 0)
	repo.addUser("liker", 0)
	postID := repo.addPost("creator")

	limiter := &fakeLimiter{err: fmt.Errorf("redis down")}
	svc := NewService(repo, &fakePublisher{}, config.ParseOperatorSet(""), limiter, 60, 20)

	if _, err := svc.LikePost(context.Background(), postID, "liker"); err != nil {
		t.Fatalf("expected limiter failure to be ignored, got %v", err)
	}
	if limiter.calls != 1 {
		t.Fatalf("expected the limiter to be consulted once, got %d", limiter.calls)
	}
	if got := repo.coins("creator"); got != 1 {
		t.Fatalf("expected like to proceed and credit creator, got %d", got)
	}
}

func TestCreatePostValidation(t *testing.T) {
	svc := newTestService(newFakeRepository(), &fakePublisher{}, "")

	tests := []struct {
		name    string
		req     domain.CreatePostRequest
		wantErr error
	}{
		{name: "short title", req: domain.CreatePostRequest{Title: "ab", Contains: "hello world"}, wantErr: ErrInvalidTitle},
		{name: "short body", req: domain.CreatePostRequest{Title: "hello", Contains: "ab"}, wantErr: ErrInvalidContent},
		{name: "whitespace only title", req: domain.CreatePostRequest{Title: "   ", Contains: "hello world"}, wantErr: ErrInvalidTitle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.CreatePost(context.Background(), "user_1", "User", tt.req); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	post, err := svc.CreatePost(context.Background(), "user_1", "User", domain.CreatePostRequest{Title: "  hello  ", Contains: "  world wide  "})
	if err != nil {
		t.Fatalf("CreatePost returned error: %v", err)
	}
	if post.Title != "hello" || post.Contains != "world wide" {
		t.Fatalf("expected trimmed fields, got title=%q contains=%q", post.Title, post.Contains)
	}
}

func TestCreateProductValidation(t *testing.T) {
	svc := newTestService(newFakeRepository(), &fakePublisher{}, "")

	tests := []struct {
		name    string
		req     domain.CreateProductRequest
		wantErr error
	}{
		{name: "short title", req: domain.CreateProductRequest{Title: "ab", Description: "long enough text", Price: 10}, wantErr: ErrInvalidTitle},
		{name: "short description", req: domain.CreateProductRequest{Title: "widget", Description: "too short", Price: 10}, wantErr: ErrInvalidDescription},
		{name: "zero price", req: domain.CreateProductRequest{Title: "widget", Description: "long enough text", Price: 0}, wantErr: ErrInvalidPrice},
		{name: "negative price", req: domain.CreateProductRequest{Title: "widget", Description: "long enough text", Price: -5}, wantErr: ErrInvalidPrice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.CreateProduct(context.Background(), "seller", "Seller", tt.req); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCreateCommentRequiresExistingPost(t *testing.T) {
	repo := newFakeRepository()
	repo.addUser("author", 0)
	postID := repo.addPost("author")

	svc := newTestService(repo, &fakePublisher{}, "")

	if _, err := svc.CreateComment(context.Background(), 999, "user_1", "User", domain.CreateCommentRequest{Content: "hi"}); !errors.Is(err, store.ErrPostNotFound) {
		t.Fatalf("expected ErrPostNotFound, got %v", err)
	}
	if _, err := svc.CreateComment(context.Background(), postID, "user_1", "User", domain.CreateCommentRequest{Content: "  "}); !errors.Is(err, ErrInvalidContent) {
		t.Fatalf("expected ErrInvalidContent, got %v", err)
	}

	comment, err := svc.CreateComment(context.Background(), postID, "user_1", "User", domain.CreateCommentRequest{Content: "nice post"})
	if err != nil {
		t.Fatalf("CreateComment returned error: %v", err)
	}
	if comment.PostID != postID || comment.Content != "nice post" {
		t.Fatalf("unexpected comment: %+v", comment)
	}
}
