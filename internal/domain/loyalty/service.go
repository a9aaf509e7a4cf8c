package loyalty

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/example/meatshop-orders/internal/infrastructure/store"
	"github.com/example/meatshop-orders/internal/model"
	"github.com/example/meatshop-orders/internal/notification"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EarnValidity is how long earned and bonus points count toward the
// balance.
const EarnValidity = 365 * 24 * time.Hour

var (
	ErrUserRequired  = errors.New("user id is required")
	ErrOrderRequired = errors.New("order id is required")
	ErrInvalidTotal  = errors.New("order total must not be negative")
	ErrInvalidPoints = errors.New("points must be positive")
)

type EarnRequest struct {
	UserID     string
	Email      string
	OrderID    string
	OrderTotal int64
}

type EarnResult struct {
	Points       int64      `json:"points"`
	Balance      int64      `json:"balance"`
	Tier         model.Tier `json:"tier"`
	PreviousTier model.Tier `json:"previousTier"`
	Upgraded     bool       `json:"upgraded"`
	BonusPoints  int64      `json:"bonusPoints,omitempty"`
	// Duplicate is set when the order was already credited; nothing changed.
	Duplicate bool `json:"duplicate,omitempty"`
}

type Summary struct {
	UserID       string                      `json:"userId"`
	Balance      int64                       `json:"balance"`
	Tier         model.Tier                  `json:"tier"`
	NextTier     model.Tier                  `json:"nextTier,omitempty"`
	PointsToNext int64                       `json:"pointsToNext,omitempty"`
	Transactions []*model.LoyaltyTransaction `json:"transactions"`
	Tiers        TierTable                   `json:"tiers"`
}

// Service keeps the loyalty ledger. The balance is always recomputed from
// the ledger; the user row only caches it.
type Service struct {
	store    store.LoyaltyStore
	tiers    TierTable
	policy   TierPolicy
	notifier notification.Notifier
	logger   *slog.Logger
	now      func() time.Time

	// per-user serialization of read-modify-write sequences
	locks sync.Map
}

func NewService(s store.LoyaltyStore, tiers TierTable, policy TierPolicy, n notification.Notifier, logger *slog.Logger) *Service {
	if len(tiers) == 0 {
		tiers = DefaultTierTable()
	}
	if policy == "" {
		policy = PolicyBalance
	}
	if n == nil {
		n = notification.Nop{}
	}
	return &Service{
		store:    s,
		tiers:    tiers,
		policy:   policy,
		notifier: n,
		logger:   logger.With("component", "loyalty"),
		now:      time.Now,
	}
}

func (s *Service) lock(userID string) func() {
	v, _ := s.locks.LoadOrStore(userID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Earn credits points for a placed order at the user's current tier rate.
// Crediting the same order twice is a no-op. Earn never lowers a tier.
func (s *Service) Earn(ctx context.Context, req EarnRequest) (*EarnResult, error) {
	if req.UserID == "" {
		return nil, ErrUserRequired
	}
	if req.OrderID == "" {
		return nil, ErrOrderRequired
	}
	if req.OrderTotal < 0 {
		return nil, ErrInvalidTotal
	}

	unlock := s.lock(req.UserID)
	defer unlock()

	u, err := s.store.EnsureUser(ctx, req.UserID, req.Email)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	previous := u.LoyaltyTier
	if previous.Rank() < 0 {
		previous = s.tiers[0].Tier
	}

	rate := s.tiers.Rule(previous).Rate
	points := decimal.NewFromInt(req.OrderTotal).Mul(rate).Div(decimal.NewFromInt(100)).Floor().IntPart()

	now := s.now()
	expires := now.Add(EarnValidity)
	if points > 0 {
		appended, err := s.store.AppendLoyaltyTransaction(ctx, &model.LoyaltyTransaction{
			ID:          uuid.New().String(),
			UserID:      req.UserID,
			Points:      points,
			Type:        model.LoyaltyEarn,
			OrderID:     req.OrderID,
			Description: fmt.Sprintf("Earned from order %s", req.OrderID),
			ExpiresAt:   &expires,
			CreatedAt:   now,
		})
		if err != nil {
			return nil, fmt.Errorf("append earn: %w", err)
		}
		if !appended {
			s.logger.Info("order already credited", "user_id", req.UserID, "order_id", req.OrderID)
			return &EarnResult{
				Balance:      u.LoyaltyPoints,
				Tier:         previous,
				PreviousTier: previous,
				Duplicate:    true,
			}, nil
		}
	}

	balance, err := s.balance(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	result := &EarnResult{Points: points, PreviousTier: previous, Tier: previous}
	if tier := s.tiers.TierFor(balance); tier.Rank() > previous.Rank() {
		result.Tier = tier
		result.Upgraded = true
		result.BonusPoints = s.tiers.Rule(tier).Bonus
	}

	if result.BonusPoints > 0 {
		_, err := s.store.AppendLoyaltyTransaction(ctx, &model.LoyaltyTransaction{
			ID:          uuid.New().String(),
			UserID:      req.UserID,
			Points:      result.BonusPoints,
			Type:        model.LoyaltyBonus,
			OrderID:     req.OrderID,
			Description: fmt.Sprintf("Upgrade bonus for reaching %s", result.Tier),
			ExpiresAt:   &expires,
			CreatedAt:   now,
		})
		if err != nil {
			return nil, fmt.Errorf("append bonus: %w", err)
		}
		balance += result.BonusPoints
	}
	result.Balance = balance

	if err := s.store.UpdateUserLoyalty(ctx, req.UserID, balance, result.Tier); err != nil {
		return nil, fmt.Errorf("update user loyalty: %w", err)
	}

	s.logger.Info("points earned",
		"user_id", req.UserID,
		"order_id", req.OrderID,
		"points", points,
		"balance", balance,
		"tier", result.Tier,
	)

	if result.Upgraded {
		email := req.Email
		if email == "" {
			email = u.Email
		}
		err := s.notifier.Notify(ctx, model.Notification{
			Type:        model.NotificationTierUpgraded,
			UserID:      req.UserID,
			Email:       email,
			OrderID:     req.OrderID,
			Tier:        result.Tier,
			BonusPoints: result.BonusPoints,
		})
		if err != nil {
			s.logger.Warn("failed to send tier upgrade notification", "user_id", req.UserID, "error", err)
		}
	}

	return result, nil
}

// Redeem spends points and reports false when the balance does not cover
// them. The tier afterwards follows the configured TierPolicy.
func (s *Service) Redeem(ctx context.Context, userID string, points int64, description string) (bool, error) {
	if userID == "" {
		return false, ErrUserRequired
	}
	if points <= 0 {
		return false, ErrInvalidPoints
	}

	unlock := s.lock(userID)
	defer unlock()

	u, err := s.store.EnsureUser(ctx, userID, "")
	if err != nil {
		return false, fmt.Errorf("load user: %w", err)
	}

	// expired points must not be spendable
	balance, err := s.balance(ctx, userID)
	if err != nil {
		return false, err
	}
	if balance != u.LoyaltyPoints {
		if err := s.store.UpdateUserLoyalty(ctx, userID, balance, u.LoyaltyTier); err != nil {
			return false, fmt.Errorf("refresh balance: %w", err)
		}
	}

	ok, err := s.store.DeductLoyaltyPoints(ctx, userID, points)
	if err != nil {
		return false, fmt.Errorf("deduct points: %w", err)
	}
	if !ok {
		s.logger.Info("redeem rejected", "user_id", userID, "points", points, "balance", balance)
		return false, nil
	}

	if description == "" {
		description = "Points redeemed"
	}
	_, err = s.store.AppendLoyaltyTransaction(ctx, &model.LoyaltyTransaction{
		ID:          uuid.New().String(),
		UserID:      userID,
		Points:      -points,
		Type:        model.LoyaltyRedeem,
		Description: description,
		CreatedAt:   s.now(),
	})
	if err != nil {
		return false, fmt.Errorf("append redeem: %w", err)
	}

	remaining := balance - points
	tier := s.tiers.TierFor(remaining)
	if s.policy == PolicyHighWaterMark && tier.Rank() < u.LoyaltyTier.Rank() {
		tier = u.LoyaltyTier
	}
	if err := s.store.UpdateUserLoyalty(ctx, userID, remaining, tier); err != nil {
		return false, fmt.Errorf("update user loyalty: %w", err)
	}

	s.logger.Info("points redeemed", "user_id", userID, "points", points, "balance", remaining, "tier", tier)
	return true, nil
}

// Summary reports the live balance and ledger for a user.
func (s *Service) Summary(ctx context.Context, userID string) (*Summary, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}
	u, err := s.store.EnsureUser(ctx, userID, "")
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	rows, err := s.store.ListLoyaltyTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list loyalty transactions: %w", err)
	}

	tier := u.LoyaltyTier
	if tier.Rank() < 0 {
		tier = s.tiers[0].Tier
	}
	summary := &Summary{
		UserID:       userID,
		Balance:      Balance(rows, s.now()),
		Tier:         tier,
		Transactions: rows,
		Tiers:        s.tiers,
	}
	if next, ok := s.tiers.Next(tier); ok {
		summary.NextTier = next.Tier
		if gap := next.Threshold - summary.Balance; gap > 0 {
			summary.PointsToNext = gap
		}
	}
	return summary, nil
}

func (s *Service) balance(ctx context.Context, userID string) (int64, error) {
	rows, err := s.store.ListLoyaltyTransactions(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list loyalty transactions: %w", err)
	}
	return Balance(rows, s.now()), nil
}

// Balance sums the rows that count at now, floored at zero.
func Balance(rows []*model.LoyaltyTransaction, now time.Time) int64 {
	var total int64
	for _, t := range rows {
		if t.Counts(now) {
			total += t.Points
		}
	}
	if total < 0 {
		return 0
	}
	return total
}
