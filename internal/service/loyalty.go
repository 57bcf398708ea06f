package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Skotchmaster/food_order/internal/domain"
	"github.com/Skotchmaster/food_order/internal/models"
	"github.com/Skotchmaster/food_order/internal/repo"
)

type LoyaltyService struct {
	Repo          *repo.GormRepo
	EarnRate      decimal.Decimal
	PointValue    decimal.Decimal
	MinRedemption int64
}

type Redemption struct {
	Points   int64           `json:"points"`
	Discount decimal.Decimal `json:"discount"`
	Balance  int64           `json:"balance"`
}

func (s *LoyaltyService) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.Repo.LoyaltyBalance(ctx, userID)
}

func (s *LoyaltyService) History(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.LoyaltyTransaction, error) {
	return s.Repo.ListLoyaltyTransactions(ctx, userID, limit, offset)
}

// Accrue credits floor(total * earn rate) points for an order. It is safe to
// call more than once for the same order; only the first call credits.
func (s *LoyaltyService) Accrue(ctx context.Context, userID, orderID uuid.UUID, total decimal.Decimal) (int64, error) {
	points := domain.PointsEarned(total, s.EarnRate)
	if points <= 0 {
		return 0, nil
	}

	done, err := s.Repo.HasLoyaltyEntry(ctx, orderID, models.LoyaltyEarned)
	if err != nil {
		return 0, err
	}
	if done {
		return 0, nil
	}

	_, err = s.Repo.ApplyLoyaltyDelta(ctx, &models.LoyaltyTransaction{
		UserID:      userID,
		Points:      points,
		Kind:        models.LoyaltyEarned,
		OrderID:     &orderID,
		Description: "order " + orderID.String(),
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("accrue points: %w", err)
	}
	return points, nil
}

// PreviewRedemption validates a redemption against the floor and the
// current balance without reserving anything.
func (s *LoyaltyService) PreviewRedemption(ctx context.Context, userID uuid.UUID, points int64) (Redemption, error) {
	if points < s.MinRedemption || points <= 0 {
		return Redemption{}, fmt.Errorf("%w: at least %d points must be redeemed", ErrValidation, s.MinRedemption)
	}
	balance, err := s.Repo.LoyaltyBalance(ctx, userID)
	if err != nil {
		return Redemption{}, err
	}
	if points > balance {
		return Redemption{}, fmt.Errorf("%w: balance %d, requested %d", ErrInsufficientPoints, balance, points)
	}
	return Redemption{
		Points:   points,
		Discount: domain.PointsDiscount(points, s.PointValue),
		Balance:  balance,
	}, nil
}

// SettleTx spends points for an order inside the caller's transaction,
// checking the balance again under the account lock.
func (s *LoyaltyService) SettleTx(ctx context.Context, tx *repo.GormRepo, userID, orderID uuid.UUID, points int64) error {
	if points <= 0 {
		return nil
	}
	_, err := tx.ApplyLoyaltyDelta(ctx, &models.LoyaltyTransaction{
		UserID:      userID,
		Points:      -points,
		Kind:        models.LoyaltySpent,
		OrderID:     &orderID,
		Description: "redeemed on order " + orderID.String(),
	})
	if errors.Is(err, repo.ErrInsufficientBalance) {
		return fmt.Errorf("%w: %v", ErrInsufficientPoints, err)
	}
	return err
}

// Adjust applies a manual bonus or correction by staff.
func (s *LoyaltyService) Adjust(ctx context.Context, userID, actorID uuid.UUID, points int64, kind models.LoyaltyKind, reason string) (int64, error) {
	if points == 0 {
		return 0, fmt.Errorf("%w: points must not be zero", ErrValidation)
	}
	if reason == "" {
		return 0, fmt.Errorf("%w: reason is required", ErrValidation)
	}
	switch kind {
	case models.LoyaltyBonus:
		if points < 0 {
			return 0, fmt.Errorf("%w: a bonus must be positive", ErrValidation)
		}
	case models.LoyaltyAdjustment:
	default:
		return 0, fmt.Errorf("%w: kind must be bonus or adjustment", ErrValidation)
	}

	balance, err := s.Repo.ApplyLoyaltyDelta(ctx, &models.LoyaltyTransaction{
		UserID:      userID,
		Points:      points,
		Kind:        kind,
		Description: reason,
		ActorID:     &actorID,
	})
	if errors.Is(err, repo.ErrInsufficientBalance) {
		return 0, fmt.Errorf("%w: %v", ErrInsufficientPoints, err)
	}
	return balance, err
}
