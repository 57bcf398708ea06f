package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/food_order/internal/models"
)

// ApplyLoyaltyDelta changes a user's balance by entry.Points and appends
// entry to the ledger, both in one transaction. The account row is locked
// first so concurrent spends for the same user run one after another. A
// change that would leave the balance negative fails with
// ErrInsufficientBalance before anything is written.
func (r *GormRepo) ApplyLoyaltyDelta(ctx context.Context, entry *models.LoyaltyTransaction) (int64, error) {
	var balance int64
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var acct models.LoyaltyAccount
		err := tx.Clauses(forUpdate()).Where("user_id = ?", entry.UserID).First(&acct).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if entry.Points < 0 {
				return fmt.Errorf("%w: balance 0, need %d", ErrInsufficientBalance, -entry.Points)
			}
			acct = models.LoyaltyAccount{UserID: entry.UserID}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&acct).Error; err != nil {
				return err
			}
			if err := tx.Clauses(forUpdate()).Where("user_id = ?", entry.UserID).First(&acct).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		}

		if acct.Balance+entry.Points < 0 {
			return fmt.Errorf("%w: balance %d, need %d", ErrInsufficientBalance, acct.Balance, -entry.Points)
		}

		res := tx.Model(&models.LoyaltyAccount{}).
			Where("user_id = ? AND balance + ? >= 0", entry.UserID, entry.Points).
			Updates(map[string]any{
				"balance":    gorm.Expr("balance + ?", entry.Points),
				"updated_at": tx.NowFunc(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInsufficientBalance
		}

		if err := tx.Create(entry).Error; err != nil {
			return err
		}
		balance = acct.Balance + entry.Points
		return nil
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (r *GormRepo) LoyaltyBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	var acct models.LoyaltyAccount
	err := r.DB.WithContext(ctx).Where("user_id = ?", userID).First(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return acct.Balance, nil
}

// LoyaltyLedgerSum is the balance recomputed from the ledger.
func (r *GormRepo) LoyaltyLedgerSum(ctx context.Context, userID uuid.UUID) (int64, error) {
	var sum int64
	err := r.DB.WithContext(ctx).Model(&models.LoyaltyTransaction{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(points), 0)").
		Scan(&sum).Error
	return sum, err
}

func (r *GormRepo) ListLoyaltyTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.LoyaltyTransaction, error) {
	var out []models.LoyaltyTransaction
	err := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).Offset(offset).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormRepo) HasLoyaltyEntry(ctx context.Context, orderID uuid.UUID, kind models.LoyaltyKind) (bool, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.LoyaltyTransaction{}).
		Where("order_id = ? AND kind = ?", orderID, kind).
		Count(&n).Error
	return n > 0, err
}
