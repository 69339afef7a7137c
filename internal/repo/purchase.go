package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/avdeev/digital-market/internal/models"
)

func (r *GormRepo) CreatePurchase(ctx context.Context, p *models.Purchase) error {
	return r.DB.WithContext(ctx).Create(p).Error
}

func (r *GormRepo) GetPurchase(ctx context.Context, id string) (*models.Purchase, error) {
	var purchase models.Purchase
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&purchase).Error; err != nil {
		return nil, err
	}
	return &purchase, nil
}

func (r *GormRepo) GetPurchaseByDownloadToken(ctx context.Context, token string) (*models.Purchase, error) {
	var purchase models.Purchase
	if err := r.DB.WithContext(ctx).Where("download_token = ?", token).First(&purchase).Error; err != nil {
		return nil, err
	}
	return &purchase, nil
}

func (r *GormRepo) GetBuyerPurchases(ctx context.Context, buyerID string, offset, limit int) (int64, []models.Purchase, error) {
	q := r.DB.WithContext(ctx).Model(&models.Purchase{}).Where("buyer_id = ?", buyerID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var items []models.Purchase
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return 0, nil, err
	}

	return total, items, nil
}

// CompletePurchase flips a pending purchase to completed and credits the
// seller and product counters in the same transaction.
func (r *GormRepo) CompletePurchase(ctx context.Context, id, sellerID string) (*models.Purchase, error) {
	var purchase models.Purchase
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&purchase).Error; err != nil {
			return err
		}
		if purchase.Status != models.PurchasePending {
			return ErrConflict
		}

		purchase.Status = models.PurchaseCompleted
		if err := tx.Save(&purchase).Error; err != nil {
			return err
		}
		if err := r.CreditSeller(tx, sellerID, purchase.SellerEarnings); err != nil {
			return err
		}
		return r.IncrementSold(tx, purchase.ProductID)
	})
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

func (r *GormRepo) MarkPurchaseStatus(ctx context.Context, id, status string) error {
	res := r.DB.WithContext(ctx).Model(&models.Purchase{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormRepo) RecordDownload(ctx context.Context, id string) error {
	now := time.Now().UTC()
	return r.DB.WithContext(ctx).Model(&models.Purchase{}).Where("id = ?", id).Updates(map[string]any{
		"download_count":   gorm.Expr("download_count + ?", 1),
		"last_download_at": &now,
	}).Error
}
