package repo

import (
	"context"
	"math"

	"gorm.io/gorm"

	"github.com/avdeev/digital-market/internal/models"
)

// CreateReview inserts the review and recomputes the product aggregate in
// one transaction, so a concurrent review on the same product cannot
// interleave between the read and the write.
func (r *GormRepo) CreateReview(ctx context.Context, review *models.Review) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Review{}).
			Where("user_id = ? AND product_id = ?", review.UserID, review.ProductID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrConflict
		}

		if err := tx.Create(review).Error; err != nil {
			return err
		}
		return recomputeRating(tx, review.ProductID)
	})
}

func (r *GormRepo) GetReview(ctx context.Context, id string) (*models.Review, error) {
	var review models.Review
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&review).Error; err != nil {
		return nil, err
	}
	return &review, nil
}

func (r *GormRepo) GetProductReviews(ctx context.Context, productID string, offset, limit int) (int64, []models.Review, error) {
	q := r.DB.WithContext(ctx).Model(&models.Review{}).
		Where("product_id = ? AND approved = ?", productID, true)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var items []models.Review
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return 0, nil, err
	}

	return total, items, nil
}

func (r *GormRepo) DeleteReview(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var review models.Review
		if err := tx.Where("id = ?", id).First(&review).Error; err != nil {
			return err
		}
		if err := tx.Delete(&review).Error; err != nil {
			return err
		}
		return recomputeRating(tx, review.ProductID)
	})
}

func (r *GormRepo) SetReviewApproved(ctx context.Context, id string, approved bool) (*models.Review, error) {
	var review models.Review
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&review).Error; err != nil {
			return err
		}
		review.Approved = approved
		if err := tx.Save(&review).Error; err != nil {
			return err
		}
		return recomputeRating(tx, review.ProductID)
	})
	if err != nil {
		return nil, err
	}
	return &review, nil
}

// recomputeRating rewrites the denormalized aggregate from the approved
// reviews. Rating is rounded to one decimal and drops back to 0 when the
// last approved review disappears.
func recomputeRating(tx *gorm.DB, productID string) error {
	var row struct {
		Avg float64
		Cnt int64
	}
	if err := tx.Model(&models.Review{}).
		Select("COALESCE(AVG(rating), 0) AS avg, COUNT(*) AS cnt").
		Where("product_id = ? AND approved = ?", productID, true).
		Scan(&row).Error; err != nil {
		return err
	}

	rating := math.Round(row.Avg*10) / 10

	return tx.Model(&models.Product{}).Where("id = ?", productID).Updates(map[string]any{
		"rating":       rating,
		"review_count": row.Cnt,
	}).Error
}
