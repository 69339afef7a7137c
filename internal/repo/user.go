package repo

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/avdeev/digital-market/internal/models"
)

// CreateUser enforces case-insensitive email uniqueness: the email is stored
// lowercased and looked up lowercased everywhere.
func (r *GormRepo) CreateUser(ctx context.Context, u *models.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))

	tx := r.DB.WithContext(ctx).Where("email = ?", u.Email).FirstOrCreate(u)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

func (r *GormRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	email = strings.ToLower(strings.TrimSpace(email))
	if err := r.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormRepo) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormRepo) UpdateUser(ctx context.Context, u *models.User) error {
	return r.DB.WithContext(ctx).Save(u).Error
}

// CreditSeller adds a completed sale to the seller's denormalized counters.
func (r *GormRepo) CreditSeller(tx *gorm.DB, sellerID string, earnings float64) error {
	res := tx.Model(&models.User{}).Where("id = ?", sellerID).Updates(map[string]any{
		"total_earnings": gorm.Expr("total_earnings + ?", earnings),
		"total_sales":    gorm.Expr("total_sales + ?", 1),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
