package repo

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/avdeev/digital-market/internal/models"
	"github.com/avdeev/digital-market/internal/util"
)

// AllocateSlug resolves collisions with a numeric suffix: title, title-1,
// title-2, ... excludeID skips the product's own row on rename, so a title
// that still slugifies to the current slug keeps it. The unique index on
// products.slug backstops concurrent allocations.
func (r *GormRepo) AllocateSlug(ctx context.Context, title, excludeID string) (string, error) {
	base := util.Slugify(title)
	slug := base
	for i := 1; ; i++ {
		q := r.DB.WithContext(ctx).Model(&models.Product{}).Where("slug = ?", slug)
		if excludeID != "" {
			q = q.Where("id <> ?", excludeID)
		}
		var count int64
		if err := q.Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
}

func (r *GormRepo) CreateProduct(ctx context.Context, prod *models.Product) error {
	return r.DB.WithContext(ctx).Create(prod).Error
}

func (r *GormRepo) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	if err := r.DB.WithContext(ctx).Preload("Files").Where("id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *GormRepo) GetProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	var product models.Product
	if err := r.DB.WithContext(ctx).Preload("Files").Where("slug = ?", slug).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *GormRepo) GetProducts(ctx context.Context, category string, offset, limit int) (int64, []models.Product, error) {
	q := r.DB.WithContext(ctx).Model(&models.Product{}).Where("status = ?", models.ProductStatusPublished)
	if category != "" {
		q = q.Where("category = ?", category)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var items []models.Product
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return 0, nil, err
	}

	return total, items, nil
}

func (r *GormRepo) GetSellerProducts(ctx context.Context, sellerID string, offset, limit int) (int64, []models.Product, error) {
	q := r.DB.WithContext(ctx).Model(&models.Product{}).Where("seller_id = ?", sellerID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var items []models.Product
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return 0, nil, err
	}

	return total, items, nil
}

func (r *GormRepo) SaveProduct(ctx context.Context, prod *models.Product) error {
	return r.DB.WithContext(ctx).Save(prod).Error
}

// DeleteProduct removes the product and its file rows in one transaction.
func (r *GormRepo) DeleteProduct(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&models.Product{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("product_id = ?", id).Delete(&models.ProductFile{}).Error
	})
}

func (r *GormRepo) AttachFile(ctx context.Context, file *models.ProductFile) error {
	var count int64
	if err := r.DB.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", file.ProductID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return gorm.ErrRecordNotFound
	}
	return r.DB.WithContext(ctx).Create(file).Error
}

func (r *GormRepo) GetProductFiles(ctx context.Context, productID string) ([]models.ProductFile, error) {
	var files []models.ProductFile
	if err := r.DB.WithContext(ctx).Where("product_id = ?", productID).Find(&files).Error; err != nil {
		return nil, err
	}
	return files, nil
}

// SearchProductsLike is the DB fallback used when Elasticsearch is not
// configured.
func (r *GormRepo) SearchProductsLike(ctx context.Context, query string, offset, limit int) (int64, []models.Product, error) {
	pattern := "%" + query + "%"
	q := r.DB.WithContext(ctx).Model(&models.Product{}).
		Where("status = ?", models.ProductStatusPublished).
		Where(r.DB.Where("LOWER(title) LIKE LOWER(?)", pattern).Or("LOWER(description) LIKE LOWER(?)", pattern))

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var items []models.Product
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return 0, nil, err
	}

	return total, items, nil
}

func (r *GormRepo) IncrementSold(tx *gorm.DB, productID string) error {
	res := tx.Model(&models.Product{}).Where("id = ?", productID).
		Update("sold_count", gorm.Expr("sold_count + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.New("product missing during sale credit")
	}
	return nil
}
