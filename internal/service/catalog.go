package service

import (
	"context"

	"github.com/elastic/go-elasticsearch/v9"

	esidx "github.com/avdeev/digital-market/internal/es"
	"github.com/avdeev/digital-market/internal/events"
	"github.com/avdeev/digital-market/internal/logging"
	"github.com/avdeev/digital-market/internal/models"
	"github.com/avdeev/digital-market/internal/repo"
	"github.com/avdeev/digital-market/internal/service/search"
)

type CatalogService struct {
	Repo     *repo.GormRepo
	Producer *events.Producer
	ES       *elasticsearch.Client
}

type CreateProductInput struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
}

type PatchProductInput struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	Category    *string  `json:"category"`
	Status      *string  `json:"status"`
}

func (s *CatalogService) CreateProduct(ctx context.Context, seller *models.User, in CreateProductInput) (*models.Product, error) {
	fields := map[string]string{}
	if in.Title == "" {
		fields["title"] = "title is required"
	}
	if in.Price < 0 {
		fields["price"] = "price cannot be negative"
	}
	if !models.ValidCategory(in.Category) {
		fields["category"] = "unknown category"
	}
	if len(fields) > 0 {
		return nil, Invalid(fields)
	}

	slug, err := s.Repo.AllocateSlug(ctx, in.Title, "")
	if err != nil {
		return nil, err
	}

	prod := &models.Product{
		SellerID:    seller.ID,
		Title:       in.Title,
		Slug:        slug,
		Description: in.Description,
		Price:       in.Price,
		Category:    in.Category,
		Status:      models.ProductStatusDraft,
	}
	if err := s.Repo.CreateProduct(ctx, prod); err != nil {
		return nil, err
	}

	s.index(ctx, prod)
	_ = s.Producer.PublishEvent(ctx, events.TopicProductEvents, prod.ID, map[string]any{
		"type":      "product_created",
		"productID": prod.ID,
		"sellerID":  prod.SellerID,
	})

	return prod, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	return s.Repo.GetProduct(ctx, id)
}

func (s *CatalogService) GetProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	return s.Repo.GetProductBySlug(ctx, slug)
}

func (s *CatalogService) GetProducts(ctx context.Context, category string, offset, limit int) (int64, []models.Product, error) {
	return s.Repo.GetProducts(ctx, category, offset, limit)
}

func (s *CatalogService) GetSellerProducts(ctx context.Context, sellerID string, offset, limit int) (int64, []models.Product, error) {
	return s.Repo.GetSellerProducts(ctx, sellerID, offset, limit)
}

func (s *CatalogService) PatchProduct(ctx context.Context, actor *models.User, id string, in PatchProductInput) (*models.Product, error) {
	prod, err := s.Repo.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if prod.SellerID != actor.ID && actor.Role != models.RoleAdmin {
		return nil, ErrForbidden
	}

	if in.Title != nil && *in.Title != prod.Title {
		if *in.Title == "" {
			return nil, Invalid(map[string]string{"title": "title is required"})
		}
		slug, err := s.Repo.AllocateSlug(ctx, *in.Title, prod.ID)
		if err != nil {
			return nil, err
		}
		prod.Title = *in.Title
		prod.Slug = slug
	}
	if in.Description != nil {
		prod.Description = *in.Description
	}
	if in.Price != nil {
		if *in.Price < 0 {
			return nil, Invalid(map[string]string{"price": "price cannot be negative"})
		}
		prod.Price = *in.Price
	}
	if in.Category != nil {
		if !models.ValidCategory(*in.Category) {
			return nil, Invalid(map[string]string{"category": "unknown category"})
		}
		prod.Category = *in.Category
	}
	if in.Status != nil {
		if *in.Status != models.ProductStatusDraft && *in.Status != models.ProductStatusPublished {
			return nil, Invalid(map[string]string{"status": "status must be draft or published"})
		}
		// Publishing is reserved for verified sellers; admins can always.
		if *in.Status == models.ProductStatusPublished && actor.Role != models.RoleAdmin && !actor.VerifiedSeller {
			return nil, ErrForbidden
		}
		prod.Status = *in.Status
	}

	if err := s.Repo.SaveProduct(ctx, prod); err != nil {
		return nil, err
	}

	s.index(ctx, prod)
	_ = s.Producer.PublishEvent(ctx, events.TopicProductEvents, prod.ID, map[string]any{
		"type":      "product_updated",
		"productID": prod.ID,
	})

	return prod, nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, actor *models.User, id string) error {
	prod, err := s.Repo.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	if prod.SellerID != actor.ID && actor.Role != models.RoleAdmin {
		return ErrForbidden
	}

	if err := s.Repo.DeleteProduct(ctx, id); err != nil {
		return err
	}

	if err := esidx.DeleteProduct(ctx, s.ES, id); err != nil {
		logging.FromContext(ctx).Warn("es_delete_failed", "productID", id, "error", err)
	}
	_ = s.Producer.PublishEvent(ctx, events.TopicProductEvents, id, map[string]any{
		"type":      "product_deleted",
		"productID": id,
	})

	return nil
}

// Search prefers Elasticsearch and falls back to a LIKE query when no
// cluster is configured.
func (s *CatalogService) Search(ctx context.Context, query string, offset, limit int) (int64, []models.Product, error) {
	if s.ES == nil {
		return s.Repo.SearchProductsLike(ctx, query, offset, limit)
	}
	return search.Search(ctx, s.ES, query, offset, limit)
}

func (s *CatalogService) index(ctx context.Context, prod *models.Product) {
	if err := esidx.IndexProduct(ctx, s.ES, prod); err != nil {
		logging.FromContext(ctx).Warn("es_index_failed", "productID", prod.ID, "error", err)
	}
}
