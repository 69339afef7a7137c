package service

import (
	"context"
	"errors"

	"github.com/avdeev/digital-market/internal/logging"
	"github.com/avdeev/digital-market/internal/models"
	"github.com/avdeev/digital-market/internal/repo"
)

type ReviewService struct {
	Repo *repo.GormRepo
}

type CreateReviewInput struct {
	Rating int    `json:"rating"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

func (s *ReviewService) CreateReview(ctx context.Context, user *models.User, productID string, in CreateReviewInput) (*models.Review, error) {
	l := logging.FromContext(ctx).With("svc", "review.create", "productID", productID)

	if in.Rating < 1 || in.Rating > 5 {
		return nil, Invalid(map[string]string{"rating": "rating must be between 1 and 5"})
	}

	if _, err := s.Repo.GetProduct(ctx, productID); err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	review := &models.Review{
		UserID:    user.ID,
		ProductID: productID,
		Rating:    in.Rating,
		Title:     in.Title,
		Body:      in.Body,
		Approved:  true,
	}

	if err := s.Repo.CreateReview(ctx, review); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			l.Warn("review_create_error", "status", 400, "reason", "duplicate review")
			return nil, Invalid(map[string]string{"product_id": "you have already reviewed this product"})
		}
		return nil, err
	}

	return review, nil
}

func (s *ReviewService) GetProductReviews(ctx context.Context, productID string, offset, limit int) (int64, []models.Review, error) {
	return s.Repo.GetProductReviews(ctx, productID, offset, limit)
}

func (s *ReviewService) DeleteReview(ctx context.Context, actor *models.User, id string) error {
	review, err := s.Repo.GetReview(ctx, id)
	if err != nil {
		if repo.IsNotFound(err) {
			return ErrNotFound
		}
		return err
	}
	if review.UserID != actor.ID && actor.Role != models.RoleAdmin {
		return ErrForbidden
	}
	return s.Repo.DeleteReview(ctx, id)
}

func (s *ReviewService) SetApproved(ctx context.Context, id string, approved bool) (*models.Review, error) {
	review, err := s.Repo.SetReviewApproved(ctx, id, approved)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return review, nil
}
