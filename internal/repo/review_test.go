package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avdeev/digital-market/internal/models"
)

func addReview(t *testing.T, r *GormRepo, userID, productID string, rating int) *models.Review {
	t.Helper()

	review := &models.Review{
		UserID:    userID,
		ProductID: productID,
		Rating:    rating,
		Approved:  true,
	}
	require.NoError(t, r.CreateReview(context.Background(), review))
	return review
}

func TestCreateReview_DuplicateRejected(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	prod := seedProduct(t, r, "seller-1", "Reviewed Product")

	addReview(t, r, "user-1", prod.ID, 5)

	err := r.CreateReview(context.Background(), &models.Review{
		UserID:    "user-1",
		ProductID: prod.ID,
		Rating:    3,
		Approved:  true,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConflict))

	// A different user may still review.
	addReview(t, r, "user-2", prod.ID, 4)
}

func TestCreateReview_RecomputesAggregate(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()
	prod := seedProduct(t, r, "seller-1", "Rated Product")

	addReview(t, r, "user-1", prod.ID, 5)
	addReview(t, r, "user-2", prod.ID, 5)
	addReview(t, r, "user-3", prod.ID, 4)

	got, err := r.GetProduct(ctx, prod.ID)
	require.NoError(t, err)
	assert.Equal(t, 4.7, got.Rating)
	assert.EqualValues(t, 3, got.ReviewCount)
}

func TestDeleteReview_ResetsAggregateWhenLast(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()
	prod := seedProduct(t, r, "seller-1", "Once Rated")

	review := addReview(t, r, "user-1", prod.ID, 5)

	got, err := r.GetProduct(ctx, prod.ID)
	require.NoError(t, err)
	assert.Equal(t, 5.0, got.Rating)
	assert.EqualValues(t, 1, got.ReviewCount)

	require.NoError(t, r.DeleteReview(ctx, review.ID))

	got, err = r.GetProduct(ctx, prod.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.Rating)
	assert.EqualValues(t, 0, got.ReviewCount)
}

func TestSetReviewApproved_ExcludesFromAggregate(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()
	prod := seedProduct(t, r, "seller-1", "Moderated Product")

	review := addReview(t, r, "user-1", prod.ID, 1)
	addReview(t, r, "user-2", prod.ID, 5)

	_, err := r.SetReviewApproved(ctx, review.ID, false)
	require.NoError(t, err)

	got, err := r.GetProduct(ctx, prod.ID)
	require.NoError(t, err)
	assert.Equal(t, 5.0, got.Rating)
	assert.EqualValues(t, 1, got.ReviewCount)
}
