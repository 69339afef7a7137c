package service

import (
	"context"
	"errors"
	"math"

	"github.com/google/uuid"

	"github.com/avdeev/digital-market/internal/events"
	"github.com/avdeev/digital-market/internal/logging"
	"github.com/avdeev/digital-market/internal/models"
	"github.com/avdeev/digital-market/internal/repo"
	"github.com/avdeev/digital-market/internal/storage"
)

var ErrNotPurchased = errors.New("purchase is not completed")

type PurchaseService struct {
	Repo       *repo.GormRepo
	Producer   *events.Producer
	Files      *storage.Store
	FeePercent float64
}

type CheckoutInput struct {
	ProductID     string `json:"product_id"`
	PaymentMethod string `json:"payment_method"`
}

// Checkout creates a pending purchase with the fee split precomputed and a
// generated payment-session id. A confirm call (the payment webhook stand-in)
// completes it.
func (s *PurchaseService) Checkout(ctx context.Context, buyer *models.User, in CheckoutInput) (*models.Purchase, error) {
	if in.ProductID == "" {
		return nil, Invalid(map[string]string{"product_id": "product_id is required"})
	}
	if in.PaymentMethod == "" {
		in.PaymentMethod = "card"
	}

	prod, err := s.Repo.GetProduct(ctx, in.ProductID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if prod.Status != models.ProductStatusPublished {
		return nil, ErrNotFound
	}
	if prod.SellerID == buyer.ID {
		return nil, Invalid(map[string]string{"product_id": "you cannot buy your own product"})
	}

	fee := round2(prod.Price * s.FeePercent / 100)
	purchase := &models.Purchase{
		BuyerID:          buyer.ID,
		ProductID:        prod.ID,
		Amount:           prod.Price,
		PlatformFee:      fee,
		SellerEarnings:   round2(prod.Price - fee),
		PaymentMethod:    in.PaymentMethod,
		PaymentSessionID: "ps_" + uuid.NewString(),
		Status:           models.PurchasePending,
	}

	if err := s.Repo.CreatePurchase(ctx, purchase); err != nil {
		return nil, err
	}
	return purchase, nil
}

func (s *PurchaseService) Confirm(ctx context.Context, actor *models.User, id string) (*models.Purchase, error) {
	l := logging.FromContext(ctx).With("svc", "purchase.confirm", "purchaseID", id)

	purchase, err := s.Repo.GetPurchase(ctx, id)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	// Only the buyer (or an admin) may complete a pending purchase.
	if purchase.BuyerID != actor.ID && actor.Role != models.RoleAdmin {
		l.Warn("confirm_rejected", "status", 403, "reason", "not the buyer")
		return nil, ErrForbidden
	}

	prod, err := s.Repo.GetProduct(ctx, purchase.ProductID)
	if err != nil {
		return nil, err
	}

	purchase, err = s.Repo.CompletePurchase(ctx, id, prod.SellerID)
	if err != nil {
		if errors.Is(err, repo.ErrConflict) {
			l.Warn("confirm_rejected", "status", 400, "reason", "purchase is not pending")
			return nil, Invalid(map[string]string{"status": "purchase is not pending"})
		}
		return nil, err
	}

	_ = s.Producer.PublishEvent(ctx, events.TopicPurchaseEvents, purchase.ID, map[string]any{
		"type":       "purchase_completed",
		"purchaseID": purchase.ID,
		"productID":  purchase.ProductID,
		"buyerID":    purchase.BuyerID,
		"amount":     purchase.Amount,
	})

	return purchase, nil
}

// Refund marks a completed purchase refunded. The denormalized seller and
// product counters keep the gross figures; refunds only flip the status.
func (s *PurchaseService) Refund(ctx context.Context, id string) (*models.Purchase, error) {
	l := logging.FromContext(ctx).With("svc", "purchase.refund", "purchaseID", id)

	purchase, err := s.Repo.GetPurchase(ctx, id)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if purchase.Status != models.PurchaseCompleted {
		l.Warn("refund_rejected", "status", 400, "reason", "purchase is not completed")
		return nil, Invalid(map[string]string{"status": "only completed purchases can be refunded"})
	}

	if err := s.Repo.MarkPurchaseStatus(ctx, id, models.PurchaseRefunded); err != nil {
		return nil, err
	}
	purchase.Status = models.PurchaseRefunded

	_ = s.Producer.PublishEvent(ctx, events.TopicPurchaseEvents, purchase.ID, map[string]any{
		"type":       "purchase_refunded",
		"purchaseID": purchase.ID,
		"productID":  purchase.ProductID,
		"buyerID":    purchase.BuyerID,
		"amount":     purchase.Amount,
	})

	return purchase, nil
}

func (s *PurchaseService) GetBuyerPurchases(ctx context.Context, buyerID string, offset, limit int) (int64, []models.Purchase, error) {
	return s.Repo.GetBuyerPurchases(ctx, buyerID, offset, limit)
}

// Download authorizes file access: the download token is the capability, but
// it only works together with the session of the buyer who owns the
// purchase.
func (s *PurchaseService) Download(ctx context.Context, user *models.User, downloadToken string) ([]storage.FileInfo, error) {
	l := logging.FromContext(ctx).With("svc", "purchase.download")

	purchase, err := s.Repo.GetPurchaseByDownloadToken(ctx, downloadToken)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if purchase.BuyerID != user.ID {
		l.Warn("download_rejected", "status", 401, "reason", "buyer mismatch")
		return nil, ErrForbidden
	}
	if purchase.Status != models.PurchaseCompleted {
		return nil, ErrNotPurchased
	}

	files, err := s.Repo.GetProductFiles(ctx, purchase.ProductID)
	if err != nil {
		return nil, err
	}

	if err := s.Repo.RecordDownload(ctx, purchase.ID); err != nil {
		l.Warn("download_count_failed", "purchaseID", purchase.ID, "error", err)
	}

	out := make([]storage.FileInfo, len(files))
	for i, f := range files {
		out[i] = storage.FileInfo{
			Name: f.Name,
			Size: f.Size,
			Type: f.Type,
			Key:  f.Key,
			URL:  s.Files.SignedURL(f.Key),
		}
	}
	return out, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
