package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleBuyer  = "buyer"
	RoleSeller = "seller"
	RoleAdmin  = "admin"
)

const (
	ProductStatusDraft     = "draft"
	ProductStatusPublished = "published"
)

const (
	PurchasePending   = "pending"
	PurchaseCompleted = "completed"
	PurchaseRefunded  = "refunded"
	PurchaseFailed    = "failed"
)

var Categories = []string{"ebooks", "software", "graphics", "audio", "video", "templates", "courses", "other"}

func ValidCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

type User struct {
	ID           string  `gorm:"primaryKey"              json:"id"`
	Email        string  `gorm:"uniqueIndex;not null"    json:"email"`
	Name         string  `json:"name"`
	PasswordHash *string `json:"-"`
	Role         string  `gorm:"not null;default:buyer"  json:"role"`

	SellerSlug     string  `gorm:"index"                json:"seller_slug,omitempty"`
	VerifiedSeller bool    `gorm:"default:false"        json:"verified_seller"`
	PremiumSeller  bool    `gorm:"default:false"        json:"premium_seller"`
	TotalEarnings  float64 `gorm:"default:0"            json:"total_earnings"`
	TotalSales     uint    `gorm:"default:0"            json:"total_sales"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

type Product struct {
	ID          string  `gorm:"primaryKey"           json:"id"`
	SellerID    string  `gorm:"index;not null"       json:"seller_id"`
	Title       string  `gorm:"not null"             json:"title"`
	Slug        string  `gorm:"uniqueIndex;not null" json:"slug"`
	Description string  `json:"description"`
	Price       float64 `gorm:"not null"             json:"price"`
	Category    string  `gorm:"index;not null"       json:"category"`
	Status      string  `gorm:"not null;default:draft" json:"status"`

	Rating      float64 `gorm:"default:0" json:"rating"`
	ReviewCount uint    `gorm:"default:0" json:"review_count"`
	SoldCount   uint    `gorm:"default:0" json:"sold_count"`

	Files []ProductFile `gorm:"foreignKey:ProductID" json:"files,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

type ProductFile struct {
	ID        string    `gorm:"primaryKey"      json:"id"`
	ProductID string    `gorm:"index;not null"  json:"product_id"`
	Name      string    `gorm:"not null"        json:"name"`
	Size      int64     `gorm:"not null"        json:"size"`
	Type      string    `json:"type"`
	Key       string    `gorm:"uniqueIndex;not null" json:"key"`
	CreatedAt time.Time `json:"created_at"`
}

func (f *ProductFile) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}

type Purchase struct {
	ID        string `gorm:"primaryKey"     json:"id"`
	BuyerID   string `gorm:"index;not null" json:"buyer_id"`
	ProductID string `gorm:"index;not null" json:"product_id"`

	Amount         float64 `gorm:"not null"  json:"amount"`
	PlatformFee    float64 `gorm:"not null"  json:"platform_fee"`
	SellerEarnings float64 `gorm:"not null"  json:"seller_earnings"`

	PaymentMethod    string `json:"payment_method"`
	PaymentSessionID string `gorm:"index" json:"payment_session_id"`
	Status           string `gorm:"not null;default:pending" json:"status"`

	DownloadToken  string     `gorm:"uniqueIndex;not null" json:"download_token"`
	DownloadCount  uint       `gorm:"default:0"            json:"download_count"`
	LastDownloadAt *time.Time `json:"last_download_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Purchase) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.DownloadToken == "" {
		p.DownloadToken = uuid.NewString()
	}
	return nil
}

type Review struct {
	ID        string `gorm:"primaryKey"                        json:"id"`
	UserID    string `gorm:"uniqueIndex:idx_user_product;not null" json:"user_id"`
	ProductID string `gorm:"uniqueIndex:idx_user_product;not null" json:"product_id"`
	Rating    int    `gorm:"not null"                          json:"rating"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Approved  bool   `gorm:"default:true"                      json:"approved"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *Review) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
