package firestore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/poshakghar/api/internal/domain"
	platform "github.com/poshakghar/api/internal/platform/firestore"
	"github.com/poshakghar/api/internal/repositories"
)

type couponDoc struct {
	Code          string    `firestore:"code,omitempty"`
	Description   string    `firestore:"description,omitempty"`
	DiscountType  string    `firestore:"discountType"`
	DiscountValue int64     `firestore:"discountValue"`
	ValidUntil    time.Time `firestore:"validUntil"`
	MinSpend      int64     `firestore:"minSpend"`
	MinQuantity   int       `firestore:"minQuantity"`
	IsAutomatic   bool      `firestore:"isAutomatic"`
	CategoryIDs   []string  `firestore:"categoryIds"`
	ProductIDs    []string  `firestore:"productIds"`
	CreatedAt     time.Time `firestore:"createdAt"`
	UpdatedAt     time.Time `firestore:"updatedAt"`
}

func decodeCoupon(snap *firestore.DocumentSnapshot) (domain.Coupon, error) {
	var doc couponDoc
	if err := snap.DataTo(&doc); err != nil {
		return domain.Coupon{}, err
	}
	return domain.Coupon{
		ID:            snap.Ref.ID,
		Code:          doc.Code,
		Description:   doc.Description,
		DiscountType:  domain.DiscountType(doc.DiscountType),
		DiscountValue: doc.DiscountValue,
		ValidUntil:    doc.ValidUntil,
		MinSpend:      doc.MinSpend,
		MinQuantity:   doc.MinQuantity,
		IsAutomatic:   doc.IsAutomatic,
		CategoryIDs:   doc.CategoryIDs,
		ProductIDs:    doc.ProductIDs,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}, nil
}

// CouponRepository reads promotion documents from the coupons collection.
type CouponRepository struct {
	base *platform.BaseRepository[domain.Coupon]
}

// NewCouponRepository constructs a CouponRepository on the shared provider.
func NewCouponRepository(provider *platform.Provider) (*CouponRepository, error) {
	base, err := platform.NewBaseRepository(provider, collectionCoupons, nil, decodeCoupon)
	if err != nil {
		return nil, err
	}
	return &CouponRepository{base: base}, nil
}

// FindByCode returns the manual coupon whose code matches exactly.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (domain.Coupon, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.Coupon{}, fmt.Errorf("%w: empty coupon code", repositories.ErrNotFound)
	}

	col, err := r.base.Collection(ctx)
	if err != nil {
		return domain.Coupon{}, translateError(err)
	}

	iter := col.Where("code", "==", code).Limit(1).Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if err == iterator.Done {
		return domain.Coupon{}, fmt.Errorf("%w: coupon code %s", repositories.ErrNotFound, code)
	}
	if err != nil {
		return domain.Coupon{}, translateError(platform.ClassifyError(err))
	}
	return r.base.Decode(snap)
}

// ListAutomatic returns every coupon flagged for automatic evaluation.
func (r *CouponRepository) ListAutomatic(ctx context.Context) ([]domain.Coupon, error) {
	col, err := r.base.Collection(ctx)
	if err != nil {
		return nil, translateError(err)
	}

	iter := col.Where("isAutomatic", "==", true).Documents(ctx)
	defer iter.Stop()

	var coupons []domain.Coupon
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, translateError(platform.ClassifyError(err))
		}
		coupon, err := r.base.Decode(snap)
		if err != nil {
			return nil, err
		}
		coupons = append(coupons, coupon)
	}
	return coupons, nil
}
