package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/poshakghar/api/internal/domain"
	platform "github.com/poshakghar/api/internal/platform/firestore"
)

type variantDoc struct {
	Size    string `firestore:"size"`
	SKU     string `firestore:"sku,omitempty"`
	Barcode string `firestore:"barcode,omitempty"`
	Stock   int    `firestore:"stock"`
}

type productDoc struct {
	Name          string       `firestore:"name"`
	CategoryID    string       `firestore:"categoryId"`
	Price         int64        `firestore:"price"`
	DiscountPrice *int64       `firestore:"discountPrice"`
	SaleStartsAt  *time.Time   `firestore:"saleStartsAt"`
	SaleEndsAt    *time.Time   `firestore:"saleEndsAt"`
	Stock         int          `firestore:"stock"`
	Variants      []variantDoc `firestore:"variants"`
	UpdatedAt     time.Time    `firestore:"updatedAt"`
}

func decodeProduct(snap *firestore.DocumentSnapshot) (domain.Product, error) {
	var doc productDoc
	if err := snap.DataTo(&doc); err != nil {
		return domain.Product{}, err
	}
	product := domain.Product{
		ID:            snap.Ref.ID,
		Name:          doc.Name,
		CategoryID:    doc.CategoryID,
		Price:         doc.Price,
		DiscountPrice: doc.DiscountPrice,
		SaleStartsAt:  doc.SaleStartsAt,
		SaleEndsAt:    doc.SaleEndsAt,
		Stock:         doc.Stock,
		UpdatedAt:     doc.UpdatedAt,
	}
	for _, v := range doc.Variants {
		product.Variants = append(product.Variants, domain.Variant{
			Size:    v.Size,
			SKU:     v.SKU,
			Barcode: v.Barcode,
			Stock:   v.Stock,
		})
	}
	return product, nil
}

// ProductRepository reads catalog documents from the products collection.
type ProductRepository struct {
	base  *platform.BaseRepository[domain.Product]
	clock func() time.Time
}

// NewProductRepository constructs a ProductRepository on the shared provider.
func NewProductRepository(provider *platform.Provider, clock func() time.Time) (*ProductRepository, error) {
	base, err := platform.NewBaseRepository(provider, collectionProducts, nil, decodeProduct)
	if err != nil {
		return nil, err
	}
	if clock == nil {
		clock = time.Now
	}
	return &ProductRepository{base: base, clock: clock}, nil
}

// GetProduct returns the catalog snapshot for id.
func (r *ProductRepository) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	product, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Product{}, translateError(err)
	}
	return product, nil
}

// ClearExpiredSale removes the discount price and sale window fields from the
// product document. The read path treats the stored sale as inactive either
// way, so a failed clear only delays housekeeping.
func (r *ProductRepository) ClearExpiredSale(ctx context.Context, id string) error {
	err := r.base.Update(ctx, id, []firestore.Update{
		{Path: "discountPrice", Value: firestore.Delete},
		{Path: "saleStartsAt", Value: firestore.Delete},
		{Path: "saleEndsAt", Value: firestore.Delete},
		{Path: "updatedAt", Value: r.clock().UTC()},
	})
	return translateError(err)
}
