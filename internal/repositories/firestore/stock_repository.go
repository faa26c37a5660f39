package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/poshakghar/api/internal/domain"
	platform "github.com/poshakghar/api/internal/platform/firestore"
	"github.com/poshakghar/api/internal/repositories"
)

// StockRepository performs conditional stock mutations on product documents.
// Every batch runs in a single serialisable transaction so concurrent
// checkouts contending for the last unit cannot both succeed.
type StockRepository struct {
	base  *platform.BaseRepository[domain.Product]
	clock func() time.Time
}

// NewStockRepository constructs a StockRepository on the shared provider.
func NewStockRepository(provider *platform.Provider, clock func() time.Time) (*StockRepository, error) {
	base, err := platform.NewBaseRepository(provider, collectionProducts, nil, decodeProduct)
	if err != nil {
		return nil, err
	}
	if clock == nil {
		clock = time.Now
	}
	return &StockRepository{base: base, clock: clock}, nil
}

// Reserve decrements stock for every line, all or nothing. A line whose
// variant holds less than the requested quantity aborts the transaction with
// an InsufficientStockError and no document is modified. When several lines
// cannot be satisfied the earliest one in the request is the one reported.
func (r *StockRepository) Reserve(ctx context.Context, lines []domain.CartLine) error {
	deltas, err := lineDeltas(lines, -1)
	if err != nil {
		return err
	}
	return r.applyDeltas(ctx, deltas)
}

// Release increments stock back for every line. Used to compensate a
// reservation whose order failed to persist.
func (r *StockRepository) Release(ctx context.Context, lines []domain.CartLine) error {
	deltas, err := lineDeltas(lines, 1)
	if err != nil {
		return err
	}
	return r.applyDeltas(ctx, deltas)
}

// Adjust applies one administrative delta and returns the product afterwards.
func (r *StockRepository) Adjust(ctx context.Context, adj domain.StockAdjustment) (domain.Product, error) {
	if adj.Delta == 0 {
		return domain.Product{}, errors.New("firestore: zero stock adjustment")
	}
	deltas := appendDelta(nil, adj.ProductID, adj.Size, adj.Delta)
	if err := r.applyDeltas(ctx, deltas); err != nil {
		return domain.Product{}, err
	}
	product, err := r.base.Get(ctx, adj.ProductID)
	if err != nil {
		return domain.Product{}, translateError(err)
	}
	return product, nil
}

// stockDelta is one aggregated (product, size) mutation. The slice ordering
// follows the first appearance of each pair in the request, which is what
// decides which failure is surfaced when more than one line cannot be met.
type stockDelta struct {
	ProductID string
	Size      string
	Delta     int
}

func lineDeltas(lines []domain.CartLine, sign int) ([]stockDelta, error) {
	deltas := make([]stockDelta, 0, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("firestore: non-positive quantity %d for product %s", line.Quantity, line.ProductID)
		}
		deltas = appendDelta(deltas, line.ProductID, line.Size, sign*line.Quantity)
	}
	return deltas, nil
}

// appendDelta merges a mutation into an existing (product, size) entry or
// appends a new one, keeping the position of the first occurrence.
func appendDelta(deltas []stockDelta, productID, size string, delta int) []stockDelta {
	if size == "" {
		size = domain.VariantSizeStandard
	}
	for i := range deltas {
		if deltas[i].ProductID == productID && deltas[i].Size == size {
			deltas[i].Delta += delta
			return deltas
		}
	}
	return append(deltas, stockDelta{ProductID: productID, Size: size, Delta: delta})
}

func orderedProductIDs(deltas []stockDelta) []string {
	seen := make(map[string]struct{}, len(deltas))
	ids := make([]string, 0, len(deltas))
	for _, d := range deltas {
		if _, ok := seen[d.ProductID]; ok {
			continue
		}
		seen[d.ProductID] = struct{}{}
		ids = append(ids, d.ProductID)
	}
	return ids
}

// applyDeltas runs one transaction that reads every touched product, applies
// the deltas in request order, recomputes each product's aggregate stock, and
// writes the results. Reads happen before any write per Firestore rules.
func (r *StockRepository) applyDeltas(ctx context.Context, deltas []stockDelta) error {
	if len(deltas) == 0 {
		return nil
	}

	productIDs := orderedProductIDs(deltas)
	now := r.clock().UTC()

	err := r.base.RunTransaction(ctx, func(txCtx context.Context, tx *firestore.Transaction) error {
		products := make(map[string]domain.Product, len(productIDs))
		for _, id := range productIDs {
			product, err := r.base.GetTx(txCtx, tx, id)
			if err != nil {
				if platform.IsNotFound(err) {
					return &repositories.ProductNotFoundError{ProductID: id}
				}
				return err
			}
			products[id] = product
		}

		updates, err := buildStockUpdates(products, deltas, now)
		if err != nil {
			return err
		}
		for _, id := range productIDs {
			if err := r.base.UpdateTx(txCtx, tx, id, updates[id]); err != nil {
				return err
			}
		}
		return nil
	})

	var insufficient *repositories.InsufficientStockError
	var missing *repositories.ProductNotFoundError
	var noVariant *repositories.VariantNotFoundError
	if errors.As(err, &insufficient) || errors.As(err, &missing) || errors.As(err, &noVariant) {
		return err
	}
	return translateError(err)
}

// buildStockUpdates applies the deltas to the read products and returns the
// field updates per product, carrying the new variant arrays and aggregate
// counters. Deltas are checked one by one in request order so the error, if
// any, names the earliest unsatisfiable line. Legacy products without
// variants mutate their flat stock through the implicit standard size.
func buildStockUpdates(products map[string]domain.Product, deltas []stockDelta, now time.Time) (map[string][]firestore.Update, error) {
	states := make(map[string]*stockState, len(products))
	for id, product := range products {
		states[id] = newStockState(product)
	}

	for _, d := range deltas {
		state, ok := states[d.ProductID]
		if !ok {
			return nil, &repositories.ProductNotFoundError{ProductID: d.ProductID}
		}
		if err := state.apply(d); err != nil {
			return nil, err
		}
	}

	updates := make(map[string][]firestore.Update, len(states))
	for id, state := range states {
		updates[id] = state.updates(now)
	}
	return updates, nil
}

// stockState is the in-transaction working copy of one product's counters.
type stockState struct {
	variants []variantDoc
	bySize   map[string]int
	stock    int
}

func newStockState(product domain.Product) *stockState {
	state := &stockState{stock: product.Stock}
	if len(product.Variants) == 0 {
		return state
	}
	state.variants = make([]variantDoc, len(product.Variants))
	state.bySize = make(map[string]int, len(product.Variants))
	for i, v := range product.Variants {
		state.variants[i] = variantDoc{Size: v.Size, SKU: v.SKU, Barcode: v.Barcode, Stock: v.Stock}
		state.bySize[v.Size] = i
	}
	return state
}

func (s *stockState) apply(d stockDelta) error {
	if s.variants == nil {
		if d.Size != domain.VariantSizeStandard {
			return &repositories.VariantNotFoundError{ProductID: d.ProductID, Size: d.Size}
		}
		next := s.stock + d.Delta
		if next < 0 {
			return &repositories.InsufficientStockError{
				ProductID: d.ProductID,
				Size:      d.Size,
				Requested: -d.Delta,
				Available: s.stock,
			}
		}
		s.stock = next
		return nil
	}

	idx, ok := s.bySize[d.Size]
	if !ok {
		return &repositories.VariantNotFoundError{ProductID: d.ProductID, Size: d.Size}
	}
	next := s.variants[idx].Stock + d.Delta
	if next < 0 {
		return &repositories.InsufficientStockError{
			ProductID: d.ProductID,
			Size:      d.Size,
			Requested: -d.Delta,
			Available: s.variants[idx].Stock,
		}
	}
	s.variants[idx].Stock = next
	return nil
}

func (s *stockState) updates(now time.Time) []firestore.Update {
	if s.variants == nil {
		return []firestore.Update{
			{Path: "stock", Value: s.stock},
			{Path: "updatedAt", Value: now},
		}
	}

	aggregate := 0
	for _, v := range s.variants {
		aggregate += v.Stock
	}
	return []firestore.Update{
		{Path: "variants", Value: s.variants},
		{Path: "stock", Value: aggregate},
		{Path: "updatedAt", Value: now},
	}
}
