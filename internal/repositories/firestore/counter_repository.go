package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"

	platform "github.com/poshakghar/api/internal/platform/firestore"
)

type counterDoc struct {
	Value int64 `firestore:"value"`
}

// CounterRepository allocates per-year order sequence numbers from single
// counter documents. The increment runs transactionally so two concurrent
// checkouts never receive the same number.
type CounterRepository struct {
	provider *platform.Provider
}

// NewCounterRepository constructs a CounterRepository on the shared provider.
func NewCounterRepository(provider *platform.Provider) (*CounterRepository, error) {
	if provider == nil {
		return nil, fmt.Errorf("firestore: provider is required")
	}
	return &CounterRepository{provider: provider}, nil
}

// NextOrderSequence atomically increments and returns the counter for year.
// The first allocation of a year creates the document and returns 1.
func (r *CounterRepository) NextOrderSequence(ctx context.Context, year int) (int64, error) {
	if year <= 0 {
		return 0, fmt.Errorf("firestore: invalid counter year %d", year)
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return 0, translateError(err)
	}
	doc := client.Collection(collectionCounters).Doc(fmt.Sprintf("orders-%04d", year))

	var next int64
	err = platform.RunTransaction(ctx, client, func(txCtx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(doc)
		current := int64(0)
		switch {
		case err == nil:
			var counter counterDoc
			if err := snap.DataTo(&counter); err != nil {
				return err
			}
			current = counter.Value
		case platform.IsNotFound(platform.ClassifyError(err)):
			// First order of the year.
		default:
			return err
		}

		next = current + 1
		return tx.Set(doc, counterDoc{Value: next})
	})
	if err != nil {
		return 0, translateError(err)
	}
	return next, nil
}
