package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
)

// Encoder converts a domain value into the Firestore document payload.
type Encoder[T any] func(value T) (map[string]any, error)

// Decoder converts a Firestore document snapshot into a domain value.
type Decoder[T any] func(doc *firestore.DocumentSnapshot) (T, error)

// BaseRepository provides typed access to one Firestore collection. Concrete
// repositories embed it and add their query methods on top.
type BaseRepository[T any] struct {
	provider   *Provider
	collection string
	encode     Encoder[T]
	decode     Decoder[T]
}

// NewBaseRepository builds a BaseRepository for the given collection path.
func NewBaseRepository[T any](provider *Provider, collection string, encode Encoder[T], decode Decoder[T]) (*BaseRepository[T], error) {
	if provider == nil {
		return nil, errors.New("firestore: provider is required")
	}
	collection = strings.TrimSpace(collection)
	if collection == "" {
		return nil, errors.New("firestore: collection is required")
	}
	if decode == nil {
		return nil, errors.New("firestore: decoder is required")
	}
	return &BaseRepository[T]{
		provider:   provider,
		collection: collection,
		encode:     encode,
		decode:     decode,
	}, nil
}

// Collection returns the collection reference, resolving the client first.
func (r *BaseRepository[T]) Collection(ctx context.Context) (*firestore.CollectionRef, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(r.collection), nil
}

// Doc returns the document reference for id.
func (r *BaseRepository[T]) Doc(ctx context.Context, id string) (*firestore.DocumentRef, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("firestore: document id is required")
	}
	col, err := r.Collection(ctx)
	if err != nil {
		return nil, err
	}
	return col.Doc(id), nil
}

// Get fetches and decodes a single document.
func (r *BaseRepository[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	doc, err := r.Doc(ctx, id)
	if err != nil {
		return zero, err
	}
	snap, err := doc.Get(ctx)
	if err != nil {
		return zero, WrapError(fmt.Sprintf("get %s/%s", r.collection, id), err)
	}
	return r.decode(snap)
}

// GetTx fetches and decodes a single document inside a transaction.
func (r *BaseRepository[T]) GetTx(ctx context.Context, tx *firestore.Transaction, id string) (T, error) {
	var zero T
	if tx == nil {
		return zero, errors.New("firestore: transaction is required")
	}
	doc, err := r.Doc(ctx, id)
	if err != nil {
		return zero, err
	}
	snap, err := tx.Get(doc)
	if err != nil {
		return zero, WrapError(fmt.Sprintf("tx get %s/%s", r.collection, id), err)
	}
	return r.decode(snap)
}

// Set writes the full encoded value to the document with id.
func (r *BaseRepository[T]) Set(ctx context.Context, id string, value T) error {
	payload, err := r.payload(value)
	if err != nil {
		return err
	}
	doc, err := r.Doc(ctx, id)
	if err != nil {
		return err
	}
	if _, err := doc.Set(ctx, payload); err != nil {
		return WrapError(fmt.Sprintf("set %s/%s", r.collection, id), err)
	}
	return nil
}

// SetTx writes the full encoded value inside a transaction.
func (r *BaseRepository[T]) SetTx(ctx context.Context, tx *firestore.Transaction, id string, value T) error {
	if tx == nil {
		return errors.New("firestore: transaction is required")
	}
	payload, err := r.payload(value)
	if err != nil {
		return err
	}
	doc, err := r.Doc(ctx, id)
	if err != nil {
		return err
	}
	if err := tx.Set(doc, payload); err != nil {
		return WrapError(fmt.Sprintf("tx set %s/%s", r.collection, id), err)
	}
	return nil
}

// CreateTx creates the document inside a transaction, failing on conflict if
// it already exists.
func (r *BaseRepository[T]) CreateTx(ctx context.Context, tx *firestore.Transaction, id string, value T) error {
	if tx == nil {
		return errors.New("firestore: transaction is required")
	}
	payload, err := r.payload(value)
	if err != nil {
		return err
	}
	doc, err := r.Doc(ctx, id)
	if err != nil {
		return err
	}
	if err := tx.Create(doc, payload); err != nil {
		return WrapError(fmt.Sprintf("tx create %s/%s", r.collection, id), err)
	}
	return nil
}

// UpdateTx applies partial field updates inside a transaction.
func (r *BaseRepository[T]) UpdateTx(ctx context.Context, tx *firestore.Transaction, id string, updates []firestore.Update) error {
	if tx == nil {
		return errors.New("firestore: transaction is required")
	}
	if len(updates) == 0 {
		return nil
	}
	doc, err := r.Doc(ctx, id)
	if err != nil {
		return err
	}
	if err := tx.Update(doc, updates); err != nil {
		return WrapError(fmt.Sprintf("tx update %s/%s", r.collection, id), err)
	}
	return nil
}

// Update applies partial field updates outside a transaction.
func (r *BaseRepository[T]) Update(ctx context.Context, id string, updates []firestore.Update) error {
	if len(updates) == 0 {
		return nil
	}
	doc, err := r.Doc(ctx, id)
	if err != nil {
		return err
	}
	if _, err := doc.Update(ctx, updates); err != nil {
		return WrapError(fmt.Sprintf("update %s/%s", r.collection, id), err)
	}
	return nil
}

// Decode exposes the repository decoder for query iteration.
func (r *BaseRepository[T]) Decode(snap *firestore.DocumentSnapshot) (T, error) {
	return r.decode(snap)
}

// RunTransaction executes fn inside a transaction via the shared provider.
func (r *BaseRepository[T]) RunTransaction(ctx context.Context, fn TxFunc, opts ...TxOption) error {
	return r.provider.RunTransaction(ctx, fn, opts...)
}

func (r *BaseRepository[T]) payload(value T) (map[string]any, error) {
	if r.encode == nil {
		return nil, errors.New("firestore: encoder is required for writes")
	}
	payload, err := r.encode(value)
	if err != nil {
		return nil, fmt.Errorf("firestore: encode %s: %w", r.collection, err)
	}
	return payload, nil
}
