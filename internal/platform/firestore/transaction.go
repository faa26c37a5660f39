package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
)

const defaultTxTimeout = 15 * time.Second

// TxFunc is the unit of work executed inside a Firestore transaction.
type TxFunc func(ctx context.Context, tx *firestore.Transaction) error

type txSettings struct {
	attempts int
	timeout  time.Duration
}

// TxOption customises transaction execution.
type TxOption func(*txSettings)

// WithTxAttempts overrides the maximum number of transaction attempts.
func WithTxAttempts(attempts int) TxOption {
	return func(s *txSettings) {
		if attempts > 0 {
			s.attempts = attempts
		}
	}
}

// WithTxTimeout bounds the total time spent on the transaction including
// retries.
func WithTxTimeout(timeout time.Duration) TxOption {
	return func(s *txSettings) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// RunTransaction executes fn inside a serialisable Firestore transaction,
// applying the configured attempt limit and timeout.
func RunTransaction(ctx context.Context, client *firestore.Client, fn TxFunc, opts ...TxOption) error {
	if client == nil {
		return errors.New("firestore: client is required")
	}
	if fn == nil {
		return errors.New("firestore: transaction func is required")
	}

	settings := txSettings{timeout: defaultTxTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(&settings)
		}
	}

	runCtx := ctx
	if settings.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, settings.timeout)
		defer cancel()
	}

	var txOpts []firestore.TransactionOption
	if settings.attempts > 0 {
		txOpts = append(txOpts, firestore.MaxAttempts(settings.attempts))
	}

	err := client.RunTransaction(runCtx, func(txCtx context.Context, tx *firestore.Transaction) error {
		return fn(txCtx, tx)
	}, txOpts...)
	if err != nil {
		return ClassifyError(err)
	}
	return nil
}
