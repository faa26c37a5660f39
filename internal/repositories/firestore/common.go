// Package firestore implements the repository interfaces on Cloud Firestore.
package firestore

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	platform "github.com/poshakghar/api/internal/platform/firestore"
	"github.com/poshakghar/api/internal/repositories"
)

// Collection names used by this service.
const (
	collectionProducts = "products"
	collectionCoupons  = "coupons"
	collectionOrders   = "orders"
	collectionCounters = "counters"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// translateError maps classified Firestore failures onto the repository
// sentinels the services branch on.
func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case platform.IsNotFound(err):
		return fmt.Errorf("%w: %v", repositories.ErrNotFound, err)
	case platform.IsConflict(err):
		return fmt.Errorf("%w: %v", repositories.ErrConflict, err)
	case platform.IsUnavailable(err):
		return fmt.Errorf("%w: %v", repositories.ErrUnavailable, err)
	default:
		return err
	}
}

type pageCursor struct {
	CreatedAt time.Time `json:"createdAt"`
	ID        string    `json:"id"`
}

func encodePageToken(cursor pageCursor) string {
	raw, err := json.Marshal(cursor)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodePageToken(token string) (pageCursor, error) {
	var cursor pageCursor
	if token == "" {
		return cursor, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return cursor, errors.New("firestore: malformed page token")
	}
	if err := json.Unmarshal(raw, &cursor); err != nil {
		return cursor, errors.New("firestore: malformed page token")
	}
	return cursor, nil
}

func clampPageSize(size int) int {
	if size <= 0 {
		return defaultPageSize
	}
	if size > maxPageSize {
		return maxPageSize
	}
	return size
}
