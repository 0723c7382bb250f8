package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"

	"finitefield.org/saro-web/internal/boutique"
)

const (
	defaultProductsCollection = "products"
	positionField             = "position"
)

// FirestoreSource reads products from a Firestore collection ordered by the
// `position` field. The client is created on first use.
type FirestoreSource struct {
	projectID  string
	collection string
	clientOpts []option.ClientOption

	mu     sync.Mutex
	client *firestore.Client
}

// NewFirestoreSource builds a source for projectID. An empty collection uses "products".
func NewFirestoreSource(projectID, collection string, opts ...option.ClientOption) (*FirestoreSource, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, errors.New("catalog: firestore project id is required")
	}
	collection = strings.TrimSpace(collection)
	if collection == "" {
		collection = defaultProductsCollection
	}
	return &FirestoreSource{projectID: projectID, collection: collection, clientOpts: opts}, nil
}

func (s *FirestoreSource) clientFor(ctx context.Context) (*firestore.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client, nil
	}
	client, err := firestore.NewClient(ctx, s.projectID, s.clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("catalog: firestore client: %w", err)
	}
	s.client = client
	return client, nil
}

// retryer backs off on transient Firestore errors; the emulator in particular
// answers Unavailable while it is still starting.
func retryer() gax.Retryer {
	return gax.OnCodes([]codes.Code{
		codes.Unavailable,
		codes.DeadlineExceeded,
		codes.ResourceExhausted,
	}, gax.Backoff{
		Initial:    200 * time.Millisecond,
		Max:        5 * time.Second,
		Multiplier: 2,
	})
}

// Products implements Source. Transient query failures are retried until ctx expires.
func (s *FirestoreSource) Products(ctx context.Context) ([]boutique.Product, error) {
	client, err := s.clientFor(ctx)
	if err != nil {
		return nil, err
	}
	var records []record
	err = gax.Invoke(ctx, func(ctx context.Context, _ gax.CallSettings) error {
		var err error
		records, err = s.query(ctx, client)
		return err
	}, gax.WithRetry(retryer))
	if err != nil {
		return nil, fmt.Errorf("catalog: firestore query %s: %w", s.collection, err)
	}
	return toProducts(records)
}

func (s *FirestoreSource) query(ctx context.Context, client *firestore.Client) ([]record, error) {
	iter := client.Collection(s.collection).OrderBy(positionField, firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var records []record
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		var rec record
		if err := snap.DataTo(&rec); err != nil {
			return nil, fmt.Errorf("catalog: decode %s/%s: %w", s.collection, snap.Ref.ID, err)
		}
		if strings.TrimSpace(rec.ID) == "" {
			rec.ID = snap.Ref.ID
		}
		records = append(records, rec)
	}
	return records, nil
}

// Close releases the Firestore client.
func (s *FirestoreSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}
