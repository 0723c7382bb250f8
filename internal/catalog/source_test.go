package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"finitefield.org/saro-web/internal/boutique"
)

func TestStaticSourceEmbeddedCatalog(t *testing.T) {
	t.Parallel()

	snap, err := Load(context.Background(), NewStaticSource(""))
	require.NoError(t, err)
	require.Equal(t, 10, snap.Len())
	require.Equal(t, []string{boutique.Sentinel, "Vêtements", "Jouets", "Accessoires", "Maison"}, snap.Categories())

	first := snap.Products()[0]
	require.Equal(t, "1", first.ID)
	require.Equal(t, "EUR", first.Currency)
	require.Len(t, first.Images, 2)
	require.Contains(t, first.Description, "**lin lavé**")
}

func TestStaticSourceFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "products.yaml")
	doc := []byte(`products:
  - id: a
    name: Chaussons
    price: 12
    category: Chaussures
    images: [/img/a.jpg]
`)
	require.NoError(t, os.WriteFile(path, doc, 0o600))

	products, err := NewStaticSource(path).Products(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 1)
	require.Equal(t, "EUR", products[0].Currency, "currency defaults to EUR")
}

func TestStaticSourceMissingFile(t *testing.T) {
	t.Parallel()

	_, err := NewStaticSource(filepath.Join(t.TempDir(), "nope.yaml")).Products(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseYAMLValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "negative price",
			doc:  "products:\n  - {id: a, name: A, price: -1, category: C, images: [x]}\n",
		},
		{
			name: "no image",
			doc:  "products:\n  - {id: a, name: A, price: 1, category: C, images: []}\n",
		},
		{
			name: "blank image",
			doc:  "products:\n  - {id: a, name: A, price: 1, category: C, images: ['']}\n",
		},
		{
			name: "missing category",
			doc:  "products:\n  - {id: a, name: A, price: 1, images: [x]}\n",
		},
		{
			name: "missing id",
			doc:  "products:\n  - {name: A, price: 1, category: C, images: [x]}\n",
		},
		{
			name: "bad currency",
			doc:  "products:\n  - {id: a, name: A, price: 1, currency: EURO, category: C, images: [x]}\n",
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseYAML([]byte(tc.doc))
			require.Error(t, err)
			var verrs validator.ValidationErrors
			require.True(t, errors.As(err, &verrs), "expected validation error, got %v", err)
		})
	}
}

func TestParseYAMLDuplicateIDs(t *testing.T) {
	t.Parallel()

	doc := "products:\n" +
		"  - {id: a, name: A, price: 1, category: C, images: [x]}\n" +
		"  - {id: a, name: B, price: 2, category: C, images: [y]}\n"
	_, err := ParseYAML([]byte(doc))
	require.ErrorIs(t, err, ErrDuplicateProduct)
}

func TestParseYAMLMalformed(t *testing.T) {
	t.Parallel()

	_, err := ParseYAML([]byte("products: ["))
	require.Error(t, err)
}

func TestSnapshotLookup(t *testing.T) {
	t.Parallel()

	snap := NewSnapshot([]boutique.Product{
		{ID: "1", Category: "Vêtements"},
		{ID: "2", Category: "Jouets"},
	})
	p, err := snap.Product(" 2 ")
	require.NoError(t, err)
	require.Equal(t, "Jouets", p.Category)

	_, err = snap.Product("42")
	require.ErrorIs(t, err, ErrProductNotFound)
}

func TestLoadWrapsSourceError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	_, err := Load(context.Background(), SourceFunc(func(context.Context) ([]boutique.Product, error) {
		return nil, boom
	}))
	require.ErrorIs(t, err, boom)

	_, err = Load(context.Background(), nil)
	require.Error(t, err)
}

func TestNewSourcesRequireSettings(t *testing.T) {
	t.Parallel()

	_, err := NewFirestoreSource(" ", "")
	require.Error(t, err)
	_, err = NewPostgresSource("")
	require.Error(t, err)

	fs, err := NewFirestoreSource("saro-dev", "")
	require.NoError(t, err)
	require.Equal(t, defaultProductsCollection, fs.collection)
	require.NoError(t, fs.Close())
}

func TestFirestoreRetryerRetriesTransientCodes(t *testing.T) {
	t.Parallel()

	pause, ok := retryer().Retry(status.Error(codes.Unavailable, "emulator starting"))
	require.True(t, ok)
	require.Positive(t, pause)

	_, ok = retryer().Retry(status.Error(codes.PermissionDenied, "denied"))
	require.False(t, ok)
}
