package termdict

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/termdict/blobstore"
)

func TestPublish_OpenSetFromStore(t *testing.T) {
	terms := corpus(800, 40)
	dest, res := buildTerms(t, terms, WithLocality())

	stores := map[string]blobstore.BlobStore{
		"Memory": blobstore.NewMemoryStore(),
		"Local":  blobstore.NewLocalStore(t.TempDir()),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			names, err := Publish(t.Context(), store, "v1", dest, res.SharedPath)
			require.NoError(t, err)
			assert.Equal(t, []string{"v1/terms", "v1/shared"}, names)

			listed, err := store.List(t.Context(), "v1/")
			require.NoError(t, err)
			assert.Equal(t, []string{"v1/shared", "v1/terms"}, listed)

			d, err := OpenSetFromStore(t.Context(), store, "v1/terms")
			require.NoError(t, err)
			defer func() { require.NoError(t, d.Close()) }()

			assert.Equal(t, KindCompositeLocality, d.Kind())
			require.NotNil(t, d.Shared())

			local := openSet(t, dest)
			for _, term := range distinct(terms) {
				id := d.Find([]byte(term))
				require.NotEqual(t, NotFound, id, "term %q", term)
				assert.Equal(t, local.Find([]byte(term)), id)

				got, ok, err := d.Get(id)
				require.NoError(t, err)
				require.True(t, ok)
				assert.Equal(t, term, string(got))
			}

			_, err = Verify(t.Context(), d)
			require.NoError(t, err)
		})
	}
}

func TestOpenBlob_Standalone(t *testing.T) {
	terms := []string{"alpha", "beta", "gamma"}
	dest, _ := buildTerms(t, terms, WithoutSharing())

	store := blobstore.NewMemoryStore()
	_, err := Publish(t.Context(), store, "", dest)
	require.NoError(t, err)

	d, err := OpenBlob(t.Context(), store, "terms")
	require.NoError(t, err)
	defer d.Close()

	assert.Equal(t, KindSorted, d.Kind())
	assert.Equal(t, 4, d.Len())
	for _, term := range terms {
		assert.NotEqual(t, NotFound, d.Find([]byte(term)))
	}
}

func TestOpenSetFromStore_Errors(t *testing.T) {
	store := blobstore.NewMemoryStore()

	t.Run("Missing", func(t *testing.T) {
		_, err := OpenSetFromStore(t.Context(), store, "nope/terms")
		require.ErrorIs(t, err, blobstore.ErrNotFound)
	})

	t.Run("MissingShared", func(t *testing.T) {
		dest, _ := buildTerms(t, corpus(100, 41))
		_, err := Publish(t.Context(), store, "partial", dest)
		require.NoError(t, err)

		_, err = OpenSetFromStore(t.Context(), store, "partial/terms")
		require.ErrorIs(t, err, blobstore.ErrNotFound)
	})

	t.Run("Corrupt", func(t *testing.T) {
		require.NoError(t, store.Put(t.Context(), "bad/terms", []byte("not a dictionary")))
		_, err := OpenSetFromStore(t.Context(), store, "bad/terms")
		var ce *CorruptError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, "bad/terms", ce.Path)
	})

	t.Run("PublishMissingFile", func(t *testing.T) {
		_, err := Publish(t.Context(), store, "x", filepath.Join(t.TempDir(), "absent"))
		require.Error(t, err)
	})
}
