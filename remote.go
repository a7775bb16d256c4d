package termdict

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"

	"github.com/hupe1980/termdict/blobstore"
	"github.com/hupe1980/termdict/internal/dictfile"
	"github.com/hupe1980/termdict/internal/fs"
)

// OpenBlob loads the dictionary stored under name. Mappable blobs (local
// stores) are used in place; other blobs are read into memory.
func OpenBlob(ctx context.Context, store blobstore.BlobStore, name string, opts ...OpenOption) (*Dict, error) {
	o := defaultOpenOptions()
	for _, opt := range opts {
		opt(&o)
	}
	st, err := loadBlob(ctx, store, name)
	if err != nil {
		return nil, err
	}
	return newDict(name, st, o)
}

// OpenSetFromStore loads the dictionary stored under name and, when it is
// composite, the shared dictionary stored next to it.
func OpenSetFromStore(ctx context.Context, store blobstore.BlobStore, name string, opts ...OpenOption) (*Dict, error) {
	o := defaultOpenOptions()
	for _, opt := range opts {
		opt(&o)
	}
	st, err := loadBlob(ctx, store, name)
	if err != nil {
		return nil, err
	}
	if !st.Header().Flags.Has(FlagShared) {
		return newDict(name, st, o)
	}

	sharedName := path.Join(path.Dir(name), SharedName)
	sst, err := loadBlob(ctx, store, sharedName)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("open shared dictionary: %w", err)
	}
	return assemble(name, st, sharedName, sst, o)
}

func loadBlob(ctx context.Context, store blobstore.BlobStore, name string) (*dictfile.Store, error) {
	blob, err := store.Open(ctx, name)
	if err != nil {
		return nil, err
	}

	var closer io.Closer
	buf, err := blobstore.ReadAll(ctx, blob)
	if _, ok := blob.(blobstore.Mappable); ok && err == nil {
		// buf aliases the blob's mapping.
		closer = blob
	} else {
		_ = blob.Close()
	}
	if err != nil {
		return nil, err
	}

	st, err := dictfile.Parse(buf, closer)
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return nil, translateError(name, err)
	}
	return st, nil
}

// Publish uploads the files at paths to store under prefix, keeping their
// base names, and returns the blob names. Upload a composite dictionary
// together with its shared dictionary so OpenSetFromStore can find both.
func Publish(ctx context.Context, store blobstore.BlobStore, prefix string, paths ...string) ([]string, error) {
	names := make([]string, 0, len(paths))
	for _, p := range paths {
		name := path.Join(prefix, filepath.Base(p))
		if err := upload(ctx, store, name, p); err != nil {
			return names, fmt.Errorf("publish %s: %w", p, err)
		}
		names = append(names, name)
	}
	return names, nil
}

func upload(ctx context.Context, store blobstore.BlobStore, name, p string) error {
	f, err := fs.Open(fs.Default, p)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = blobstore.Upload(ctx, store, name, f)
	return err
}
