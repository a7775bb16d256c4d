// Package blobstore abstracts where built dictionary files live.
//
// Builders publish files to a BlobStore; query nodes open them from it.
// LocalStore maps files directly (blobs implement Mappable, so dictionaries
// load without copying), MemoryStore serves tests, and the minio and s3
// subpackages talk to object storage.
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)
//	    Create(ctx, name) (WritableBlob, error)
//	    Put(ctx, name, data) error
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
package blobstore
