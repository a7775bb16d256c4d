// Package minio stores dictionaries in MinIO or any S3-compatible object
// store through the MinIO Go client.
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store := minioblob.NewStore(client, "rdf", "dicts/")
//	names, err := termdict.Publish(ctx, store, "wikidata/2026-10", "out/terms", "out/shared")
//
// Blobs are read with ranged GETs; uploads stream through PutObject with an
// unknown size, which the client turns into a multipart upload.
package minio
