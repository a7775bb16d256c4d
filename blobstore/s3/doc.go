// Package s3 stores dictionaries in Amazon S3.
//
//	store, err := s3.New(ctx, "my-bucket", s3.WithPrefix("dicts/"), s3.WithRegion("eu-central-1"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	dict, err := termdict.OpenSetFromStore(ctx, store, "wikidata/2026-10/terms")
//
// Reads are ranged GetObject calls; writes stream through the multipart
// upload manager. Any client satisfying Client works, which keeps the
// store testable without network access.
package s3
