// Package termdict encodes large sets of RDF term strings into dense
// integer ids and back through read-only memory-mapped dictionary files.
//
// # Building
//
// A build streams terms twice: the first pass collects the shared parts
// (IRI namespaces, quoted literal values) into a shared dictionary, the
// second stores every term as a (shared id, local residual) key in a
// composite dictionary. Both passes use a bounded-memory external sort.
//
//	res, err := termdict.Build(ctx, "out/terms", termdict.LinesSource(open),
//	    termdict.WithSplitMode(split.Last),
//	    termdict.WithWorkers(4),
//	    termdict.WithStaging(termdict.CompressionZSTD),
//	    termdict.WithLocality(),
//	)
//
// The shared dictionary is written next to the composite as "shared".
// WithoutSharing builds a single standalone dictionary instead.
//
// # Querying
//
//	d, err := termdict.OpenSet("out/terms")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer d.Close()
//
//	lk := d.NewLookup() // one per goroutine
//	id := lk.Find([]byte("<http://example.org/apple>"))
//	v, ok, err := lk.Get(id)
//
// A Lookup reuses its scratch space across calls. The View returned by Get
// aliases the mapped file and is valid until the next call on the Lookup.
//
// # Layouts
//
// Sorted dictionaries are searched by bisection. Locality dictionaries
// place the strings as a complete binary search tree in level order, so a
// search touches one slot per level starting at the root. Composite
// locality dictionaries additionally keep the shared id in the offset table
// instead of the byte area.
//
// # Remote storage
//
// Publish uploads built files to a blobstore.BlobStore (local directory,
// memory, MinIO or S3); OpenSetFromStore loads them back.
package termdict
