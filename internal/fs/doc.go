// Package fs provides filesystem abstractions for dictionary builds and fault injection.
//
// The package defines two key interfaces:
//
//   - [File]: an open file with read/write/sync capabilities
//   - [FileSystem]: filesystem operations (open, remove, rename, etc.)
//
// # Implementations
//
//   - [LocalFS]: production implementation using the os package
//   - [FaultyFS]: test utility for fault injection (simulate I/O errors)
//
// # Publishing files
//
// Every dictionary file the build pipeline produces is written through an
// [AtomicFile]: bytes go to a temporary sibling, which is synced and then
// renamed over the destination. A reader therefore never observes a
// partially written dictionary.
//
//	af, err := fs.NewAtomicFile(fs.Default, "terms.dict")
//	if err != nil { ... }
//	defer af.Abort()
//	_, _ = af.Write(data)
//	err = af.Commit()
//
// Operations take no context.Context: local filesystem calls are not
// interruptible at the syscall level.
package fs
