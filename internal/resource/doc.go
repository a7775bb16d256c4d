// Package resource bounds what a dictionary build may consume.
//
// A Controller is shared by every sorter of one build and governs three
// resources:
//
//   - Memory: block arenas reserve their capacity up front. Reservations are
//     non-blocking; a sorter that cannot reserve a new block waits for one
//     of its own blocks to be recycled instead.
//   - Workers: sort and spill jobs hold a worker slot for their duration.
//   - IO: spill and merge writes pass through a token bucket.
//
// All methods are safe for concurrent use and treat a nil *Controller as
// unlimited.
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes:   512 << 20,
//	    Workers:            4,
//	    IOLimitBytesPerSec: 200 << 20,
//	})
//	w := resource.NewWriter(ctx, file, rc)
package resource
