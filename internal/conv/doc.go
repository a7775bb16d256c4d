// Package conv provides checked integer conversions for values read from
// dictionary headers and offset tables.
//
// Values that are bounded by construction (loop indices, block-local
// offsets) use plain casts instead.
package conv
