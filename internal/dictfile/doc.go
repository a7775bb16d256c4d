// Package dictfile implements the on-disk dictionary format.
//
// A dictionary file is a compressed-sparse-row string array:
//
//	+--------+---------------------------+-------------------+
//	| header | offsets[0..count]         | byte area         |
//	| 8 B LE | 4 or 8 B LE per entry     | concatenated data |
//	+--------+---------------------------+-------------------+
//
// The header's low 56 bits hold the entry count, the high byte holds Flags.
// Entry i (1-based) spans [offsets[i-1], offsets[i]) of the byte area.
//
// With FlagEmbeddedIDs every offset word carries a 25-bit tag above bit 39
// (a shared id and its side); only the low 39 bits address the byte area.
package dictfile
