// Package split factors RDF terms into a shared part and a local residual.
//
// A composite dictionary stores each term as a reference to a shared string
// (an IRI namespace or a literal's quoted text) plus the bytes that remain.
// The Splitter decides where that boundary lies:
//
//	s := split.Splitter{Mode: split.Last}
//	p := s.Split([]byte("<http://x/apple>"))
//	// p.Side == split.SidePrefix, p.Shared == "<http://x/", p.Local == "apple>"
//
// The reference itself is written as a five byte key (see Encode) whose
// alphabet preserves numeric order, so byte-wise comparison of encoded
// entries orders them by shared id first.
package split
