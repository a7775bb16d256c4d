package split

import "fmt"

// Mode selects the IRI boundary policy.
type Mode uint8

const (
	// Last splits right after the last '/' or '#'.
	Last Mode = iota
	// Penultimate splits after the second-to-last separator.
	Penultimate
	// Prolong extends the Last boundary through an alphabetic identifier stem.
	Prolong
)

func (m Mode) String() string {
	switch m {
	case Last:
		return "last"
	case Penultimate:
		return "penultimate"
	case Prolong:
		return "prolong"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool { return m <= Prolong }

// ParseMode parses the String form of a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "last", "":
		return Last, nil
	case "penultimate":
		return Penultimate, nil
	case "prolong":
		return Prolong, nil
	}
	return 0, fmt.Errorf("split: unknown mode %q", s)
}

// Side tells how a term was split.
type Side uint8

const (
	// SideNone means the term was not split; Local holds all of it.
	SideNone Side = iota
	// SidePrefix means Shared is a leading IRI namespace.
	SidePrefix
	// SideSuffix means Local is a literal's trailing datatype or language tag.
	SideSuffix
)

func (s Side) String() string {
	switch s {
	case SideNone:
		return "none"
	case SidePrefix:
		return "prefix"
	case SideSuffix:
		return "suffix"
	default:
		return fmt.Sprintf("Side(%d)", uint8(s))
	}
}

// Config holds the boundary heuristics. They affect sharing ratio only;
// any setting round-trips every term.
type Config struct {
	// MinSharedLen is the longest prefix Penultimate still treats as
	// scheme-only. Shorter or equal prefixes fall back to Last.
	MinSharedLen int
	// MaxStemLen bounds the alphabetic stem Prolong moves into the shared part.
	MaxStemLen int
}

// DefaultConfig returns the default heuristics.
func DefaultConfig() Config {
	return Config{
		MinSharedLen: len("<https://"),
		MaxStemLen:   8,
	}
}

// Parts is the result of splitting one term. Shared and Local alias the input.
type Parts struct {
	Side   Side
	Shared []byte
	Local  []byte
}

// Splitter splits terms. The zero value uses Last with default heuristics.
type Splitter struct {
	Mode   Mode
	Config Config
}

// New returns a Splitter for mode with the default heuristics.
func New(mode Mode) Splitter {
	return Splitter{Mode: mode, Config: DefaultConfig()}
}

func (s Splitter) config() Config {
	c := s.Config
	if c.MinSharedLen <= 0 && c.MaxStemLen <= 0 {
		return DefaultConfig()
	}
	return c
}

// Split computes the shared/local boundary of term.
func (s Splitter) Split(term []byte) Parts {
	if len(term) == 0 {
		return Parts{Side: SideNone, Local: term}
	}
	switch term[0] {
	case '"':
		if end := closingQuote(term); end > 0 && end < len(term)-1 {
			return Parts{Side: SideSuffix, Shared: term[:end+1], Local: term[end+1:]}
		}
	case '<':
		if cut := s.iriBoundary(term); cut > 0 {
			return Parts{Side: SidePrefix, Shared: term[:cut], Local: term[cut:]}
		}
	}
	return Parts{Side: SideNone, Local: term}
}

// closingQuote returns the index of the first unescaped '"' after the
// opening one, or -1.
func closingQuote(term []byte) int {
	for i := 1; i < len(term); i++ {
		switch term[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}
	return -1
}

func isSeparator(c byte) bool { return c == '/' || c == '#' }

// iriBoundary returns the length of the shared prefix, or 0 when the IRI
// has no separator.
func (s Splitter) iriBoundary(term []byte) int {
	last := lastSeparator(term, len(term))
	if last < 0 {
		return 0
	}
	cut := last + 1
	cfg := s.config()

	switch s.Mode {
	case Penultimate:
		if prev := lastSeparator(term, last); prev >= 0 && prev+1 > cfg.MinSharedLen {
			return prev + 1
		}
	case Prolong:
		return cut + stemLen(term[cut:], cfg.MaxStemLen)
	}
	return cut
}

func lastSeparator(term []byte, end int) int {
	for i := end - 1; i > 0; i-- {
		if isSeparator(term[i]) {
			return i
		}
	}
	return -1
}

// stemLen returns how many leading letters of tail belong to the shared
// part: a run of at most maxStem letters followed by a non-empty
// alphanumeric identifier that starts with a digit, then the closing '>'.
func stemLen(tail []byte, maxStem int) int {
	body := tail
	if n := len(body); n > 0 && body[n-1] == '>' {
		body = body[:n-1]
	}
	stem := 0
	for stem < len(body) && isAlpha(body[stem]) {
		stem++
	}
	if stem == 0 || stem > maxStem || stem == len(body) {
		return 0
	}
	for _, c := range body[stem:] {
		if !isAlpha(c) && !isDigit(c) {
			return 0
		}
	}
	return stem
}

func isAlpha(c byte) bool { return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' }
func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// Join reconstructs a term from its parts into dst.
func Join(dst []byte, side Side, shared, local []byte) []byte {
	if side == SideNone {
		return append(dst, local...)
	}
	dst = append(dst, shared...)
	return append(dst, local...)
}
