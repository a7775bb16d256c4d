package dictfile

import "errors"

// ErrFormat is wrapped by every structural validation failure.
var ErrFormat = errors.New("dictfile: malformed dictionary")
