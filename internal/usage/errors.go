package usage

import "errors"

var (
	ErrUnresolvable = errors.New("path cannot be resolved")
	ErrEmptyUsage   = errors.New("no used file under the configured roots")
	ErrListing      = errors.New("filesystem listing failed")
)
