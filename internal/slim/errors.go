package slim

import "errors"

var (
	ErrSlim      = errors.New("slim failed")
	ErrReference = errors.New("invalid image reference")
	ErrGuest     = errors.New("guest failed")
	ErrWorkspace = errors.New("workspace operation failed")
	ErrCommand   = errors.New("invalid command")
)
