package delta

import "errors"

var (
	ErrBaseArchive = errors.New("invalid base archive")
	ErrSlimArchive = errors.New("invalid slim archive")
	ErrWrite       = errors.New("failed to write delta archive")
	ErrPolicy      = errors.New("unknown diff policy")
)
