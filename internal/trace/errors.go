package trace

import "errors"

var (
	ErrTraceSetup      = errors.New("trace setup failed")
	ErrTraceIncomplete = errors.New("tracing incomplete")
	ErrMalformedRecord = errors.New("malformed trace record")
)
