package recipe

import "errors"

var (
	ErrNoBase      = errors.New("recipe has no FROM instruction")
	ErrInstruction = errors.New("malformed instruction")
)
