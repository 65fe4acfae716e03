package guest

import "errors"

var ErrUnknownResolver = errors.New("unknown resolver")
