package tracker

import "errors"

// ErrInvalidInterval is returned when an interval bound is not an absolute
// instant (the zero time). The calling operation fails; nothing is retried.
var ErrInvalidInterval = errors.New("tracker: interval bounds must be absolute instants")
