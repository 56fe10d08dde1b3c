package sb

import (
	"errors"

	"github.com/GriffinCanCode/softbus/internal/shared/types"
)

// Re-exported so bus clients need only this package.
var (
	ErrBadArgument       = types.ErrBadArgument
	ErrMsgTooBig         = types.ErrMsgTooBig
	ErrBufferInvalid     = types.ErrBufferInvalid
	ErrTimeout           = types.ErrTimeout
	ErrResourceExhausted = types.ErrResourceExhausted
	ErrBusClosed         = types.ErrBusClosed
)

// Category names the status category err belongs to, for metrics labels
// and API responses.
func Category(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, types.ErrBadArgument):
		return "bad_argument"
	case errors.Is(err, types.ErrMsgTooBig):
		return "msg_too_big"
	case errors.Is(err, types.ErrBufferInvalid):
		return "buffer_invalid"
	case errors.Is(err, types.ErrTimeout):
		return "timeout"
	case errors.Is(err, types.ErrResourceExhausted):
		return "resource_exhausted"
	case errors.Is(err, types.ErrBusClosed):
		return "bus_closed"
	default:
		return "internal"
	}
}
