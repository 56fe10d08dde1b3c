package types

import "errors"

// Status categories. Every error returned by the bus wraps exactly one of
// these so callers can branch with errors.Is.
var (
	// ErrBadArgument indicates a caller defect: nil message, invalid
	// handle, invalid message id, malformed header or bad timeout.
	ErrBadArgument = errors.New("bad argument")

	// ErrMsgTooBig indicates a message larger than the configured maximum.
	ErrMsgTooBig = errors.New("message too big")

	// ErrBufferInvalid indicates use of a buffer outside its valid
	// lifetime (released, already transmitted, or never allocated).
	ErrBufferInvalid = errors.New("buffer invalid")

	// ErrTimeout indicates a receive that saw no data within its window.
	ErrTimeout = errors.New("timeout")

	// ErrResourceExhausted indicates a fixed-capacity table or pool is full.
	ErrResourceExhausted = errors.New("resource exhausted")
)

// Detail errors. Each wraps one of the categories above.
var (
	ErrPipeFull       = wrap("pipe full", ErrResourceExhausted)
	ErrMsgLimit       = wrap("message limit reached", ErrResourceExhausted)
	ErrPipeClosed     = wrap("pipe closed", ErrBadArgument)
	ErrMaxPipesMet    = wrap("maximum pipes in use", ErrResourceExhausted)
	ErrMaxMsgIDsMet   = wrap("maximum message ids in use", ErrResourceExhausted)
	ErrMaxDestsMet    = wrap("maximum destinations for message id", ErrResourceExhausted)
	ErrNoSubscription = wrap("no such subscription", ErrBadArgument)
	ErrNameTaken      = wrap("pipe name already in use", ErrBadArgument)
	ErrBusClosed      = errors.New("bus closed")
)

type detailError struct {
	msg    string
	parent error
}

func wrap(msg string, parent error) error {
	return &detailError{msg: msg, parent: parent}
}

func (e *detailError) Error() string { return e.msg }

func (e *detailError) Unwrap() error { return e.parent }
