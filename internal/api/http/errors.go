package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/softbus/internal/domain/sb"
	"github.com/GriffinCanCode/softbus/internal/shared/msg"
	"github.com/GriffinCanCode/softbus/internal/shared/types"
)

// statusFor maps a bus error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrNameTaken):
		return http.StatusConflict
	case errors.Is(err, types.ErrNoSubscription):
		return http.StatusNotFound
	}

	switch sb.Category(err) {
	case "bad_argument":
		return http.StatusBadRequest
	case "msg_too_big":
		return http.StatusRequestEntityTooLarge
	case "buffer_invalid":
		return http.StatusConflict
	case "timeout":
		return http.StatusRequestTimeout
	case "resource_exhausted":
		return http.StatusInsufficientStorage
	case "bus_closed":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{
		"error":    err.Error(),
		"category": sb.Category(err),
	})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":    err.Error(),
		"category": "bad_argument",
	})
}

// parseMsgID accepts decimal or 0x-prefixed hex.
func parseMsgID(s string) (msg.MsgID, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return msg.InvalidMsgID, &paramError{name: "msg_id", value: s}
	}
	return msg.MsgID(v), nil
}

type paramError struct {
	name  string
	value string
}

func (e *paramError) Error() string {
	return "invalid " + e.name + " " + strconv.Quote(e.value)
}

func (e *paramError) Unwrap() error { return types.ErrBadArgument }
