package http

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/softbus/internal/diag"
	"github.com/GriffinCanCode/softbus/internal/domain/bufpool"
	"github.com/GriffinCanCode/softbus/internal/domain/pipe"
	"github.com/GriffinCanCode/softbus/internal/domain/sb"
	"github.com/GriffinCanCode/softbus/internal/shared/handle"
	"github.com/GriffinCanCode/softbus/internal/shared/msg"
	"github.com/GriffinCanCode/softbus/internal/shared/types"
)

// MaxReceiveTimeout bounds the wait of a receive request in milliseconds.
const MaxReceiveTimeout = 30_000

type createPipeRequest struct {
	Name  string `json:"name" binding:"required"`
	Depth int    `json:"depth" binding:"required"`
	Owner string `json:"owner"`
}

type subscribeRequest struct {
	MsgID       string `json:"msg_id" binding:"required"`
	MsgLimit    int    `json:"msg_limit"`
	Priority    uint8  `json:"priority"`
	Reliability uint8  `json:"reliability"`
	Local       bool   `json:"local"`
}

type transmitRequest struct {
	MsgID    string `json:"msg_id"`
	FcnCode  uint8  `json:"fcn_code"`
	Payload  string `json:"payload"`
	Encoding string `json:"encoding"`
	// Raw sends payload as a complete packet, headers included.
	Raw               bool  `json:"raw"`
	IncrementSequence *bool `json:"increment_sequence"`
}

// ListPipes lists every pipe with its queue statistics.
func (h *Handlers) ListPipes(c *gin.Context) {
	pipes := h.bus.PipeInfo()
	c.JSON(http.StatusOK, gin.H{
		"pipes": pipes,
		"count": len(pipes),
	})
}

// CreatePipe creates a pipe.
func (h *Handlers) CreatePipe(c *gin.Context) {
	var req createPipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	var opts []sb.PipeOption
	if req.Owner != "" {
		opts = append(opts, sb.WithOwner(req.Owner))
	}
	pid, err := h.bus.CreatePipe(req.Depth, req.Name, opts...)
	if err != nil {
		respondError(c, err)
		return
	}

	h.log.Info("pipe created via api", zap.String("pipe_name", req.Name), zap.Stringer("pipe_id", pid))
	c.JSON(http.StatusCreated, gin.H{
		"pipe_id": pid.String(),
		"name":    req.Name,
		"depth":   req.Depth,
	})
}

// GetPipe returns one pipe's statistics.
func (h *Handlers) GetPipe(c *gin.Context) {
	pid, ok := h.pipeParam(c)
	if !ok {
		return
	}
	stats, err := h.bus.PipeStats(pid)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"pipe_id": pid.String(),
		"name":    c.Param("name"),
		"stats":   stats,
	})
}

// DeletePipe deletes a pipe and its subscriptions.
func (h *Handlers) DeletePipe(c *gin.Context) {
	pid, ok := h.pipeParam(c)
	if !ok {
		return
	}
	if err := h.bus.DeletePipe(pid); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "name": c.Param("name")})
}

// Receive takes one message from a pipe. The timeout query parameter is
// in milliseconds; zero polls. An empty pipe answers 204.
func (h *Handlers) Receive(c *gin.Context) {
	pid, ok := h.pipeParam(c)
	if !ok {
		return
	}
	ms, err := strconv.Atoi(c.DefaultQuery("timeout", "0"))
	if err != nil || ms < 0 || ms > MaxReceiveTimeout {
		badRequest(c, &paramError{name: "timeout", value: c.Query("timeout")})
		return
	}

	buf, err := h.bus.ReceiveBuffer(pid, pipe.Timeout(ms))
	if errors.Is(err, sb.ErrTimeout) {
		c.Status(http.StatusNoContent)
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	defer h.release(buf)

	p, err := diag.DescribePacket(buf.Bytes())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Subscribe routes a message id to a pipe.
func (h *Handlers) Subscribe(c *gin.Context) {
	pid, ok := h.pipeParam(c)
	if !ok {
		return
	}
	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	id, err := parseMsgID(req.MsgID)
	if err != nil {
		badRequest(c, err)
		return
	}

	limit := req.MsgLimit
	if limit == 0 {
		limit = h.bus.Config().DefaultMsgLimit
	}
	qos := types.QoS{Priority: req.Priority, Reliability: req.Reliability}
	if req.Local {
		err = h.bus.SubscribeLocal(id, pid, limit)
	} else {
		err = h.bus.SubscribeEx(id, pid, qos, limit)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"msg_id":    id.String(),
		"pipe":      c.Param("name"),
		"msg_limit": limit,
	})
}

// Unsubscribe removes a route.
func (h *Handlers) Unsubscribe(c *gin.Context) {
	h.routeOp(c, h.bus.Unsubscribe)
}

// EnableRoute resumes delivery on a route.
func (h *Handlers) EnableRoute(c *gin.Context) {
	h.routeOp(c, h.bus.EnableRoute)
}

// DisableRoute suspends delivery on a route without removing it.
func (h *Handlers) DisableRoute(c *gin.Context) {
	h.routeOp(c, h.bus.DisableRoute)
}

func (h *Handlers) routeOp(c *gin.Context, op func(msg.MsgID, handle.ID) error) {
	pid, ok := h.pipeParam(c)
	if !ok {
		return
	}
	id, err := parseMsgID(c.Param("msgid"))
	if err != nil {
		badRequest(c, err)
		return
	}
	if err := op(id, pid); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "msg_id": id.String(), "pipe": c.Param("name")})
}

// ListRoutes returns the routing table.
func (h *Handlers) ListRoutes(c *gin.Context) {
	routes := h.bus.RoutingInfo()
	c.JSON(http.StatusOK, gin.H{
		"routes": routes,
		"count":  len(routes),
	})
}

// ListMap returns the message map.
func (h *Handlers) ListMap(c *gin.Context) {
	entries := h.bus.MapInfo()
	c.JSON(http.StatusOK, gin.H{
		"map":   entries,
		"count": len(entries),
	})
}

// Transmit injects a message, either built from msg_id and payload or
// sent raw. Telemetry with a secondary header is stamped with bus time.
func (h *Handlers) Transmit(c *gin.Context) {
	var req transmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	payload, err := decodePayload(req.Payload, req.Encoding)
	if err != nil {
		badRequest(c, err)
		return
	}

	pkt := payload
	if !req.Raw {
		id, err := parseMsgID(req.MsgID)
		if err != nil {
			badRequest(c, err)
			return
		}
		if pkt, err = diag.BuildPacket(id, req.FcnCode, payload); err != nil {
			respondError(c, err)
			return
		}
		if msg.HeaderSizeFor(id) == msg.TelemetryHeaderSize {
			if err := h.bus.TimeStampMsg(pkt); err != nil {
				respondError(c, err)
				return
			}
		}
	}

	inc := req.IncrementSequence == nil || *req.IncrementSequence
	if err := h.bus.TransmitMsg(pkt, inc); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"msg_id": msg.GetMsgID(pkt).String(),
		"size":   len(pkt),
	})
}

// Housekeeping returns a freshly built housekeeping packet, decoded.
func (h *Handlers) Housekeeping(c *gin.Context) {
	pkt, err := h.bus.BuildHousekeeping()
	if err != nil {
		respondError(c, err)
		return
	}
	hk, err := sb.DecodeHousekeeping(pkt)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, hk)
}

func (h *Handlers) pipeParam(c *gin.Context) (handle.ID, bool) {
	pid, err := h.bus.PipeIDByName(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":    err.Error(),
			"category": sb.Category(err),
		})
		return handle.Invalid, false
	}
	return pid, true
}

func decodePayload(s, encoding string) ([]byte, error) {
	switch encoding {
	case "", "hex":
		b, err := hex.DecodeString(s)
		if err != nil {
			return nil, &paramError{name: "hex payload", value: s}
		}
		return b, nil
	case "base64":
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, &paramError{name: "base64 payload", value: s}
		}
		return b, nil
	default:
		return nil, &paramError{name: "encoding", value: encoding}
	}
}

// release hands a received buffer back to the bus. The packet was already
// read, so a failure is only logged.
func (h *Handlers) release(buf bufpool.Buffer) {
	if err := h.bus.ReleaseMessageBuffer(buf); err != nil {
		h.log.Debug("release received buffer", zap.Stringer("buffer", buf), zap.Error(err))
	}
}
