package ws

import (
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/softbus/internal/diag"
	"github.com/GriffinCanCode/softbus/internal/domain/bufpool"
	"github.com/GriffinCanCode/softbus/internal/domain/pipe"
	"github.com/GriffinCanCode/softbus/internal/domain/sb"
	"github.com/GriffinCanCode/softbus/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/softbus/internal/shared/handle"
	"github.com/GriffinCanCode/softbus/internal/shared/id"
	"github.com/GriffinCanCode/softbus/internal/shared/msg"
)

// DefaultDepth is the pipe depth of a tap session.
const DefaultDepth = 32

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Origin policy is enforced by the CORS middleware
	},
}

// Request is a client frame.
type Request struct {
	Type   string   `json:"type"`
	MsgIDs []string `json:"msg_ids,omitempty"`
}

// Tap streams bus traffic to websocket clients. Each connection owns one
// pipe named after its session id.
type Tap struct {
	bus     *sb.Bus
	metrics *monitoring.Metrics
	log     *zap.Logger
	depth   int
}

// NewTap creates a tap handler. metrics may be nil.
func NewTap(bus *sb.Bus, metrics *monitoring.Metrics, log *zap.Logger) *Tap {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tap{bus: bus, metrics: metrics, log: log.Named("tap"), depth: DefaultDepth}
}

// session is one tap connection.
type session struct {
	id   id.SessionID
	pid  handle.ID
	conn *websocket.Conn
	log  *zap.Logger

	writeMu sync.Mutex
}

// HandleConnection handles WebSocket upgrade and messages
func (t *Tap) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		t.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sid := id.NewSessionID()
	log := t.log.With(zap.String("session", sid.String()))
	pid, err := t.bus.CreatePipe(t.depth, sid.String(), sb.WithOwner("tap"))
	if err != nil {
		log.Error("tap pipe", zap.Error(err))
		_ = conn.WriteJSON(gin.H{"type": "error", "message": err.Error()})
		return
	}

	s := &session{id: sid, pid: pid, conn: conn, log: log}
	if t.metrics != nil {
		t.metrics.IncTapConnections()
		defer t.metrics.DecTapConnections()
	}
	log.Info("tap session opened", zap.Stringer("pipe", pid))

	s.send(t, gin.H{
		"type":    "system",
		"session": sid.String(),
		"message": "connected to software bus " + t.bus.ID().String(),
	})

	var g errgroup.Group
	g.Go(func() error { return t.pump(s) })

	t.readLoop(s)

	// Deleting the pipe wakes the pump.
	if err := t.bus.DeletePipe(pid); err != nil {
		log.Warn("delete tap pipe", zap.Error(err))
	}
	if err := g.Wait(); err != nil && !sessionEnded(err) {
		log.Warn("tap pump stopped", zap.Error(err))
	}
	log.Info("tap session closed")
}

func (t *Tap) readLoop(s *session) {
	for {
		var req Request
		if err := s.conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("websocket read", zap.Error(err))
			}
			return
		}
		t.record("in")

		switch req.Type {
		case "subscribe":
			t.route(s, req, func(mid msg.MsgID) error { return t.bus.Subscribe(mid, s.pid) })
		case "unsubscribe":
			t.route(s, req, func(mid msg.MsgID) error { return t.bus.Unsubscribe(mid, s.pid) })
		case "ping":
			s.send(t, gin.H{"type": "pong"})
		default:
			s.sendError(t, "unknown message type "+strconv.Quote(req.Type))
		}
	}
}

func (t *Tap) route(s *session, req Request, op func(msg.MsgID) error) {
	done := make([]string, 0, len(req.MsgIDs))
	for _, raw := range req.MsgIDs {
		v, err := strconv.ParseUint(raw, 0, 32)
		if err != nil {
			s.sendError(t, "invalid msg_id "+strconv.Quote(raw))
			continue
		}
		mid := msg.MsgID(v)
		if err := op(mid); err != nil {
			s.sendError(t, err.Error())
			continue
		}
		done = append(done, mid.String())
	}
	s.send(t, gin.H{"type": req.Type + "d", "msg_ids": done})
}

// pump forwards every message arriving on the session pipe until the pipe
// is deleted.
func (t *Tap) pump(s *session) error {
	for {
		buf, err := t.bus.ReceiveBuffer(s.pid, pipe.PendForever)
		if err != nil {
			return err
		}
		p, err := diag.DescribePacket(buf.Bytes())
		t.release(s, buf)
		if err != nil {
			s.sendError(t, err.Error())
			continue
		}
		if err := s.send(t, gin.H{
			"type":      "message",
			"packet":    p,
			"timestamp": time.Now().Unix(),
		}); err != nil {
			return err
		}
	}
}

func (t *Tap) record(direction string) {
	if t.metrics != nil {
		t.metrics.RecordTapMessage(direction)
	}
}

func (s *session) send(t *Tap, data any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteJSON(data); err != nil {
		return err
	}
	t.record("out")
	return nil
}

func (s *session) sendError(t *Tap, message string) error {
	return s.send(t, gin.H{
		"type":      "error",
		"message":   message,
		"timestamp": time.Now().Unix(),
	})
}

// sessionEnded reports whether err is the normal end of a pump: the pipe
// was deleted or the client went away.
func sessionEnded(err error) bool {
	return errors.Is(err, sb.ErrBadArgument) || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}

func (t *Tap) release(s *session, buf bufpool.Buffer) {
	if err := t.bus.ReleaseMessageBuffer(buf); err != nil {
		s.log.Debug("release tap buffer", zap.Stringer("buffer", buf), zap.Error(err))
	}
}
