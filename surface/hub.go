// Package surface carries the WebSocket channel between the daemon and the
// page-embedded extractor. The hub implements the coordinator's extraction
// port over whichever page connection is currently attached.
package surface

import (
	"context"
	"encoding/json"
	"excalisave/coordinator"
	"excalisave/core"
	"excalisave/protocol"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The daemon binds to loopback; pages on any origin may attach.
		return true
	},
}

type (
	// frame is the wire shape on the extraction channel. Requests from the
	// daemon carry a sequence number the page echoes back in its reply.
	frame struct {
		Type    protocol.Type     `json:"type"`
		Seq     uint64            `json:"seq,omitempty"`
		ID      string            `json:"id,omitempty"`
		Data    *core.DrawingData `json:"data,omitempty"`
		Preview string            `json:"preview,omitempty"`
	}

	// Hub resolves "the active target": at most one live page connection,
	// with a newer connection replacing the older one. It implements
	// coordinator.ExtractionPort.
	Hub struct {
		mu      sync.Mutex
		conn    *websocket.Conn
		seq     uint64
		pending chan frame // reply channel for the in-flight extraction

		extracting sync.Mutex // at most one extraction in flight
	}
)

func NewHub() *Hub {
	return &Hub{}
}

// Handler upgrades an incoming page connection and pumps its replies. A new
// connection displaces any previous one.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logrus.WithError(err).Warn("Surface upgrade failed")
			return
		}
		h.attach(conn)
		go h.readPump(conn)
	}
}

func (h *Hub) attach(conn *websocket.Conn) {
	h.mu.Lock()
	old := h.conn
	h.conn = conn
	h.mu.Unlock()

	if old != nil {
		old.Close()
		logrus.Info("Surface replaced by newer connection")
	} else {
		logrus.Info("Surface attached")
	}
}

func (h *Hub) detach(conn *websocket.Conn) {
	h.mu.Lock()
	if h.conn == conn {
		h.conn = nil
	}
	h.mu.Unlock()
	conn.Close()
}

func (h *Hub) readPump(conn *websocket.Conn) {
	defer func() {
		h.detach(conn)
		logrus.Info("Surface detached")
	}()
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logrus.WithError(err).Warn("Surface read failed")
			}
			return
		}
		if f.Type != protocol.TypeExtractData {
			logrus.WithField("type", f.Type).Debug("Ignoring unexpected surface frame")
			continue
		}
		h.mu.Lock()
		pending := h.pending
		expect := h.seq
		h.mu.Unlock()
		if pending == nil || f.Seq != expect {
			logrus.WithField("seq", f.Seq).Debug("Dropping stale extract reply")
			continue
		}
		select {
		case pending <- f:
		default:
		}
	}
}

// Reachable reports whether a page is currently attached.
func (h *Hub) Reachable() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conn != nil
}

// Extract asks the attached page for its current content and waits for the
// matching reply. There is no internal timeout; a hung page holds the call
// until the caller's context is cancelled. At most one extraction runs at a
// time.
func (h *Hub) Extract(ctx context.Context) (*coordinator.Extraction, error) {
	h.extracting.Lock()
	defer h.extracting.Unlock()

	h.mu.Lock()
	conn := h.conn
	if conn == nil {
		h.mu.Unlock()
		return nil, fmt.Errorf("no surface attached")
	}
	h.seq++
	seq := h.seq
	reply := make(chan frame, 1)
	h.pending = reply
	// Write while holding the lock; the connection does not support
	// concurrent writers.
	err := conn.WriteJSON(frame{Type: protocol.TypeExtractData, Seq: seq})
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		h.pending = nil
		h.mu.Unlock()
	}()

	if err != nil {
		return nil, fmt.Errorf("send extract request: %w", err)
	}

	select {
	case f := <-reply:
		return &coordinator.Extraction{Data: f.Data, Preview: f.Preview}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// PushDrawing loads content into the attached page.
func (h *Hub) PushDrawing(ctx context.Context, id string, data core.DrawingData) error {
	return h.send(frame{Type: protocol.TypeLoadData, ID: id, Data: &data})
}

// PushCurrentID tells the attached page which drawing id it now holds.
func (h *Hub) PushCurrentID(ctx context.Context, id string) error {
	return h.send(frame{Type: protocol.TypeSetCurrentID, ID: id})
}

// PushNewDrawing tells the attached page to clear its content.
func (h *Hub) PushNewDrawing(ctx context.Context) error {
	return h.send(frame{Type: protocol.TypeNewDrawing})
}

// NotifyAutoSaved announces a completed auto-save to the page. Never awaited;
// a send failure is logged and forgotten.
func (h *Hub) NotifyAutoSaved() {
	if err := h.send(frame{Type: protocol.TypeAutoSaveComplete}); err != nil {
		logrus.WithError(err).Debug("Auto-save notification dropped")
	}
}

func (h *Hub) send(f frame) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conn == nil {
		return fmt.Errorf("no surface attached")
	}
	raw, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return h.conn.WriteMessage(websocket.TextMessage, raw)
}
