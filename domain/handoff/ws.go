package handoff

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/devkan/FirstAidVox-sub002/domain/capture"
)

// Wire protocol: one JSON header frame, the payload in binary chunks, then a
// JSON ack from the session endpoint.
type wireHeader struct {
	ID   string `json:"id"`
	MIME string `json:"mime"`
	Name string `json:"name,omitempty"`
	Size int    `json:"size"`
}

type wireAck struct {
	ID    string `json:"id"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

const wsChunkSize = 32 << 10

// WS pushes the payload into a live session endpoint over a websocket.
type WS struct {
	URL     string
	Dialer  *websocket.Dialer // nil means websocket.DefaultDialer
	Timeout time.Duration     // bound on the whole submission, 0 means none
	Logger  *slog.Logger
	Tracker *Tracker // optional in-flight registry
}

func (w *WS) Submit(ctx context.Context, p capture.Payload, progress func(pct int)) (string, error) {
	if w.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.Timeout)
		defer cancel()
	}
	id := uuid.NewString()
	if w.Tracker != nil {
		ctx2, cancel := context.WithCancel(ctx)
		defer cancel()
		ctx = ctx2
		unregister := w.Tracker.Register(id, cancel)
		defer unregister()
	}

	dialer := w.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, w.URL, nil)
	if err != nil {
		return "", fmt.Errorf("handoff dial %s: %w", w.URL, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
		_ = conn.SetReadDeadline(deadline)
	}

	hdr, err := json.Marshal(wireHeader{ID: id, MIME: p.MIME, Name: p.Name, Size: len(p.Bytes)})
	if err != nil {
		return "", err
	}
	if err := conn.WriteMessage(websocket.TextMessage, hdr); err != nil {
		return "", fmt.Errorf("handoff header: %w", err)
	}

	total := len(p.Bytes)
	for sent := 0; sent < total; {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		end := sent + wsChunkSize
		if end > total {
			end = total
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, p.Bytes[sent:end]); err != nil {
			return "", fmt.Errorf("handoff chunk: %w", err)
		}
		sent = end
		if progress != nil && total > 0 {
			progress(sent * 100 / total)
		}
	}
	if total == 0 {
		if err := conn.WriteMessage(websocket.BinaryMessage, nil); err != nil {
			return "", fmt.Errorf("handoff chunk: %w", err)
		}
	}

	var ack wireAck
	if err := conn.ReadJSON(&ack); err != nil {
		return "", fmt.Errorf("handoff ack: %w", err)
	}
	if !ack.OK {
		return "", fmt.Errorf("handoff rejected: %s", ack.Error)
	}
	if ack.ID != "" {
		id = ack.ID
	}
	if w.Logger != nil {
		w.Logger.Info("handoff accepted", "id", id, "bytes", total)
	}
	return id, nil
}

var _ capture.Handoff = (*WS)(nil)
