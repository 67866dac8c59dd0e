package diff

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"
)

// Socket reads diff batches from an editor over a websocket. The
// transport delivers raw batches; sequencing and rollback stay with
// the Applier.
type Socket struct {
	conn    *websocket.Conn
	Batches chan Batch
	Errors  chan error
}

// Dial connects to the editor's diff endpoint (ws:// or wss:// URL).
func Dial(ctx context.Context, url string) (*Socket, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing editor at %s: %w", url, err)
	}
	s := &Socket{
		conn:    conn,
		Batches: make(chan Batch, 16),
		Errors:  make(chan error, 1),
	}
	go s.run()
	return s, nil
}

func (s *Socket) Close() error {
	return s.conn.Close()
}

// Ack reports the applied (or rejected) sequence back to the editor so
// it can resync after a sequence gap.
func (s *Socket) Ack(sequence uint64, applyErr error) error {
	msg := struct {
		Sequence uint64 `json:"sequence"`
		OK       bool   `json:"ok"`
		Error    string `json:"error,omitempty"`
	}{Sequence: sequence, OK: applyErr == nil}
	if applyErr != nil {
		msg.Error = applyErr.Error()
	}
	return s.conn.WriteJSON(msg)
}

func (s *Socket) run() {
	defer close(s.Batches)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.Errors <- err
			return
		}
		batch, err := ParseBatch(data)
		if err != nil {
			s.Errors <- err
			continue
		}
		s.Batches <- batch
	}
}
