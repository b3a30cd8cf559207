package stream

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Registry tracks at most one live connection per topic. Producer sockets
// register under their room id; transcript viewers register under
// ViewerTopic(roomID).
type Registry struct {
	mu    sync.Mutex
	conns map[string]Conn
	log   *logrus.Logger
}

func NewRegistry(log *logrus.Logger) *Registry {
	return &Registry{
		conns: make(map[string]Conn),
		log:   log,
	}
}

func ViewerTopic(roomID string) string { return "transcripts:" + roomID }

// Connect installs c for topic. An existing connection for the same topic is
// closed first: replace, not merge.
func (r *Registry) Connect(topic string, c Conn) {
	r.mu.Lock()
	old := r.conns[topic]
	r.conns[topic] = c
	r.mu.Unlock()

	if old != nil && old != c {
		_ = old.Close(CloseNormal)
		r.log.WithField("topic", topic).Info("connection replaced")
	}
}

// Disconnect removes the registration only if c is still the registered
// connection, so a late disconnect from a superseded socket cannot erase its
// replacement. Reports whether a removal happened.
func (r *Registry) Disconnect(topic string, c Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conns[topic] == c {
		delete(r.conns, topic)
		return true
	}
	return false
}

func (r *Registry) HasConnection(topic string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.conns[topic]
	return ok
}

// Broadcast sends payload to the topic's connection. An empty topic is a
// silent no-op. A failed send deregisters and closes the connection; the
// error never reaches the caller.
func (r *Registry) Broadcast(topic string, payload []byte) {
	r.mu.Lock()
	c := r.conns[topic]
	r.mu.Unlock()

	if c == nil {
		return
	}

	if err := c.WriteMessage(payload); err != nil {
		r.log.WithField("topic", topic).WithError(err).Warn("broadcast send failed, dropping connection")
		if r.Disconnect(topic, c) {
			_ = c.Close(CloseInternalErr)
		}
	}
}
