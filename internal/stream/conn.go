package stream

// Close codes sent by the registry. A superseded connection gets a normal
// closure; a connection dropped because a send failed gets an internal-error
// closure, since its peer is already broken.
const (
	CloseNormal      = 1000
	CloseInternalErr = 1011
)

// Conn is the registry's view of a live socket. The websocket handler wraps
// the real connection so sends are serialized by a write mutex.
type Conn interface {
	WriteMessage(data []byte) error
	Close(code int) error
}
