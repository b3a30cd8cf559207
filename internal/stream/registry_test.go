package stream

import (
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type fakeConn struct {
	mu        sync.Mutex
	msgs      [][]byte
	closed    bool
	closeCode int
	failSend  bool
}

func (c *fakeConn) WriteMessage(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSend {
		return errors.New("broken pipe")
	}
	c.msgs = append(c.msgs, append([]byte(nil), b...))
	return nil
}

func (c *fakeConn) Close(code int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.closeCode = code
	return nil
}

func (c *fakeConn) messages() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.msgs
}

func (c *fakeConn) isClosed() (bool, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed, c.closeCode
}

func TestConnectReplacesOldConnection(t *testing.T) {
	r := NewRegistry(testLogger())
	first := &fakeConn{}
	second := &fakeConn{}

	r.Connect("r1", first)
	r.Connect("r1", second)

	closed, code := first.isClosed()
	if !closed {
		t.Fatal("superseded connection was not closed")
	}
	if code != CloseNormal {
		t.Fatalf("close code = %d, want %d", code, CloseNormal)
	}

	r.Broadcast("r1", []byte("hello"))
	if len(first.messages()) != 0 {
		t.Fatal("broadcast reached the replaced connection")
	}
	if len(second.messages()) != 1 {
		t.Fatalf("broadcast reached second connection %d times, want 1", len(second.messages()))
	}
}

func TestDisconnectIsGuarded(t *testing.T) {
	r := NewRegistry(testLogger())
	first := &fakeConn{}
	second := &fakeConn{}

	r.Connect("r1", first)
	r.Connect("r1", second)

	// stale disconnect from the superseded socket must not erase the new one
	if r.Disconnect("r1", first) {
		t.Fatal("stale disconnect reported a removal")
	}
	if !r.HasConnection("r1") {
		t.Fatal("stale disconnect erased the current connection")
	}

	if !r.Disconnect("r1", second) {
		t.Fatal("owning disconnect reported no removal")
	}
	if r.HasConnection("r1") {
		t.Fatal("room still registered after owning disconnect")
	}
}

func TestBroadcastToEmptyRoomIsSilent(t *testing.T) {
	r := NewRegistry(testLogger())
	// must not panic nor register anything
	r.Broadcast("ghost", []byte("anyone there"))
	if r.HasConnection("ghost") {
		t.Fatal("broadcast to an empty room created a registration")
	}
}

func TestBroadcastSelfHealsOnSendFailure(t *testing.T) {
	r := NewRegistry(testLogger())
	dead := &fakeConn{failSend: true}

	r.Connect("r1", dead)
	r.Broadcast("r1", []byte("x"))

	if r.HasConnection("r1") {
		t.Fatal("dead connection still registered after failed send")
	}
	closed, code := dead.isClosed()
	if !closed {
		t.Fatal("dead connection was not closed")
	}
	if code != CloseInternalErr {
		t.Fatalf("close code = %d, want %d (broken peer is not a normal closure)", code, CloseInternalErr)
	}
}
