package stream

import (
	"sync"

	"github.com/google/uuid"
)

// Session is the per-room mutable state: the byte buffer awaiting chunking,
// the pinned source language, the selected target language and the work slot
// serializing chunk pipelines for the room.
type Session struct {
	id     string
	roomID string

	mu         sync.Mutex
	buf        []byte
	pinnedLang string
	targetLang string
	seq        int64

	// capacity-1 semaphore; held for the full pipeline duration of a chunk
	work chan struct{}
}

// ID identifies this incarnation of the room's session. A room that is torn
// down and recreated gets a new id, so downstream records keyed by it never
// collide across incarnations.
func (s *Session) ID() string { return s.id }

func (s *Session) RoomID() string { return s.roomID }

// Append adds incoming PCM bytes to the back of the buffer.
func (s *Session) Append(b []byte) {
	s.mu.Lock()
	s.buf = append(s.buf, b...)
	s.mu.Unlock()
}

// TryExtract removes and returns exactly the first n buffered bytes, or
// reports false when fewer than n are buffered. The remainder stays in place:
// a buffer of n+k bytes yields one chunk and a k-byte remainder.
func (s *Session) TryExtract(n int) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n <= 0 || len(s.buf) < n {
		return nil, false
	}

	chunk := make([]byte, n)
	copy(chunk, s.buf[:n])
	s.buf = append(s.buf[:0], s.buf[n:]...)
	return chunk, true
}

func (s *Session) BufferedLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

// PinLanguage records the detected source language the first time it is
// observed. Later calls are no-ops: once pinned, stays pinned for the life of
// the session.
func (s *Session) PinLanguage(code string) {
	if code == "" {
		return
	}
	s.mu.Lock()
	if s.pinnedLang == "" {
		s.pinnedLang = code
	}
	s.mu.Unlock()
}

func (s *Session) PinnedLanguage() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pinnedLang, s.pinnedLang != ""
}

func (s *Session) SetTargetLanguage(code string) {
	if code == "" {
		return
	}
	s.mu.Lock()
	s.targetLang = code
	s.mu.Unlock()
}

func (s *Session) TargetLanguage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.targetLang
}

// AcquireWork blocks until the room's work slot is free and takes it. The
// slot may be released from a different goroutine than the one that acquired
// it, which is why this is a channel semaphore rather than a mutex.
func (s *Session) AcquireWork() { s.work <- struct{}{} }

func (s *Session) ReleaseWork() { <-s.work }

func (s *Session) NextSeq() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

// SessionStore owns every room's Session, creating entries on first
// reference and tearing them down when the room's producer goes away.
type SessionStore struct {
	mu            sync.Mutex
	rooms         map[string]*Session
	defaultTarget string
}

func NewSessionStore(defaultTargetLanguage string) *SessionStore {
	if defaultTargetLanguage == "" {
		defaultTargetLanguage = "en"
	}
	return &SessionStore{
		rooms:         make(map[string]*Session),
		defaultTarget: defaultTargetLanguage,
	}
}

// Get returns the room's session, creating it on first use.
func (st *SessionStore) Get(roomID string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.rooms[roomID]
	if !ok {
		s = &Session{
			id:         uuid.NewString(),
			roomID:     roomID,
			targetLang: st.defaultTarget,
			work:       make(chan struct{}, 1),
		}
		st.rooms[roomID] = s
	}
	return s
}

// Remove drops the room's session. An in-flight pipeline holding a pointer to
// it finishes normally; only future lookups start fresh.
func (st *SessionStore) Remove(roomID string) {
	st.mu.Lock()
	delete(st.rooms, roomID)
	st.mu.Unlock()
}

func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.rooms)
}
