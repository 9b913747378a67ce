package drive

import (
	"bytes"
	"sync"
)

// MockPort implements Port for testing.
type MockPort struct {
	mu         sync.Mutex
	written    bytes.Buffer
	WriteError error
	ShortWrite bool
	CloseError error
	Closed     bool
}

func (m *MockPort) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteError != nil {
		return 0, m.WriteError
	}
	if m.ShortWrite && len(p) > 0 {
		p = p[:len(p)-1]
	}
	return m.written.Write(p)
}

func (m *MockPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return m.CloseError
}

// Written returns everything written so far.
func (m *MockPort) Written() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.written.String()
}
