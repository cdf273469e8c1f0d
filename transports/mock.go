package transports

import (
	"io"
	"time"
)

// MockTransport implements the bus transport for testing. Responses are
// scripted per request: each Write shifts the next entry of Responses into
// the read buffer, so one mock can drive a whole multi-request exchange.
type MockTransport struct {
	// Responses are queued reply frames, consumed one per Write.
	Responses [][]byte

	ReadData    []byte
	ReadErr     error
	WriteData   []byte
	WriteFrames [][]byte
	WriteErr    error
	BaudRates   []int
	BaudErr     error
	Closed      bool
	ReadTimeout time.Duration
	Flushes     int

	// ReadFunc allows custom read behavior for complex tests.
	ReadFunc func(p []byte) (int, error)
}

func (m *MockTransport) Read(p []byte) (int, error) {
	if m.ReadFunc != nil {
		return m.ReadFunc(p)
	}
	if m.ReadErr != nil {
		return 0, m.ReadErr
	}
	n := copy(p, m.ReadData)
	m.ReadData = m.ReadData[n:]
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (m *MockTransport) Write(p []byte) (int, error) {
	if m.WriteErr != nil {
		return 0, m.WriteErr
	}
	m.WriteData = append(m.WriteData, p...)
	frame := make([]byte, len(p))
	copy(frame, p)
	m.WriteFrames = append(m.WriteFrames, frame)

	if len(m.Responses) > 0 {
		m.ReadData = append(m.ReadData, m.Responses[0]...)
		m.Responses = m.Responses[1:]
	}
	return len(p), nil
}

func (m *MockTransport) Close() error {
	m.Closed = true
	return nil
}

func (m *MockTransport) SetBaud(rate int) error {
	if m.BaudErr != nil {
		return m.BaudErr
	}
	m.BaudRates = append(m.BaudRates, rate)
	return nil
}

func (m *MockTransport) SetReadTimeout(timeout time.Duration) error {
	m.ReadTimeout = timeout
	return nil
}

func (m *MockTransport) Flush() error {
	m.Flushes++
	// ReadData is preserved: tests queue response bytes before the request
	// that consumes them.
	return nil
}
