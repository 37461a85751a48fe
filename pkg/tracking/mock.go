package tracking

import (
	"sync"

	"github.com/studyeyes/go-tracker/pkg/telemetry"
)

// Mock is a mock implementation of Source for testing.
type Mock struct {
	mu sync.RWMutex

	// Callbacks
	onFrame     func(telemetry.Frame)
	onLifecycle func(LifecycleEvent)
	onError     func(error)

	// Configurable behavior
	ReadyFunc  func() error
	StartFunc  func(sessionID, credential string) error
	StopFunc   func(sessionID string) error
	PauseFunc  func(sessionID string) error
	ResumeFunc func(sessionID string) error

	// Captured calls for assertions
	StartCalls  []string
	StopCalls   []string
	PauseCalls  []string
	ResumeCalls []string
	Credentials []string
	CloseCalled bool
}

// NewMock creates a new Mock source.
func NewMock() *Mock {
	return &Mock{}
}

// Ready implements Source.
func (m *Mock) Ready() error {
	if m.ReadyFunc != nil {
		return m.ReadyFunc()
	}
	return nil
}

// Start implements Source.
func (m *Mock) Start(sessionID, credential string) error {
	if m.StartFunc != nil {
		return m.StartFunc(sessionID, credential)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StartCalls = append(m.StartCalls, sessionID)
	m.Credentials = append(m.Credentials, credential)
	return nil
}

// Stop implements Source.
func (m *Mock) Stop(sessionID string) error {
	if m.StopFunc != nil {
		return m.StopFunc(sessionID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StopCalls = append(m.StopCalls, sessionID)
	return nil
}

// Pause implements Source.
func (m *Mock) Pause(sessionID string) error {
	if m.PauseFunc != nil {
		return m.PauseFunc(sessionID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PauseCalls = append(m.PauseCalls, sessionID)
	return nil
}

// Resume implements Source.
func (m *Mock) Resume(sessionID string) error {
	if m.ResumeFunc != nil {
		return m.ResumeFunc(sessionID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ResumeCalls = append(m.ResumeCalls, sessionID)
	return nil
}

// OnFrame implements Source.
func (m *Mock) OnFrame(fn func(telemetry.Frame)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onFrame = fn
}

// OnLifecycle implements Source.
func (m *Mock) OnLifecycle(fn func(LifecycleEvent)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onLifecycle = fn
}

// OnError implements Source.
func (m *Mock) OnError(fn func(error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onError = fn
}

// Close implements Source.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCalled = true
	return nil
}

// Test helpers

// SimulateFrame triggers the OnFrame callback with the given frame.
func (m *Mock) SimulateFrame(f telemetry.Frame) {
	m.mu.RLock()
	fn := m.onFrame
	m.mu.RUnlock()
	if fn != nil {
		fn(f)
	}
}

// SimulateLifecycle triggers the OnLifecycle callback.
func (m *Mock) SimulateLifecycle(ev LifecycleEvent) {
	m.mu.RLock()
	fn := m.onLifecycle
	m.mu.RUnlock()
	if fn != nil {
		fn(ev)
	}
}

// SimulateError triggers the OnError callback.
func (m *Mock) SimulateError(err error) {
	m.mu.RLock()
	fn := m.onError
	m.mu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

// Reset clears all captured calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StartCalls = nil
	m.StopCalls = nil
	m.PauseCalls = nil
	m.ResumeCalls = nil
	m.Credentials = nil
	m.CloseCalled = false
}
