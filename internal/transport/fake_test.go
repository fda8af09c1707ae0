package transport

import (
	"io"
	"time"

	"github.com/gorilla/websocket"
)

// fakeWSConn is a scripted WSConn for testing HostLoop/DeviceLoop
// without a real socket.
type fakeWSConn struct {
	inbound  []fakeWSMessage
	inIdx    int
	outbound [][]byte
	closed   bool
}

type fakeWSMessage struct {
	messageType int
	payload     []byte
	err         error
}

func (f *fakeWSConn) WriteMessage(messageType int, data []byte) error {
	if f.closed {
		return io.ErrClosedPipe
	}
	cp := append([]byte(nil), data...)
	f.outbound = append(f.outbound, cp)
	return nil
}

func (f *fakeWSConn) ReadMessage() (int, []byte, error) {
	if f.inIdx >= len(f.inbound) {
		return 0, nil, websocket.ErrCloseSent
	}
	m := f.inbound[f.inIdx]
	f.inIdx++
	return m.messageType, m.payload, m.err
}

func (f *fakeWSConn) SetReadDeadline(t time.Time) error { return nil }

func (f *fakeWSConn) Close() error {
	f.closed = true
	return nil
}

// fakeSerialPort is a scripted SerialPort backed by an in-memory byte
// queue, for USB-path tests.
type fakeSerialPort struct {
	chunks  [][]byte
	idx     int
	written [][]byte
	closed  bool
}

func (f *fakeSerialPort) Read(p []byte) (int, error) {
	if f.idx >= len(f.chunks) {
		return 0, nil // simulate a read-timeout poll with no data
	}
	c := f.chunks[f.idx]
	f.idx++
	n := copy(p, c)
	return n, nil
}

func (f *fakeSerialPort) Write(p []byte) (int, error) {
	cp := append([]byte(nil), p...)
	f.written = append(f.written, cp)
	return len(p), nil
}

func (f *fakeSerialPort) Close() error {
	f.closed = true
	return nil
}

func (f *fakeSerialPort) SetReadTimeout(t time.Duration) error { return nil }

// fakeCaptureSource produces one fixed RGBA frame repeatedly, for
// HostLoop/HostUSBLoop tests.
type fakeCaptureSource struct {
	rgba          []byte
	width, height int
	calls         int
	failFirstN    int
}

func (f *fakeCaptureSource) Capture() ([]byte, int, int, error) {
	f.calls++
	if f.calls <= f.failFirstN {
		return nil, 0, 0, io.ErrUnexpectedEOF
	}
	return f.rgba, f.width, f.height, nil
}

func (f *fakeCaptureSource) MousePosition() (int, int, bool) { return 0, 0, false }
