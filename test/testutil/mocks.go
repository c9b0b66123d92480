package testutil

import (
	"bytes"
	"io"

	"github.com/stretchr/testify/mock"

	"github.com/TheMichaelB/vaultctl/internal/storage"
)

// MockSource mocks storage.Source.
type MockSource struct {
	mock.Mock
}

func NewMockSource() *MockSource {
	return &MockSource{}
}

func (m *MockSource) Open(path string) (io.ReadCloser, storage.FileInfo, error) {
	args := m.Called(path)

	if rc := args.Get(0); rc != nil {
		return rc.(io.ReadCloser), args.Get(1).(storage.FileInfo), args.Error(2)
	}
	return nil, storage.FileInfo{}, args.Error(2)
}

// ServeBytes makes Open(path) return data.
func (m *MockSource) ServeBytes(path string, data []byte) *mock.Call {
	rc := &TrackingReadCloser{Reader: bytes.NewReader(data)}
	return m.On("Open", path).Return(rc, storage.FileInfo{Path: path, Size: int64(len(data))}, nil)
}

// TrackingReadCloser records whether Close was called.
type TrackingReadCloser struct {
	io.Reader
	Closed bool
}

func (t *TrackingReadCloser) Close() error {
	t.Closed = true
	return nil
}

// ErrorReader returns data and then err.
type ErrorReader struct {
	Data []byte
	Err  error
}

func (r *ErrorReader) Read(p []byte) (int, error) {
	if len(r.Data) == 0 {
		return 0, r.Err
	}
	n := copy(p, r.Data)
	r.Data = r.Data[n:]
	return n, nil
}
