package crypto

import "crypto/subtle"

// SecureBytes owns a sensitive buffer that is zeroed on Destroy.
type SecureBytes struct {
	b []byte
}

// NewSecureBytes allocates a zeroed buffer of n bytes.
func NewSecureBytes(n int) *SecureBytes {
	return &SecureBytes{b: make([]byte, n)}
}

// WrapSecureBytes takes ownership of b. The caller must not retain b.
func WrapSecureBytes(b []byte) *SecureBytes {
	return &SecureBytes{b: b}
}

// Bytes returns the underlying buffer, or nil after Destroy.
func (s *SecureBytes) Bytes() []byte {
	if s == nil {
		return nil
	}
	return s.b
}

// Len returns the buffer length.
func (s *SecureBytes) Len() int {
	if s == nil {
		return 0
	}
	return len(s.b)
}

// Destroy zeroes and releases the buffer. Safe to call more than once.
func (s *SecureBytes) Destroy() {
	if s == nil {
		return
	}
	ClearBytes(s.b)
	s.b = nil
}

// Destroyed reports whether Destroy has been called.
func (s *SecureBytes) Destroyed() bool {
	return s == nil || s.b == nil
}

// ClearBytes securely clears a byte slice
func ClearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ConstantTimeCompare performs a constant-time comparison of two byte slices
func ConstantTimeCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
