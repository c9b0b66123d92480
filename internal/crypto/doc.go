// Package crypto provides the cryptographic primitives for loading vault containers.
//
// Key derivation:
//   - composite key is SHA-256(SHA-256(password)), independent of any file
//   - the composite key is encrypted with AES-256-ECB keyed by the transform
//     seed, exactly TransformRounds times, then hashed with SHA-256
//   - final key is SHA-256(master seed || transformed key)
//
// Payload decryption streams AES-256-CBC (PKCS#7 padded) or ChaCha20.
//
// Protected document values are XORed with a single continuous keystream
// (Salsa20 or ChaCha20) that must be consumed in document order.
//
// Memory safety:
//   - key material lives in SecureBytes; call Destroy when done
//   - Credentials and DerivedKey are destroyed by the load that consumes them
//   - cipher.Block and chacha20.Cipher values hold private copies of their
//     keys that cannot be wiped; Destroy drops them and only the buffers this
//     package owns are zeroed
package crypto
