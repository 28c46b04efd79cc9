// Package fingerprint computes content-addressed keys for normalized audio.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// Size is the digest length in bytes.
const Size = sha256.Size

// Fingerprint is the SHA-256 digest of a normalized audio artifact.
// It is a cache key, never a credential.
type Fingerprint [Size]byte

// FromBytes fingerprints an in-memory audio artifact.
func FromBytes(b []byte) Fingerprint {
	return sha256.Sum256(b)
}

// FromReader fingerprints the full content of r. Read errors are returned,
// never swallowed.
func FromReader(r io.Reader) (Fingerprint, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return Fingerprint{}, fmt.Errorf("fingerprint: read audio: %w", err)
	}
	var fp Fingerprint
	copy(fp[:], h.Sum(nil))
	return fp, nil
}

// String returns the lowercase hex form.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// Short returns a log-friendly prefix of the hex form.
func (f Fingerprint) Short() string {
	return f.String()[:12]
}

// IsZero reports whether f is the zero value.
func (f Fingerprint) IsZero() bool {
	return f == Fingerprint{}
}

// Parse decodes the hex form produced by String.
func Parse(s string) (Fingerprint, error) {
	var fp Fingerprint
	b, err := hex.DecodeString(s)
	if err != nil {
		return fp, fmt.Errorf("fingerprint: decode %q: %w", s, err)
	}
	if len(b) != Size {
		return fp, fmt.Errorf("fingerprint: want %d bytes, got %d", Size, len(b))
	}
	copy(fp[:], b)
	return fp, nil
}
