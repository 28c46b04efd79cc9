package fingerprint

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestFromBytes_Deterministic(t *testing.T) {
	audio := []byte("RIFF....WAVEfmt canonical-audio-bytes")

	a := FromBytes(audio)
	b := FromBytes(append([]byte(nil), audio...))

	if a != b {
		t.Errorf("identical bytes produced different fingerprints: %s vs %s", a, b)
	}
}

func TestFromBytes_SingleBitFlip(t *testing.T) {
	audio := bytes.Repeat([]byte{0x5a}, 4096)
	base := FromBytes(audio)

	for _, idx := range []int{0, 1, 2047, 4095} {
		for bit := 0; bit < 8; bit++ {
			flipped := append([]byte(nil), audio...)
			flipped[idx] ^= 1 << bit
			if FromBytes(flipped) == base {
				t.Errorf("bit %d of byte %d did not change the fingerprint", bit, idx)
			}
		}
	}
}

func TestFromReader_MatchesFromBytes(t *testing.T) {
	audio := bytes.Repeat([]byte("pcm-frame"), 10000)

	fp, err := FromReader(bytes.NewReader(audio))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fp != FromBytes(audio) {
		t.Error("streamed fingerprint differs from in-memory fingerprint")
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

func TestFromReader_PropagatesReadError(t *testing.T) {
	_, err := FromReader(failingReader{})
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected wrapped read error, got %v", err)
	}
}

func TestParse_RoundTrip(t *testing.T) {
	fp := FromBytes([]byte("hello"))

	got, err := Parse(fp.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != fp {
		t.Errorf("Parse(String()) = %s, want %s", got, fp)
	}
	if len(fp.Short()) != 12 {
		t.Errorf("expected 12 char short form, got %q", fp.Short())
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []string{"", "zz", "abcd"}
	for _, in := range tests {
		if _, err := Parse(in); err == nil {
			t.Errorf("Parse(%q) expected error", in)
		}
	}
}

func TestIsZero(t *testing.T) {
	var fp Fingerprint
	if !fp.IsZero() {
		t.Error("expected zero fingerprint")
	}
	if FromBytes(nil).IsZero() {
		t.Error("digest of empty input is not the zero value")
	}
}
