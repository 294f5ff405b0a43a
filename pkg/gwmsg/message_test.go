package gwmsg

import "testing"

func TestRoundTrip(t *testing.T) {
	msg := New([]byte("hello module host"))
	wire, err := msg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := Decode(wire)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if string(decoded.Payload) != "hello module host" {
		t.Errorf("Payload = %q, want %q", decoded.Payload, "hello module host")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	msg := New([]byte("original"))
	clone := msg.Clone()
	clone.Payload[0] = 'O'

	if msg.Payload[0] == 'O' {
		t.Error("mutating clone affected original")
	}
}

func TestDecodeEmpty(t *testing.T) {
	if _, err := Decode(nil); err != ErrEmpty {
		t.Errorf("got %v, want ErrEmpty", err)
	}
}
