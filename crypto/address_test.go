package crypto

import (
	"bytes"
	"strings"
	"testing"
)

func TestAddressRoundTrip(t *testing.T) {
	raw := make([]byte, 20)
	for i := range raw {
		raw[i] = byte(i)
	}
	for _, prefix := range []AddressPrefix{ESTPrefix, ZESTPrefix} {
		addr, err := NewAddress(prefix, raw)
		if err != nil {
			t.Fatalf("%s: new: %v", prefix, err)
		}
		encoded := addr.String()
		if !strings.HasPrefix(encoded, string(prefix)+"1") {
			t.Fatalf("%s: encoded %q missing prefix", prefix, encoded)
		}
		decoded, err := DecodeAddress(encoded)
		if err != nil {
			t.Fatalf("%s: decode: %v", prefix, err)
		}
		if decoded.Prefix() != prefix {
			t.Fatalf("%s: prefix lost: %q", prefix, decoded.Prefix())
		}
		if !bytes.Equal(decoded.Bytes(), raw) {
			t.Fatalf("%s: payload mismatch", prefix)
		}
	}
}

func TestNewAddressLength(t *testing.T) {
	if _, err := NewAddress(ESTPrefix, make([]byte, 19)); err == nil {
		t.Fatalf("19-byte payload accepted")
	}
	if _, err := NewAddress(ESTPrefix, make([]byte, 21)); err == nil {
		t.Fatalf("21-byte payload accepted")
	}
}

func TestBytesReturnsCopy(t *testing.T) {
	raw := make([]byte, 20)
	addr := MustNewAddress(ESTPrefix, raw)
	leaked := addr.Bytes()
	leaked[0] = 0xFF
	if addr.Bytes()[0] != 0 {
		t.Fatalf("Bytes leaks internal buffer")
	}
}

func TestDecodeAddressRejectsBadInput(t *testing.T) {
	if _, err := DecodeAddress("not bech32"); err == nil {
		t.Fatalf("garbage accepted")
	}
	if _, err := DecodeAddress(""); err == nil {
		t.Fatalf("empty string accepted")
	}
	// A valid bech32 string with a foreign prefix is rejected.
	foreign := Address{prefix: "btc", bytes: make([]byte, 20)}
	if _, err := DecodeAddress(foreign.String()); err == nil {
		t.Fatalf("foreign prefix accepted")
	}
}
