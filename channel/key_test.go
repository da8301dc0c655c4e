package channel

import "testing"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := DeriveKey("correct horse battery staple", "#general", "")
	ct, err := EncryptMessage("hello, channel", key)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if len(ct) < messageNonceLen+tagLen {
		t.Fatalf("ciphertext too short: %d", len(ct))
	}
	pt, err := DecryptMessage(ct, key)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if pt != "hello, channel" {
		t.Fatalf("got %q want %q", pt, "hello, channel")
	}
}

func TestDecryptRejectsShortBuffer(t *testing.T) {
	key := DeriveKey("pw", "#c", "")
	if _, err := DecryptMessage(make([]byte, 10), key); err == nil {
		t.Fatal("expected error for short buffer")
	}
}

func TestDeriveKeyIsDeterministicAndSaltsByChannel(t *testing.T) {
	k1 := DeriveKey("pw", "#a", "")
	k2 := DeriveKey("pw", "#a", "")
	if k1 != k2 {
		t.Fatal("same inputs should derive the same key")
	}
	k3 := DeriveKey("pw", "#b", "")
	if k1 == k3 {
		t.Fatal("different channel names must derive different keys")
	}
}
