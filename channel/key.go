// Package channel implements password-derived group channel encryption:
// PBKDF2 key derivation, AEAD channel messages, replay-protected
// key-distribution packets, and epoch-based key rotation, per spec §4.H
// and §4.I. Grounded on the teacher's crypto/antireplay.go (nonce cache
// shape) and crypto/rekey.go (epoch/rekey derivation idiom), generalized
// from Noise transport rekeying to password-derived group keys.
package channel

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 210_000
	keyLen           = 32
	messageNonceLen  = 12
	tagLen           = 16
)

// Key is a derived 32-byte symmetric channel key.
type Key [32]byte

// DeriveKey computes the channel's PBKDF2-HMAC-SHA256 key, per §3/§4.H:
// salt = "bitchat-channel-<name>[-<creatorFp>]".
func DeriveKey(password, channelName, creatorFingerprint string) Key {
	salt := "bitchat-channel-" + channelName
	if creatorFingerprint != "" {
		salt += "-" + creatorFingerprint
	}
	derived := pbkdf2.Key([]byte(password), []byte(salt), pbkdf2Iterations, keyLen, sha256.New)
	var k Key
	copy(k[:], derived)
	return k
}

// EncryptMessage seals text under key, returning nonce(12) ‖ ciphertext ‖
// tag(16), per §4.H.
func EncryptMessage(text string, key Key) ([]byte, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, &Error{Kind: KindInvalidCiphertext, Msg: "build aead", Err: err}
	}
	nonce := make([]byte, messageNonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, &Error{Kind: KindInvalidCiphertext, Msg: "random nonce", Err: err}
	}
	ct := aead.Seal(nil, nonce, []byte(text), nil)
	out := make([]byte, 0, len(nonce)+len(ct))
	out = append(out, nonce...)
	out = append(out, ct...)
	return out, nil
}

// DecryptMessage reverses EncryptMessage, validating the 28-byte minimum
// length (12-byte nonce + 16-byte tag, even for empty plaintext).
func DecryptMessage(buf []byte, key Key) (string, error) {
	if len(buf) < messageNonceLen+tagLen {
		return "", &Error{Kind: KindInvalidCiphertext, Msg: "buffer shorter than nonce+tag"}
	}
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return "", &Error{Kind: KindInvalidCiphertext, Msg: "build aead", Err: err}
	}
	nonce := buf[:messageNonceLen]
	ct := buf[messageNonceLen:]
	pt, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", &Error{Kind: KindDecryptionFailed, Msg: "aead open", Err: err}
	}
	return string(pt), nil
}

// Commitment returns hex(SHA-256(key)), used to publish an epoch key's
// identity without revealing it.
func Commitment(key Key) string {
	sum := sha256.Sum256(key[:])
	return hex.EncodeToString(sum[:])
}

// KeyPacket is the self-describing record carried to distribute a
// channel password to a newly joining peer, per §3's ChannelKeyPacket.
type KeyPacket struct {
	Channel   string
	Password  string
	Timestamp int64 // unix seconds
	Nonce     string // base64, 16 random bytes
}

// CreateKeyPacket builds a fresh KeyPacket for channel/password, stamped
// at nowUnix with a random 16-byte nonce.
func CreateKeyPacket(password, channelName string, nowUnix int64) (*KeyPacket, error) {
	nonceBytes := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, nonceBytes); err != nil {
		return nil, &Error{Kind: KindInvalidCiphertext, Msg: "random nonce", Err: err}
	}
	return &KeyPacket{
		Channel:   channelName,
		Password:  password,
		Timestamp: nowUnix,
		Nonce:     base64.StdEncoding.EncodeToString(nonceBytes),
	}, nil
}

// Error is this package's typed sentinel error.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("channel: %s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("channel: %s: %s", e.Kind, e.Msg)
}
func (e *Error) Unwrap() error { return e.Err }
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Kind == t.Kind
}

// ErrorKind enumerates the §7 "Channel" error taxonomy.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindNoChannelKey
	KindInvalidCiphertext
	KindDecryptionFailed
	KindReplayDetected
)

func (k ErrorKind) String() string {
	switch k {
	case KindNoChannelKey:
		return "NoChannelKey"
	case KindInvalidCiphertext:
		return "InvalidCiphertext"
	case KindDecryptionFailed:
		return "DecryptionFailed"
	case KindReplayDetected:
		return "ReplayAttackDetected"
	default:
		return "Unknown"
	}
}

var (
	ErrNoChannelKey    = &Error{Kind: KindNoChannelKey}
	ErrReplayDetected  = &Error{Kind: KindReplayDetected}
	ErrDecryptionFailed = &Error{Kind: KindDecryptionFailed}
)
