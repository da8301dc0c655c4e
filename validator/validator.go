// Package validator implements the §4.K input-validation leaf: peer ID
// and channel name shape checks, message/handshake size caps, and
// Curve25519 public-key validation (delegated to crypto.ValidatePublicKey,
// the only upstream dependency this leaf package has, per §2's stated
// dependency direction "J, K are leaves").
package validator

import (
	"fmt"
	"strings"

	"github.com/zeugmaster/bitchat-sub002/crypto"
)

const (
	MaxMessageSize         = 65535
	MaxHandshakeMessageSize = 2048

	minPeerIDLen    = 1
	maxPeerIDLen    = 64
	minChannelLen   = 2
	maxChannelLen   = 32
)

// ErrorKind enumerates the §7 "Security caps" validation failures this
// package produces.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindInvalidPeerID
	KindInvalidChannelName
	KindMessageTooLarge
	KindInvalidPublicKey
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidPeerID:
		return "InvalidPeerID"
	case KindInvalidChannelName:
		return "InvalidChannelName"
	case KindMessageTooLarge:
		return "MessageTooLarge"
	case KindInvalidPublicKey:
		return "InvalidPublicKey"
	default:
		return "Unknown"
	}
}

// Error is this package's typed sentinel error.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string { return fmt.Sprintf("validator: %s: %s", e.Kind, e.Msg) }
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Kind == t.Kind
}

func isIDChar(r rune) bool {
	return (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-'
}

// ValidatePeerID checks length 1-64 and charset [A-Za-z0-9_-].
func ValidatePeerID(id string) error {
	if len(id) < minPeerIDLen || len(id) > maxPeerIDLen {
		return &Error{Kind: KindInvalidPeerID, Msg: "length out of [1,64] range"}
	}
	for _, r := range id {
		if !isIDChar(r) {
			return &Error{Kind: KindInvalidPeerID, Msg: "invalid character"}
		}
	}
	return nil
}

// ValidateChannelName checks the leading '#', length 2-32 (including the
// '#'), and body charset [A-Za-z0-9_-].
func ValidateChannelName(name string) error {
	if !strings.HasPrefix(name, "#") {
		return &Error{Kind: KindInvalidChannelName, Msg: "must start with '#'"}
	}
	if len(name) < minChannelLen || len(name) > maxChannelLen {
		return &Error{Kind: KindInvalidChannelName, Msg: "length out of [2,32] range"}
	}
	for _, r := range name[1:] {
		if !isIDChar(r) {
			return &Error{Kind: KindInvalidChannelName, Msg: "invalid character in channel name"}
		}
	}
	return nil
}

// ValidateMessageSize rejects message payloads over 65535 bytes.
func ValidateMessageSize(size int) error {
	if size > MaxMessageSize {
		return &Error{Kind: KindMessageTooLarge, Msg: "message exceeds 65535 bytes"}
	}
	return nil
}

// ValidateHandshakeMessageSize rejects handshake messages over 2048 bytes.
func ValidateHandshakeMessageSize(size int) error {
	if size > MaxHandshakeMessageSize {
		return &Error{Kind: KindMessageTooLarge, Msg: "handshake message exceeds 2048 bytes"}
	}
	return nil
}

// ValidatePublicKey delegates to crypto.ValidatePublicKey, surfacing any
// failure (length, all-zero, low-order point) as InvalidPublicKey.
func ValidatePublicKey(pub []byte) error {
	if err := crypto.ValidatePublicKey(pub); err != nil {
		return &Error{Kind: KindInvalidPublicKey, Msg: err.Error()}
	}
	return nil
}
