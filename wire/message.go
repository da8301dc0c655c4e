package wire

import "encoding/binary"

const (
	flagIsRelay              = 0x01
	flagIsPrivate            = 0x02
	flagHasOriginalSender    = 0x04
	flagHasRecipientNickname = 0x08
	flagHasSenderPeerID      = 0x10
	flagHasMentions          = 0x20
	flagHasChannel           = 0x40
	flagIsEncrypted          = 0x80
)

// Message is the inner BitchatMessage wire record, per §4.M.
type Message struct {
	IsRelay     bool
	IsPrivate   bool
	IsEncrypted bool

	TimestampMillis uint64
	ID              string
	Sender          string
	// Content holds UTF-8 text, or raw ciphertext when IsEncrypted.
	Content []byte

	OriginalSender    string
	HasOriginalSender bool

	RecipientNickname    string
	HasRecipientNickname bool

	SenderPeerID    string
	HasSenderPeerID bool

	Mentions    []string
	HasMentions bool

	Channel    string
	HasChannel bool
}

// EncodeMessage serialises m per §4.M. Length-prefixed UTF-8 fields are
// silently truncated to fit their prefix width on encode, per §4.M's
// saturation rule.
func EncodeMessage(m *Message) ([]byte, error) {
	flags := uint8(0)
	if m.IsRelay {
		flags |= flagIsRelay
	}
	if m.IsPrivate {
		flags |= flagIsPrivate
	}
	if m.HasOriginalSender {
		flags |= flagHasOriginalSender
	}
	if m.HasRecipientNickname {
		flags |= flagHasRecipientNickname
	}
	if m.HasSenderPeerID {
		flags |= flagHasSenderPeerID
	}
	if m.HasMentions {
		flags |= flagHasMentions
	}
	if m.HasChannel {
		flags |= flagHasChannel
	}
	if m.IsEncrypted {
		flags |= flagIsEncrypted
	}

	id := truncateString(m.ID, 255)
	sender := truncateString(m.Sender, 255)
	content := m.Content
	if len(content) > 65535 {
		content = content[:65535]
	}

	buf := make([]byte, 0, 32+len(id)+len(sender)+len(content))
	buf = append(buf, flags)
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], m.TimestampMillis)
	buf = append(buf, ts[:]...)
	buf = append(buf, byte(len(id)))
	buf = append(buf, id...)
	buf = append(buf, byte(len(sender)))
	buf = append(buf, sender...)
	var cl [2]byte
	binary.BigEndian.PutUint16(cl[:], uint16(len(content)))
	buf = append(buf, cl[:]...)
	buf = append(buf, content...)

	if m.HasOriginalSender {
		s := truncateString(m.OriginalSender, 255)
		buf = append(buf, byte(len(s)))
		buf = append(buf, s...)
	}
	if m.HasRecipientNickname {
		s := truncateString(m.RecipientNickname, 255)
		buf = append(buf, byte(len(s)))
		buf = append(buf, s...)
	}
	if m.HasSenderPeerID {
		s := truncateString(m.SenderPeerID, 255)
		buf = append(buf, byte(len(s)))
		buf = append(buf, s...)
	}
	if m.HasMentions {
		mentions := m.Mentions
		if len(mentions) > 255 {
			mentions = mentions[:255]
		}
		buf = append(buf, byte(len(mentions)))
		for _, mention := range mentions {
			s := truncateString(mention, 255)
			buf = append(buf, byte(len(s)))
			buf = append(buf, s...)
		}
	}
	if m.HasChannel {
		s := truncateString(m.Channel, 255)
		buf = append(buf, byte(len(s)))
		buf = append(buf, s...)
	}

	return buf, nil
}

// DecodeMessage parses buf per §4.M. Any length prefix pointing past the
// remaining buffer is a decode failure, per §4.M's saturation rule.
func DecodeMessage(buf []byte) (*Message, error) {
	if len(buf) < 1+8+1+1+2 {
		return nil, &Error{Kind: KindTruncated, Msg: "buffer shorter than fixed message header"}
	}
	m := &Message{}
	off := 0
	flags := buf[off]
	off++
	m.IsRelay = flags&flagIsRelay != 0
	m.IsPrivate = flags&flagIsPrivate != 0
	m.HasOriginalSender = flags&flagHasOriginalSender != 0
	m.HasRecipientNickname = flags&flagHasRecipientNickname != 0
	m.HasSenderPeerID = flags&flagHasSenderPeerID != 0
	m.HasMentions = flags&flagHasMentions != 0
	m.HasChannel = flags&flagHasChannel != 0
	m.IsEncrypted = flags&flagIsEncrypted != 0

	m.TimestampMillis = binary.BigEndian.Uint64(buf[off : off+8])
	off += 8

	idLen := int(buf[off])
	off++
	if off+idLen > len(buf) {
		return nil, &Error{Kind: KindTruncated, Msg: "id length exceeds buffer"}
	}
	m.ID = string(buf[off : off+idLen])
	off += idLen

	if off+1 > len(buf) {
		return nil, &Error{Kind: KindTruncated, Msg: "buffer too short for sender length"}
	}
	senderLen := int(buf[off])
	off++
	if off+senderLen > len(buf) {
		return nil, &Error{Kind: KindTruncated, Msg: "sender length exceeds buffer"}
	}
	m.Sender = string(buf[off : off+senderLen])
	off += senderLen

	if off+2 > len(buf) {
		return nil, &Error{Kind: KindTruncated, Msg: "buffer too short for content length"}
	}
	contentLen := int(binary.BigEndian.Uint16(buf[off : off+2]))
	off += 2
	if off+contentLen > len(buf) {
		return nil, &Error{Kind: KindTruncated, Msg: "content length exceeds buffer"}
	}
	m.Content = append([]byte(nil), buf[off:off+contentLen]...)
	off += contentLen

	var err error
	if m.HasOriginalSender {
		m.OriginalSender, off, err = readPrefixedString(buf, off)
		if err != nil {
			return nil, err
		}
	}
	if m.HasRecipientNickname {
		m.RecipientNickname, off, err = readPrefixedString(buf, off)
		if err != nil {
			return nil, err
		}
	}
	if m.HasSenderPeerID {
		m.SenderPeerID, off, err = readPrefixedString(buf, off)
		if err != nil {
			return nil, err
		}
	}
	if m.HasMentions {
		if off+1 > len(buf) {
			return nil, &Error{Kind: KindTruncated, Msg: "buffer too short for mentions count"}
		}
		count := int(buf[off])
		off++
		mentions := make([]string, 0, count)
		for i := 0; i < count; i++ {
			var s string
			s, off, err = readPrefixedString(buf, off)
			if err != nil {
				return nil, err
			}
			mentions = append(mentions, s)
		}
		m.Mentions = mentions
	}
	if m.HasChannel {
		m.Channel, off, err = readPrefixedString(buf, off)
		if err != nil {
			return nil, err
		}
	}

	return m, nil
}

func readPrefixedString(buf []byte, off int) (string, int, error) {
	if off+1 > len(buf) {
		return "", off, &Error{Kind: KindTruncated, Msg: "buffer too short for length prefix"}
	}
	n := int(buf[off])
	off++
	if off+n > len(buf) {
		return "", off, &Error{Kind: KindTruncated, Msg: "length prefix exceeds remaining buffer"}
	}
	return string(buf[off : off+n]), off + n, nil
}

func truncateString(s string, max int) string {
	b := []byte(s)
	if len(b) <= max {
		return s
	}
	return string(b[:max])
}
