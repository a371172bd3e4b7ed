package frame

import (
	"fmt"
	"strconv"
	"strings"

	qerrors "github.com/sara-star-quant/quantum-call/internal/errors"
)

// HeaderRule computes how many leading bytes of an encoded frame must stay
// in the clear so the media stack can still route and depacketize it.
//
// There is no length prefix on the wire: both peers compute the header
// length from the header's own bits, so they must use the same rule for a
// track.
type HeaderRule interface {
	// HeaderLen returns the header length for frame, or ErrFrameTooShort if
	// frame ends inside the header.
	HeaderLen(frame []byte) (int, error)

	// Name identifies the rule in configuration and logs.
	Name() string
}

// Rule names accepted by ParseHeaderRule.
const (
	RuleVP8Descriptor = "vp8-descriptor"
	RuleVP8Payload    = "vp8-payload"
	RuleOpusTOC       = "opus"
	RuleNone          = "none"
	ruleFixedPrefix   = "fixed:"
)

func tooShort() error {
	return qerrors.ErrFrameTooShort
}

// --- VP8 payload descriptor (RFC 7741 §4.2) ---

// VP8 payload descriptor bits.
const (
	vp8X = 0x80 // extended control bits present
	vp8I = 0x80 // PictureID present
	vp8L = 0x40 // TL0PICIDX present
	vp8T = 0x20 // TID present
	vp8K = 0x10 // KEYIDX present
	vp8M = 0x80 // 15-bit PictureID
)

// VP8Descriptor keeps the RTP VP8 payload descriptor in the clear.
//
//	 0 1 2 3 4 5 6 7
//	+-+-+-+-+-+-+-+-+
//	|X|R|N|S|R| PID |  required
//	+-+-+-+-+-+-+-+-+
//	|I|L|T|K| RSV   |  if X
//	+-+-+-+-+-+-+-+-+
//	|M| PictureID   |  if I (second byte if M)
//	+-+-+-+-+-+-+-+-+
//	|   TL0PICIDX   |  if L
//	+-+-+-+-+-+-+-+-+
//	|TID|Y| KEYIDX  |  if T or K
//	+-+-+-+-+-+-+-+-+
type VP8Descriptor struct{}

// HeaderLen implements HeaderRule.
func (VP8Descriptor) HeaderLen(frame []byte) (int, error) {
	if len(frame) < 1 {
		return 0, tooShort()
	}
	n := 1
	if frame[0]&vp8X == 0 {
		return n, nil
	}

	if len(frame) < 2 {
		return 0, tooShort()
	}
	ext := frame[1]
	n = 2

	if ext&vp8I != 0 {
		if len(frame) <= n {
			return 0, tooShort()
		}
		if frame[n]&vp8M != 0 {
			n += 2
		} else {
			n++
		}
	}
	if ext&vp8L != 0 {
		n++
	}
	if ext&(vp8T|vp8K) != 0 {
		n++
	}

	if len(frame) < n {
		return 0, tooShort()
	}
	return n, nil
}

// Name implements HeaderRule.
func (VP8Descriptor) Name() string { return RuleVP8Descriptor }

// --- VP8 payload header (RFC 6386 §9.1) ---

// VP8Payload keeps the VP8 frame tag in the clear: 10 bytes on key frames
// (tag, start code, dimensions), 3 bytes on interframes. The P bit is the
// low bit of the first byte, 0 for key frames.
type VP8Payload struct{}

const (
	vp8KeyFrameHeader   = 10
	vp8DeltaFrameHeader = 3
)

// HeaderLen implements HeaderRule.
func (VP8Payload) HeaderLen(frame []byte) (int, error) {
	if len(frame) < 1 {
		return 0, tooShort()
	}
	n := vp8DeltaFrameHeader
	if frame[0]&0x01 == 0 {
		n = vp8KeyFrameHeader
	}
	if len(frame) < n {
		return 0, tooShort()
	}
	return n, nil
}

// Name implements HeaderRule.
func (VP8Payload) Name() string { return RuleVP8Payload }

// --- Fixed-length rules ---

type fixedRule struct {
	n    int
	name string
}

// Fixed returns a rule with a constant header length.
func Fixed(n int) HeaderRule {
	if n < 0 {
		n = 0
	}
	return fixedRule{n: n, name: ruleFixedPrefix + strconv.Itoa(n)}
}

// OpusTOC keeps the one-byte Opus table-of-contents in the clear.
var OpusTOC HeaderRule = fixedRule{n: 1, name: RuleOpusTOC}

// None encrypts the whole frame.
var None HeaderRule = fixedRule{n: 0, name: RuleNone}

func (r fixedRule) HeaderLen(frame []byte) (int, error) {
	if len(frame) < r.n {
		return 0, tooShort()
	}
	return r.n, nil
}

func (r fixedRule) Name() string { return r.name }

// ParseHeaderRule returns the rule for a configuration name:
// "vp8-descriptor", "vp8-payload", "opus", "none" or "fixed:N".
func ParseHeaderRule(name string) (HeaderRule, error) {
	switch s := strings.ToLower(strings.TrimSpace(name)); {
	case s == RuleVP8Descriptor:
		return VP8Descriptor{}, nil
	case s == RuleVP8Payload:
		return VP8Payload{}, nil
	case s == RuleOpusTOC:
		return OpusTOC, nil
	case s == RuleNone || s == "":
		return None, nil
	case strings.HasPrefix(s, ruleFixedPrefix):
		n, err := strconv.Atoi(strings.TrimPrefix(s, ruleFixedPrefix))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("frame: invalid fixed header length %q", name)
		}
		return Fixed(n), nil
	default:
		return nil, fmt.Errorf("frame: unknown header rule %q", name)
	}
}
