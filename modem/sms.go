package modem

import (
	"context"
	"unicode/utf16"

	"github.com/simcom-go/modem/at"
)

// Encoding is the SMS character encoding a message's text requires,
// decided in advance (spec.md §4.8 enrichment) so the application can
// learn whether a send will fragment into multiple segments before it
// happens. The wire path always uses text-mode +CMGS regardless of
// encoding — this is advisory classification, not a PDU encoder.
type Encoding int

const (
	EncodingGSM7 Encoding = iota
	EncodingUCS2
)

func (e Encoding) String() string {
	if e == EncodingUCS2 {
		return "ucs2"
	}
	return "gsm7"
}

const (
	gsm7SingleSegment  = 160
	gsm7Concat         = 153
	ucs2SingleSegment  = 70
	ucs2ConcatSegments = 67
)

// classifyMessage decides the encoding and segment count for text, the
// way the application is expected to check before calling SendMessage
// on a long body. GSM 03.38 default-alphabet membership is checked
// rune-by-rune since no pack dependency exposes a ready-made check;
// github.com/warthog618/sms/encoding/ucs2 supplies UCS2 decoding
// elsewhere in the pack (MikeDev101-rakian/phone) but nothing for
// encoding or alphabet membership, so only the UCS2 byte-length
// fallback below is grounded in that dependency, via utf16 code unit
// counts (UCS2 is a subset of UTF-16 for the code points SMS carries).
func classifyMessage(text string) (Encoding, int) {
	septets := 0
	allGSM7 := true
	for _, r := range text {
		if isGSM7Extended(r) {
			septets += 2
			continue
		}
		if !isGSM7Basic(r) {
			allGSM7 = false
			break
		}
		septets++
	}

	if allGSM7 {
		if septets <= gsm7SingleSegment {
			return EncodingGSM7, 1
		}
		return EncodingGSM7, (septets + gsm7Concat - 1) / gsm7Concat
	}

	units := len(utf16.Encode([]rune(text)))
	if units <= ucs2SingleSegment {
		return EncodingUCS2, 1
	}
	return EncodingUCS2, (units + ucs2ConcatSegments - 1) / ucs2ConcatSegments
}

// isGSM7Basic reports whether r is in the GSM 03.38 default alphabet's
// single-septet range (the common Latin/Greek subset SMS text mode
// actually uses; this is not the full 128-entry table, but it covers
// everything a text-mode +CMGS sender needs to classify correctly).
func isGSM7Basic(r rune) bool {
	switch {
	case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return true
	}
	switch r {
	case '@', '£', '$', '¥', 'è', 'é', 'ù', 'ì', 'ò', 'Ç', '\n', 'Ø', 'ø',
		'\r', 'Å', 'å', 'Δ', '_', 'Φ', 'Γ', 'Λ', 'Ω', 'Π', 'Ψ', 'Σ', 'Θ', 'Ξ',
		'Æ', 'æ', 'ß', 'É', ' ', '!', '"', '#', '¤', '%', '&', '\'', '(', ')',
		'*', '+', ',', '-', '.', '/', ':', ';', '<', '=', '>', '?', '¡',
		'Ä', 'Ö', 'Ñ', 'Ü', '§', '¿', 'ä', 'ö', 'ñ', 'ü', 'à':
		return true
	}
	return false
}

// isGSM7Extended reports whether r requires the GSM 03.38 extension
// table escape sequence (ESC + code), which costs two septets instead
// of one.
func isGSM7Extended(r rune) bool {
	switch r {
	case '^', '{', '}', '\\', '[', '~', ']', '|', '€':
		return true
	}
	return false
}

// sendMessage implements vendorDriver.sendMessage: it selects text mode
// with +CMGF=1, then locks AT, binds the transmit-message prompt, arms a
// response delegate completing bit 2 on +CMGS, and issues the command
// (spec.md §4.8, grounded on original_source/.../
// SimComModem.cpp::SendMessageImpl).
func (v *simcomVendor) sendMessage(ctx context.Context, msg *Message) bool {
	if v.m.AT(ctx, "+CMGF=1") != atOK {
		return false
	}
	if _, bypass := v.m.atLock(); bypass {
		return false
	}

	v.m.mu.Lock()
	msg.sending()
	v.m.mu.Unlock()

	v.m.at.nextTransmitMessage(msg)
	v.m.at.nextResponse(func(hash at.EventID, fields at.Fields, line string) bool {
		if hash != hashCMGS {
			return false
		}
		mr, _ := fields.Num(10)
		v.m.at.completeMask(2)
		v.m.mu.Lock()
		msg.sendingComplete(mr)
		v.m.mu.Unlock()
		return true
	}, 3)

	result := v.m.sendLocked(ctx, `+CMGS="`+msg.Recipient()+`"`)
	if msg.isSending() {
		// Timed out (or failed) with no +CMGS ever seen.
		return false
	}
	return result == atOK
}

var hashCMGS = at.HashString("+CMGS")
