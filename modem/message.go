package modem

import (
	"context"
	"time"
)

type messageFlags uint8

const (
	msgFlagAppRef          messageFlags = 0x01
	msgFlagModemWillSend   messageFlags = 0x10
	msgFlagModemSending    messageFlags = 0x20
	msgFlagModemSendFailed messageFlags = 0x80
)

// Message is a single outgoing SMS. Its lifecycle parallels Socket's but
// is simpler: send once, then the application releases it (spec.md §3,
// §4.8).
type Message struct {
	owner *Modem

	recipient string
	text      string
	encoding  Encoding
	parts     int

	flags messageFlags
	mr    int // message reference, -1 until assigned

	done chan struct{}
}

func newMessage(owner *Modem, recipient, text string) *Message {
	encoding, parts := classifyMessage(text)
	return &Message{
		owner:     owner,
		recipient: recipient,
		text:      text,
		encoding:  encoding,
		parts:     parts,
		flags:     msgFlagAppRef | msgFlagModemWillSend,
		mr:        -1,
		done:      make(chan struct{}),
	}
}

func (m *Message) shouldSend() bool { return m.flags&msgFlagModemWillSend != 0 }
func (m *Message) isSending() bool  { return m.flags&msgFlagModemSending != 0 }

func (m *Message) canDelete() bool {
	return m.flags&(msgFlagAppRef|msgFlagModemWillSend) == 0
}

func (m *Message) sending() {
	m.flags |= msgFlagModemSending
}

func (m *Message) sendingComplete(mr int) {
	m.mr = mr
	m.flags &^= msgFlagModemWillSend | msgFlagModemSending
	m.signalDone()
}

func (m *Message) sendingFailed() {
	m.flags = m.flags&^(msgFlagModemWillSend|msgFlagModemSending) | msgFlagModemSendFailed
	m.signalDone()
}

func (m *Message) signalDone() {
	select {
	case <-m.done:
	default:
		close(m.done)
	}
}

// Recipient returns the destination address this message was created
// with.
func (m *Message) Recipient() string { return m.recipient }

// Text returns the message body.
func (m *Message) Text() string { return m.text }

// MessageReference returns the modem-assigned reference number, or -1
// if the message has not yet completed sending.
func (m *Message) MessageReference() int { return m.mr }

// Parts reports the encoding this message's text requires and how
// many concatenated SMS segments it will take, decided once at
// construction time.
func (m *Message) Parts() (Encoding, int) { return m.encoding, m.parts }

// SendFailed reports whether the send attempt failed.
func (m *Message) SendFailed() bool { return m.flags&msgFlagModemSendFailed != 0 }

// Sent reports whether the modem has finished processing this message,
// successfully or not.
func (m *Message) Sent() bool {
	return m.flags&(msgFlagModemWillSend|msgFlagModemSending) == 0
}

// WaitUntilProcessed blocks until the message has been sent or has
// failed, or until timeout elapses (zero waits forever).
func (m *Message) WaitUntilProcessed(ctx context.Context, timeout time.Duration) bool {
	if m.Sent() {
		return true
	}
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}
	select {
	case <-m.done:
		return true
	case <-deadline:
		return false
	case <-ctx.Done():
		return false
	}
}

// Release drops the application's reference so the scheduler's sweep
// may destroy the message once sending has completed.
func (m *Message) Release() {
	m.flags &^= msgFlagAppRef
	m.owner.requestProcessing()
}
