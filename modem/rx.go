package modem

import (
	"context"
	"io"
	"strings"

	"github.com/simcom-go/modem/at"
)

// runRx is the single reader goroutine for one power-on session. It is
// the only goroutine that ever reads from transport, so it owns three
// disjoint jobs with no locking between them: draining an armed binary
// receive segment, recognising the '>' transmit prompt, and framing
// and dispatching ordinary lines.
func (m *Modem) runRx(ctx context.Context, transport io.Reader) {
	r := newLineReader(transport)

	for ctx.Err() == nil {
		if m.rxLen > 0 {
			if !m.drainBinarySegment(r) {
				return
			}
			continue
		}

		b, err := r.Peek(1)
		if err != nil {
			return
		}

		switch b[0] {
		case '>':
			r.Discard(1)
			m.handlePrompt()

		case '\r', '\n', ' ':
			r.Discard(1)

		default:
			line, err := r.ReadString('\r')
			if err != nil {
				return
			}
			m.handleLine(strings.TrimSuffix(line, "\r"))
		}
	}
}

func (m *Modem) drainBinarySegment(r io.Reader) bool {
	buf := make([]byte, m.rxLen)
	n, err := io.ReadFull(r, buf)
	sock := m.rxSock
	m.rxSock = nil
	m.rxLen = 0
	if err != nil {
		return false
	}
	if sock != nil {
		sock.rx.write(buf[:n])
		m.requestProcessing()
	}
	return true
}

// handlePrompt answers a '>' data-entry prompt by writing whichever
// transmit binding nextTransmitSocket or nextTransmitMessage armed
// before sending the command that
// triggered it: a fixed-length slice of a socket's outbound queue, or
// a message body terminated with CTRL+Z.
func (m *Modem) handlePrompt() {
	sock, length, msg := m.at.takeTransmit()

	switch {
	case sock != nil:
		buf := make([]byte, length)
		n := sock.tx.drain(buf)
		m.tx.Write(buf[:n])
		sock.sendAckPending = n

	case msg != nil:
		io.WriteString(m.tx, msg.Text())
		io.WriteString(m.tx, at.CtrlZ)

	default:
		m.log.Warn("unexpected data prompt")
	}
}

// handleLine dispatches one framed line (without its trailing \r): a
// terminal result for the in-flight AT command, or an event routed
// through the vendor overlay and, failing that, the command's armed
// response delegate.
func (m *Modem) handleLine(line string) {
	if line == "" {
		return
	}
	m.config.diagnostic(DiagnosticCommandReceive, []byte(line))

	hash, rest := at.Hash([]byte(line))
	fields := at.Fields(rest)

	switch at.ClassifyHash(hash) {
	case at.TypeFinal:
		if !m.at.pending() {
			m.log.Warn("unexpected final response", "line", line)
			return
		}
		if hash == at.HashOK {
			m.at.completeMask(1)
		} else {
			m.config.diagnostic(DiagnosticCommandError, []byte(line))
			m.at.fail(atError)
		}

	case at.TypeEvent:
		if m.vendor.onEvent(hash, fields, line) {
			return
		}
		if !m.at.pending() {
			m.log.Warn("unexpected event", "line", line)
			return
		}
		resp := m.at.responseFor()
		if resp == nil || !resp(hash, fields, line) {
			m.log.Warn("unrecognised response for pending command", "line", line)
		}
	}
}
