package modem

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/simcom-go/modem/at"
)

// atResult mirrors gsm::Modem::ATResult. atPending is negative so a
// single sign check distinguishes "still waiting" from any terminal
// value, exactly as the original's `int(atResult) < 0` checks do.
type atResult int8

const (
	atOK atResult = iota
	atError
	atTimeout
	atFailure
	atPending atResult = -1
)

// responseFunc is the one-shot response delegate armed between ATLock
// and command submission (spec.md §4.4). It returns true if it
// recognised and handled the event. line is the full framed line with
// the event identifier still attached, for the rare delegate (model
// detection) that needs to match free text the hash/field split
// cannot discriminate.
type responseFunc func(hash at.EventID, fields at.Fields, line string) bool

// atChannel holds everything spec.md §4.4 calls the "AT command
// channel". Only the scheduler goroutine ever calls lock/arm*/send —
// the single-issuer invariant is enforced structurally by that
// ownership rule rather than by a runtime mutex, per the original's
// single cooperative task model. The RX goroutine calls
// completeMask/fail/pending/responseFor/takeTransmit; those, together
// with lock and wait on the scheduler side, take the mutex.
type atChannel struct {
	mu sync.Mutex

	result  atResult
	require uint8
	complete uint8

	nextTimeout time.Duration
	response    responseFunc

	transmitSock *Socket
	transmitLen  int
	transmitMsg  *Message

	resultCh chan struct{}
}

func newATChannel() *atChannel {
	return &atChannel{result: atOK}
}

// lock resets the channel for a new command, mirroring ATLock's happy
// path. The CommandError short-circuit is handled by the caller,
// Modem.atLock, since it depends on modem-level state this type does
// not own. There is no re-entrancy check: a second lock before the
// command is sent discards any response delegate and transmit binding
// armed after the first.
func (c *atChannel) lock() {
	c.mu.Lock()
	c.result = atPending
	c.require = 1
	c.complete = 0
	c.nextTimeout = 0
	c.response = nil
	c.transmitSock = nil
	c.transmitLen = 0
	c.transmitMsg = nil
	c.resultCh = make(chan struct{})
	c.mu.Unlock()
}

// nextTimeoutOverride sets a one-shot deadline for the command about to
// be sent.
func (c *atChannel) nextTimeoutOverride(d time.Duration) {
	c.nextTimeout = d
}

// nextResponse arms a one-shot response delegate with the given
// require mask (spec.md §4.4, NextATResponse).
func (c *atChannel) nextResponse(fn responseFunc, require uint8) {
	c.response = fn
	c.require = require
}

// nextTransmitSocket binds the next '>' prompt to copy len bytes from
// sock's output queue.
func (c *atChannel) nextTransmitSocket(sock *Socket, length int) {
	c.transmitSock = sock
	c.transmitLen = length
}

// nextTransmitMessage binds the next '>' prompt to send msg's text
// followed by CTRL+Z.
func (c *atChannel) nextTransmitMessage(msg *Message) {
	c.transmitMsg = msg
}

// completeMask marks require-bit mask as satisfied; the command finishes
// once complete&require == require (spec.md §4.4's n-of-m semantics).
func (c *atChannel) completeMask(mask uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result != atPending {
		return
	}
	c.complete |= mask
	if c.complete&c.require == c.require {
		c.result = atOK
		close(c.resultCh)
	}
}

// fail transitions out of Pending with a non-OK result, for ERROR/+CME
// ERROR/+CMS ERROR lines.
func (c *atChannel) fail(r atResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result != atPending {
		return
	}
	c.result = r
	close(c.resultCh)
}

// pending reports whether a command's terminal result is still
// outstanding.
func (c *atChannel) pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result == atPending
}

// responseFor returns the armed response delegate, if any, for the RX
// goroutine to invoke outside the lock.
func (c *atChannel) responseFor() responseFunc {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.response
}

// takeTransmit returns the armed transmit binding and clears its socket
// and message (the length is left as is), for the RX goroutine's '>'
// handling.
func (c *atChannel) takeTransmit() (sock *Socket, length int, msg *Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sock, length, msg = c.transmitSock, c.transmitLen, c.transmitMsg
	c.transmitSock = nil
	c.transmitMsg = nil
	return
}

// wait blocks until the command leaves Pending, bounded by the one-shot
// nextTimeoutOverride value if one was set, otherwise by timeout; a zero
// bound means no deadline. Returns the terminal result.
func (c *atChannel) wait(ctx context.Context, timeout time.Duration) atResult {
	c.mu.Lock()
	if c.nextTimeout > 0 {
		timeout = c.nextTimeout
	}
	c.nextTimeout = 0
	ch := c.resultCh
	c.mu.Unlock()

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case <-ch:
	case <-deadline:
		c.mu.Lock()
		if c.result == atPending {
			c.result = atTimeout
		}
		c.mu.Unlock()
	case <-ctx.Done():
		c.mu.Lock()
		if c.result == atPending {
			c.result = atFailure
		}
		c.mu.Unlock()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// sendLocked writes "AT"+cmd+"\r" to the transport and waits for the
// command to complete. The caller must have already called atChannel.lock
// and armed any NextAT* bindings. It mirrors Modem::AT /
// Modem::ATFormatV (spec.md §4.4).
func (m *Modem) sendLocked(ctx context.Context, cmd string) atResult {
	line := "AT" + cmd + "\r"
	m.config.diagnostic(DiagnosticCommandSend, []byte(line))

	if _, err := io.WriteString(m.tx, line); err != nil {
		m.at.fail(atFailure)
		m.setModemStatus(StatusCommandError)
		return atFailure
	}

	return m.at.wait(ctx, m.config.ATTimeout)
}

// AT issues a literal AT command with no formatting, waiting for its
// terminal result.
func (m *Modem) AT(ctx context.Context, cmd string) atResult {
	if r, bypass := m.atLock(); bypass {
		return r
	}
	return m.sendLocked(ctx, cmd)
}

// ATFormat issues a formatted AT command, waiting for its terminal
// result.
func (m *Modem) ATFormat(ctx context.Context, format string, args ...any) atResult {
	if r, bypass := m.atLock(); bypass {
		return r
	}
	return m.sendLocked(ctx, fmt.Sprintf(format, args...))
}

// atLock implements the ATLock contract: it resets the channel for the
// scheduler goroutine (the sole issuer) unless a prior command already
// poisoned the protocol, in which case it returns atFailure without
// resetting anything (spec.md §4.4, §7).
func (m *Modem) atLock() (result atResult, bypass bool) {
	if m.modemStatus() == StatusCommandError {
		return atFailure, true
	}
	m.at.lock()
	return 0, false
}
