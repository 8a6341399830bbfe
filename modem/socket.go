package modem

import (
	"context"
	"net"
	"strconv"
	"time"
)

// socketFlags mirrors gsm::SocketFlags from the original driver bit for
// bit: App bits are set by the API and cleared by the core, Modem bits
// are set by the core and only observed by the API.
type socketFlags uint16

const (
	flagAppSecure socketFlags = 0x01
	flagAppClose  socketFlags = 0x02
	flagAppRef    socketFlags = 0x04

	flagCheckIncoming socketFlags = 0x10

	flagModemAllocated socketFlags = 0x100
	flagModemConnecting socketFlags = 0x200
	flagModemRef        socketFlags = 0x400
	flagModemConnected  socketFlags = 0x800
	flagModemSending    socketFlags = 0x1000
	flagModemIncoming   socketFlags = 0x2000
	flagModemClosing    socketFlags = 0x4000
	flagModemClosed     socketFlags = 0x8000
)

// Socket is a TCP or TLS connection multiplexed over one of the modem's
// internal channels. A Socket is created with CreateSocket and is only
// ever destroyed by the scheduler's sweep once both the application and
// the modem have released their reference (spec.md §3, §4.3).
type Socket struct {
	owner *Modem

	host string
	port uint16

	flags   socketFlags
	channel int // -1 until allocated

	rx *byteQueue // inbound: modem writes, application reads
	tx *byteQueue // outbound: application writes, modem reads

	closed     chan struct{}
	closedOnce bool

	// vendor-specific bookkeeping carried across +CIPACK recovery
	// (SIM800 only): the host-side count of bytes handed to the
	// modem for the in-flight send, and the cumulative count the
	// modem has confirmed, used to resync after SEND FAIL.
	sendAckPending int
	acked          int
}

func newSocket(owner *Modem, host string, port uint16, tls bool) *Socket {
	flags := flagAppRef
	if tls {
		flags |= flagAppSecure
	}
	return &Socket{
		owner:   owner,
		host:    host,
		port:    port,
		flags:   flags,
		channel: -1,
		rx:      newByteQueue(socketBufferSize),
		tx:      newByteQueue(socketBufferSize),
		closed:  make(chan struct{}),
	}
}

// Derived predicates, ported bit-exact from gsm::Socket (spec.md §4.3).

func (s *Socket) isNew() bool {
	return s.flags&^flagAppSecure == flagAppRef
}

func (s *Socket) needsClose() bool {
	return s.flags&(flagAppClose|flagModemRef|flagModemClosing) == flagAppClose|flagModemRef
}

func (s *Socket) needsConnect() bool {
	mask := flagAppClose | flagAppRef | flagModemAllocated | flagModemRef | flagModemConnecting | flagModemClosing | flagModemClosed
	return s.flags&mask == flagModemAllocated|flagAppRef
}

func (s *Socket) isConnected() bool {
	return s.flags&(flagModemConnected|flagModemClosed) == flagModemConnected
}

func (s *Socket) canSend() bool {
	return s.flags&(flagModemConnected|flagModemSending|flagModemClosing|flagModemClosed) == flagModemConnected
}

func (s *Socket) dataToSend() bool {
	return s.isConnected() && s.canSend() && s.tx.available() > 0
}

func (s *Socket) canReceive() bool {
	mask := flagModemConnected | flagModemIncoming | flagModemClosing | flagModemClosed
	return s.flags&mask == flagModemConnected|flagModemIncoming && s.rx.canAllocate()
}

func (s *Socket) dataToReceive() bool {
	return s.flags&flagModemIncoming != 0
}

func (s *Socket) dataToCheck() bool {
	return s.flags&flagCheckIncoming != 0
}

func (s *Socket) canDelete() bool {
	return s.flags&(flagAppRef|flagModemRef) == 0
}

func (s *Socket) isAllocated() bool {
	return s.flags&flagModemAllocated != 0
}

func (s *Socket) isSending() bool {
	return s.flags&flagModemSending != 0
}

// Mutators. All are only ever called from the scheduler goroutine.

func (s *Socket) allocate(channel int) {
	s.flags |= flagModemAllocated
	s.channel = channel
}

func (s *Socket) bound() {
	s.flags |= flagModemRef
}

func (s *Socket) connected() {
	s.flags = s.flags&^flagModemConnecting | flagModemConnected
}

func (s *Socket) incoming() {
	s.flags |= flagModemIncoming
}

func (s *Socket) maybeIncoming() {
	s.flags |= flagCheckIncoming
}

func (s *Socket) incomingRequested() {
	s.flags &^= flagModemIncoming | flagCheckIncoming
}

func (s *Socket) sending() {
	s.flags |= flagModemSending
}

func (s *Socket) sendingFinished() {
	s.flags &^= flagModemSending
}

// finished runs the disconnect transition shared by Disconnected and
// error paths: both pipes close, and the socket is left observably
// "was connected, now closed" regardless of whether it ever connected
// (spec.md §4.3 Transitions).
func (s *Socket) finished() {
	if !s.closedOnce {
		s.closedOnce = true
		close(s.closed)
	}
	s.tx.close()
	s.rx.close()
	s.flags = s.flags&^(flagModemConnecting|flagModemRef) | flagModemConnected | flagModemClosed
}

// Public API surface.

// IsConnected reports whether the socket is connected and has not since
// been closed.
func (s *Socket) IsConnected() bool { return s.isConnected() }

// IsSecure reports whether this socket requested TLS.
func (s *Socket) IsSecure() bool { return s.flags&flagAppSecure != 0 }

// IsClosed reports whether the modem has finished processing this
// socket; no further I/O will ever complete.
func (s *Socket) IsClosed() bool { return s.flags&flagModemClosed != 0 }

// Write enqueues p for transmission and requests a processing pass. It
// never blocks; back-pressure is applied by the bounded output queue.
func (s *Socket) Write(p []byte) (int, error) {
	n, err := s.tx.write(p)
	s.owner.requestProcessing()
	return n, err
}

// Read consumes bytes the modem has delivered for this socket, blocking
// until at least one byte is available, the socket closes, or ctx is
// done.
func (s *Socket) Read(ctx context.Context, p []byte) (int, error) {
	return s.rx.read(ctx, p)
}

// Connect blocks until the socket reports connected, fails, or timeout
// elapses (a zero timeout waits forever, matching Timeout::Infinite).
func (s *Socket) Connect(ctx context.Context, timeout time.Duration) bool {
	return s.owner.waitFor(ctx, timeout, func() bool {
		return s.isConnected() || s.IsClosed()
	}) && s.isConnected()
}

// Disconnect requests the socket be closed and blocks until the modem
// confirms it, fails, or timeout elapses.
func (s *Socket) Disconnect(ctx context.Context, timeout time.Duration) bool {
	s.flags |= flagAppClose
	s.owner.requestProcessing()
	return s.owner.waitFor(ctx, timeout, s.IsClosed)
}

// Release drops the application's reference. The socket is destroyed
// by the scheduler's sweep once the modem's reference also drops; after
// Release the handle must not be used again (spec.md §9).
func (s *Socket) Release() {
	s.flags &^= flagAppRef
	s.owner.requestProcessing()
}

func (s *Socket) addr() string {
	return net.JoinHostPort(s.host, strconv.Itoa(int(s.port)))
}
