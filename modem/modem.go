// Package modem drives SimCom-family cellular modems (SIM800 2G and
// SIM7600 4G) over an AT command serial link. It exposes TCP/TLS
// sockets, SMS sending, network status and coarse cell-based location
// to application code while hiding the modem's power-up choreography
// and the asynchronous unsolicited result codes interleaved with
// command responses.
package modem

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status is the aggregate health of the modem runtime.
type Status int

const (
	StatusOk Status = iota
	StatusPowerOnFailure
	StatusAutoBaudFailure
	StatusCommandError
)

func (s Status) String() string {
	switch s {
	case StatusOk:
		return "ok"
	case StatusPowerOnFailure:
		return "power-on-failure"
	case StatusAutoBaudFailure:
		return "autobaud-failure"
	case StatusCommandError:
		return "command-error"
	default:
		return "unknown"
	}
}

// GsmStatus is the voice/data registration health.
type GsmStatus int

const (
	GsmOk GsmStatus = iota
	GsmNoNetwork
	GsmRoaming
	GsmSearching
)

// SimStatus reports SIM unlock outcome.
type SimStatus int

const (
	SimOk SimStatus = iota
	SimNotInserted
	SimLocked
	SimBadPin
)

// TcpStatus reports bearer/session health.
type TcpStatus int

const (
	TcpOk TcpStatus = iota
	TcpGprsError
	TcpTlsError
	TcpConnectionError
)

// Registration is the 3GPP registration state carried by +CREG/+CGREG.
type Registration int

const (
	RegNone Registration = iota
	RegHome
	RegSearching
	RegDenied
	RegUnknown
	RegRoaming
)

// NetworkInfo carries the carrier identity parsed from +CPSI.
type NetworkInfo struct {
	Mcc       int
	Mnc       int
	MncDigits int
}

// Location is a coarse cell-based fix taken from the +CLBS response.
// Each value is the decimal text with its decimal point dropped, so its
// scale depends on how many fractional digits the modem sent.
type Location struct {
	Lat int
	Lon int
}

type regState struct {
	status Registration
	active bool
	lac    int
	ci     int
}

// Modem is a single long-lived driver instance for one physical
// module. Construct it with New, then call CreateSocket/SendMessage
// (which start the lifecycle lazily) or Run directly to drive it on
// the caller's goroutine until no queued work remains.
type Modem struct {
	config Config
	dialer Dialer
	log    *slog.Logger
	vendor vendorDriver

	transport Transport
	tx        io.Writer

	at atChannel

	mu           sync.Mutex
	status       Status
	gsm          GsmStatus
	sim          SimStatus
	simPinStatus string // raw +CPIN status text, set by onEvent ("READY", "SIM PIN", "SIM PUK", ...)
	tcp          TcpStatus
	net          regState
	gprs         regState
	netInfo      NetworkInfo
	rssi         int

	sockets  []*Socket
	messages []*Message

	process       chan struct{}
	active        bool
	disconnecting bool
	poweredOn     bool

	requireLocation bool
	location        Location

	// rxSock/rxLen are the in-flight binary receive binding. They are
	// touched only by the RX goroutine, never by the scheduler.
	rxSock *Socket
	rxLen  int
}

// New constructs a Modem from cfg, which must at minimum carry a
// Dialer.
func New(cfg *Config, log *slog.Logger) (*Modem, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	c := *cfg
	c.setDefaults()

	if log == nil {
		log = slog.Default()
	}

	m := &Modem{
		config:  c,
		dialer:  c.Dialer,
		log:     log,
		process: make(chan struct{}, 1),
	}
	m.at = atChannel{result: atOK}
	m.vendor = newSimcomVendor(m)
	return m, nil
}

func (m *Modem) modemStatus() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Modem) setModemStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
}

// Status returns the current aggregate health.
func (m *Modem) Status() Status { return m.modemStatus() }

func (m *Modem) GsmStatus() GsmStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gsm
}

func (m *Modem) SimStatus() SimStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sim
}

func (m *Modem) TcpStatus() TcpStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tcp
}

func (m *Modem) NetworkInfo() NetworkInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.netInfo
}

func (m *Modem) Rssi() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rssi
}

// Location returns the last coarse cell-based fix obtained via
// RequestLocation, or the zero value if none has completed.
func (m *Modem) Location() Location {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.location
}

// RequestLocation arms the location dance to run at the end of the
// current network session, just before it disconnects.
func (m *Modem) RequestLocation() {
	m.mu.Lock()
	m.requireLocation = true
	m.mu.Unlock()
}

func (m *Modem) requestProcessing() {
	select {
	case m.process <- struct{}{}:
	default:
	}
}

// waitFor blocks, polling cond every 20ms, until cond reports true,
// ctx is done, or timeout elapses (zero waits forever). Every wake
// re-validates state against cond rather than trusting the signal
// that caused the wake, since more than one condition can share a
// wakeup channel.
func (m *Modem) waitFor(ctx context.Context, timeout time.Duration, cond func() bool) bool {
	if cond() {
		return true
	}
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if cond() {
				return true
			}
		case <-deadline:
			return cond()
		case <-ctx.Done():
			return cond()
		}
	}
}

// WaitForPowerOn blocks until the lifecycle has powered the module on.
func (m *Modem) WaitForPowerOn(ctx context.Context, timeout time.Duration) bool {
	return m.waitFor(ctx, timeout, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.poweredOn
	})
}

// WaitForIdle blocks until the scheduler has no sockets or messages
// left to service.
func (m *Modem) WaitForIdle(ctx context.Context, timeout time.Duration) bool {
	return m.waitFor(ctx, timeout, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return len(m.sockets) == 0 && len(m.messages) == 0
	})
}

// WaitForPowerOff blocks until the lifecycle has torn the module down.
func (m *Modem) WaitForPowerOff(ctx context.Context, timeout time.Duration) bool {
	return m.waitFor(ctx, timeout, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return !m.active && !m.poweredOn
	})
}

// NetworkActive blocks until +CGREG reports GPRS registration (home or
// roaming), reporting whether it was within timeout.
func (m *Modem) NetworkActive(ctx context.Context, timeout time.Duration) bool {
	return m.waitFor(ctx, timeout, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.gprs.active
	})
}

// CreateSocket allocates a new Socket bound to host:port and starts
// the lifecycle if it is not already running. The returned socket is
// not yet connected; call Connect to drive the handshake.
func (m *Modem) CreateSocket(host string, port uint16, tls bool) *Socket {
	s := newSocket(m, host, port, tls)
	m.mu.Lock()
	m.sockets = append(m.sockets, s)
	m.mu.Unlock()
	m.ensureRunning()
	return s
}

// SendMessage queues recipient/text for sending and returns a handle
// to track completion.
func (m *Modem) SendMessage(recipient, text string) *Message {
	msg := newMessage(m, recipient, text)
	m.mu.Lock()
	m.messages = append(m.messages, msg)
	m.mu.Unlock()
	m.ensureRunning()
	return msg
}

// ensureRunning requests a processing pass and, if the lifecycle is
// not already active, launches it.
func (m *Modem) ensureRunning() {
	m.requestProcessing()
	m.mu.Lock()
	alreadyActive := m.active
	if !alreadyActive {
		m.active = true
	}
	m.mu.Unlock()
	if !alreadyActive {
		go m.runLifecycle(context.Background())
	}
}

// Run drives the modem lifecycle on the caller's goroutine: each run
// dials the transport, serves the queued sockets and messages, and
// tears down, repeating while new work is queued. It returns nil when
// no work remains (at once if nothing is queued), a dial error as is,
// or ErrAlreadyClosed if the lifecycle is already active. It is the
// entry point applications use instead of relying on
// CreateSocket/SendMessage's lazy start.
func (m *Modem) Run(ctx context.Context) error {
	m.mu.Lock()
	alreadyActive := m.active
	m.active = true
	m.mu.Unlock()
	if alreadyActive {
		return ErrAlreadyClosed
	}
	return m.runLifecycle(ctx)
}

// Close releases the transport. Safe to call once, typically after
// Run returns.
func (m *Modem) Close() error {
	m.mu.Lock()
	t := m.transport
	m.transport = nil
	m.mu.Unlock()
	if t == nil {
		return ErrAlreadyClosed
	}
	return t.Close()
}

// runLifecycle dials, spawns the RX goroutine, powers on with one
// retry, runs the start/unlock/connect sequence, then the
// processing loop, then teardown. It repeats whenever a new request
// arrived while tearing down.
func (m *Modem) runLifecycle(ctx context.Context) error {
	for {
		restart, err := m.runOnce(ctx)
		if err != nil {
			return err
		}
		if !restart {
			return nil
		}
	}
}

func (m *Modem) runOnce(ctx context.Context) (bool, error) {
	if !m.preprocess() {
		m.mu.Lock()
		m.active = false
		m.mu.Unlock()
		return false, nil
	}

	m.requestProcessing()

	transport, derr := m.dialer.Dial(ctx)
	if derr != nil {
		m.setModemStatus(StatusPowerOnFailure)
		m.finishAllSockets()
		m.mu.Lock()
		m.active = false
		m.mu.Unlock()
		return false, derr
	}
	m.mu.Lock()
	m.transport = transport
	m.tx = transport
	m.mu.Unlock()

	// The RX goroutine must already be draining the transport before the
	// first autobaud probe, since AT() blocks on a response that only the
	// RX goroutine can deliver.
	group, gctx := errgroup.WithContext(ctx)
	rxDone := make(chan struct{})
	group.Go(func() error {
		defer close(rxDone)
		m.runRx(gctx, transport)
		return nil
	})

	m.config.diagnostic(DiagnosticPowerSend, []byte("ON"))
	if !m.vendor.powerOn(gctx) {
		time.Sleep(10 * time.Second)
		if !m.vendor.powerOn(gctx) {
			m.config.diagnostic(DiagnosticPowerReceive, []byte("FAIL"))
			m.setModemStatus(StatusPowerOnFailure)
			m.finishAllSockets()
			if closer, ok := m.tx.(io.Closer); ok {
				closer.Close()
			}
			<-rxDone
			_ = group.Wait()
			m.mu.Lock()
			m.active = false
			m.mu.Unlock()
			return false, nil
		}
	}
	m.mu.Lock()
	m.poweredOn = true
	m.mu.Unlock()
	m.config.diagnostic(DiagnosticPowerReceive, []byte("ON"))
	if m.config.OnPowerOn != nil {
		m.config.OnPowerOn()
	}

	ok := m.vendor.start(gctx)
	if ok {
		m.setModemStatus(StatusOk)
		ok = m.vendor.unlockSim(gctx)
	} else if m.modemStatus() != StatusAutoBaudFailure {
		m.setModemStatus(StatusAutoBaudFailure)
	}

	if ok && m.vendor.connectNetwork(gctx) {
		m.mu.Lock()
		m.gsm = GsmOk
		m.mu.Unlock()

		m.processingLoop(gctx)

		if m.requireLocationSet() {
			m.vendor.getLocation(gctx)
		}

		m.mu.Lock()
		m.disconnecting = true
		m.mu.Unlock()
		m.vendor.disconnectNetwork(gctx)
	}
	if ok {
		m.vendor.stop(gctx)
	}

	m.finishAllSockets()
	m.config.diagnostic(DiagnosticPowerSend, []byte("OFF"))
	m.vendor.powerOff(ctx)
	if closer, ok := m.tx.(io.Closer); ok {
		closer.Close()
	}
	if m.config.OnPowerOff != nil {
		m.config.OnPowerOff()
	}
	m.config.diagnostic(DiagnosticPowerReceive, []byte("OFF"))

	<-rxDone
	_ = group.Wait()

	m.mu.Lock()
	m.poweredOn = false
	m.active = false
	restart := false
	select {
	case <-m.process:
		restart = true
		m.active = true
	default:
	}
	m.mu.Unlock()

	return restart, nil
}

func (m *Modem) requireLocationSet() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requireLocation
}

// preprocess runs the startup sweep: close already-app-closed
// sockets, note which ones are new, destroy anything already
// deletable, and report whether there is anything left to service.
func (m *Modem) preprocess() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	needed := false
	for _, s := range m.sockets {
		if s.flags&flagAppClose != 0 {
			s.finished()
		} else if s.isNew() {
			needed = true
		}
	}

	m.sweepSocketsLocked()
	m.sweepMessagesLocked()

	return needed || len(m.messages) > 0
}

func (m *Modem) sweepSocketsLocked() {
	kept := m.sockets[:0]
	for _, s := range m.sockets {
		if s.canDelete() {
			continue
		}
		kept = append(kept, s)
	}
	m.sockets = kept
}

func (m *Modem) sweepMessagesLocked() {
	kept := m.messages[:0]
	for _, msg := range m.messages {
		if msg.canDelete() {
			continue
		}
		kept = append(kept, msg)
	}
	m.messages = kept
}

func (m *Modem) finishAllSockets() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sockets {
		s.finished()
	}
}

// processingLoop repeatedly drains a pass over sockets and messages,
// then blocks for more work (or the PowerOffTimeout idle window)
// until ctx is canceled or a command protocol error poisons the
// session.
func (m *Modem) processingLoop(ctx context.Context) {
	for {
		select {
		case <-m.process:
		case <-ctx.Done():
			return
		}

		for m.processOnce(ctx) {
			select {
			case <-m.process:
			default:
			}
		}

		if m.modemStatus() == StatusCommandError {
			return
		}

		m.mu.Lock()
		idle := len(m.sockets) == 0 && len(m.messages) == 0
		m.mu.Unlock()
		if idle {
			woken := m.waitFor(ctx, m.config.PowerOffTimeout, func() bool {
				select {
				case <-m.process:
					return true
				default:
					return false
				}
			})
			if !woken {
				return
			}
		}
	}
}

// processOnce runs one pass over sockets and messages and reports
// whether another pass should run immediately because work remains
// to be polled.
func (m *Modem) processOnce(ctx context.Context) bool {
	again := false

	m.mu.Lock()
	sockets := append([]*Socket(nil), m.sockets...)
	messages := append([]*Message(nil), m.messages...)
	m.mu.Unlock()

	for _, s := range sockets {
		if s.needsClose() {
			m.mu.Lock()
			s.flags |= flagModemClosing
			m.mu.Unlock()
			m.vendor.closeSocket(ctx, s)
		}
	}

	m.mu.Lock()
	m.sweepSocketsLocked()
	m.mu.Unlock()

	for _, s := range sockets {
		if !s.isAllocated() {
			m.vendor.tryAllocate(s)
		}
		if s.needsConnect() {
			m.mu.Lock()
			s.flags |= flagModemConnecting
			m.mu.Unlock()
			m.vendor.connect(ctx, s)
		}
		if s.dataToSend() {
			m.vendor.sendPacket(ctx, s)
			again = true
		}
		if s.dataToReceive() {
			if s.canReceive() {
				m.vendor.receivePacket(ctx, s)
			} else {
				again = true
			}
		}
		if s.dataToCheck() && s.canReceive() {
			m.vendor.checkIncoming(ctx, s)
		}
	}

	for _, msg := range messages {
		if msg.shouldSend() {
			if !m.vendor.sendMessage(ctx, msg) {
				msg.sendingFailed()
			}
			again = true
		}
	}

	m.mu.Lock()
	m.sweepMessagesLocked()
	m.mu.Unlock()

	return again
}

// --- internal helpers shared by atchannel.go/rx.go/vendor files ---

func (m *Modem) findSocketByChannel(channel int, secure bool) *Socket {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sockets {
		if s.isAllocated() && s.channel == channel && s.IsSecure() == secure {
			return s
		}
	}
	return nil
}

func (m *Modem) receiveForSocket(sock *Socket, length int) {
	m.rxSock = sock
	m.rxLen = length
}

func newLineReader(r io.Reader) *bufio.Reader {
	return bufio.NewReaderSize(r, 4096)
}

func itoa(n int) string { return strconv.Itoa(n) }
