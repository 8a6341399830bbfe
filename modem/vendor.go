package modem

import (
	"context"
	"strings"
	"time"

	"github.com/simcom-go/modem/at"
)

// Model identifies which SimCom dialect the vendor overlay has detected
// on the wire. It is discovered during start(), never configured by
// the caller, since the same firmware image talks to either family
// over the same UART.
type Model int

const (
	ModelUnknown Model = iota
	ModelSIM800
	ModelSIM7600
)

func (m Model) String() string {
	switch m {
	case ModelSIM800:
		return "SIM800"
	case ModelSIM7600:
		return "SIM7600"
	default:
		return "unknown"
	}
}

// vendorDriver is the fixed hook surface the scheduler and RX goroutine
// drive, generalizing the original driver's per-model …Impl virtual
// methods into one Go interface implemented by simcomVendor (spec.md
// §9, "Dynamic dispatch for vendor variants").
type vendorDriver interface {
	powerOn(ctx context.Context) bool
	start(ctx context.Context) bool
	unlockSim(ctx context.Context) bool
	connectNetwork(ctx context.Context) bool
	disconnectNetwork(ctx context.Context)
	stop(ctx context.Context)
	powerOff(ctx context.Context)

	tryAllocate(s *Socket)
	connect(ctx context.Context, s *Socket)
	sendPacket(ctx context.Context, s *Socket)
	receivePacket(ctx context.Context, s *Socket)
	checkIncoming(ctx context.Context, s *Socket)
	closeSocket(ctx context.Context, s *Socket)

	sendMessage(ctx context.Context, msg *Message) bool
	getLocation(ctx context.Context)

	// onEvent handles one unsolicited/event-class line (spec.md §4.7).
	// line is the full line with the event identifier still attached:
	// the channel-prefixed forms ("0, CONNECT OK") lose their leading
	// digit to the hash's restart rule (at.Hash), so handlers that need
	// the channel number recover it by reading line's first byte
	// directly, mirroring the original driver's Input().Peek(0).
	onEvent(hash at.EventID, fields at.Fields, line string) bool
}

// simcomVendor implements vendorDriver for both the SIM800 and SIM7600
// command dialects. Per-model command construction lives in
// simcom_sim800.go/simcom_sim7600.go; everything dialect-agnostic
// (event dispatch, location, SMS) lives alongside it in this package.
type simcomVendor struct {
	m     *Modem
	model Model

	cfun int // last +CFUN value seen in an event; unlockSim does not consult it
}

func newSimcomVendor(m *Modem) *simcomVendor {
	return &simcomVendor{m: m}
}

// powerOn issues up to ten plain "AT" probes, 100ms apart, and reports
// whether one came back OK; no power-enable line is driven. When two
// calls fail, runOnce sets StatusPowerOnFailure (spec.md §4.6 step 2,
// §7).
func (v *simcomVendor) powerOn(ctx context.Context) bool {
	for i := 0; i < 10; i++ {
		if v.m.AT(ctx, "") == atOK {
			return true
		}
		select {
		case <-time.After(100 * time.Millisecond):
		case <-ctx.Done():
			return false
		}
	}
	return false
}

// start runs autobaud confirmation, model detection, echo-off, verbose
// errors, and line discipline before any SIM/network step (spec.md
// §4.6 step 4).
func (v *simcomVendor) start(ctx context.Context) bool {
	if v.m.AT(ctx, "E0") != atOK {
		return false
	}
	if v.m.AT(ctx, "+CMEE=2") != atOK {
		return false
	}

	v.model = v.detectModel(ctx)
	if v.model == ModelUnknown {
		return false
	}

	if v.m.config.FlowControl {
		v.m.AT(ctx, "+IFC=2,2")
	} else {
		v.m.AT(ctx, "+IFC=0,0")
	}
	v.m.ATFormat(ctx, "+ICF=3,%d", parityCode(v.m.config.Parity))

	if v.m.AT(ctx, "+CMGF=1") != atOK {
		return false
	}

	return true
}

func parityCode(p Parity) int {
	switch p {
	case ParityOdd:
		return 1
	case ParityEven:
		return 2
	default:
		return 0
	}
}

// detectModel issues ATI (module identification) and classifies the
// response by substring, since both families echo their product name
// verbatim in reply.
func (v *simcomVendor) detectModel(ctx context.Context) Model {
	if r, _ := v.m.atLock(); r == atFailure {
		return ModelUnknown
	}
	var got Model
	v.m.at.nextResponse(func(hash at.EventID, fields at.Fields, line string) bool {
		switch {
		case strings.Contains(line, "SIM7600"):
			got = ModelSIM7600
			return true
		case strings.Contains(line, "SIM800"):
			got = ModelSIM800
			return true
		default:
			return false
		}
	}, 1)
	if v.m.sendLocked(ctx, "I") != atOK {
		return ModelUnknown
	}
	return got
}

// unlockSim runs the +CPIN dance: query status, supply a configured
// PIN if required, then poll until ready (spec.md §4.6 step 5). +CPIN
// responses arrive as ordinary events during the command's own
// in-flight window, so the generic onEvent handler in events.go (which
// runs ahead of any response delegate per spec.md §4.5) records the raw
// status text directly on the modem; this just issues the queries and
// reads what onEvent left behind, rather than arming its own delegate.
func (v *simcomVendor) unlockSim(ctx context.Context) bool {
	if v.m.AT(ctx, "+CPIN?") != atOK {
		v.m.mu.Lock()
		v.m.sim = SimNotInserted
		v.m.mu.Unlock()
		return false
	}

	v.m.mu.Lock()
	status := v.m.simPinStatus
	v.m.mu.Unlock()

	if status == "READY" {
		v.m.mu.Lock()
		v.m.sim = SimOk
		v.m.mu.Unlock()
		return true
	}

	locked := status == "SIM PIN" || status == "SIM PUK"
	if !locked || v.m.config.SimPIN == "" {
		v.m.mu.Lock()
		v.m.sim = SimLocked
		v.m.mu.Unlock()
		return false
	}

	if v.m.ATFormat(ctx, `+CPIN="%s"`, v.m.config.SimPIN) != atOK {
		v.m.mu.Lock()
		v.m.sim = SimBadPin
		v.m.mu.Unlock()
		return false
	}
	if v.m.config.OnPinUsed != nil {
		v.m.config.OnPinUsed()
	}
	if v.m.config.RemovePin {
		v.m.config.SimPIN = ""
	}

	ok := v.m.waitFor(ctx, v.m.config.InitTimeout, func() bool {
		if v.m.AT(ctx, "+CPIN?") != atOK {
			return true
		}
		v.m.mu.Lock()
		defer v.m.mu.Unlock()
		return v.m.simPinStatus == "READY"
	})
	v.m.mu.Lock()
	if ok {
		v.m.sim = SimOk
	} else {
		v.m.sim = SimBadPin
	}
	v.m.mu.Unlock()
	return ok
}

// connectNetwork waits for registration, attaches GPRS and activates
// the PDP context, then runs the model-specific bearer bring-up
// (spec.md §4.6 step 6).
func (v *simcomVendor) connectNetwork(ctx context.Context) bool {
	v.m.AT(ctx, "+CREG=2")
	v.m.AT(ctx, "+CGREG=2")

	registered := v.m.waitFor(ctx, v.m.config.ConnectTimeout, func() bool {
		v.m.mu.Lock()
		defer v.m.mu.Unlock()
		return v.m.net.active
	})
	if !registered {
		v.m.mu.Lock()
		v.m.gsm = GsmNoNetwork
		v.m.mu.Unlock()
		return false
	}

	apn := v.m.config.APN
	if v.m.ATFormat(ctx, `+CGDCONT=1,"IP","%s"`, apn) != atOK {
		v.m.mu.Lock()
		v.m.tcp = TcpGprsError
		v.m.mu.Unlock()
		return false
	}

	switch v.model {
	case ModelSIM800:
		return v.connectNetworkSim800(ctx)
	case ModelSIM7600:
		return v.connectNetworkSim7600(ctx)
	default:
		return false
	}
}

func (v *simcomVendor) disconnectNetwork(ctx context.Context) {
	switch v.model {
	case ModelSIM800:
		v.m.AT(ctx, "+CIPSHUT")
	case ModelSIM7600:
		v.m.AT(ctx, "+NETCLOSE")
	}
}

func (v *simcomVendor) stop(ctx context.Context) {
	v.m.AT(ctx, "+CFUN=0")
}

func (v *simcomVendor) powerOff(ctx context.Context) {
	v.m.ATFormat(ctx, "+CPOWD=1")
}

// tryAllocate reserves the lowest free channel number in the model's
// pool, mirroring the original's lowest-free-bit scan. Secure sockets
// draw from a distinct, smaller pool on SIM7600; SIM800 has a single
// pool (TLS there is a global +CIPSSL toggle, not a per-channel
// property).
func (v *simcomVendor) tryAllocate(s *Socket) {
	var total int
	switch v.model {
	case ModelSIM800:
		total = sim800Channels
	case ModelSIM7600:
		if s.IsSecure() {
			total = sim7600TLSChannels
		} else {
			total = sim7600PlainChannels
		}
	default:
		return
	}

	used := make([]bool, total)
	v.m.mu.Lock()
	for _, other := range v.m.sockets {
		if other == s || !other.isAllocated() {
			continue
		}
		if other.IsSecure() != s.IsSecure() && v.model == ModelSIM7600 {
			continue
		}
		if other.channel >= 0 && other.channel < total {
			used[other.channel] = true
		}
	}
	v.m.mu.Unlock()

	for ch := 0; ch < total; ch++ {
		if !used[ch] {
			v.m.mu.Lock()
			s.allocate(ch)
			v.m.mu.Unlock()
			return
		}
	}
}

func (v *simcomVendor) connect(ctx context.Context, s *Socket) {
	switch v.model {
	case ModelSIM800:
		v.connectSim800(ctx, s)
	case ModelSIM7600:
		v.connectSim7600(ctx, s)
	}
}

func (v *simcomVendor) sendPacket(ctx context.Context, s *Socket) {
	length := s.tx.available()
	switch v.model {
	case ModelSIM800:
		v.sendPacketSim800(ctx, s, length)
	case ModelSIM7600:
		v.sendPacketSim7600(ctx, s, length)
	}
}

func (v *simcomVendor) receivePacket(ctx context.Context, s *Socket) {
	switch v.model {
	case ModelSIM800:
		v.receivePacketSim800(ctx, s)
	case ModelSIM7600:
		v.receivePacketSim7600(ctx, s)
	}
}

func (v *simcomVendor) checkIncoming(ctx context.Context, s *Socket) {
	switch v.model {
	case ModelSIM800:
		v.checkIncomingSim800(ctx, s)
	case ModelSIM7600:
		v.checkIncomingSim7600(ctx, s)
	}
}

func (v *simcomVendor) closeSocket(ctx context.Context, s *Socket) {
	switch v.model {
	case ModelSIM800:
		v.m.ATFormat(ctx, "+CIPCLOSE=%d", s.channel)
	case ModelSIM7600:
		if s.IsSecure() {
			v.m.ATFormat(ctx, "+CCHCLOSE=%d", s.channel)
		} else {
			v.m.ATFormat(ctx, "+CIPCLOSE=%d", s.channel)
		}
	}
	s.finished()
}
