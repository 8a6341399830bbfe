package modem

import (
	"context"
	"fmt"
	"strings"

	"github.com/simcom-go/modem/at"
)

// SIM800 has a single pool of 6 TCP/UDP channels; TLS is a global
// +CIPSSL toggle rather than a per-channel property.
const sim800Channels = 6

func (v *simcomVendor) connectNetworkSim800(ctx context.Context) bool {
	if v.m.config.APNUser != "" {
		v.m.ATFormat(ctx, `+CSTT="%s","%s","%s"`, v.m.config.APN, v.m.config.APNUser, v.m.config.APNPassword)
	} else {
		v.m.ATFormat(ctx, `+CSTT="%s"`, v.m.config.APN)
	}
	if v.m.AT(ctx, "+CIICR") != atOK {
		v.m.mu.Lock()
		v.m.tcp = TcpGprsError
		v.m.mu.Unlock()
		return false
	}
	// +CIFSR answers with the bare local IP address and no final OK.
	_, bypass := v.m.atLock()
	if !bypass {
		v.m.at.nextResponse(func(hash at.EventID, fields at.Fields, line string) bool {
			if strings.Count(line, ".") != 3 {
				return false
			}
			v.m.at.completeMask(1)
			return true
		}, 1)
	}
	if bypass || v.m.sendLocked(ctx, "+CIFSR") != atOK {
		v.m.mu.Lock()
		v.m.tcp = TcpGprsError
		v.m.mu.Unlock()
		return false
	}
	v.m.mu.Lock()
	v.m.tcp = TcpOk
	v.m.mu.Unlock()
	return true
}

func (v *simcomVendor) connectSim800(ctx context.Context, s *Socket) {
	if s.IsSecure() {
		v.m.AT(ctx, "+CIPSSL=1")
	} else {
		v.m.AT(ctx, "+CIPSSL=0")
	}
	r := v.m.ATFormat(ctx, `+CIPSTART=%d,"TCP","%s",%d`, s.channel, s.host, s.port)
	if r != atOK {
		s.finished()
		return
	}
	v.m.mu.Lock()
	s.bound()
	v.m.mu.Unlock()
}

// sendPacketSim800 issues +CIPSEND=<ch>,<len>, lets the RX goroutine
// answer the '>' prompt from the socket's output queue, and waits for
// the DATA ACCEPT/SEND FAIL event pair. A SEND FAIL triggers the
// +CIPACK recovery dance (spec.md §4.7, §9 Open Question (c)).
func (v *simcomVendor) sendPacketSim800(ctx context.Context, s *Socket, length int) {
	if _, bypass := v.m.atLock(); bypass {
		s.finished()
		return
	}

	accepted := false
	v.m.at.nextTransmitSocket(s, length)
	v.m.at.nextResponse(func(hash at.EventID, fields at.Fields, line string) bool {
		switch hash {
		case hashDataAccept:
			accepted = true
			v.m.at.completeMask(1)
			return true
		case hashSendFail:
			accepted = false
			v.m.at.completeMask(1)
			return true
		default:
			return false
		}
	}, 1)

	v.m.mu.Lock()
	s.sending()
	v.m.mu.Unlock()

	result := v.m.sendLocked(ctx, fmt.Sprintf("+CIPSEND=%d,%d", s.channel, length))

	v.m.mu.Lock()
	s.sendingFinished()
	v.m.mu.Unlock()

	if result == atOK && accepted {
		s.acked += length
		return
	}
	v.recoverSim800Ack(ctx, s)
}

// recoverSim800Ack resyncs the host's notion of confirmed bytes with
// the modem's after a SEND FAIL, tearing the socket down if the
// modem reports fewer confirmed bytes than already counted (a
// protocol fault, spec.md §9 Open Question (c)).
func (v *simcomVendor) recoverSim800Ack(ctx context.Context, s *Socket) {
	if _, bypass := v.m.atLock(); bypass {
		s.finished()
		return
	}

	var sent int
	var gotFields bool
	v.m.at.nextResponse(func(hash at.EventID, fields at.Fields, line string) bool {
		if hash != hashCipack {
			return false
		}
		n, ok := fields.Num(10)
		if ok {
			sent = n
			gotFields = true
		}
		return true
	}, 1)
	if v.m.sendLocked(ctx, fmt.Sprintf("+CIPACK=%d", s.channel)) != atOK || !gotFields {
		s.finished()
		return
	}
	delta := sent - s.acked
	if delta < 0 {
		s.finished()
		return
	}
	s.acked += delta
}

func (v *simcomVendor) receivePacketSim800(ctx context.Context, s *Socket) {
	v.m.ATFormat(ctx, "+CIPRXGET=2,%d,%d", s.channel, socketBufferSize)
}

func (v *simcomVendor) checkIncomingSim800(ctx context.Context, s *Socket) {
	v.m.ATFormat(ctx, "+CIPRXGET=4,%d", s.channel)
}

var (
	hashDataAccept = at.HashString("DATA ACCEPT")
	hashSendFail   = at.HashString("SEND FAIL")
	hashCipack     = at.HashString("+CIPACK")
)
