package modem

import (
	"context"
	"fmt"

	"github.com/simcom-go/modem/at"
)

// SIM7600 splits its channel space: a small TLS-capable pool served by
// the +CCH* command family, and a larger plain-TCP pool served by
// +CIP*/+CIPOPEN, mirroring the two independent channel numbering
// spaces SimComModem.cpp tracks for the 4G module.
const (
	sim7600TLSChannels   = 2
	sim7600PlainChannels = 10
)

func (v *simcomVendor) connectNetworkSim7600(ctx context.Context) bool {
	if v.m.ATFormat(ctx, `+CGDCONT=1,"IP","%s"`, v.m.config.APN) != atOK {
		v.m.mu.Lock()
		v.m.tcp = TcpGprsError
		v.m.mu.Unlock()
		return false
	}
	if v.m.AT(ctx, "+NETOPEN") != atOK {
		v.m.mu.Lock()
		v.m.tcp = TcpGprsError
		v.m.mu.Unlock()
		return false
	}
	v.m.AT(ctx, "+CCHSET=1,0")
	if v.m.AT(ctx, "+CCHSTART") != atOK {
		v.m.mu.Lock()
		v.m.tcp = TcpTlsError
		v.m.mu.Unlock()
		return false
	}
	v.m.AT(ctx, "+IPADDR")
	v.m.mu.Lock()
	v.m.tcp = TcpOk
	v.m.mu.Unlock()
	return true
}

func (v *simcomVendor) connectSim7600(ctx context.Context, s *Socket) {
	var r atResult
	if s.IsSecure() {
		r = v.m.ATFormat(ctx, `+CCHOPEN=%d,"%s",%d,2`, s.channel, s.host, s.port)
	} else {
		r = v.m.ATFormat(ctx, `+CIPOPEN=%d,"TCP","%s",%d`, s.channel, s.host, s.port)
	}
	if r != atOK {
		s.finished()
		return
	}
	v.m.mu.Lock()
	s.bound()
	v.m.mu.Unlock()
}

// sendPacketSim7600 issues the channel-appropriate send command and
// waits for its numeric acknowledgement event, which doubles as the
// require/complete mask's second bit (spec.md §4.4's n-of-m
// semantics): the command is not considered complete on OK alone.
func (v *simcomVendor) sendPacketSim7600(ctx context.Context, s *Socket, length int) {
	if _, bypass := v.m.atLock(); bypass {
		s.finished()
		return
	}

	ok := false
	v.m.at.nextTransmitSocket(s, length)
	v.m.at.nextResponse(func(hash at.EventID, fields at.Fields, line string) bool {
		var want at.EventID
		if s.IsSecure() {
			want = hashCchsend
		} else {
			want = hashCipsend
		}
		if hash != want {
			return false
		}
		n, got := fields.Num(10)
		ok = got && n == s.channel
		v.m.at.completeMask(2)
		return true
	}, 3)

	v.m.mu.Lock()
	s.sending()
	v.m.mu.Unlock()

	var cmd string
	if s.IsSecure() {
		cmd = fmt.Sprintf("+CCHSEND=%d,%d", s.channel, length)
	} else {
		cmd = fmt.Sprintf("+CIPSEND=%d,%d", s.channel, length)
	}
	result := v.m.sendLocked(ctx, cmd)

	v.m.mu.Lock()
	s.sendingFinished()
	v.m.mu.Unlock()

	if result == atOK && ok {
		s.acked += length
	}
}

func (v *simcomVendor) receivePacketSim7600(ctx context.Context, s *Socket) {
	if s.IsSecure() {
		v.m.ATFormat(ctx, "+CCHRECV=%d,%d", s.channel, socketBufferSize)
	} else {
		v.m.ATFormat(ctx, "+CIPRXGET=2,%d,%d", s.channel, socketBufferSize)
	}
}

func (v *simcomVendor) checkIncomingSim7600(ctx context.Context, s *Socket) {
	if s.IsSecure() {
		v.m.ATFormat(ctx, "+CCHRECV=%d,0", s.channel)
	} else {
		v.m.ATFormat(ctx, "+CIPRXGET=4,%d", s.channel)
	}
}

var (
	hashCchsend = at.HashString("+CCHSEND")
	hashCipsend = at.HashString("+CIPSEND")
)
