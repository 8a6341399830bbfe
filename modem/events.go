package modem

import (
	"github.com/simcom-go/modem/at"
)

// onEvent maps an event hash to its handler, the vendor overlay's
// event dispatch table (spec.md §4.7). It runs ahead of any armed
// response delegate (spec.md §4.5) and recognises both SIM800 and
// SIM7600 vocabulary in one table, since the two dialects' event names
// rarely collide and a socket's model is fixed for its whole lifetime
// anyway.
func (v *simcomVendor) onEvent(hash at.EventID, fields at.Fields, line string) bool {
	switch hash {
	case hashCSQ, hashCSQN:
		return v.onSignalQuality(fields)

	case hashCREG:
		return v.onRegistration(fields, false)
	case hashCGREG:
		return v.onRegistration(fields, true)

	case hashCPIN:
		v.m.mu.Lock()
		v.m.simPinStatus = string(fields.Raw())
		v.m.mu.Unlock()
		return true

	case hashCCHOpen:
		return v.onCCHOpen(fields)
	case hashConnectOK:
		return v.onChannelPrefixed(line, true)
	case hashCCHClose, hashCCHPeerClosed:
		return v.onCCHClose(hash, fields)
	case hashCloseOK:
		v.m.at.completeMask(1)
		return v.onChannelPrefixed(line, false)
	case hashClosed:
		return v.onChannelPrefixed(line, false)

	case hashCCHRecv:
		return v.onCCHRecv(fields)
	case hashReceiveComma:
		return v.onReceiveSim800(fields)
	case hashCCHEvent:
		return v.onCCHEvent(fields)

	case hashCPSI:
		return v.onCPSI(fields)

	case hashCFUN:
		if n, ok := fields.Num(10); ok {
			v.cfun = n
		}
		return true

	// Acknowledged without action: indication events this driver has
	// no behaviour tied to.
	case hashCTZV, hashCOPS, hashIPAddr, hashPDP, hashRDY, hashCallReady,
		hashSMSReady, hashPSUTTZ, hashDST, hashCIEV:
		return true

	default:
		return false
	}
}

func (v *simcomVendor) onSignalQuality(fields at.Fields) bool {
	rssi, rssiOK := fields.Num(10)
	_, berOK := fields.Num(10)
	if !rssiOK || !berOK {
		return true
	}

	var dbm int
	switch {
	case rssi >= 0 && rssi <= 31:
		dbm = -113 + rssi*2
	case rssi >= 100 && rssi <= 191:
		dbm = -116 + rssi
	default:
		dbm = 0
	}

	v.m.mu.Lock()
	v.m.rssi = dbm
	v.m.mu.Unlock()
	return true
}

// onRegistration handles +CREG/+CGREG. Both the query response
// ("+CREG: <mode>,<stat>[,<lac>,<ci>]") and the unsolicited URC
// ("+CREG: <stat>[,<lac>,<ci>]") share this handler; the field count
// alone distinguishes them, since the query echoes an extra leading
// mode field.
func (v *simcomVendor) onRegistration(fields at.Fields, gprs bool) bool {
	if n := fields.Count(); n == 4 || n == 2 {
		fields.Num(10) // discard echoed mode
	}

	stat, ok := fields.Num(10)
	if !ok {
		return true
	}

	status := Registration(stat)
	active := status == RegHome || status == RegRoaming

	v.m.mu.Lock()
	var reg *regState
	if gprs {
		reg = &v.m.gprs
	} else {
		reg = &v.m.net
	}
	reg.status = status
	reg.active = active
	if lac, lacOK := fields.Hex(); lacOK {
		if ci, ciOK := fields.Hex(); ciOK {
			reg.lac = lac
			reg.ci = ci
		}
	}
	if !v.m.disconnecting {
		switch status {
		case RegHome:
			v.m.gsm = GsmOk
		case RegRoaming:
			v.m.gsm = GsmRoaming
		case RegDenied, RegNone, RegUnknown:
			v.m.gsm = GsmNoNetwork
		default:
			v.m.gsm = GsmSearching
		}
	}
	v.m.mu.Unlock()
	return true
}

func (v *simcomVendor) onCCHOpen(fields at.Fields) bool {
	ch, chOK := fields.Num(10)
	status, statusOK := fields.Num(10)
	if !chOK || !statusOK {
		return true
	}
	s := v.m.findSocketByChannel(ch, true)
	if s == nil {
		return true
	}
	v.m.mu.Lock()
	if status == 0 {
		s.connected()
	} else {
		s.finished()
	}
	v.m.mu.Unlock()
	v.m.requestProcessing()
	return true
}

// onChannelPrefixed handles the family of events whose channel digit
// is consumed (and discarded) by at.Hash's comma-restart rule: CONNECT
// OK, CLOSE OK and CLOSED all arrive as "<ch>, EVENT NAME", so the
// channel is recovered from line's first byte directly, mirroring the
// original driver's raw Input().Peek(0).
func (v *simcomVendor) onChannelPrefixed(line string, connect bool) bool {
	if len(line) == 0 || line[0] < '0' || line[0] > '9' {
		return true
	}
	ch := int(line[0] - '0')
	s := v.m.findSocketByChannel(ch, false)
	if s == nil {
		return true
	}
	v.m.mu.Lock()
	if connect {
		s.connected()
	} else {
		s.finished()
	}
	v.m.mu.Unlock()
	v.m.requestProcessing()
	return true
}

func (v *simcomVendor) onCCHClose(hash at.EventID, fields at.Fields) bool {
	ch, chOK := fields.Num(10)
	if !chOK {
		return true
	}
	if hash != hashCCHPeerClosed {
		if _, ok := fields.Num(10); !ok {
			return true
		}
	}
	s := v.m.findSocketByChannel(ch, true)
	if s == nil {
		return true
	}
	v.m.mu.Lock()
	s.finished()
	v.m.mu.Unlock()
	v.m.requestProcessing()
	return true
}

// onCCHRecv handles +CCHRECV in its three shapes: a bare 2-field
// end-of-receive report, a DATA announcement binding the next binary
// segment, and a LEN broadcast flagging which channels have bytes
// waiting.
func (v *simcomVendor) onCCHRecv(fields at.Fields) bool {
	if fields.Count() == 2 {
		ch, chOK := fields.Num(10)
		errCode, errOK := fields.Num(10)
		if !chOK || !errOK {
			return true
		}
		s := v.m.findSocketByChannel(ch, true)
		if s == nil {
			return true
		}
		v.m.mu.Lock()
		if errCode != 0 {
			s.finished()
		} else {
			s.maybeIncoming()
		}
		v.m.mu.Unlock()
		v.m.requestProcessing()
		return true
	}

	kind := fields.Fnv()
	switch kind {
	case hashDATA:
		ch, chOK := fields.Num(10)
		length, lenOK := fields.Num(10)
		if !chOK || !lenOK {
			return true
		}
		s := v.m.findSocketByChannel(ch, true)
		if s != nil {
			v.m.mu.Lock()
			s.maybeIncoming()
			v.m.mu.Unlock()
		}
		v.m.requestProcessing()
		v.m.receiveForSocket(s, length)

	case hashLEN:
		for ch := 0; ; ch++ {
			length, ok := fields.Num(10)
			if !ok {
				break
			}
			if length == 0 {
				continue
			}
			s := v.m.findSocketByChannel(ch, true)
			if s == nil {
				continue
			}
			v.m.mu.Lock()
			s.incoming()
			v.m.mu.Unlock()
			v.m.requestProcessing()
		}
	}
	return true
}

// onReceiveSim800 handles SIM800's "+RECEIVE,<ch>,<len>:" announcement
// (spec.md §9 Open Question (a)): the trailing colon is stripped first,
// since Num rejects a field with a stray character in it; then the
// length field's decimal scan must succeed AND the value must be
// non-zero, since a zero length is not a real announcement.
func (v *simcomVendor) onReceiveSim800(fields at.Fields) bool {
	if n := len(fields); n > 0 && fields[n-1] == ':' {
		fields = fields[:n-1]
	}
	ch, chOK := fields.Num(10)
	length, lenOK := fields.Num(10)
	if !chOK || !lenOK || length <= 0 {
		return true
	}
	s := v.m.findSocketByChannel(ch, false)
	if s != nil {
		v.m.mu.Lock()
		s.maybeIncoming()
		v.m.mu.Unlock()
	}
	v.m.requestProcessing()
	v.m.receiveForSocket(s, length)
	return true
}

func (v *simcomVendor) onCCHEvent(fields at.Fields) bool {
	ch, chOK := fields.Num(10)
	kind := fields.Fnv()
	if !chOK || kind != hashRecvEvent {
		return true
	}
	s := v.m.findSocketByChannel(ch, true)
	if s == nil {
		return true
	}
	v.m.mu.Lock()
	s.incoming()
	v.m.mu.Unlock()
	v.m.requestProcessing()
	return true
}

// onCPSI skips the network-type and service-state fields of +CPSI and
// parses the MCC-MNC field that follows, accepting either a 2- or
// 3-digit MNC.
func (v *simcomVendor) onCPSI(fields at.Fields) bool {
	fields.Fnv() // network type, unused
	fields.Fnv() // service state, unused

	raw := string(fields.Raw())
	var mcc, mnc, mncDigits int
	inMnc := false
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c >= '0' && c <= '9':
			d := int(c - '0')
			if inMnc {
				mnc = mnc*10 + d
				mncDigits++
			} else {
				mcc = mcc*10 + d
			}
		case c == '-' && !inMnc:
			inMnc = true
		default:
			i = len(raw)
		}
	}
	if mncDigits != 2 && mncDigits != 3 {
		return true
	}

	v.m.mu.Lock()
	v.m.netInfo = NetworkInfo{Mcc: mcc, Mnc: mnc, MncDigits: mncDigits}
	v.m.mu.Unlock()
	return true
}

var (
	hashCSQ   = at.HashString("+CSQ")
	hashCSQN  = at.HashString("+CSQN")
	hashCREG  = at.HashString("+CREG")
	hashCGREG = at.HashString("+CGREG")
	hashCPIN  = at.HashString("+CPIN")

	hashCCHOpen       = at.HashString("+CCHOPEN")
	hashConnectOK     = at.HashString("CONNECT OK")
	hashCCHClose      = at.HashString("+CCHCLOSE")
	hashCCHPeerClosed = at.HashString("+CCH_PEER_CLOSED")
	hashCloseOK       = at.HashString("CLOSE OK")
	hashClosed        = at.HashString("CLOSED")

	hashCCHRecv      = at.HashString("+CCHRECV")
	hashReceiveComma = at.HashString("+RECEIVE,")
	hashCCHEvent     = at.HashString("+CCHEVENT")
	hashDATA         = at.HashString("DATA")
	hashLEN          = at.HashString("LEN")
	hashRecvEvent    = at.HashString("RECV EVENT")

	hashCPSI = at.HashString("+CPSI")
	hashCFUN = at.HashString("+CFUN")

	hashCTZV      = at.HashString("+CTZV")
	hashCOPS      = at.HashString("+COPS")
	hashIPAddr    = at.HashString("+IPADDR")
	hashPDP       = at.HashString("+PDP")
	hashRDY       = at.HashString("RDY")
	hashCallReady = at.HashString("Call Ready")
	hashSMSReady  = at.HashString("SMS Ready")
	hashPSUTTZ    = at.HashString("*PSUTTZ")
	hashDST       = at.HashString("DST")
	hashCIEV      = at.HashString("+CIEV")
)
