package modem

import (
	"testing"

	"github.com/simcom-go/modem/at"
)

func newTestVendor() *simcomVendor {
	return &simcomVendor{m: &Modem{}}
}

func TestOnSignalQualityConvertsToDbm(t *testing.T) {
	v := newTestVendor()

	if !v.onSignalQuality(at.Fields("31,0")) {
		t.Fatal("onSignalQuality should always report handled")
	}
	if v.m.rssi != -113+31*2 {
		t.Errorf("rssi = %d, want %d", v.m.rssi, -113+31*2)
	}

	v.onSignalQuality(at.Fields("99,99"))
	if v.m.rssi != 0 {
		t.Errorf("out-of-range rssi = %d, want 0 (unknown)", v.m.rssi)
	}
}

func TestOnRegistrationQueryFormDiscardsModeField(t *testing.T) {
	v := newTestVendor()

	fields := at.Fields("2,1") // query echo: mode=2, stat=1 (home)
	v.onRegistration(fields, false)

	if v.m.net.status != RegHome {
		t.Errorf("net.status = %v, want RegHome", v.m.net.status)
	}
	if !v.m.net.active {
		t.Error("net.active should be true for RegHome")
	}
	if v.m.gsm != GsmOk {
		t.Errorf("gsm = %v, want GsmOk", v.m.gsm)
	}
}

func TestOnRegistrationURCFormWithLacCi(t *testing.T) {
	v := newTestVendor()

	fields := at.Fields("1,1A,2B") // URC: stat=1 (home), lac=0x1A, ci=0x2B
	v.onRegistration(fields, true)

	if v.m.gprs.status != RegHome {
		t.Errorf("gprs.status = %v, want RegHome", v.m.gprs.status)
	}
	if v.m.gprs.lac != 0x1A || v.m.gprs.ci != 0x2B {
		t.Errorf("gprs.lac/ci = %x/%x, want 1a/2b", v.m.gprs.lac, v.m.gprs.ci)
	}
}

func TestOnRegistrationSuppressedWhileDisconnecting(t *testing.T) {
	v := newTestVendor()
	v.m.disconnecting = true
	v.m.gsm = GsmSearching

	v.onRegistration(at.Fields("1"), false)

	if v.m.gsm != GsmSearching {
		t.Errorf("gsm should be left untouched while disconnecting, got %v", v.m.gsm)
	}
	// registration bookkeeping itself should still update
	if v.m.net.status != RegHome {
		t.Errorf("net.status = %v, want RegHome even while disconnecting", v.m.net.status)
	}
}

func TestOnCPSIParsesMccMnc(t *testing.T) {
	v := newTestVendor()

	ok := v.onCPSI(at.Fields("LTE,ONLINE,460-00,..."))
	if !ok {
		t.Fatal("onCPSI should report handled")
	}
	if v.m.netInfo.Mcc != 460 || v.m.netInfo.Mnc != 0 || v.m.netInfo.MncDigits != 2 {
		t.Errorf("netInfo = %+v, want {460 0 2}", v.m.netInfo)
	}
}

func TestOnCPSIRejectsMalformedMncDigits(t *testing.T) {
	v := newTestVendor()
	v.m.netInfo = NetworkInfo{Mcc: 1, Mnc: 2, MncDigits: 2}

	v.onCPSI(at.Fields("LTE,ONLINE,4-6000,..."))

	if v.m.netInfo.MncDigits != 2 {
		t.Error("malformed MNC digit count should leave netInfo untouched")
	}
}

func TestOnChannelPrefixedRecoversDiscardedDigit(t *testing.T) {
	v := newTestVendor()
	sock := newSocket(v.m, "h", 1, false)
	sock.allocate(0)
	v.m.sockets = append(v.m.sockets, sock)

	if !v.onChannelPrefixed("0, CONNECT OK", true) {
		t.Fatal("onChannelPrefixed should report handled")
	}
	if !sock.isConnected() {
		t.Error("socket on channel 0 should be connected")
	}
}

func TestOnChannelPrefixedIgnoresNonDigitPrefix(t *testing.T) {
	v := newTestVendor()
	if !v.onChannelPrefixed("garbage", true) {
		t.Error("onChannelPrefixed should still report handled for a malformed line")
	}
}

func TestOnCCHRecvEndOfReceiveReport(t *testing.T) {
	v := newTestVendor()
	sock := newSocket(v.m, "h", 1, true)
	sock.allocate(0)
	v.m.sockets = append(v.m.sockets, sock)

	v.onCCHRecv(at.Fields("0,0"))

	if sock.flags&flagCheckIncoming == 0 {
		t.Error("a zero-error end-of-receive report should flag maybeIncoming")
	}
}

func TestOnCCHRecvDataBindsReceiveLength(t *testing.T) {
	v := newTestVendor()

	v.onCCHRecv(at.Fields("DATA,0,128"))

	if v.m.rxLen != 128 {
		t.Errorf("rxLen = %d, want 128", v.m.rxLen)
	}
}

func TestOnReceiveSim800RequiresPositiveLength(t *testing.T) {
	v := newTestVendor()

	v.onReceiveSim800(at.Fields("0,0"))
	if v.m.rxLen != 0 {
		t.Error("a zero length announcement should not bind a receive")
	}

	v.onReceiveSim800(at.Fields("0,16"))
	if v.m.rxLen != 16 {
		t.Errorf("rxLen = %d, want 16", v.m.rxLen)
	}
}
