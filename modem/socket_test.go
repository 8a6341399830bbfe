package modem

import "testing"

func newTestSocket() *Socket {
	return newSocket(&Modem{}, "example.com", 443, true)
}

func TestSocketIsNew(t *testing.T) {
	s := newTestSocket()
	if !s.isNew() {
		t.Error("freshly created socket should be isNew")
	}
	s.allocate(0)
	if s.isNew() {
		t.Error("socket should stop being isNew once allocated")
	}
}

func TestSocketNeedsConnectLifecycle(t *testing.T) {
	s := newTestSocket()
	if s.needsConnect() {
		t.Error("unallocated socket should not need connect")
	}

	s.allocate(0)
	if !s.needsConnect() {
		t.Error("allocated socket with no modem ref yet should need connect")
	}

	s.bound()
	s.flags |= flagModemConnecting
	if s.needsConnect() {
		t.Error("socket already connecting should not need connect again")
	}
}

func TestSocketConnectedAndCanSend(t *testing.T) {
	s := newTestSocket()
	s.allocate(0)
	s.bound()
	s.flags |= flagModemConnecting

	s.connected()

	if !s.isConnected() {
		t.Error("socket should report connected")
	}
	if !s.canSend() {
		t.Error("connected socket with no pending send/close should canSend")
	}
	if s.flags&flagModemConnecting != 0 {
		t.Error("connected() should clear the connecting flag")
	}
}

func TestSocketDataToSendRequiresBufferedBytes(t *testing.T) {
	s := newTestSocket()
	s.allocate(0)
	s.bound()
	s.connected()

	if s.dataToSend() {
		t.Error("socket with nothing written should not have dataToSend")
	}
	s.tx.write([]byte("hello"))
	if !s.dataToSend() {
		t.Error("socket with buffered output should have dataToSend")
	}
}

func TestSocketNeedsCloseRequiresAppCloseAndModemRef(t *testing.T) {
	s := newTestSocket()
	s.allocate(0)
	if s.needsClose() {
		t.Error("socket with no app-close request should not needsClose")
	}

	s.flags |= flagAppClose
	if s.needsClose() {
		t.Error("socket needs a modem ref before it can needsClose")
	}

	s.bound()
	if !s.needsClose() {
		t.Error("bound socket with app-close requested should needsClose")
	}
}

func TestSocketFinishedClosesQueuesAndPipesOnce(t *testing.T) {
	s := newTestSocket()
	s.allocate(0)
	s.bound()
	s.connected()

	s.finished()
	select {
	case <-s.closed:
	default:
		t.Error("finished() should close the closed channel")
	}
	if !s.IsClosed() {
		t.Error("IsClosed should report true after finished()")
	}
	if _, err := s.tx.write([]byte("x")); err != errQueueClosed {
		t.Errorf("tx queue should be closed after finished(), got err=%v", err)
	}

	// calling finished() again must not double-close s.closed
	s.finished()
}

func TestSocketCanDeleteRequiresBothRefsDropped(t *testing.T) {
	s := newTestSocket()
	s.allocate(0)
	s.bound()

	if s.canDelete() {
		t.Error("socket with both app and modem refs held should not canDelete")
	}

	s.Release()
	if s.canDelete() {
		t.Error("socket still holding a modem ref should not canDelete")
	}

	s.flags &^= flagModemRef
	if !s.canDelete() {
		t.Error("socket with both refs dropped should canDelete")
	}
}

func TestSocketIsSecureReflectsConstruction(t *testing.T) {
	secure := newSocket(&Modem{}, "h", 1, true)
	if !secure.IsSecure() {
		t.Error("socket created with tls=true should be IsSecure")
	}
	plain := newSocket(&Modem{}, "h", 1, false)
	if plain.IsSecure() {
		t.Error("socket created with tls=false should not be IsSecure")
	}
}
