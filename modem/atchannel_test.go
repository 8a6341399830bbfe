package modem

import (
	"context"
	"testing"
	"time"

	"github.com/simcom-go/modem/at"
)

func TestATChannelLockResetsState(t *testing.T) {
	c := newATChannel()
	c.nextResponse(func(at.EventID, at.Fields, string) bool { return true }, 3)
	c.nextTimeoutOverride(time.Second)

	c.lock()

	if c.result != atPending {
		t.Errorf("result = %v, want atPending", c.result)
	}
	if c.require != 1 {
		t.Errorf("require = %d, want 1", c.require)
	}
	if c.complete != 0 {
		t.Errorf("complete = %d, want 0", c.complete)
	}
	if c.response != nil {
		t.Error("response delegate should be cleared by lock")
	}
	if c.nextTimeout != 0 {
		t.Error("nextTimeout should be cleared by lock")
	}
}

func TestATChannelCompleteMaskNOfM(t *testing.T) {
	c := newATChannel()
	c.lock()
	c.nextResponse(func(at.EventID, at.Fields, string) bool { return true }, 3) // require bits 1|2

	c.completeMask(1)
	if !c.pending() {
		t.Fatal("command should still be pending after partial completion")
	}

	c.completeMask(2)
	if c.pending() {
		t.Error("command should have completed once require&complete == require")
	}
	if c.result != atOK {
		t.Errorf("result = %v, want atOK", c.result)
	}
}

func TestATChannelCompleteMaskIgnoredAfterTerminal(t *testing.T) {
	c := newATChannel()
	c.lock()
	c.fail(atError)

	c.completeMask(1)
	if c.result != atError {
		t.Errorf("result = %v, want atError to stick", c.result)
	}
}

func TestATChannelFailTransitionsOnce(t *testing.T) {
	c := newATChannel()
	c.lock()
	c.fail(atError)
	c.fail(atTimeout)

	if c.result != atError {
		t.Errorf("result = %v, want first fail (atError) to win", c.result)
	}
}

func TestATChannelWaitTimesOut(t *testing.T) {
	c := newATChannel()
	c.lock()

	start := time.Now()
	result := c.wait(context.Background(), 20*time.Millisecond)
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("wait returned after %v, too early", elapsed)
	}
	if result != atTimeout {
		t.Errorf("result = %v, want atTimeout", result)
	}
}

func TestATChannelWaitContextCanceled(t *testing.T) {
	c := newATChannel()
	c.lock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := c.wait(ctx, time.Second)
	if result != atFailure {
		t.Errorf("result = %v, want atFailure on canceled context", result)
	}
}

func TestATChannelNextTimeoutOverridesDefault(t *testing.T) {
	c := newATChannel()
	c.lock()
	c.nextTimeoutOverride(10 * time.Millisecond)

	result := c.wait(context.Background(), time.Hour)
	if result != atTimeout {
		t.Errorf("result = %v, want atTimeout honoring the one-shot override", result)
	}
}

func TestATChannelTakeTransmitClearsBinding(t *testing.T) {
	c := newATChannel()
	c.lock()
	sock := &Socket{}
	c.nextTransmitSocket(sock, 42)

	gotSock, gotLen, gotMsg := c.takeTransmit()
	if gotSock != sock || gotLen != 42 || gotMsg != nil {
		t.Fatalf("takeTransmit = (%v, %d, %v), want (%v, 42, nil)", gotSock, gotLen, gotMsg, sock)
	}

	gotSock, gotLen, gotMsg = c.takeTransmit()
	if gotSock != nil || gotLen != 42 || gotMsg != nil {
		t.Errorf("second takeTransmit should report a cleared socket binding, got (%v, %d, %v)", gotSock, gotLen, gotMsg)
	}
}
