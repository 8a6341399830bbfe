package modem

import (
	"context"
	"testing"
	"time"
)

func TestMessageSendingLifecycle(t *testing.T) {
	m := newMessage(&Modem{}, "+1555", "hi")

	if !m.shouldSend() {
		t.Error("new message should shouldSend")
	}
	if m.isSending() {
		t.Error("new message should not be isSending yet")
	}
	if m.canDelete() {
		t.Error("message still held by the app should not canDelete")
	}

	m.sending()
	if !m.isSending() {
		t.Error("message should be isSending after sending()")
	}

	m.sendingComplete(42)
	if m.isSending() || m.shouldSend() {
		t.Error("sendingComplete should clear both sending and will-send flags")
	}
	if m.MessageReference() != 42 {
		t.Errorf("MessageReference() = %d, want 42", m.MessageReference())
	}
	if !m.Sent() {
		t.Error("Sent() should be true once sendingComplete has run")
	}
}

func TestMessageSendingFailed(t *testing.T) {
	m := newMessage(&Modem{}, "+1555", "hi")
	m.sending()

	m.sendingFailed()

	if m.isSending() || m.shouldSend() {
		t.Error("sendingFailed should clear both sending and will-send flags")
	}
	if !m.SendFailed() {
		t.Error("SendFailed() should report true")
	}
	if !m.Sent() {
		t.Error("Sent() should be true once the attempt has failed")
	}
}

func TestMessageWaitUntilProcessed(t *testing.T) {
	m := newMessage(&Modem{}, "+1555", "hi")
	m.sending()

	done := make(chan bool, 1)
	go func() {
		done <- m.WaitUntilProcessed(context.Background(), 0)
	}()

	select {
	case <-done:
		t.Fatal("WaitUntilProcessed returned before the message finished")
	case <-time.After(20 * time.Millisecond):
	}

	m.sendingComplete(1)

	select {
	case ok := <-done:
		if !ok {
			t.Error("WaitUntilProcessed should report true once sendingComplete runs")
		}
	case <-time.After(time.Second):
		t.Fatal("WaitUntilProcessed did not return after the message completed")
	}
}

func TestMessageWaitUntilProcessedTimeout(t *testing.T) {
	m := newMessage(&Modem{}, "+1555", "hi")
	m.sending()

	if m.WaitUntilProcessed(context.Background(), 10*time.Millisecond) {
		t.Error("WaitUntilProcessed should report false on timeout")
	}
}

func TestMessageReleaseClearsAppRef(t *testing.T) {
	m := newMessage(&Modem{}, "+1555", "hi")
	m.sending()
	m.sendingComplete(1)

	if m.canDelete() {
		t.Error("message should still have app ref before Release")
	}
	m.Release()
	if !m.canDelete() {
		t.Error("message should canDelete once app ref is released and sending is done")
	}
}
