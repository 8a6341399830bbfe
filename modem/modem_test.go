package modem_test

import (
	"testing"

	"go.uber.org/mock/gomock"

	"github.com/simcom-go/modem/modem"
)

func TestNewRejectsConfigWithNoDialer(t *testing.T) {
	cfg := &modem.Config{}

	_, err := modem.New(cfg, nil)
	if err != modem.ErrNoDialer {
		t.Errorf("New() error = %v, want ErrNoDialer", err)
	}
}

func TestNewSucceedsWithoutDialing(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// No EXPECT() calls are set on the dialer/transport: New must not
	// dial at all, only CreateSocket/SendMessage/Run do.
	mockDialer := modem.NewMockDialer(ctrl)

	cfg, err := modem.NewConfigBuilder().WithDialer(mockDialer).Build()
	if err != nil {
		t.Fatalf("unexpected error from Build(): %v", err)
	}

	m, err := modem.New(cfg, nil)
	if err != nil {
		t.Fatalf("New() error = %v, want nil", err)
	}
	if m.Status() != modem.StatusOk {
		t.Errorf("Status() = %v, want StatusOk before anything has run", m.Status())
	}
}

func TestCloseWithoutRunReportsAlreadyClosed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockDialer := modem.NewMockDialer(ctrl)
	cfg, err := modem.NewConfigBuilder().WithDialer(mockDialer).Build()
	if err != nil {
		t.Fatalf("unexpected error from Build(): %v", err)
	}

	m, err := modem.New(cfg, nil)
	if err != nil {
		t.Fatalf("New() error = %v, want nil", err)
	}

	if err := m.Close(); err != modem.ErrAlreadyClosed {
		t.Errorf("Close() on a never-started modem = %v, want ErrAlreadyClosed", err)
	}
}
