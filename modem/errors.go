package modem

import "errors"

var (
	// ErrNoDialer is returned when a Modem is constructed without a Dialer.
	//
	// This indicates a configuration error. A Dialer is required in order to
	// establish a connection to the modem.
	ErrNoDialer = errors.New("no dialer configured")

	// ErrNotInitialized names the state of a Modem that has not been
	// constructed by New. No function in this package returns it.
	ErrNotInitialized = errors.New("modem not initialized")

	// ErrAlreadyClosed is returned by Close when there is no open
	// transport (the Modem was already closed or never dialed), and by
	// Run when the lifecycle is already active.
	ErrAlreadyClosed = errors.New("modem already closed")

	// ErrSIMPinRequired names a SIM that asks for a PIN. No function in
	// this package returns it: a failed unlock is reported through
	// SimStatus instead.
	ErrSIMPinRequired = errors.New("SIM PIN required")

	// ErrLineTooLong names an over-long modem response line. No function
	// in this package returns it: the RX goroutine does not limit line
	// length.
	ErrLineTooLong = errors.New("response line too long")

	// ErrCommandError names the sticky StatusCommandError state. That
	// state is set when writing a command to the transport fails; an
	// ERROR result or a timeout does not set it. While it holds, every
	// AT lock attempt returns atFailure without sending anything. No
	// function in this package returns this error value.
	ErrCommandError = errors.New("AT command protocol error")

	// ErrPowerOnFailed names a failed power-on. No function in this
	// package returns it: when both power-on attempts fail, the
	// lifecycle sets StatusPowerOnFailure and Run returns nil.
	ErrPowerOnFailed = errors.New("modem power-on failed")

	// ErrAutoBaudFailed names a failed start sequence. No function in
	// this package returns it: the lifecycle sets StatusAutoBaudFailure
	// instead.
	ErrAutoBaudFailed = errors.New("modem autobaud detection failed")

	// ErrNoSocketChannel names the lack of a free socket channel. No
	// function in this package returns it: CreateSocket always returns a
	// Socket, and one that gets no channel stays queued.
	ErrNoSocketChannel = errors.New("no free socket channel")

	// ErrSocketClosed names I/O on a closed socket. No function in this
	// package returns it: Socket reads and writes on a closed queue
	// return the unexported "queue closed" error.
	ErrSocketClosed = errors.New("socket closed")

	errQueueClosed = errors.New("queue closed")
)
