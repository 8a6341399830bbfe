package modem

import "time"

// Parity selects the UART parity mode negotiated during StartImpl.
// Even is the default: it catches low spikes on the line that would
// otherwise be read as a valid 0xFF byte with no parity at all.
type Parity int

const (
	ParityEven Parity = iota
	ParityOff
	ParityOdd
	ParityMark
	ParitySpace
)

// DiagnosticEvent identifies which leg of traffic a DiagnosticFunc call
// describes, mirroring ModemOptions::CallbackType.
type DiagnosticEvent int

const (
	DiagnosticCommandSend DiagnosticEvent = iota
	DiagnosticCommandReceive
	DiagnosticCommandError
	DiagnosticPowerSend
	DiagnosticPowerReceive
)

// DiagnosticFunc receives a copy of raw traffic for logging or capture.
// It must not block or retain data beyond the call.
type DiagnosticFunc func(event DiagnosticEvent, data []byte)

// Config holds the fully resolved configuration for a Modem. Build it
// with NewConfigBuilder rather than constructing it directly, so
// defaults stay centralized.
type Config struct {
	Dialer Dialer

	APN         string
	APNUser     string
	APNPassword string
	SimPIN      string
	RemovePin   bool

	FlowControl bool
	Parity      Parity

	ATTimeout         time.Duration
	ConnectTimeout    time.Duration
	DisconnectTimeout time.Duration
	PowerOffTimeout   time.Duration
	InitTimeout       time.Duration

	MinSendInterval time.Duration
	MaxRetries      int
	EchoOn          bool

	OnPinUsed   func()
	OnPowerOn   func()
	OnPowerOff  func()
	Diagnostic  DiagnosticFunc
}

func (c *Config) validate() error {
	if c.Dialer == nil {
		return ErrNoDialer
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.ATTimeout == 0 {
		c.ATTimeout = 5 * time.Second
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 30 * time.Second
	}
	if c.DisconnectTimeout == 0 {
		c.DisconnectTimeout = 10 * time.Second
	}
	// PowerOffTimeout left at zero means "infinite" (spec.md §6).
	if c.InitTimeout == 0 {
		c.InitTimeout = 30 * time.Second
	}
	if c.MinSendInterval == 0 {
		c.MinSendInterval = 2 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
}

func (c *Config) diagnostic(event DiagnosticEvent, data []byte) {
	if c.Diagnostic != nil {
		c.Diagnostic(event, data)
	}
}

// ConfigBuilder assembles a Config through chained calls, generalizing
// the original driver's ModemOptions virtual-hook collaborator
// (ModemOptions.h) into a single fluent value. Each With* method
// returns the builder so calls may be chained.
type ConfigBuilder struct {
	cfg Config
}

// NewConfigBuilder returns a builder with flow control on and even
// parity, matching the original driver's defaults.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{cfg: Config{
		FlowControl: true,
		Parity:      ParityEven,
		RemovePin:   true,
	}}
}

func (b *ConfigBuilder) WithDialer(d Dialer) *ConfigBuilder {
	b.cfg.Dialer = d
	return b
}

func (b *ConfigBuilder) WithAPN(apn, user, password string) *ConfigBuilder {
	b.cfg.APN = apn
	b.cfg.APNUser = user
	b.cfg.APNPassword = password
	return b
}

// WithPIN sets the SIM unlock PIN. removeAfterUse controls whether the
// PIN is cleared from Config once UnlockSimImpl reports success,
// mirroring ModemOptions::RemovePin/OnPinUsed.
func (b *ConfigBuilder) WithPIN(pin string, removeAfterUse bool) *ConfigBuilder {
	b.cfg.SimPIN = pin
	b.cfg.RemovePin = removeAfterUse
	return b
}

func (b *ConfigBuilder) WithFlowControl(enabled bool) *ConfigBuilder {
	b.cfg.FlowControl = enabled
	return b
}

func (b *ConfigBuilder) WithParity(p Parity) *ConfigBuilder {
	b.cfg.Parity = p
	return b
}

func (b *ConfigBuilder) WithATTimeout(d time.Duration) *ConfigBuilder {
	b.cfg.ATTimeout = d
	return b
}

func (b *ConfigBuilder) WithConnectTimeout(d time.Duration) *ConfigBuilder {
	b.cfg.ConnectTimeout = d
	return b
}

func (b *ConfigBuilder) WithDisconnectTimeout(d time.Duration) *ConfigBuilder {
	b.cfg.DisconnectTimeout = d
	return b
}

func (b *ConfigBuilder) WithPowerOffTimeout(d time.Duration) *ConfigBuilder {
	b.cfg.PowerOffTimeout = d
	return b
}

func (b *ConfigBuilder) WithInitTimeout(d time.Duration) *ConfigBuilder {
	b.cfg.InitTimeout = d
	return b
}

func (b *ConfigBuilder) WithMinSendInterval(d time.Duration) *ConfigBuilder {
	b.cfg.MinSendInterval = d
	return b
}

func (b *ConfigBuilder) WithMaxRetries(n int) *ConfigBuilder {
	b.cfg.MaxRetries = n
	return b
}

func (b *ConfigBuilder) WithEcho(on bool) *ConfigBuilder {
	b.cfg.EchoOn = on
	return b
}

func (b *ConfigBuilder) WithPowerHooks(onPowerOn, onPowerOff func()) *ConfigBuilder {
	b.cfg.OnPowerOn = onPowerOn
	b.cfg.OnPowerOff = onPowerOff
	return b
}

func (b *ConfigBuilder) WithPinUsedHook(onPinUsed func()) *ConfigBuilder {
	b.cfg.OnPinUsed = onPinUsed
	return b
}

func (b *ConfigBuilder) WithDiagnostic(fn DiagnosticFunc) *ConfigBuilder {
	b.cfg.Diagnostic = fn
	return b
}

// Build validates and returns the assembled Config, applying defaults
// for anything left unset.
func (b *ConfigBuilder) Build() (*Config, error) {
	cfg := b.cfg
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	return &cfg, nil
}
