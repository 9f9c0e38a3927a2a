package transport

import (
	"time"

	"github.com/robotalks/stmlink/pkg/wire"
)

// Config defines the transport parameters.
type Config struct {
	// Baud is the line speed used to compute the settle delay.
	Baud int
	// TxFrames and RxFrames size the ring buffers in max-size frames.
	TxFrames int
	RxFrames int
	// Commands is the size of the command table.
	Commands int
	// AckAttempts is the total number of sends of a frame expecting ACK.
	AckAttempts int
	// AckTimeout is how long each send waits for the ACK.
	AckTimeout time.Duration
	// EnqueueTimeout bounds the wait for TX ring space.
	EnqueueTimeout time.Duration
	// SettleFactor scales the line time of a frame into the delay waited
	// before sending it.
	SettleFactor float64
	// PollInterval is the interval of the polling loop when Run is used.
	PollInterval time.Duration
	// ReadSize is the size of a single read from the port.
	ReadSize int
}

// DefaultConfig returns the default Config.
func DefaultConfig() Config {
	return Config{
		Baud:           115200,
		TxFrames:       10,
		RxFrames:       2,
		Commands:       2,
		AckAttempts:    1,
		AckTimeout:     100 * time.Millisecond,
		EnqueueTimeout: 100 * time.Millisecond,
		SettleFactor:   DefaultSettleFactor,
		PollInterval:   5 * time.Millisecond,
		ReadSize:       wire.MaxFrameSize,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Baud <= 0 {
		c.Baud = d.Baud
	}
	if c.TxFrames <= 0 {
		c.TxFrames = d.TxFrames
	}
	if c.RxFrames <= 0 {
		c.RxFrames = d.RxFrames
	}
	if c.Commands <= 0 {
		c.Commands = d.Commands
	}
	if c.AckAttempts <= 0 {
		c.AckAttempts = d.AckAttempts
	}
	if c.AckTimeout <= 0 {
		c.AckTimeout = d.AckTimeout
	}
	if c.SettleFactor <= 0 {
		c.SettleFactor = d.SettleFactor
	}
	if c.ReadSize <= 0 {
		c.ReadSize = d.ReadSize
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	return c
}
