package env

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/golang/glog"

	"github.com/robotalks/stmlink/pkg/bridge"
	"github.com/robotalks/stmlink/pkg/bridge/mqtt"
	"github.com/robotalks/stmlink/pkg/bridge/stream"
	"github.com/robotalks/stmlink/pkg/bridge/websocket"
	"github.com/robotalks/stmlink/pkg/fota"
	"github.com/robotalks/stmlink/pkg/fota/httpsource"
	fx "github.com/robotalks/stmlink/pkg/framework"
	"github.com/robotalks/stmlink/pkg/msgs"
	"github.com/robotalks/stmlink/pkg/profile"
	"github.com/robotalks/stmlink/pkg/transport"
	"github.com/robotalks/stmlink/pkg/uart"
	"github.com/robotalks/stmlink/pkg/wire"
)

// ErrNoPort is returned when no port is configured.
var ErrNoPort = errors.New("port must be specified")

// Env holds the wired components of a dongle link.
type Env struct {
	Config    *Config
	Port      io.ReadWriteCloser
	Transport *transport.Transport
	Mux       *profile.Mux
	Hub       *bridge.Hub
	// Workflow is nil without an image URL.
	Workflow *fota.Workflow
	// OnRestart is called when the peer asks the dongle to restart.
	OnRestart func()

	runnables []fx.Runnable
}

// NewEnv opens the port and creates Env from config.
func (c *Config) NewEnv() (*Env, error) {
	if c.Port == "" {
		return nil, ErrNoPort
	}
	uartConf := c.UART
	uartConf.Name, uartConf.Baud = c.Port, c.Transport.Baud
	port, err := uart.Open(uartConf)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", c.Port, err)
	}
	env, err := c.NewEnvWith(port)
	if err != nil {
		port.Close()
		return nil, err
	}
	return env, nil
}

// NewEnvWith creates Env over an opened port.
func (c *Config) NewEnvWith(port io.ReadWriteCloser) (*Env, error) {
	version, err := fota.ParseVersion(c.Version)
	if err != nil {
		return nil, fmt.Errorf("version %q: %w", c.Version, err)
	}
	codec, err := msgs.CodecByName(c.Codec)
	if err != nil {
		return nil, err
	}
	if c.DeviceID == "" {
		c.DeviceID = MachineID()
	}

	env := &Env{
		Config:    c,
		Port:      port,
		Transport: transport.New(port, c.Transport),
		Mux:       profile.NewMux(),
		Hub:       bridge.NewHub(),
	}
	env.Mux.Fallback = env.Hub
	if err := env.Transport.Register(wire.CmdMainCharWrite, env.Mux); err != nil {
		return nil, err
	}
	env.Mux.Register(profile.ESP, &profile.ESPHandler{
		Version: profile.VersionFunc(func() ([4]byte, error) { return version, nil }),
		Writer:  profile.CharWriterFunc(env.Transport.TryWriteChar),
		Restart: env.restart,
	})

	if c.ImageURL != "" {
		src := httpsource.New(c.ImageURL)
		env.Workflow = fota.New(src, env.Transport, c.Fota)
		env.Workflow.Connectivity = src
		env.Workflow.Status = env.Hub
		env.Mux.Register(profile.STMFota, env.Workflow)
		env.runnables = append(env.runnables, fx.NamedRun("fota", env.Workflow))
	}

	if c.MQTTBrokerURL != "" {
		rw, err := mqtt.Dial(c.MQTTBrokerURL, c.DeviceID)
		if err != nil {
			return nil, fmt.Errorf("mqtt bridge: %w", err)
		}
		b := bridge.New(rw, env.Transport).WithCodec(codec)
		env.runnables = append(env.runnables,
			fx.NamedRun("mqtt", rw),
			fx.NamedRun("mqtt-bridge", fx.RunFunc(func(ctx context.Context) error {
				return env.Hub.Serve(ctx, b)
			})))
	}
	if c.WebSocketListen != "" {
		env.runnables = append(env.runnables, fx.NamedRun("websocket-bridge", &websocket.Server{
			Addr:  c.WebSocketListen,
			Hub:   env.Hub,
			Link:  env.Transport,
			Codec: codec,
		}))
	}
	if c.TCPListen != "" {
		env.runnables = append(env.runnables, fx.NamedRun("stream-bridge", &stream.Server{
			Addr:  c.TCPListen,
			Hub:   env.Hub,
			Link:  env.Transport,
			Codec: codec,
		}))
	}
	return env, nil
}

// MustNewEnv creates Env and fails on error.
func (c *Config) MustNewEnv() *Env {
	env, err := c.NewEnv()
	if err != nil {
		log.Fatalln(err)
	}
	return env
}

func (e *Env) restart() {
	if fn := e.OnRestart; fn != nil {
		fn()
		return
	}
	glog.Warning("restart requested by peer, ignored")
}

// Runnables returns the workflow and bridges.
func (e *Env) Runnables() []fx.Runnable {
	return e.runnables
}

// AddToLoop adds the transport, the workflow and bridges to loop.
func (e *Env) AddToLoop(loop *fx.Loop) {
	loop.Add(e.Transport)
	loop.AddRunnable(e.runnables...)
}

// Close implements io.Closer.
func (e *Env) Close() error {
	return e.Port.Close()
}
