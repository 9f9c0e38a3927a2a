package sh

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/stmlink/pkg/bridge"
	env "github.com/robotalks/stmlink/pkg/env"
	fx "github.com/robotalks/stmlink/pkg/framework"
	"github.com/robotalks/stmlink/pkg/profile"
	"github.com/robotalks/stmlink/pkg/uart"
)

// Shell provides ishell backed interactive shell over a dongle link.
type Shell struct {
	Interactive bool
	OutputJSON  bool

	Shell  *ishell.Shell
	Config *env.Config
	Env    *env.Env

	cancel func()
	done   chan error
}

const shellKey = "$shell"

var (
	// flags

	evalOnly   bool
	outputJSON bool

	commands = []*ishell.Cmd{
		&WriteCmd,
		&ReqAllCmd,
		&LinkCmd,
		&StatusCmd,
		&PauseCmd,
		&ResumeCmd,
		&PortsCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt("[" + conf.Port + "] > ")
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeOpen wraps command func requires an open link.
func MustBeOpen(fn func(c *ishell.Context, e *env.Env)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		e := ShellFrom(c).Env
		if e == nil {
			c.Err(fmt.Errorf("link not open"))
			return
		}
		fn(c, e)
	}
}

// Open opens the link and starts the loop in background.
func (s *Shell) Open() error {
	e, err := s.Config.NewEnv()
	if err != nil {
		return err
	}
	// values from the peer are shown and still reach the bridges
	hub := e.Mux.Fallback
	e.Mux.Fallback = printer{s: s, next: hub}

	ctx, cancel := context.WithCancel(context.Background())
	loop := fx.NewLoop()
	e.AddToLoop(loop)
	s.Env, s.cancel, s.done = e, cancel, make(chan error, 1)
	go func() { s.done <- loop.Run(ctx) }()
	return nil
}

// Close stops the loop and closes the link.
func (s *Shell) Close() {
	if s.Env == nil {
		return
	}
	s.cancel()
	<-s.done
	s.Env.Close()
	s.Env = nil
}

// Print prints v in JSON or as text.
func (s *Shell) Print(c *ishell.Context, v interface{}, text string) {
	if s.OutputJSON {
		out, err := json.Marshal(v)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	c.Println(text)
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if err := s.Open(); err != nil {
		log.Fatalf("open %q failed: %v", s.Config.Port, err)
	}
	defer s.Close()

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

type printer struct {
	s    *Shell
	next profile.Handler
}

func (p printer) HandleProfileChar(ctx context.Context, prof, char byte, data []byte) {
	p.s.Shell.Printf("%s/%d: % x\n", profile.Name(prof), char, data)
	if p.next != nil {
		p.next.HandleProfileChar(ctx, prof, char, data)
	}
}

// ParseProfile parses a profile id or name.
func ParseProfile(s string) (byte, error) {
	for id := 0; id < profile.Count; id++ {
		if profile.Name(byte(id)) == s {
			return byte(id), nil
		}
	}
	return parseByte(s)
}

func parseByte(s string) (byte, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid byte %q", s)
	}
	return byte(v), nil
}

var (
	// WriteCmd writes a characteristic of the peer.
	WriteCmd = ishell.Cmd{
		Name:    "write",
		Aliases: []string{"w"},
		Help:    "PROFILE CHAR [HEX]",
		Func: MustBeOpen(func(c *ishell.Context, e *env.Env) {
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("PROFILE CHAR expected"))
				return
			}
			prof, err := ParseProfile(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			char, err := parseByte(c.Args[1])
			if err != nil {
				c.Err(err)
				return
			}
			data, err := hex.DecodeString(strings.Join(c.Args[2:], ""))
			if err != nil {
				c.Err(err)
				return
			}
			if err := e.Transport.WriteChar(prof, char, data); err != nil {
				c.Err(err)
				return
			}
			c.Println("OK")
		}),
	}

	// ReqAllCmd asks the peer for every characteristic of a profile.
	ReqAllCmd = ishell.Cmd{
		Name: "reqall",
		Help: "PROFILE",
		Func: MustBeOpen(func(c *ishell.Context, e *env.Env) {
			if len(c.Args) != 1 {
				c.Err(fmt.Errorf("PROFILE expected"))
				return
			}
			prof, err := ParseProfile(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			if err := e.Transport.RequestAllChars(prof); err != nil {
				c.Err(err)
				return
			}
			c.Println("OK")
		}),
	}

	// LinkCmd shows whether the last frame was acknowledged.
	LinkCmd = ishell.Cmd{
		Name: "link",
		Help: "",
		Func: MustBeOpen(func(c *ishell.Context, e *env.Env) {
			received := e.Transport.LastPackageReceived()
			text := "up"
			if !received {
				text = "no ack"
			}
			ShellFrom(c).Print(c, map[string]bool{"last_package_received": received}, text)
		}),
	}

	// StatusCmd shows the firmware transfer status.
	StatusCmd = ishell.Cmd{
		Name:    "status",
		Aliases: []string{"s"},
		Help:    "",
		Func: MustBeOpen(func(c *ishell.Context, e *env.Env) {
			if e.Workflow == nil {
				c.Err(fmt.Errorf("firmware transfer disabled"))
				return
			}
			st := bridge.StatusFrom(e.Workflow.Snapshot())
			text := fmt.Sprintf("%s %.1f%% (%d/%d) available=%s running=%s",
				st.State, st.Progress, st.Offset, st.TotalLength, st.AvailableVersion, st.RunningVersion)
			if st.Paused {
				text += " paused"
			}
			if abort := e.Workflow.LastAbort(); abort != nil {
				text += "\nlast abort: " + abort.Error()
			}
			ShellFrom(c).Print(c, st, text)
		}),
	}

	// PauseCmd pauses the firmware transfer.
	PauseCmd = ishell.Cmd{
		Name: "fota.pause",
		Help: "",
		Func: MustBeOpen(func(c *ishell.Context, e *env.Env) {
			if e.Workflow == nil {
				c.Err(fmt.Errorf("firmware transfer disabled"))
				return
			}
			e.Workflow.Pause()
			c.Println("OK")
		}),
	}

	// ResumeCmd resumes the firmware transfer.
	ResumeCmd = ishell.Cmd{
		Name: "fota.resume",
		Help: "",
		Func: MustBeOpen(func(c *ishell.Context, e *env.Env) {
			if e.Workflow == nil {
				c.Err(fmt.Errorf("firmware transfer disabled"))
				return
			}
			e.Workflow.Resume()
			c.Println("OK")
		}),
	}

	// PortsCmd lists serial ports.
	PortsCmd = ishell.Cmd{
		Name: "ports",
		Help: "",
		Func: func(c *ishell.Context) {
			ports, err := uart.Ports()
			if err != nil {
				c.Err(err)
				return
			}
			ShellFrom(c).Print(c, ports, strings.Join(ports, "\n"))
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(env.NewConfig()).Run(flag.Args()...)
}
