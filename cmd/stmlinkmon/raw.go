package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/robotalks/stmlink/pkg/profile"
	"github.com/robotalks/stmlink/pkg/ring"
	"github.com/robotalks/stmlink/pkg/uart"
	"github.com/robotalks/stmlink/pkg/wire"
)

var rawCmd = &cobra.Command{
	Use:   "raw",
	Short: "Display decoded frames of the link",
	Long: `Continuously decode frames arriving on the port and display each with a
timestamp, its command and decoded message. Bytes outside valid frames are
skipped.`,
	RunE: runRaw,
}

func init() {
	rootCmd.AddCommand(rawCmd)
}

func runRaw(cmd *cobra.Command, args []string) error {
	if portName == "" {
		return errors.New("--port is required")
	}
	conf := uart.DefaultConfig()
	conf.Name, conf.Baud = portName, baudRate
	port, err := uart.Open(conf)
	if err != nil {
		return err
	}
	defer port.Close()

	fmt.Printf("stmlinkmon - frames on %s\n", portName)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	buf := ring.MustNew(2 * wire.MaxFrameSize)
	var dec wire.Decoder
	data := make([]byte, 128)
	for {
		n, err := port.Read(data)
		for _, b := range data[:n] {
			if buf.Push(b) != nil {
				// the decoder fell behind a garbage stream
				buf.Pop()
				dec.Reset()
				buf.Push(b)
			}
		}
		for {
			res := dec.Decode(buf, wire.ModeUntilEmpty)
			if res.Status != wire.DecodeOK {
				break
			}
			fmt.Println(FormatPayload(time.Now(), res.Payload))
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Printf("Connection closed")
				return nil
			}
			return err
		}
	}
}

// FormatPayload renders a frame payload for display.
func FormatPayload(ts time.Time, payload []byte) string {
	stamp := ts.Format("15:04:05.000")
	if payload[0] == wire.CmdAck {
		if ack, ok := wire.ParseAck(payload[1:]); ok {
			return fmt.Sprintf("%s ACK cmd=%d %s/%d", stamp, ack.Command, profile.Name(ack.Profile), ack.Char)
		}
		return fmt.Sprintf("%s ACK % x", stamp, payload[1:])
	}
	msg, err := wire.ParseMessage(payload)
	if err != nil {
		return fmt.Sprintf("%s cmd=%d % x", stamp, payload[0], payload[1:])
	}
	return fmt.Sprintf("%s cmd=%d %s/%d [%d] % x", stamp, msg.Command, profile.Name(msg.Profile), msg.Char, len(msg.Data), msg.Data)
}
