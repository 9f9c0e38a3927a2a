package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/robotalks/stmlink/pkg/bridge/mqtt"
	"github.com/robotalks/stmlink/pkg/msgs"
)

var mqttCmd = &cobra.Command{
	Use:   "mqtt",
	Short: "Display bridge packets published on the MQTT broker",
	RunE:  runMQTT,
}

func init() {
	rootCmd.AddCommand(mqttCmd)
}

func runMQTT(cmd *cobra.Command, args []string) error {
	c, err := msgs.CodecByName(codec)
	if err != nil {
		return err
	}
	log.SetFlags(log.Lmicroseconds)
	opts, prefix, err := mqtt.ClientOptionsFromURL(mqttURL)
	if err != nil {
		return err
	}
	q := mqtt.NewQueue(opts, prefix)
	token := q.Connect()
	if token.Wait(); token.Error() != nil {
		return token.Error()
	}
	defer q.Close()

	q.Sub("#", func(topic string, payload []byte) {
		var pkt msgs.Packet
		if err := c.Unmarshal(payload, &pkt); err != nil {
			log.Printf("%s: bad packet: %v", topic, err)
			return
		}
		log.Printf("%s: %s", topic, pkt.String())
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	return nil
}
