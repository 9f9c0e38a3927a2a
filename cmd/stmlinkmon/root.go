package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	portName string
	baudRate int
	mqttURL  = "mqtt://localhost:1883/"
	codec    string
)

var rootCmd = &cobra.Command{
	Use:   "stmlinkmon",
	Short: "Dongle serial link monitor",
	Long: `stmlinkmon decodes traffic of the dongle link.

  raw:   frames on a serial port or ws:// remote port
  mqtt:  bridge packets on an MQTT broker
  ports: available serial ports`,
	SilenceUsage: true,
}

func init() {
	if val := os.Getenv("STMLINK_MQTT_URL"); val != "" {
		mqttURL = val
	}
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", os.Getenv("STMLINK_PORT"), "Serial port device or ws:// URL")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")
	rootCmd.PersistentFlags().StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL")
	rootCmd.PersistentFlags().StringVar(&codec, "codec", "proto", "Bridge packet encoding: proto, cbor")
}
