package env

import (
	"flag"
	"os"
	"strconv"

	"github.com/robotalks/stmlink/pkg/fota"
	"github.com/robotalks/stmlink/pkg/transport"
	"github.com/robotalks/stmlink/pkg/uart"
)

// Config provides the options to set up an Env.
type Config struct {
	// Port is a serial device or a ws:// URL of a remote port.
	Port string
	// DeviceID names the dongle on the MQTT bridge.
	DeviceID string
	// Version is the running version reported on the ESP profile.
	Version string

	// ImageURL enables the firmware transfer from an HTTP server.
	ImageURL string

	// MQTTBrokerURL enables the MQTT bridge,
	// e.g. mqtt://host:port/topic-prefix/
	MQTTBrokerURL string
	// WebSocketListen enables the websocket bridge on the address.
	WebSocketListen string
	// TCPListen enables the stream bridge on the address.
	TCPListen string
	// Codec is the encoding of bridge packets: proto or cbor.
	Codec string

	UART      uart.Config
	Transport transport.Config
	Fota      fota.Config
}

var defaultConfig = Config{
	Version:       "0.0.0.0",
	MQTTBrokerURL: "",
	Codec:         "proto",
	UART:          uart.DefaultConfig(),
	Transport:     transport.DefaultConfig(),
	Fota:          fota.DefaultConfig(),
}

func init() {
	if val := os.Getenv("STMLINK_PORT"); val != "" {
		defaultConfig.Port = val
	}
	if val := os.Getenv("STMLINK_BAUD"); val != "" {
		if baud, err := strconv.Atoi(val); err == nil && baud > 0 {
			defaultConfig.Transport.Baud = baud
		}
	}
	if val := os.Getenv("STMLINK_IMAGE_URL"); val != "" {
		defaultConfig.ImageURL = val
	}
	if val := os.Getenv("STMLINK_MQTT_URL"); val != "" {
		defaultConfig.MQTTBrokerURL = val
	}
	if val := os.Getenv("STMLINK_WS_LISTEN"); val != "" {
		defaultConfig.WebSocketListen = val
	}
	if val := os.Getenv("STMLINK_TCP_LISTEN"); val != "" {
		defaultConfig.TCPListen = val
	}
	if val := os.Getenv("STMLINK_DEVICE_ID"); val != "" {
		defaultConfig.DeviceID = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.Port, "port", defaultConfig.Port, "Serial port or ws:// URL")
	flag.IntVar(&defaultConfig.Transport.Baud, "baud", defaultConfig.Transport.Baud, "Baud rate")
	flag.StringVar(&defaultConfig.DeviceID, "id", defaultConfig.DeviceID, "Device ID, machine id if empty")
	flag.StringVar(&defaultConfig.Version, "version", defaultConfig.Version, "Running version reported to the peer")
	flag.StringVar(&defaultConfig.ImageURL, "image", defaultConfig.ImageURL, "Firmware image URL")
	flag.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt", defaultConfig.MQTTBrokerURL, "MQTT broker URL")
	flag.StringVar(&defaultConfig.WebSocketListen, "ws", defaultConfig.WebSocketListen, "Websocket bridge listen address")
	flag.StringVar(&defaultConfig.TCPListen, "tcp", defaultConfig.TCPListen, "TCP bridge listen address")
	flag.StringVar(&defaultConfig.Codec, "codec", defaultConfig.Codec, "Bridge packet encoding: proto, cbor")
	flag.IntVar(&defaultConfig.Transport.AckAttempts, "ack-attempts", defaultConfig.Transport.AckAttempts, "Sends of an outbound frame before it is dropped")
	flag.DurationVar(&defaultConfig.Transport.AckTimeout, "ack-timeout", defaultConfig.Transport.AckTimeout, "Wait for an ACK")
	flag.IntVar(&defaultConfig.Fota.Attempts, "fota-attempts", defaultConfig.Fota.Attempts, "Failures tolerated per transfer state")
	flag.DurationVar(&defaultConfig.Fota.SuspendPeriod, "fota-suspend", defaultConfig.Fota.SuspendPeriod, "Wait before checking for a new image again")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}
