// Package profile routes characteristic values from the peer to per
// profile handlers.
package profile

// Profile ids.
const (
	General byte = iota
	DeviceConfig
	Therapy
	Calibration
	WirelessConn
	FileUpload
	STMFota
	ESPFota
	TrackPosition
	ESP
	DebugUART

	// Count is the number of profiles.
	Count = int(DebugUART) + 1
)

var names = [...]string{
	"general",
	"device-config",
	"therapy",
	"calibration",
	"wireless-conn",
	"file-upload",
	"stm-fota",
	"esp-fota",
	"track-position",
	"esp",
	"debug-uart",
}

// Name returns the name of a profile id.
func Name(profile byte) string {
	if int(profile) < len(names) {
		return names[profile]
	}
	return "unknown"
}

// ESP profile chars.
const (
	CharESPVersion byte = 0
	CharESPRestart byte = 1
)
