package profile

import (
	"context"

	"github.com/golang/glog"
)

// VersionQuery reports the version running locally as major, minor,
// build and revision.
type VersionQuery interface {
	RunningVersion() ([4]byte, error)
}

// VersionFunc is the func form of VersionQuery.
type VersionFunc func() ([4]byte, error)

// RunningVersion implements VersionQuery.
func (f VersionFunc) RunningVersion() ([4]byte, error) {
	return f()
}

// ESPHandler answers the peer about this processor.
type ESPHandler struct {
	Version VersionQuery
	// Writer must not wait for space, the handler runs on the polling
	// goroutine of the link.
	Writer CharWriter
	// Restart is called on a restart request, ignored if nil.
	Restart func()
}

// HandleChar implements CharHandler.
func (h *ESPHandler) HandleChar(ctx context.Context, char byte, data []byte) {
	switch char {
	case CharESPVersion:
		ver, err := h.Version.RunningVersion()
		if err != nil {
			glog.Warningf("running version: %v", err)
			return
		}
		if err := h.Writer.WriteChar(ESP, CharESPVersion, ver[:]); err != nil {
			glog.Warningf("write version: %v", err)
		}
	case CharESPRestart:
		glog.Info("restart requested by peer")
		if h.Restart != nil {
			h.Restart()
		}
	}
}
