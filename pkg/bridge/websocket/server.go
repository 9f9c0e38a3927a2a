package websocket

import (
	"context"
	"net"
	"net/http"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	"github.com/robotalks/stmlink/pkg/bridge"
	fx "github.com/robotalks/stmlink/pkg/framework"
	"github.com/robotalks/stmlink/pkg/msgs"
)

// DefaultPath is where Server mounts the bridge.
const DefaultPath = "/bridge"

// Handler serves one bridge per websocket connection.
type Handler struct {
	Hub   *bridge.Hub
	Link  bridge.Link
	Codec msgs.Codec

	ctx context.Context
}

// NewHandler creates a Handler. Connections end when ctx is canceled.
func NewHandler(ctx context.Context, hub *bridge.Hub, link bridge.Link) *Handler {
	return &Handler{Hub: hub, Link: link, ctx: ctx}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(h.serveConn).ServeHTTP(w, r)
}

func (h *Handler) serveConn(conn *websocket.Conn) {
	ctx := h.ctx
	if ctx == nil {
		ctx = conn.Request().Context()
	}
	b := bridge.New(New(conn), h.Link)
	if h.Codec != nil {
		b.WithCodec(h.Codec)
	}
	remote := conn.Request().RemoteAddr
	glog.Infof("websocket bridge: %s connected", remote)
	err := h.Hub.Serve(ctx, b)
	glog.Infof("websocket bridge: %s disconnected: %v", remote, err)
}

// Server listens on Addr and serves a Handler at DefaultPath.
type Server struct {
	Addr  string
	Hub   *bridge.Hub
	Link  bridge.Link
	Codec msgs.Codec
}

// Run implements Runnable.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	glog.Infof("websocket bridge listening on %s", ln.Addr())
	return s.Serve(ctx, ln)
}

// Serve serves HTTP on ln until ctx is canceled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	h := NewHandler(ctx, s.Hub, s.Link)
	h.Codec = s.Codec
	mux := http.NewServeMux()
	mux.Handle(DefaultPath, h)
	srv := &http.Server{Handler: mux}
	return fx.RunWithContextCancel(ctx, func() { srv.Close() }, func() error {
		return srv.Serve(ln)
	})
}
