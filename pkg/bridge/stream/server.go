package stream

import (
	"context"
	"net"

	"github.com/golang/glog"

	"github.com/robotalks/stmlink/pkg/bridge"
	fx "github.com/robotalks/stmlink/pkg/framework"
	"github.com/robotalks/stmlink/pkg/msgs"
)

// Server accepts TCP connections and serves a bridge on each.
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
	glog.Infof("stream bridge listening on %s", ln.Addr())
	return s.Serve(ctx, ln)
}

// Serve accepts connections from ln until ctx is canceled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	return fx.RunWithContextCloser(ctx, ln, func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return err
			}
			go s.serveConn(ctx, conn)
		}
	})
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	b := bridge.New(New(conn), s.Link)
	if s.Codec != nil {
		b.WithCodec(s.Codec)
	}
	glog.Infof("stream bridge: %s connected", conn.RemoteAddr())
	err := s.Hub.Serve(ctx, b)
	glog.Infof("stream bridge: %s disconnected: %v", conn.RemoteAddr(), err)
}
