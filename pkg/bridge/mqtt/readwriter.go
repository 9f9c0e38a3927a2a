package mqtt

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/golang/glog"
)

// Topic suffixes under the device name.
const (
	TopicCharsWrite = "chars/write"
	TopicCharsValue = "chars/value"
	TopicFotaStatus = "fota/status"
)

// ReadWriter implements bridge.PacketReadWriter and bridge.StatusWriter.
// Packets are read from <device>/chars/write and written to
// <device>/chars/value. Status is retained on <device>/fota/status.
type ReadWriter struct {
	Queue  *Queue
	Device string

	packetCh  chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewReadWriter creates the ReadWriter.
func NewReadWriter(q *Queue, device string) *ReadWriter {
	return &ReadWriter{
		Queue:    q,
		Device:   device,
		packetCh: make(chan []byte, 1),
		done:     make(chan struct{}),
	}
}

// Dial creates a Queue from brokerURL and the ReadWriter on it.
func Dial(brokerURL, device string) (*ReadWriter, error) {
	opts, prefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	if opts.ClientID == "" {
		opts.SetClientID("stmlink:" + device)
	}
	return NewReadWriter(NewQueue(opts, prefix), device), nil
}

// Topic returns the device topic of suffix.
func (p *ReadWriter) Topic(suffix string) string {
	return p.Device + "/" + suffix
}

// ReadPacket implements PacketReader.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	select {
	case pkt := <-p.packetCh:
		return pkt, nil
	case <-p.done:
		return nil, io.EOF
	}
}

// WritePacket implements PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	token := p.Queue.Pub(p.Topic(TopicCharsValue), pkt)
	token.Wait()
	return token.Error()
}

// WriteStatus implements StatusWriter.
func (p *ReadWriter) WriteStatus(pkt []byte) error {
	token := p.Queue.PubWith(p.Topic(TopicFotaStatus), pkt, 1, true)
	token.Wait()
	return token.Error()
}

// Close implements io.Closer.
func (p *ReadWriter) Close() error {
	p.closeOnce.Do(func() { close(p.done) })
	return nil
}

// Run implements Runnable.
func (p *ReadWriter) Run(ctx context.Context) error {
	token := p.Queue.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		p.Close()
		return fmt.Errorf("mqtt connect: %w", err)
	}
	sub := p.Queue.Sub(p.Topic(TopicCharsWrite), p.handleMsg)
	<-ctx.Done()
	if err := sub.Close(); err != nil {
		glog.Warningf("mqtt unsubscribe: %v", err)
	}
	p.Close()
	p.Queue.Close()
	return nil
}

func (p *ReadWriter) handleMsg(_ string, payload []byte) {
	select {
	case p.packetCh <- payload:
	case <-p.done:
	}
}
