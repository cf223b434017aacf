package transport

import (
	"bytes"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/breeze-rmm/remote-desktop/internal/wireproto"
)

// dataChannelLabel is the single reliable-ordered channel this adapter
// uses to carry framed Commands/Responses.
const dataChannelLabel = "remote-desktop"

// webrtcConnection implements Connection over a single reliable ordered
// *webrtc.DataChannel. The length prefix is still required on this path
// since data-channel message boundaries are not guaranteed to align
// with application records once buffered by lower layers.
type webrtcConnection struct {
	peer       *webrtc.PeerConnection
	dc         *webrtc.DataChannel
	reader     *chanReader
	remoteAddr string
	writeMu    sync.Mutex
	closeOnce  sync.Once
}

// NewWebRTCConnection wraps an already-open reliable-ordered data
// channel in the Connection contract.
func NewWebRTCConnection(peer *webrtc.PeerConnection, dc *webrtc.DataChannel, remoteAddr string) Connection {
	reader := newChanReader()
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		reader.push(msg.Data)
	})
	dc.OnClose(func() {
		reader.close()
	})
	return &webrtcConnection{peer: peer, dc: dc, reader: reader, remoteAddr: remoteAddr}
}

// AcceptDataChannel registers the label this package expects and blocks
// until the remote peer opens it, returning a ready Connection. Used by
// the server side after SetRemoteDescription.
func AcceptDataChannel(peer *webrtc.PeerConnection, remoteAddr string) (Connection, error) {
	opened := make(chan *webrtc.DataChannel, 1)
	peer.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != dataChannelLabel {
			return
		}
		select {
		case opened <- dc:
		default:
		}
	})
	dc := <-opened
	return NewWebRTCConnection(peer, dc, remoteAddr), nil
}

// DialDataChannel creates the reliable-ordered channel on the client
// side, to be negotiated into the SDP offer before signaling.
func DialDataChannel(peer *webrtc.PeerConnection, remoteAddr string) (Connection, error) {
	ordered := true
	dc, err := peer.CreateDataChannel(dataChannelLabel, &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		return nil, wrapIo(err)
	}
	return NewWebRTCConnection(peer, dc, remoteAddr), nil
}

func (c *webrtcConnection) Send(resp wireproto.Response) error {
	data, err := wireproto.EncodeResponse(resp)
	if err != nil {
		return wrapProtocol(err)
	}
	return c.sendFramed(data)
}

func (c *webrtcConnection) SendRaw(data []byte) error {
	return c.sendFramed(data)
}

func (c *webrtcConnection) sendFramed(payload []byte) error {
	buf := new(bytes.Buffer)
	if err := wireproto.WriteFrame(buf, payload); err != nil {
		return wrapProtocol(err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.dc.Send(buf.Bytes()); err != nil {
		return wrapIo(err)
	}
	return nil
}

func (c *webrtcConnection) Receive() (wireproto.Command, error) {
	cmd, err := wireproto.ReadCommand(c.reader)
	if err != nil {
		if err == io.EOF {
			return wireproto.Command{}, ErrClosed
		}
		if _, isTimeout := err.(timeoutError); isTimeout {
			return wireproto.Command{}, ErrTimeout
		}
		if err == io.ErrUnexpectedEOF || err == wireproto.ErrFrameTooLarge {
			return wireproto.Command{}, wrapProtocol(err)
		}
		return wireproto.Command{}, wrapIo(err)
	}
	return cmd, nil
}

func (c *webrtcConnection) SetTimeout(d time.Duration) {
	if d <= 0 {
		c.reader.setDeadline(time.Time{})
		return
	}
	c.reader.setDeadline(time.Now().Add(d))
}

func (c *webrtcConnection) RemoteAddr() string {
	return c.remoteAddr
}

func (c *webrtcConnection) Close() error {
	var closeErr error
	c.closeOnce.Do(func() {
		c.reader.close()
		if err := c.dc.Close(); err != nil {
			closeErr = err
		}
		if c.peer != nil {
			if err := c.peer.Close(); err != nil && closeErr == nil {
				closeErr = err
			}
		}
	})
	return wrapIo(closeErr)
}

// chanReader turns the async OnMessage callback into a blocking
// io.Reader so wireproto.ReadFrame/ReadCommand can be reused unchanged
// over a data channel.
type chanReader struct {
	msgCh     chan []byte
	buf       []byte
	deadline  atomic.Value
	closeOnce sync.Once
}

func newChanReader() *chanReader {
	return &chanReader{msgCh: make(chan []byte, 64)}
}

func (r *chanReader) push(data []byte) {
	cp := make([]byte, len(data))
	copy(cp, data)
	defer func() { recover() }() // closed channel after Close races with a late OnMessage
	r.msgCh <- cp
}

func (r *chanReader) close() {
	r.closeOnce.Do(func() { close(r.msgCh) })
}

func (r *chanReader) setDeadline(t time.Time) {
	r.deadline.Store(t)
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "transport: webrtc data channel read timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func (r *chanReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		var timeoutCh <-chan time.Time
		if dl, ok := r.deadline.Load().(time.Time); ok && !dl.IsZero() {
			remaining := time.Until(dl)
			if remaining <= 0 {
				return 0, timeoutError{}
			}
			timer := time.NewTimer(remaining)
			defer timer.Stop()
			timeoutCh = timer.C
		}
		select {
		case b, ok := <-r.msgCh:
			if !ok {
				return 0, io.EOF
			}
			r.buf = b
		case <-timeoutCh:
			return 0, timeoutError{}
		}
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}
