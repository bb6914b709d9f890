package detector

import (
	"context"
	"image"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"liveview/internal/config"
	"liveview/internal/log"
	"liveview/internal/models"
)

func init() {
	Register("websocket", func(cfg config.DetectorConfig) (Detector, error) {
		return NewRemoteDetector(cfg.Address, timeoutOf(cfg), cfg.UploadMaxSide), nil
	})
}

// frameHeader precedes every binary JPEG frame on the socket.
type frameHeader struct {
	ID         string `json:"id"`
	MaxResults int    `json:"max_results"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
}

// frameResult is the server's answer to one frame.
type frameResult struct {
	ID         string                `json:"id"`
	Detections []models.RawDetection `json:"detections"`
	Error      string                `json:"error,omitempty"`
}

// RemoteDetector sends frames to a detection server over a websocket and
// waits for the matching answer. The connection is opened on first use and
// re-dialled after any transport error.
type RemoteDetector struct {
	serverURL     string
	timeout       time.Duration
	uploadMaxSide int
	dialer        *websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewRemoteDetector(host string, timeout time.Duration, uploadMaxSide int) *RemoteDetector {
	u := url.URL{Scheme: "ws", Host: host, Path: "/ws"}

	return &RemoteDetector{
		serverURL:     u.String(),
		timeout:       timeout,
		uploadMaxSide: uploadMaxSide,
		dialer:        websocket.DefaultDialer,
	}
}

func (d *RemoteDetector) URL() string { return d.serverURL }

func (d *RemoteDetector) connect(ctx context.Context) (*websocket.Conn, error) {
	if d.conn != nil {
		return d.conn, nil
	}

	log.Info("connecting to detector server", "url", d.serverURL)
	conn, _, err := d.dialer.DialContext(ctx, d.serverURL, nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrapf(ErrNotConnected, "dial %s: %v", d.serverURL, err)
	}
	log.Info("connected to detection server", "url", d.serverURL)
	d.conn = conn
	return conn, nil
}

func (d *RemoteDetector) drop() {
	if d.conn != nil {
		_ = d.conn.Close()
		d.conn = nil
	}
}

func (d *RemoteDetector) Detect(ctx context.Context, frame image.Image, maxResults int) ([]models.RawDetection, error) {
	up, err := encodeFrame(frame, d.uploadMaxSide)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	conn, err := d.connect(ctx)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(d.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	// unblock pending reads and writes when ctx is cancelled
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
		_ = conn.SetWriteDeadline(time.Now())
	})
	defer stop()

	header := frameHeader{
		ID:         uuid.NewString(),
		MaxResults: maxResults,
		Width:      up.width,
		Height:     up.height,
	}

	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteJSON(header); err != nil {
		return nil, d.fail(ctx, err, "send header")
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, up.data); err != nil {
		return nil, d.fail(ctx, err, "send frame")
	}

	_ = conn.SetReadDeadline(deadline)
	for {
		var res frameResult
		if err := conn.ReadJSON(&res); err != nil {
			return nil, d.fail(ctx, err, "read result")
		}
		if res.ID != header.ID {
			log.Debug("discarding stale detector result", "id", res.ID, "want", header.ID)
			continue
		}
		if res.Error != "" {
			return nil, errors.Errorf("detector server: %s", res.Error)
		}
		return Rank(up.toNative(res.Detections), maxResults), nil
	}
}

func (d *RemoteDetector) fail(ctx context.Context, err error, op string) error {
	d.drop()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return errors.Wrap(err, op)
}

func (d *RemoteDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return nil
	}
	_ = d.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	err := d.conn.Close()
	d.conn = nil
	return err
}
