package pose

import (
	"encoding/binary"
	"encoding/json"
	"io"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/sitsmart/coach/internal/errors"
)

// The worker streams length-prefixed msgpack messages on stdout:
// 4-byte big-endian payload length, then the payload. Control commands
// travel the other way as JSON lines on stdin.

// maxMessageSize bounds a single message; a full VGA JPEG preview plus
// landmarks stays well under this.
const maxMessageSize = 8 << 20

type wirePoint struct {
	X float64 `msgpack:"x"`
	Y float64 `msgpack:"y"`
	V float64 `msgpack:"v"`
}

type wireFrame struct {
	Seq         uint64               `msgpack:"seq"`
	TimestampNS int64                `msgpack:"timestamp_ns"`
	Width       int                  `msgpack:"width"`
	Height      int                  `msgpack:"height"`
	Detected    bool                 `msgpack:"detected"`
	Landmarks   map[string]wirePoint `msgpack:"landmarks"`
	Preview     []byte               `msgpack:"preview"`
	Error       string               `msgpack:"error"`
}

type command struct {
	Type    string         `json:"type"`
	Command string         `json:"command"`
	Params  map[string]any `json:"params,omitempty"`
}

// readMessage reads one length-prefixed msgpack message.
func readMessage(r io.Reader) (wireFrame, error) {
	var wf wireFrame

	lengthBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, lengthBuf); err != nil {
		if err == io.EOF {
			return wf, io.EOF
		}
		return wf, errors.Wrap(err, errors.CodeWorkerExited, "reading frame length prefix")
	}

	msgLength := binary.BigEndian.Uint32(lengthBuf)
	if msgLength == 0 || msgLength > maxMessageSize {
		return wf, errors.Newf(errors.CodeFrameDecodeFailed, "implausible frame length %d", msgLength)
	}

	payload := make([]byte, msgLength)
	if _, err := io.ReadFull(r, payload); err != nil {
		return wf, errors.Wrap(err, errors.CodeWorkerExited, "reading frame payload")
	}

	if err := msgpack.Unmarshal(payload, &wf); err != nil {
		return wf, errors.Wrap(err, errors.CodeFrameDecodeFailed, "unmarshaling frame")
	}
	return wf, nil
}

// writeMessage writes one length-prefixed msgpack message. Used by tests
// to stand in for the worker side of the protocol.
func writeMessage(w io.Writer, wf wireFrame) error {
	payload, err := msgpack.Marshal(wf)
	if err != nil {
		return errors.Wrap(err, errors.CodeFrameDecodeFailed, "marshaling frame")
	}

	lengthBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lengthBuf, uint32(len(payload)))
	if _, err := w.Write(lengthBuf); err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}

// writeCommand writes one JSON control command line.
func writeCommand(w io.Writer, name string, params map[string]any) error {
	data, err := json.Marshal(command{Type: "command", Command: name, Params: params})
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// toFrame converts a wire message to the public Frame type.
func (wf wireFrame) toFrame() Frame {
	f := Frame{
		Seq:       wf.Seq,
		Timestamp: time.Unix(0, wf.TimestampNS),
		Width:     wf.Width,
		Height:    wf.Height,
		Detected:  wf.Detected,
		Preview:   wf.Preview,
	}
	if wf.Detected && len(wf.Landmarks) > 0 {
		f.Points = make(map[Landmark]Point, len(wf.Landmarks))
		for name, p := range wf.Landmarks {
			f.Points[Landmark(name)] = Point{X: p.X, Y: p.Y, Visibility: p.V}
		}
	}
	return f
}
