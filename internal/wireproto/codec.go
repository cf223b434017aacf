package wireproto

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// MaxFrameLength is the largest accepted payload, in bytes. Longer
// declared lengths fail the connection immediately.
const MaxFrameLength = 16 * 1024 * 1024

// ErrFrameTooLarge is returned by ReadFrame when the declared length
// exceeds MaxFrameLength.
var ErrFrameTooLarge = fmt.Errorf("wireproto: frame exceeds %d bytes", MaxFrameLength)

// WriteFrame writes a 4-byte big-endian length prefix followed by payload.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameLength {
		return ErrFrameTooLarge
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadFrame reads a length-prefixed frame. A short read after a valid
// length prefix is reported as io.ErrUnexpectedEOF.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(header[:])
	if length > MaxFrameLength {
		return nil, ErrFrameTooLarge
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// EncodeCommand marshals a Command to its wire JSON representation.
func EncodeCommand(cmd Command) ([]byte, error) {
	return json.Marshal(cmd)
}

// DecodeCommand unmarshals a Command from its wire JSON representation.
func DecodeCommand(data []byte) (Command, error) {
	var cmd Command
	err := json.Unmarshal(data, &cmd)
	return cmd, err
}

// EncodeResponse marshals a Response to its wire JSON representation.
func EncodeResponse(resp Response) ([]byte, error) {
	return json.Marshal(resp)
}

// DecodeResponse unmarshals a Response from its wire JSON representation.
func DecodeResponse(data []byte) (Response, error) {
	var resp Response
	err := json.Unmarshal(data, &resp)
	return resp, err
}

// WriteCommand frames and writes a Command.
func WriteCommand(w io.Writer, cmd Command) error {
	data, err := EncodeCommand(cmd)
	if err != nil {
		return err
	}
	return WriteFrame(w, data)
}

// ReadCommand reads and decodes one framed Command.
func ReadCommand(r io.Reader) (Command, error) {
	data, err := ReadFrame(r)
	if err != nil {
		return Command{}, err
	}
	return DecodeCommand(data)
}

// WriteResponse frames and writes a Response.
func WriteResponse(w io.Writer, resp Response) error {
	data, err := EncodeResponse(resp)
	if err != nil {
		return err
	}
	return WriteFrame(w, data)
}

// ReadResponse reads and decodes one framed Response.
func ReadResponse(r io.Reader) (Response, error) {
	data, err := ReadFrame(r)
	if err != nil {
		return Response{}, err
	}
	return DecodeResponse(data)
}
