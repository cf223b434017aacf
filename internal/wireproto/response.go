package wireproto

import (
	"encoding/json"
	"fmt"
)

type AuthResultPayload struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type ScreenshotDataPayload struct {
	Data      []byte      `json:"data"`
	Format    ImageFormat `json:"format"`
	Width     int         `json:"width"`
	Height    int         `json:"height"`
	Timestamp int64       `json:"timestamp"`
}

type CommandResultPayload struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type SystemInfoPayload struct {
	CPUPercent   float64 `json:"cpu_percent"`
	MemPercent   float64 `json:"mem_percent"`
	MemUsedMB    uint64  `json:"mem_used_mb"`
	DiskPercent  float64 `json:"disk_percent"`
	UptimeSecs   uint64  `json:"uptime_secs"`
	ScreenWidth  int     `json:"screen_width"`
	ScreenHeight int     `json:"screen_height"`
}

type ClipboardContentPayload struct {
	Text string `json:"text"`
}

type FileTransferStatusPayload struct {
	TransferID string `json:"transfer_id"`
	Received   int64  `json:"received"`
	Total      int64  `json:"total"`
	Complete   bool   `json:"complete"`
}

type ConnectionStatusPayload struct {
	Connected bool `json:"connected"`
}

type PongPayload struct {
	OriginalTimestamp uint64 `json:"original_timestamp"`
	ServerTime        uint64 `json:"server_time"`
}

type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Response mirrors Command: a tagged union with exactly one non-nil field.
type Response struct {
	AuthResult         *AuthResultPayload         `json:"AuthResult,omitempty"`
	ScreenshotData     *ScreenshotDataPayload     `json:"ScreenshotData,omitempty"`
	CommandResult      *CommandResultPayload      `json:"CommandResult,omitempty"`
	SystemInfo         *SystemInfoPayload         `json:"SystemInfo,omitempty"`
	ClipboardContent   *ClipboardContentPayload   `json:"ClipboardContent,omitempty"`
	FileTransferStatus *FileTransferStatusPayload `json:"FileTransferStatus,omitempty"`
	ConnectionStatus   *ConnectionStatusPayload   `json:"ConnectionStatus,omitempty"`
	Pong               *PongPayload               `json:"Pong,omitempty"`
	Error              *ErrorPayload              `json:"Error,omitempty"`
}

type ResponseKind string

const (
	RespKindAuthResult         ResponseKind = "AuthResult"
	RespKindScreenshotData     ResponseKind = "ScreenshotData"
	RespKindCommandResult      ResponseKind = "CommandResult"
	RespKindSystemInfo         ResponseKind = "SystemInfo"
	RespKindClipboardContent   ResponseKind = "ClipboardContent"
	RespKindFileTransferStatus ResponseKind = "FileTransferStatus"
	RespKindConnectionStatus   ResponseKind = "ConnectionStatus"
	RespKindPong               ResponseKind = "Pong"
	RespKindError              ResponseKind = "Error"
	RespKindUnknown            ResponseKind = ""
)

func (r Response) Kind() ResponseKind {
	switch {
	case r.AuthResult != nil:
		return RespKindAuthResult
	case r.ScreenshotData != nil:
		return RespKindScreenshotData
	case r.CommandResult != nil:
		return RespKindCommandResult
	case r.SystemInfo != nil:
		return RespKindSystemInfo
	case r.ClipboardContent != nil:
		return RespKindClipboardContent
	case r.FileTransferStatus != nil:
		return RespKindFileTransferStatus
	case r.ConnectionStatus != nil:
		return RespKindConnectionStatus
	case r.Pong != nil:
		return RespKindPong
	case r.Error != nil:
		return RespKindError
	default:
		return RespKindUnknown
	}
}

func (r Response) MarshalJSON() ([]byte, error) {
	if r.Kind() == RespKindUnknown {
		return nil, fmt.Errorf("wireproto: response has no variant set")
	}
	type alias Response
	return json.Marshal(alias(r))
}

func (r *Response) UnmarshalJSON(data []byte) error {
	type alias Response
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*r = Response(a)
	if r.Kind() == RespKindUnknown {
		return fmt.Errorf("wireproto: unknown or empty response object")
	}
	return nil
}

// ErrorResponse is a convenience constructor used throughout the session
// engine's error paths.
func ErrorResponse(code int, message string) Response {
	return Response{Error: &ErrorPayload{Code: code, Message: message}}
}

// NewAuthResult constructs an AuthResult response.
func NewAuthResult(success bool, message string) Response {
	return Response{AuthResult: &AuthResultPayload{Success: success, Message: message}}
}

// NewCommandResult constructs a CommandResult response.
func NewCommandResult(success bool, message string) Response {
	return Response{CommandResult: &CommandResultPayload{Success: success, Message: message}}
}
