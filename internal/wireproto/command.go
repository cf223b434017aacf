package wireproto

import (
	"encoding/json"
	"fmt"
)

// ClientInfo accompanies an Authenticate command.
type ClientInfo struct {
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}

type AuthenticatePayload struct {
	Username     string     `json:"username"`
	PasswordHash string     `json:"password_hash"`
	ClientInfo   ClientInfo `json:"client_info"`
}

type RequestScreenshotPayload struct {
	Quality *uint8  `json:"quality,omitempty"`
	Width   *uint32 `json:"width,omitempty"`
	Height  *uint32 `json:"height,omitempty"`
	Monitor *uint   `json:"monitor,omitempty"`
}

type MouseMovePayload struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
}

type MouseClickPayload struct {
	Button MouseButton `json:"button"`
	Double bool        `json:"double"`
}

type MouseButtonPayload struct {
	Button MouseButton `json:"button"`
}

type MouseScrollPayload struct {
	DeltaX int32 `json:"delta_x"`
	DeltaY int32 `json:"delta_y"`
}

type KeyEventPayload struct {
	KeyCode   uint32        `json:"key_code"`
	Modifiers []KeyModifier `json:"modifiers"`
}

type TextInputPayload struct {
	Text string `json:"text"`
}

type KeyComboPayload struct {
	KeyCodes  []uint32      `json:"key_codes"`
	Modifiers []KeyModifier `json:"modifiers"`
}

type SetQualityPayload struct {
	Quality uint8 `json:"quality"`
}

type SetImageFormatPayload struct {
	Format ImageFormat `json:"format"`
}

type SetFpsPayload struct {
	Fps uint8 `json:"fps"`
}

type PingPayload struct {
	Timestamp uint64 `json:"timestamp"`
}

type SetClipboardContentPayload struct {
	Text string `json:"text"`
}

type StartFileTransferPayload struct {
	TransferID string `json:"transfer_id"`
	Filename   string `json:"filename"`
	Size       int64  `json:"size"`
}

type FileDataPayload struct {
	TransferID string `json:"transfer_id"`
	Offset     int64  `json:"offset"`
	Data       []byte `json:"data"`
	Final      bool   `json:"final"`
}

type RunApplicationPayload struct {
	Path string   `json:"path"`
	Args []string `json:"args,omitempty"`
}

// Command is a transport-neutral tagged union. Exactly one field is
// non-nil; Kind reports which. Zero-payload variants (Disconnect,
// RequestSystemInfo, RequestClipboardContent) are represented by a
// sentinel non-nil empty struct so Kind can distinguish "not set" from
// "set with no fields."
type Command struct {
	Authenticate            *AuthenticatePayload        `json:"Authenticate,omitempty"`
	RequestScreenshot       *RequestScreenshotPayload   `json:"RequestScreenshot,omitempty"`
	MouseMove               *MouseMovePayload           `json:"MouseMove,omitempty"`
	MouseClick              *MouseClickPayload          `json:"MouseClick,omitempty"`
	MouseDown               *MouseButtonPayload         `json:"MouseDown,omitempty"`
	MouseUp                 *MouseButtonPayload         `json:"MouseUp,omitempty"`
	MouseScroll             *MouseScrollPayload         `json:"MouseScroll,omitempty"`
	KeyDown                 *KeyEventPayload            `json:"KeyDown,omitempty"`
	KeyUp                   *KeyEventPayload            `json:"KeyUp,omitempty"`
	TextInput               *TextInputPayload           `json:"TextInput,omitempty"`
	KeyCombo                *KeyComboPayload            `json:"KeyCombo,omitempty"`
	SetQuality              *SetQualityPayload          `json:"SetQuality,omitempty"`
	SetImageFormat          *SetImageFormatPayload      `json:"SetImageFormat,omitempty"`
	SetFps                  *SetFpsPayload              `json:"SetFps,omitempty"`
	RequestSystemInfo       *struct{}                   `json:"-"`
	RequestClipboardContent *struct{}                   `json:"-"`
	SetClipboardContent     *SetClipboardContentPayload `json:"SetClipboardContent,omitempty"`
	StartFileTransfer       *StartFileTransferPayload   `json:"StartFileTransfer,omitempty"`
	FileData                *FileDataPayload            `json:"FileData,omitempty"`
	RunApplication          *RunApplicationPayload      `json:"RunApplication,omitempty"`
	Ping                    *PingPayload                `json:"Ping,omitempty"`
	Disconnect              *struct{}                   `json:"-"`
}

// CommandKind names the variant currently set on a Command.
type CommandKind string

const (
	KindAuthenticate            CommandKind = "Authenticate"
	KindRequestScreenshot       CommandKind = "RequestScreenshot"
	KindMouseMove               CommandKind = "MouseMove"
	KindMouseClick              CommandKind = "MouseClick"
	KindMouseDown               CommandKind = "MouseDown"
	KindMouseUp                 CommandKind = "MouseUp"
	KindMouseScroll             CommandKind = "MouseScroll"
	KindKeyDown                 CommandKind = "KeyDown"
	KindKeyUp                   CommandKind = "KeyUp"
	KindTextInput               CommandKind = "TextInput"
	KindKeyCombo                CommandKind = "KeyCombo"
	KindSetQuality              CommandKind = "SetQuality"
	KindSetImageFormat          CommandKind = "SetImageFormat"
	KindSetFps                  CommandKind = "SetFps"
	KindRequestSystemInfo       CommandKind = "RequestSystemInfo"
	KindRequestClipboardContent CommandKind = "RequestClipboardContent"
	KindSetClipboardContent     CommandKind = "SetClipboardContent"
	KindStartFileTransfer       CommandKind = "StartFileTransfer"
	KindFileData                CommandKind = "FileData"
	KindRunApplication          CommandKind = "RunApplication"
	KindPing                    CommandKind = "Ping"
	KindDisconnect              CommandKind = "Disconnect"
	KindUnknown                 CommandKind = ""
)

// Kind reports which variant of the union is populated.
func (c Command) Kind() CommandKind {
	switch {
	case c.Authenticate != nil:
		return KindAuthenticate
	case c.RequestScreenshot != nil:
		return KindRequestScreenshot
	case c.MouseMove != nil:
		return KindMouseMove
	case c.MouseClick != nil:
		return KindMouseClick
	case c.MouseDown != nil:
		return KindMouseDown
	case c.MouseUp != nil:
		return KindMouseUp
	case c.MouseScroll != nil:
		return KindMouseScroll
	case c.KeyDown != nil:
		return KindKeyDown
	case c.KeyUp != nil:
		return KindKeyUp
	case c.TextInput != nil:
		return KindTextInput
	case c.KeyCombo != nil:
		return KindKeyCombo
	case c.SetQuality != nil:
		return KindSetQuality
	case c.SetImageFormat != nil:
		return KindSetImageFormat
	case c.SetFps != nil:
		return KindSetFps
	case c.RequestSystemInfo != nil:
		return KindRequestSystemInfo
	case c.RequestClipboardContent != nil:
		return KindRequestClipboardContent
	case c.SetClipboardContent != nil:
		return KindSetClipboardContent
	case c.StartFileTransfer != nil:
		return KindStartFileTransfer
	case c.FileData != nil:
		return KindFileData
	case c.RunApplication != nil:
		return KindRunApplication
	case c.Ping != nil:
		return KindPing
	case c.Disconnect != nil:
		return KindDisconnect
	default:
		return KindUnknown
	}
}

// MarshalJSON renders zero-payload variants as a bare string tag
// ("Disconnect") and payload-carrying variants as a single-key object
// ({"Ping":{...}}), matching the wire shape in use by every variant.
func (c Command) MarshalJSON() ([]byte, error) {
	switch c.Kind() {
	case KindDisconnect:
		return json.Marshal("Disconnect")
	case KindRequestSystemInfo:
		return json.Marshal("RequestSystemInfo")
	case KindRequestClipboardContent:
		return json.Marshal("RequestClipboardContent")
	case KindUnknown:
		return nil, fmt.Errorf("wireproto: command has no variant set")
	}

	type alias Command
	return json.Marshal(alias(c))
}

// UnmarshalJSON accepts either a bare string tag or a single-key object.
func (c *Command) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err == nil {
		switch CommandKind(tag) {
		case KindDisconnect:
			c.Disconnect = &struct{}{}
			return nil
		case KindRequestSystemInfo:
			c.RequestSystemInfo = &struct{}{}
			return nil
		case KindRequestClipboardContent:
			c.RequestClipboardContent = &struct{}{}
			return nil
		default:
			return fmt.Errorf("wireproto: unknown bare command tag %q", tag)
		}
	}

	type alias Command
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*c = Command(a)
	if c.Kind() == KindUnknown {
		return fmt.Errorf("wireproto: unknown or empty command object")
	}
	return nil
}
