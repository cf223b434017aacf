package wireproto

// MouseButton identifies a pointer button in mouse commands.
type MouseButton string

const (
	MouseButtonLeft    MouseButton = "Left"
	MouseButtonRight   MouseButton = "Right"
	MouseButtonMiddle  MouseButton = "Middle"
	MouseButtonBack    MouseButton = "Back"
	MouseButtonForward MouseButton = "Forward"
)

// KeyModifier identifies a held modifier key.
type KeyModifier string

const (
	KeyModifierShift    KeyModifier = "Shift"
	KeyModifierControl  KeyModifier = "Control"
	KeyModifierAlt      KeyModifier = "Alt"
	KeyModifierMeta     KeyModifier = "Meta"
	KeyModifierCapsLock KeyModifier = "CapsLock"
	KeyModifierNumLock  KeyModifier = "NumLock"
)

// ImageFormat identifies the codec used to encode a screenshot.
type ImageFormat string

const (
	ImageFormatJPEG ImageFormat = "JPEG"
	ImageFormatPNG  ImageFormat = "PNG"
	ImageFormatWebP ImageFormat = "WebP"
	ImageFormatAVIF ImageFormat = "AVIF"
)

// ConnectionState describes the client-side connection lifecycle.
type ConnectionState string

const (
	ConnectionStateDisconnected   ConnectionState = "Disconnected"
	ConnectionStateConnecting     ConnectionState = "Connecting"
	ConnectionStateConnected      ConnectionState = "Connected"
	ConnectionStateAuthenticating ConnectionState = "Authenticating"
	ConnectionStateError          ConnectionState = "Error"
)
