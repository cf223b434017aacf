package session

import (
	"errors"
	"time"

	"github.com/breeze-rmm/remote-desktop/internal/clipboard"
	"github.com/breeze-rmm/remote-desktop/internal/encode"
	"github.com/breeze-rmm/remote-desktop/internal/filetransfer"
	"github.com/breeze-rmm/remote-desktop/internal/input"
	"github.com/breeze-rmm/remote-desktop/internal/wireproto"
)

// dispatch routes one decoded Command to its handler, enforcing the
// auth gate first. The bool return reports whether a response should
// be sent at all: MouseMove/MouseScroll/KeyDown/KeyUp are
// fire-and-forget per the wire protocol.
func (s *Session) dispatch(cmd wireproto.Command) (wireproto.Response, bool) {
	s.mu.Lock()
	authenticated := s.authenticated
	s.mu.Unlock()

	if s.cfg.RequireAuth && !authenticated && cmd.Kind() != wireproto.KindAuthenticate {
		return wireproto.ErrorResponse(401, unauthenticatedMessage), true
	}

	switch cmd.Kind() {
	case wireproto.KindAuthenticate:
		return s.handleAuthenticate(cmd.Authenticate), true
	case wireproto.KindRequestScreenshot:
		return s.handleRequestScreenshot(cmd.RequestScreenshot), true
	case wireproto.KindMouseMove:
		s.handleMouseMove(cmd.MouseMove)
		return wireproto.Response{}, false
	case wireproto.KindMouseScroll:
		s.handleMouseScroll(cmd.MouseScroll)
		return wireproto.Response{}, false
	case wireproto.KindKeyDown:
		s.handleKey(true, cmd.KeyDown)
		return wireproto.Response{}, false
	case wireproto.KindKeyUp:
		s.handleKey(false, cmd.KeyUp)
		return wireproto.Response{}, false
	case wireproto.KindMouseClick:
		return s.handleMouseClick(cmd.MouseClick), true
	case wireproto.KindMouseDown:
		return s.handleMouseButton(true, cmd.MouseDown), true
	case wireproto.KindMouseUp:
		return s.handleMouseButton(false, cmd.MouseUp), true
	case wireproto.KindTextInput:
		return s.handleTextInput(cmd.TextInput), true
	case wireproto.KindKeyCombo:
		return s.handleKeyCombo(cmd.KeyCombo), true
	case wireproto.KindSetQuality:
		return s.handleSetQuality(cmd.SetQuality), true
	case wireproto.KindSetImageFormat:
		return s.handleSetImageFormat(cmd.SetImageFormat), true
	case wireproto.KindSetFps:
		return s.handleSetFps(cmd.SetFps), true
	case wireproto.KindRequestSystemInfo:
		return s.handleRequestSystemInfo(), true
	case wireproto.KindRequestClipboardContent:
		return s.handleRequestClipboardContent(), true
	case wireproto.KindSetClipboardContent:
		return s.handleSetClipboardContent(cmd.SetClipboardContent), true
	case wireproto.KindStartFileTransfer:
		return s.handleStartFileTransfer(cmd.StartFileTransfer), true
	case wireproto.KindFileData:
		return s.handleFileData(cmd.FileData), true
	case wireproto.KindRunApplication:
		return s.handleRunApplication(cmd.RunApplication), true
	case wireproto.KindPing:
		return s.handlePing(cmd.Ping), true
	case wireproto.KindDisconnect:
		return s.handleDisconnect(), true
	default:
		return wireproto.ErrorResponse(400, "unknown command"), true
	}
}

func (s *Session) handleAuthenticate(p *wireproto.AuthenticatePayload) wireproto.Response {
	ok := s.collab.Authenticator.Authenticate(p.Username, p.PasswordHash)
	s.mu.Lock()
	if ok {
		s.authenticated = true
		s.state = StateAuthenticated
	}
	s.mu.Unlock()
	if !ok {
		return wireproto.NewAuthResult(false, "invalid credentials")
	}
	return wireproto.NewAuthResult(true, "ok")
}

func (s *Session) handleRequestScreenshot(p *wireproto.RequestScreenshotPayload) wireproto.Response {
	s.mu.Lock()
	quality := s.quality
	format := s.imageFormat
	overridden := s.imageFormatOverridden
	monitorIndex := int(s.monitorIndex)
	s.mu.Unlock()

	if p.Quality != nil {
		quality = *p.Quality
	}
	if p.Monitor != nil {
		monitorIndex = int(*p.Monitor)
	}
	if !overridden {
		if quality < 90 {
			format = wireproto.ImageFormatJPEG
		} else {
			format = wireproto.ImageFormatPNG
		}
	}
	if format == wireproto.ImageFormatAVIF {
		return wireproto.ErrorResponse(501, "AVIF encoding is not implemented")
	}

	var maxWidth, maxHeight int
	if p.Width != nil {
		maxWidth = int(*p.Width)
	}
	if p.Height != nil {
		maxHeight = int(*p.Height)
	}

	frame, err := s.collab.Capturer.Capture(monitorIndex)
	if err != nil {
		return wireproto.ErrorResponse(500, "capture failed: "+err.Error())
	}

	result := s.differ.Calculate(frame)

	s.mu.Lock()
	cached := s.cache
	s.mu.Unlock()

	var encoded *encode.EncodedImage
	if cached != nil && result.ChangeRatio == 0 &&
		cached.format == format && cached.quality == quality &&
		cached.maxWidth == maxWidth && cached.maxHeight == maxHeight {
		encoded = cached.image
	} else {
		encoded, err = encode.Encode(frame, encode.Config{
			Format:    format,
			Quality:   int(quality),
			MaxWidth:  maxWidth,
			MaxHeight: maxHeight,
		})
		if err != nil {
			return wireproto.ErrorResponse(500, "encode failed: "+err.Error())
		}
		s.mu.Lock()
		s.cache = &screenshotCache{image: encoded, quality: quality, format: format, maxWidth: maxWidth, maxHeight: maxHeight}
		s.mu.Unlock()
	}

	s.mu.Lock()
	s.bytesSent += uint64(len(encoded.Data))
	s.mu.Unlock()

	return wireproto.Response{ScreenshotData: &wireproto.ScreenshotDataPayload{
		Data:      encoded.Data,
		Format:    encoded.Format,
		Width:     encoded.Width,
		Height:    encoded.Height,
		Timestamp: encoded.TimestampMs,
	}}
}

func (s *Session) controlAllowed() bool {
	if s.collab.Arbiter == nil {
		return true
	}
	return s.collab.Arbiter.Allow(s.id)
}

func (s *Session) handleMouseMove(p *wireproto.MouseMovePayload) {
	if !s.controlAllowed() {
		return
	}
	if err := s.collab.Injector.MouseMoveAbsolute(p.X, p.Y); err != nil {
		s.log.Warn("mouse move failed", "session", s.id, "error", err)
	}
}

func (s *Session) handleMouseScroll(p *wireproto.MouseScrollPayload) {
	if !s.controlAllowed() {
		return
	}
	if err := s.collab.Injector.Scroll(p.DeltaX, p.DeltaY); err != nil {
		s.log.Warn("scroll failed", "session", s.id, "error", err)
	}
}

func (s *Session) handleKey(down bool, p *wireproto.KeyEventPayload) {
	if !s.controlAllowed() {
		return
	}
	var err error
	if down {
		err = s.collab.Injector.KeyDown(p.KeyCode, p.Modifiers)
	} else {
		err = s.collab.Injector.KeyUp(p.KeyCode, p.Modifiers)
	}
	if err != nil {
		s.log.Debug("key event rejected", "session", s.id, "error", err)
	}
}

func (s *Session) handleMouseClick(p *wireproto.MouseClickPayload) wireproto.Response {
	if !s.controlAllowed() {
		return wireproto.ErrorResponse(403, "view-only: another session holds control")
	}
	var err error
	if p.Double {
		err = s.collab.Injector.DoubleClick(p.Button)
	} else {
		err = s.collab.Injector.Click(p.Button)
	}
	return inputResult(err)
}

func (s *Session) handleMouseButton(down bool, p *wireproto.MouseButtonPayload) wireproto.Response {
	if !s.controlAllowed() {
		return wireproto.ErrorResponse(403, "view-only: another session holds control")
	}
	var err error
	if down {
		err = s.collab.Injector.MouseDown(p.Button)
	} else {
		err = s.collab.Injector.MouseUp(p.Button)
	}
	return inputResult(err)
}

func (s *Session) handleTextInput(p *wireproto.TextInputPayload) wireproto.Response {
	if !s.controlAllowed() {
		return wireproto.ErrorResponse(403, "view-only: another session holds control")
	}
	return inputResult(s.collab.Injector.InputText(p.Text))
}

func (s *Session) handleKeyCombo(p *wireproto.KeyComboPayload) wireproto.Response {
	if !s.controlAllowed() {
		return wireproto.ErrorResponse(403, "view-only: another session holds control")
	}
	return inputResult(s.collab.Injector.KeyCombo(p.KeyCodes, p.Modifiers))
}

func inputResult(err error) wireproto.Response {
	if err == nil {
		return wireproto.NewCommandResult(true, "")
	}
	if errors.Is(err, input.ErrInvalidInput) {
		return wireproto.ErrorResponse(400, "invalid input: "+err.Error())
	}
	return wireproto.ErrorResponse(500, "input injection failed: "+err.Error())
}

func (s *Session) handleSetQuality(p *wireproto.SetQualityPayload) wireproto.Response {
	q := p.Quality
	if q < 1 {
		q = 1
	}
	if q > 100 {
		q = 100
	}
	s.mu.Lock()
	s.quality = q
	s.mu.Unlock()
	return wireproto.NewCommandResult(true, "")
}

func (s *Session) handleSetImageFormat(p *wireproto.SetImageFormatPayload) wireproto.Response {
	s.mu.Lock()
	s.imageFormat = p.Format
	s.imageFormatOverridden = true
	s.mu.Unlock()
	return wireproto.NewCommandResult(true, "")
}

func (s *Session) handleSetFps(p *wireproto.SetFpsPayload) wireproto.Response {
	s.mu.Lock()
	s.fps = p.Fps
	s.mu.Unlock()
	return wireproto.NewCommandResult(true, "")
}

func (s *Session) handleRequestSystemInfo() wireproto.Response {
	info, err := s.collab.SysInfo.Sample()
	if err != nil {
		return wireproto.ErrorResponse(500, "system info unavailable: "+err.Error())
	}
	return wireproto.Response{SystemInfo: info}
}

func (s *Session) handleRequestClipboardContent() wireproto.Response {
	if s.collab.Clipboard == nil {
		return wireproto.ErrorResponse(403, "clipboard access denied by policy")
	}
	content, err := s.collab.Clipboard.Get()
	if errors.Is(err, clipboard.ErrPolicyDenied) {
		return wireproto.ErrorResponse(403, "clipboard access denied by policy")
	}
	if err != nil {
		return wireproto.ErrorResponse(500, "clipboard read failed: "+err.Error())
	}
	return wireproto.Response{ClipboardContent: &wireproto.ClipboardContentPayload{Text: content.Text}}
}

func (s *Session) handleSetClipboardContent(p *wireproto.SetClipboardContentPayload) wireproto.Response {
	if s.collab.Clipboard == nil {
		return wireproto.ErrorResponse(403, "clipboard access denied by policy")
	}
	err := s.collab.Clipboard.Set(clipboard.Content{Type: clipboard.ContentTypeText, Text: p.Text})
	if errors.Is(err, clipboard.ErrPolicyDenied) {
		return wireproto.ErrorResponse(403, "clipboard access denied by policy")
	}
	if err != nil {
		return wireproto.ErrorResponse(500, "clipboard write failed: "+err.Error())
	}
	return wireproto.NewCommandResult(true, "")
}

func (s *Session) handleStartFileTransfer(p *wireproto.StartFileTransferPayload) wireproto.Response {
	status, err := s.collab.FileTransfer.Start(p.TransferID, p.Filename, p.Size)
	if err != nil {
		return wireproto.ErrorResponse(400, "file transfer rejected: "+err.Error())
	}
	return fileTransferStatusResponse(status)
}

func (s *Session) handleFileData(p *wireproto.FileDataPayload) wireproto.Response {
	status, err := s.collab.FileTransfer.Write(p.TransferID, p.Offset, p.Data, p.Final)
	if err != nil {
		return wireproto.ErrorResponse(400, "file transfer write rejected: "+err.Error())
	}
	s.mu.Lock()
	s.bytesReceived += uint64(len(p.Data))
	s.mu.Unlock()
	return fileTransferStatusResponse(status)
}

func fileTransferStatusResponse(status filetransfer.Status) wireproto.Response {
	return wireproto.Response{FileTransferStatus: &wireproto.FileTransferStatusPayload{
		TransferID: status.TransferID,
		Received:   status.Received,
		Total:      status.Total,
		Complete:   status.Complete,
	}}
}

func (s *Session) handleRunApplication(p *wireproto.RunApplicationPayload) wireproto.Response {
	if !s.cfg.AllowRunApplication {
		return wireproto.ErrorResponse(403, "application execution disabled by policy")
	}
	if err := runApplication(p, s.cfg.RunApplicationTimeout); err != nil {
		return wireproto.ErrorResponse(500, "failed to start application: "+err.Error())
	}
	return wireproto.NewCommandResult(true, "application started")
}

func (s *Session) handlePing(p *wireproto.PingPayload) wireproto.Response {
	now := time.Now()
	serverMillis := uint64(now.UnixMilli())

	if serverMillis > p.Timestamp {
		rtt := time.Duration(serverMillis-p.Timestamp) * time.Millisecond
		s.mu.Lock()
		s.lastRTT = &rtt
		s.mu.Unlock()
	}

	return wireproto.Response{Pong: &wireproto.PongPayload{
		OriginalTimestamp: p.Timestamp,
		ServerTime:        serverMillis,
	}}
}

func (s *Session) handleDisconnect() wireproto.Response {
	s.mu.Lock()
	s.active = false
	s.state = StateClosing
	s.mu.Unlock()
	return wireproto.Response{ConnectionStatus: &wireproto.ConnectionStatusPayload{Connected: false}}
}
