package session

import (
	"github.com/breeze-rmm/remote-desktop/internal/auth"
	"github.com/breeze-rmm/remote-desktop/internal/capture"
	"github.com/breeze-rmm/remote-desktop/internal/clipboard"
	"github.com/breeze-rmm/remote-desktop/internal/filetransfer"
	"github.com/breeze-rmm/remote-desktop/internal/input"
	"github.com/breeze-rmm/remote-desktop/internal/sysinfo"
)

// Collaborators bundles the server-owned resources shared across every
// Session on a host: one Capturer, one Injector, one clipboard Bridge,
// one file transfer Manager. Capturer serializes concurrent callers
// internally; Injector's backend calls are synchronous OS calls, so
// sharing one Injector across sessions is safe without an extra lock
// here.
type Collaborators struct {
	Capturer      *capture.Capturer
	Injector      *input.Injector
	Clipboard     *clipboard.Bridge
	Authenticator auth.Authenticator
	SysInfo       *sysinfo.Sampler
	FileTransfer  *filetransfer.Manager
	Arbiter       *ControlArbiter
}
