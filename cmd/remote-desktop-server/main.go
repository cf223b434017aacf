package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/breeze-rmm/remote-desktop/internal/auth"
	"github.com/breeze-rmm/remote-desktop/internal/capture"
	"github.com/breeze-rmm/remote-desktop/internal/clipboard"
	"github.com/breeze-rmm/remote-desktop/internal/config"
	"github.com/breeze-rmm/remote-desktop/internal/filetransfer"
	"github.com/breeze-rmm/remote-desktop/internal/input"
	"github.com/breeze-rmm/remote-desktop/internal/logging"
	"github.com/breeze-rmm/remote-desktop/internal/server"
	"github.com/breeze-rmm/remote-desktop/internal/session"
	"github.com/breeze-rmm/remote-desktop/internal/sysinfo"
	"github.com/breeze-rmm/remote-desktop/internal/tlsutil"
	"github.com/breeze-rmm/remote-desktop/internal/wireproto"
)

var (
	version   = "0.1.0"
	cfgPath   string
	portFlag  int
	noGUI     bool
	autostart bool
)

var log = logging.L("main")

var rootCmd = &cobra.Command{
	Use:     "remote-desktop-server",
	Short:   "Remote desktop session server",
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runServer())
	},
}

func init() {
	rootCmd.Flags().StringVar(&cfgPath, "config", "", "config file (default is the platform config dir)")
	rootCmd.Flags().IntVar(&portFlag, "port", 0, "listen port (overrides config)")
	rootCmd.Flags().BoolVar(&noGUI, "no-gui", false, "run without attaching a tray/status UI")
	rootCmd.Flags().BoolVar(&autostart, "autostart", false, "register for automatic startup and exit")
	rootCmd.SetVersionTemplate("remote-desktop-server v{{.Version}}\n")
}

func main() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runServer returns the process exit code: 0 success, 1 init failure,
// 2 runtime failure.
func runServer() int {
	if autostart {
		fmt.Println("autostart registration is not implemented in this build")
		return 0
	}

	cfg, errs := config.LoadServerConfig(cfgPath)
	for _, e := range errs {
		fmt.Fprintf(os.Stderr, "config warning: %v\n", e)
	}
	if portFlag != 0 {
		cfg.Port = portFlag
	}

	logOutput, err := logOutputFor(cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
		return 1
	}
	logging.Init(cfg.LogFormat, cfg.LogLevel, logOutput)
	log = logging.L("main")
	log.Info("starting remote-desktop-server", "version", version, "bind", cfg.BindAddr, "port", cfg.Port, "no_gui", noGUI)

	acceptor, err := newAcceptor(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start listener: %v\n", err)
		return 1
	}

	collab := buildCollaborators(cfg)

	srv := server.New(serverConfig(cfg), acceptor, collab)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan struct{})
	go func() {
		srv.Run(ctx)
		close(runDone)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
		<-runDone
	case <-runDone:
		log.Error("server exited unexpectedly")
		return 2
	}

	log.Info("server stopped")
	return 0
}

func newAcceptor(cfg *config.ServerConfig) (server.Acceptor, error) {
	if !cfg.TLSEnabled {
		return server.NewTCPAcceptor(cfg.BindAddr, cfg.Port)
	}

	tlsCfg, err := loadTLSConfig(cfg)
	if err != nil {
		return nil, err
	}
	return server.NewTLSAcceptor(cfg.BindAddr, cfg.Port, tlsCfg)
}

func loadTLSConfig(cfg *config.ServerConfig) (*tls.Config, error) {
	if cfg.TLSCertPath != "" && cfg.TLSKeyPath != "" {
		cert, err := tls.LoadX509KeyPair(cfg.TLSCertPath, cfg.TLSKeyPath)
		if err != nil {
			return nil, fmt.Errorf("load tls cert/key: %w", err)
		}
		return &tls.Config{Certificates: []tls.Certificate{cert}}, nil
	}

	log.Warn("tls_enabled is true but no cert/key configured, generating an ephemeral self-signed certificate")
	certificate, err := tlsutil.GenerateSelfSigned(365 * 24 * time.Hour)
	if err != nil {
		return nil, err
	}
	return certificate.ServerConfig(), nil
}

func buildCollaborators(cfg *config.ServerConfig) *session.Collaborators {
	backend := input.NewStubBackend()
	if cfg.RequireAuth && len(cfg.Credentials) == 0 {
		log.Warn("require_auth is true but no credentials are configured, every connection will be rejected")
	}
	return &session.Collaborators{
		Capturer:      capture.New(newScreenGrabber()),
		Injector:      input.New(backend, cfg.BlockShortcuts),
		Clipboard:     clipboard.New(clipboard.NewStubBackend(), true),
		Authenticator: auth.NewCredentialMapAuthenticator(cfg.Credentials),
		SysInfo:       sysinfo.New(backend),
		FileTransfer:  filetransfer.New(filetransfer.Config{ReceiveDir: cfg.ReceivedFilesDir}),
		Arbiter:       session.NewControlArbiter(session.ControlPolicy(cfg.ControlPolicy)),
	}
}

func serverConfig(cfg *config.ServerConfig) server.Config {
	sessionCfg := session.DefaultConfig()
	sessionCfg.RequireAuth = cfg.RequireAuth
	sessionCfg.ClientTimeout = time.Duration(cfg.ClientTimeoutSeconds) * time.Second
	sessionCfg.KeepAliveInterval = time.Duration(cfg.KeepAliveIntervalSeconds) * time.Second
	sessionCfg.ControlPolicy = session.ControlPolicy(cfg.ControlPolicy)
	sessionCfg.DefaultQuality = uint8(cfg.DefaultQuality)
	sessionCfg.DefaultImageFormat = wireproto.ImageFormat(normalizeImageFormat(cfg.DefaultImageFormat))

	return server.Config{
		BindAddr:           cfg.BindAddr,
		Port:               cfg.Port,
		TLSEnabled:         cfg.TLSEnabled,
		TLSCertPath:        cfg.TLSCertPath,
		TLSKeyPath:         cfg.TLSKeyPath,
		MaxConnections:     cfg.MaxConnections,
		IdleSweepInterval:  10 * time.Second,
		AcceptDrainTimeout: 5 * time.Second,
		Session:            sessionCfg,
	}
}

// normalizeImageFormat maps the lowercase config spelling ("jpeg") to
// the capitalized wire enum ("JPEG").
func normalizeImageFormat(s string) string {
	switch s {
	case "jpeg":
		return string(wireproto.ImageFormatJPEG)
	case "png":
		return string(wireproto.ImageFormatPNG)
	case "webp":
		return string(wireproto.ImageFormatWebP)
	case "avif":
		return string(wireproto.ImageFormatAVIF)
	default:
		return string(wireproto.ImageFormatJPEG)
	}
}

// logOutputFor returns os.Stdout alone, or os.Stdout teed with a
// rotating file sink when logFile is set.
func logOutputFor(logFile string, maxSizeMB, maxBackups int) (io.Writer, error) {
	if logFile == "" {
		return os.Stdout, nil
	}
	rw, err := logging.NewRotatingWriter(logFile, maxSizeMB, maxBackups)
	if err != nil {
		return nil, err
	}
	return logging.TeeWriter(os.Stdout, rw), nil
}
