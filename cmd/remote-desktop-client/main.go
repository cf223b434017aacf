package main

import (
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/breeze-rmm/remote-desktop/internal/client"
	"github.com/breeze-rmm/remote-desktop/internal/config"
	"github.com/breeze-rmm/remote-desktop/internal/logging"
	"github.com/breeze-rmm/remote-desktop/internal/wireproto"
)

var (
	version       = "0.1.0"
	cfgPath       string
	hostFlag      string
	portFlag      int
	transportFlag string
	insecureTLS   bool
)

var log = logging.L("main")

var rootCmd = &cobra.Command{
	Use:     "remote-desktop-client",
	Short:   "Remote desktop viewer client",
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runClient())
	},
}

func init() {
	rootCmd.Flags().StringVar(&cfgPath, "config", "", "config file (default is the platform config dir)")
	rootCmd.Flags().StringVar(&hostFlag, "host", "", "server host (overrides config)")
	rootCmd.Flags().IntVar(&portFlag, "port", 0, "server port (overrides config)")
	rootCmd.Flags().StringVar(&transportFlag, "transport", "", "tcp, tls, or websocket (overrides config)")
	rootCmd.Flags().BoolVar(&insecureTLS, "insecure", false, "skip TLS certificate verification")
	rootCmd.SetVersionTemplate("remote-desktop-client v{{.Version}}\n")
}

func main() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runClient() int {
	cfg, errs := config.LoadClientConfig(cfgPath)
	for _, e := range errs {
		fmt.Fprintf(os.Stderr, "config warning: %v\n", e)
	}

	host := cfg.LastHost
	if hostFlag != "" {
		host = hostFlag
	}
	if host == "" {
		fmt.Fprintln(os.Stderr, "no server host given: pass --host or set last_host in the client config")
		return 1
	}

	port := cfg.LastPort
	if portFlag != 0 {
		port = portFlag
	}

	transportKind := cfg.LastTransport
	if transportFlag != "" {
		transportKind = transportFlag
	}

	logOutput, err := logOutputFor(cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
		return 1
	}
	logging.Init(cfg.LogFormat, cfg.LogLevel, logOutput)
	log = logging.L("main")

	clientCfg := clientConfigFrom(cfg, host, port, transportKind)

	c := client.New(clientCfg)
	c.Start()
	defer c.Stop()

	log.Info("connecting", "server", clientCfg.ServerAddr, "transport", clientCfg.Transport)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-sigCh:
			log.Info("disconnecting")
			return 0
		case change := <-c.States():
			if change.Err != nil {
				log.Warn("connection state changed", "state", change.State, "error", change.Err)
			} else {
				log.Info("connection state changed", "state", change.State)
			}
		case resp := <-c.Inbox():
			logResponse(resp)
		}
	}
}

func clientConfigFrom(cfg *config.ClientConfig, host string, port int, transportKind string) client.Config {
	c := client.DefaultConfig()
	c.ServerAddr = net.JoinHostPort(host, strconv.Itoa(port))
	c.Transport = transportKind
	c.ConnectTimeout = time.Duration(cfg.ConnectTimeoutMs) * time.Millisecond
	c.PollInterval = time.Duration(cfg.PollIntervalMs) * time.Millisecond
	c.Quality = uint8(cfg.PreferredQuality)
	c.ImageFormat = cfg.PreferredImageFormat
	if transportKind == "tls" {
		c.TLSConfig = &tls.Config{InsecureSkipVerify: insecureTLS, ServerName: host}
	}
	return c
}

func logResponse(resp wireproto.Response) {
	switch resp.Kind() {
	case wireproto.RespKindError:
		log.Warn("server error", "code", resp.Error.Code, "message", resp.Error.Message)
	case wireproto.RespKindScreenshotData:
		log.Debug("screenshot received", "width", resp.ScreenshotData.Width, "height", resp.ScreenshotData.Height, "bytes", len(resp.ScreenshotData.Data))
	default:
		log.Debug("response received", "kind", resp.Kind())
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
