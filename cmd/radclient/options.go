package main

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/postalsys/radclient/internal/client"
	"github.com/postalsys/radclient/internal/config"
	"github.com/postalsys/radclient/internal/logging"
	"github.com/postalsys/radclient/internal/metrics"
	"github.com/postalsys/radclient/internal/radius"
)

// options holds the global flags shared by all exchange commands.
type options struct {
	configPath     string
	server         string
	secret         string
	connectTimeout string
	socketTimeout  string
	dscp           int
	nasIdentifier  string
	logLevel       string
	logFormat      string
}

func (o *options) addFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVarP(&o.configPath, "config", "c", "", "Path to configuration file")
	f.StringVarP(&o.server, "server", "s", "", "RADIUS server address (host:port)")
	f.StringVar(&o.secret, "secret", "", "Shared secret")
	f.StringVar(&o.connectTimeout, "connect-timeout", "", `Association timeout (e.g. 2s, "none" to wait indefinitely)`)
	f.StringVar(&o.socketTimeout, "timeout", "", `Send and receive timeout (e.g. 3s, "none" to wait indefinitely)`)
	f.IntVar(&o.dscp, "dscp", 0, "DSCP code point for outgoing datagrams (0-63)")
	f.StringVar(&o.nasIdentifier, "nas-identifier", "", "NAS-Identifier attribute to send")
	f.StringVar(&o.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	f.StringVar(&o.logFormat, "log-format", "", "Log format (text, json)")
}

// load reads the config file, if any, and applies flag overrides.
func (o *options) load(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("server") {
		cfg.Server.Address = o.server
	}
	if flags.Changed("secret") {
		cfg.Server.Secret = o.secret
	}
	if flags.Changed("connect-timeout") {
		d, err := parseTimeoutFlag(o.connectTimeout)
		if err != nil {
			return nil, fmt.Errorf("--connect-timeout: %w", err)
		}
		cfg.Server.ConnectionTimeout = d
	}
	if flags.Changed("timeout") {
		d, err := parseTimeoutFlag(o.socketTimeout)
		if err != nil {
			return nil, fmt.Errorf("--timeout: %w", err)
		}
		cfg.Server.SocketTimeout = d
	}
	if flags.Changed("dscp") {
		cfg.Server.DSCP = o.dscp
	}
	if flags.Changed("nas-identifier") {
		cfg.Server.NASIdentifier = o.nasIdentifier
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = o.logFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Server.Secret == "" {
		return nil, fmt.Errorf("shared secret is required (--secret or server.secret)")
	}
	return cfg, nil
}

// parseTimeoutFlag parses a duration; "none" or an empty value means no bound.
func parseTimeoutFlag(s string) (*time.Duration, error) {
	if s == "" || strings.EqualFold(s, "none") {
		return nil, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// session bundles what an exchange command needs.
type session struct {
	cfg    *config.Config
	logger *slog.Logger
	client *client.Client
	remote *net.UDPAddr
}

func (o *options) session(cmd *cobra.Command, m *metrics.Metrics) (*session, error) {
	cfg, err := o.load(cmd)
	if err != nil {
		return nil, err
	}

	remote, err := cfg.ResolveServer()
	if err != nil {
		return nil, err
	}

	logger := logging.NewLoggerWithWriter(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	logger.Debug("configuration loaded", "config", cfg.String())

	c := client.New(client.Config{
		ConnectionTimeout: cfg.Server.ConnectionTimeout,
		SocketTimeout:     cfg.Server.SocketTimeout,
		DSCP:              cfg.Server.DSCP,
		Logger:            logger,
		Metrics:           m,
	})

	return &session{cfg: cfg, logger: logger, client: c, remote: remote}, nil
}

// newRequest creates a request carrying the configured NAS-Identifier.
func (s *session) newRequest(code radius.Code) *radius.Packet {
	req := radius.New(code, []byte(s.cfg.Server.Secret))
	if s.cfg.Server.NASIdentifier != "" {
		req.AddString(radius.AttrNASIdentifier, s.cfg.Server.NASIdentifier)
	}
	return req
}

// exchange sends req and prints the reply.
func (s *session) exchange(cmd *cobra.Command, req *radius.Packet) (*radius.Packet, error) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s.logger.Info("sending request",
		logging.KeyCode, req.Code,
		logging.KeyIdentifier, req.Identifier,
		logging.KeyRemoteAddr, s.remote)

	start := time.Now()
	resp, err := s.client.SendPacket(ctx, s.remote, req)
	if err != nil {
		return nil, fmt.Errorf("%s to %s failed (%s): %w", req.Code, s.remote, client.KindOf(err), err)
	}

	printReply(cmd, resp, s.remote, time.Since(start))
	return resp, nil
}

func printReply(cmd *cobra.Command, resp *radius.Packet, from net.Addr, elapsed time.Duration) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Received %s (id %d) from %s in %s\n",
		resp.Code, resp.Identifier, from, elapsed.Round(time.Microsecond))
	for _, a := range resp.Attributes {
		fmt.Fprintf(out, "  %s\n", radius.FormatAttribute(a))
	}
}

// addAttributes parses Name=value pairs onto req.
func addAttributes(req *radius.Packet, attrs []string) error {
	for _, s := range attrs {
		a, err := radius.ParseAttribute(s)
		if err != nil {
			return err
		}
		req.Add(a.Type, a.Value)
	}
	return nil
}
