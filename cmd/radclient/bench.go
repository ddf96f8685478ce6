package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/postalsys/radclient/internal/bench"
	"github.com/postalsys/radclient/internal/health"
	"github.com/postalsys/radclient/internal/logging"
	"github.com/postalsys/radclient/internal/metrics"
	"github.com/postalsys/radclient/internal/radius"
)

// benchStats exposes generator progress to the health server.
type benchStats struct {
	gen    *bench.Generator
	server string
}

func (b *benchStats) IsRunning() bool {
	return b.gen.IsRunning()
}

func (b *benchStats) Stats() health.Stats {
	total, succeeded, failed := b.gen.Progress()
	return health.Stats{
		Server:    b.server,
		Exchanges: total,
		Succeeded: succeeded,
		Failed:    failed,
	}
}

func benchCmd(opts *options) *cobra.Command {
	var (
		concurrency int
		duration    string
		rate        float64
		kind        string
		user        string
		password    string
		metricsAddr string
		dumpMetrics bool
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run many independent exchanges concurrently",
		Long: `Run independent exchanges from concurrent workers for a fixed duration and
print a summary with per-error-kind counts and latency figures.

Each exchange uses its own socket. Failed exchanges are counted, never retried.
Exchanges still waiting when --duration elapses are aborted and reported
separately, so the run ends on time even with --timeout none.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := prometheus.NewRegistry()
			m := metrics.NewMetricsWithRegistry(reg)

			s, err := opts.session(cmd, m)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			gen := &bench.Generator{
				Concurrency: s.cfg.Bench.Concurrency,
				Duration:    s.cfg.Bench.Duration,
				Rate:        s.cfg.Bench.Rate,
				Logger:      s.logger,
			}
			if flags.Changed("concurrency") {
				gen.Concurrency = concurrency
			}
			if flags.Changed("duration") {
				d, err := parseTimeoutFlag(duration)
				if err != nil || d == nil {
					return fmt.Errorf("--duration: invalid value %q", duration)
				}
				gen.Duration = *d
			}
			if flags.Changed("rate") {
				gen.Rate = rate
			}

			newRequest, err := benchRequest(s, kind, user, password)
			if err != nil {
				return err
			}

			addr := ""
			if s.cfg.Metrics.Enabled {
				addr = s.cfg.Metrics.Address
			}
			if flags.Changed("metrics-addr") {
				addr = metricsAddr
			}
			if addr != "" {
				hcfg := health.DefaultServerConfig()
				hcfg.Address = addr
				srv := health.NewServer(hcfg, &benchStats{gen: gen, server: s.remote.String()}, reg)
				if err := srv.Start(); err != nil {
					return fmt.Errorf("failed to start metrics server: %w", err)
				}
				defer srv.Stop()
				s.logger.Info("serving metrics", "address", srv.Address().String())
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s.logger.Info("starting bench",
				logging.KeyRemoteAddr, s.remote,
				"concurrency", gen.Concurrency,
				logging.KeyDuration, gen.Duration)

			report, err := gen.Run(ctx, func(ctx context.Context) error {
				_, err := s.client.SendPacket(ctx, s.remote, newRequest())
				return err
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprint(out, report.String())

			if dumpMetrics {
				fmt.Fprintln(out)
				if err := writeMetrics(out, reg); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&concurrency, "concurrency", "n", 10, "Number of concurrent workers")
	cmd.Flags().StringVarP(&duration, "duration", "d", "10s", "How long to generate load")
	cmd.Flags().Float64Var(&rate, "rate", 0, "Maximum exchanges per second across workers (0 = unlimited)")
	cmd.Flags().StringVar(&kind, "type", "auth", "Request type (auth, acct, status)")
	cmd.Flags().StringVarP(&user, "user", "u", "bench", "User-Name for auth and acct requests")
	cmd.Flags().StringVarP(&password, "password", "p", "bench", "User-Password for auth requests")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve /metrics and /healthz on this address during the run")
	cmd.Flags().BoolVar(&dumpMetrics, "dump-metrics", false, "Print collected metrics in Prometheus text format after the run")

	return cmd
}

// benchRequest returns a factory for the request each exchange sends.
// Every call yields a fresh packet with its own identifier and authenticator.
func benchRequest(s *session, kind, user, password string) (func() *radius.Packet, error) {
	switch kind {
	case "auth":
		return func() *radius.Packet {
			req := s.newRequest(radius.CodeAccessRequest)
			req.AddString(radius.AttrUserName, user)
			req.SetUserPassword(password)
			return req
		}, nil
	case "acct":
		var seq atomic.Uint64
		return func() *radius.Packet {
			req := s.newRequest(radius.CodeAccountingRequest)
			req.AddUint32(radius.AttrAcctStatusType, radius.AcctStatusInterimUpdate)
			req.AddString(radius.AttrUserName, user)
			req.AddString(radius.AttrAcctSessionID, "bench-"+strconv.FormatUint(seq.Add(1), 10))
			return req
		}, nil
	case "status":
		return func() *radius.Packet {
			return s.newRequest(radius.CodeStatusServer)
		}, nil
	default:
		return nil, fmt.Errorf("invalid --type %q (must be auth, acct, or status)", kind)
	}
}

func writeMetrics(w io.Writer, gatherer prometheus.Gatherer) error {
	families, err := gatherer.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return nil
}
