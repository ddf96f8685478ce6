// Package wizard provides an interactive setup wizard for radclient.
package wizard

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/postalsys/radclient/internal/client"
	"github.com/postalsys/radclient/internal/config"
	"github.com/postalsys/radclient/internal/radius"
)

// Result contains the wizard output.
type Result struct {
	Config     *config.Config
	ConfigPath string

	// Tested is true when the server answered a Status-Server probe.
	Tested bool
}

// Answers holds everything the wizard asks for.
type Answers struct {
	ServerAddress     string
	Secret            string
	ConnectionTimeout string // duration, or empty for no bound
	SocketTimeout     string // duration, or empty for no bound
	NASIdentifier     string
	LogLevel          string
	MetricsEnabled    bool
	MetricsAddress    string
}

// Wizard manages the interactive setup process.
type Wizard struct {
	theme *huh.Theme
}

// New creates a new setup wizard.
func New() *Wizard {
	return &Wizard{
		theme: huh.ThemeDracula(),
	}
}

// Run executes the interactive setup wizard.
func (w *Wizard) Run() (*Result, error) {
	w.printBanner()

	configPath, err := w.askConfigPath()
	if err != nil {
		return nil, err
	}

	answers := Answers{
		ServerAddress:     "127.0.0.1:1812",
		ConnectionTimeout: "5s",
		SocketTimeout:     "3s",
		LogLevel:          "info",
		MetricsAddress:    "127.0.0.1:9812",
	}

	if err := w.askServer(&answers); err != nil {
		return nil, err
	}
	if err := w.askAdvancedOptions(&answers); err != nil {
		return nil, err
	}

	cfg, err := buildConfig(answers)
	if err != nil {
		return nil, err
	}

	var tested bool
	probe := true
	confirm := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Send a Status-Server probe now?").
				Description("Checks the address and shared secret before saving").
				Value(&probe),
		),
	).WithTheme(w.theme)
	if err := confirm.Run(); err != nil {
		return nil, err
	}
	if probe {
		code, err := testServer(context.Background(), cfg)
		if err != nil {
			fmt.Printf("  Probe failed: %v\n\n", err)
		} else {
			fmt.Printf("  Server answered with %s\n\n", code)
			tested = true
		}
	}

	if err := writeConfig(cfg, configPath); err != nil {
		return nil, err
	}

	w.printSummary(configPath, cfg, tested)

	return &Result{
		Config:     cfg,
		ConfigPath: configPath,
		Tested:     tested,
	}, nil
}

func (w *Wizard) printBanner() {
	banner := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("212")).
		Render(`
                 _      _ _            _
  _ __ __ _  __| | ___| (_) ___ _ __ | |_
 | '__/ _' |/ _' |/ __| | |/ _ \ '_ \| __|
 | | | (_| | (_| | (__| | |  __/ | | | |_
 |_|  \__,_|\__,_|\___|_|_|\___|_| |_|\__|
`)

	subtitle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Render("  RADIUS Client - Setup Wizard\n")

	fmt.Println(banner)
	fmt.Println(subtitle)
}

func (w *Wizard) askConfigPath() (configPath string, err error) {
	configPath = "./radclient.yaml"

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Config File Path").
				Description("Where to write the configuration file").
				Placeholder("./radclient.yaml").
				Value(&configPath).
				Validate(validateConfigPath),
		),
	).WithTheme(w.theme)

	err = form.Run()
	return
}

func (w *Wizard) askServer(a *Answers) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("RADIUS Server").
				Description("Where requests are sent and how long to wait."),

			huh.NewInput().
				Title("Server Address").
				Description("host:port, 1812 for authentication, 1813 for accounting").
				Placeholder("127.0.0.1:1812").
				Value(&a.ServerAddress).
				Validate(validateAddress),

			huh.NewInput().
				Title("Shared Secret").
				EchoMode(huh.EchoModePassword).
				Value(&a.Secret).
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("shared secret is required")
					}
					return nil
				}),

			huh.NewInput().
				Title("Connection Timeout").
				Description("Bound on associating with the server, empty for none").
				Placeholder("5s").
				Value(&a.ConnectionTimeout).
				Validate(validateTimeout),

			huh.NewInput().
				Title("Socket Timeout").
				Description("Bound on sending and receiving, empty for none").
				Placeholder("3s").
				Value(&a.SocketTimeout).
				Validate(validateTimeout),
		),
	).WithTheme(w.theme)

	return form.Run()
}

func (w *Wizard) askAdvancedOptions(a *Answers) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Advanced Options").
				Description("Configure identification, monitoring and logging."),

			huh.NewInput().
				Title("NAS-Identifier").
				Description("Sent with every request, empty to omit").
				Value(&a.NASIdentifier),

			huh.NewSelect[string]().
				Title("Log Level").
				Options(
					huh.NewOption("Debug (verbose)", "debug"),
					huh.NewOption("Info (recommended)", "info"),
					huh.NewOption("Warning", "warn"),
					huh.NewOption("Error (quiet)", "error"),
				).
				Value(&a.LogLevel),

			huh.NewConfirm().
				Title("Enable Prometheus metrics during bench runs?").
				Value(&a.MetricsEnabled),
		),
	).WithTheme(w.theme)

	if err := form.Run(); err != nil {
		return err
	}

	if !a.MetricsEnabled {
		return nil
	}

	metricsForm := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Metrics Address").
				Placeholder("127.0.0.1:9812").
				Value(&a.MetricsAddress).
				Validate(validateAddress),
		),
	).WithTheme(w.theme)

	return metricsForm.Run()
}

func validateConfigPath(s string) error {
	if s == "" {
		return fmt.Errorf("config path is required")
	}
	if !strings.HasSuffix(s, ".yaml") && !strings.HasSuffix(s, ".yml") {
		return fmt.Errorf("config file should have .yaml or .yml extension")
	}
	return nil
}

func validateAddress(s string) error {
	if s == "" {
		return fmt.Errorf("address is required")
	}
	if _, _, err := net.SplitHostPort(s); err != nil {
		return fmt.Errorf("invalid address format (use host:port)")
	}
	return nil
}

func validateTimeout(s string) error {
	if s == "" {
		return nil
	}
	if _, err := time.ParseDuration(s); err != nil {
		return fmt.Errorf("invalid duration (use e.g. 500ms, 3s)")
	}
	return nil
}

func parseTimeout(s string) (*time.Duration, error) {
	if s == "" {
		return nil, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout %q: %w", s, err)
	}
	return &d, nil
}

func buildConfig(a Answers) (*config.Config, error) {
	cfg := config.Default()

	cfg.Server.Address = a.ServerAddress
	cfg.Server.Secret = a.Secret
	cfg.Server.NASIdentifier = a.NASIdentifier

	var err error
	if cfg.Server.ConnectionTimeout, err = parseTimeout(a.ConnectionTimeout); err != nil {
		return nil, err
	}
	if cfg.Server.SocketTimeout, err = parseTimeout(a.SocketTimeout); err != nil {
		return nil, err
	}

	if a.LogLevel != "" {
		cfg.Log.Level = a.LogLevel
	}
	cfg.Log.Format = "text"

	cfg.Metrics.Enabled = a.MetricsEnabled
	if a.MetricsEnabled && a.MetricsAddress != "" {
		cfg.Metrics.Address = a.MetricsAddress
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// testServer sends one Status-Server request and returns the reply code.
func testServer(ctx context.Context, cfg *config.Config) (radius.Code, error) {
	remote, err := cfg.ResolveServer()
	if err != nil {
		return 0, err
	}

	c := client.New(client.Config{
		ConnectionTimeout: cfg.Server.ConnectionTimeout,
		SocketTimeout:     cfg.Server.SocketTimeout,
		DSCP:              cfg.Server.DSCP,
	})

	req := radius.New(radius.CodeStatusServer, []byte(cfg.Server.Secret))
	if cfg.Server.NASIdentifier != "" {
		req.AddString(radius.AttrNASIdentifier, cfg.Server.NASIdentifier)
	}

	resp, err := c.SendPacket(ctx, remote, req)
	if err != nil {
		return 0, err
	}
	return resp.Code, nil
}

func writeConfig(cfg *config.Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := `# radclient configuration
# Generated by setup wizard

`
	// The file holds the shared secret.
	if err := os.WriteFile(path, []byte(header+string(data)), 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

func (w *Wizard) printSummary(configPath string, cfg *config.Config, tested bool) {
	style := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("42"))

	divider := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Render("─────────────────────────────────────────────────")

	fmt.Println()
	fmt.Println(divider)
	fmt.Println(style.Render("✓ Setup Complete!"))
	fmt.Println(divider)
	fmt.Println()

	fmt.Printf("  Config file:  %s\n", configPath)
	fmt.Printf("  Server:       %s\n", cfg.Server.Address)
	fmt.Printf("  Timeouts:     connect %s, socket %s\n",
		formatTimeout(cfg.Server.ConnectionTimeout), formatTimeout(cfg.Server.SocketTimeout))
	if tested {
		fmt.Println("  Probe:        server answered")
	}
	if cfg.Metrics.Enabled {
		fmt.Printf("  Metrics:      http://%s/metrics\n", cfg.Metrics.Address)
	}

	fmt.Println()
	fmt.Println("  To authenticate a user:")
	fmt.Printf("    radclient auth -c %s --user alice\n", configPath)
	fmt.Println()
}

func formatTimeout(d *time.Duration) string {
	if d == nil {
		return "none"
	}
	return d.String()
}
