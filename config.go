package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Above this the optimal solution no longer fits in a browser session.
const maxDiskLimit = 20

type Config struct {
	bind           string
	disks          int
	maxDisks       int
	metrics        bool
	minDisks       int
	port           int
	prefix         string
	profile        bool
	sessionTimeout time.Duration
	solveDelay     time.Duration
	tlsCert        string
	tlsKey         string
	verbose        bool
	version        bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.minDisks < 1 || c.maxDisks > maxDiskLimit || c.minDisks > c.maxDisks {
		return fmt.Errorf("invalid disk range (must satisfy 1 <= min <= max <= %d): %d-%d", maxDiskLimit, c.minDisks, c.maxDisks)
	}
	if c.disks < c.minDisks || c.disks > c.maxDisks {
		return fmt.Errorf("invalid disk count (must be between %d-%d inclusive): %d", c.minDisks, c.maxDisks, c.disks)
	}
	if c.solveDelay < 10*time.Millisecond {
		return fmt.Errorf("invalid solve delay (must be at least 10ms): %s", c.solveDelay)
	}
	if c.sessionTimeout < 0 {
		return fmt.Errorf("invalid session timeout (must not be negative): %s", c.sessionTimeout)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("HANOI")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "hanoi",
		Short:         "A Tower of Hanoi puzzle, served as a single self-contained webapp.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: HANOI_BIND)")
	fs.IntVarP(&cfg.disks, "disks", "d", 3, "disk count for new games (env: HANOI_DISKS)")
	fs.IntVar(&cfg.maxDisks, "max-disks", 7, "largest disk count players may choose (env: HANOI_MAX_DISKS)")
	fs.BoolVar(&cfg.metrics, "metrics", false, "expose prometheus metrics at /metrics (env: HANOI_METRICS)")
	fs.IntVar(&cfg.minDisks, "min-disks", 3, "smallest disk count players may choose (env: HANOI_MIN_DISKS)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: HANOI_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: HANOI_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: HANOI_PROFILE)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle games are ended (env: HANOI_SESSION_TIMEOUT)")
	fs.DurationVar(&cfg.solveDelay, "solve-delay", 400*time.Millisecond, "pause between moves when auto-solving (env: HANOI_SOLVE_DELAY)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: HANOI_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: HANOI_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: HANOI_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: HANOI_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("hanoi v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
