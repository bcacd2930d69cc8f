package main

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Seednode/promptparty/games/trivia"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind           string
	capacity       int
	oracleBackoff  time.Duration
	oracleRetries  int
	oracleTimeout  time.Duration
	port           int
	prefix         string
	profile        bool
	promptURL      string
	rateURL        string
	rounds         int
	sessionTimeout time.Duration
	tlsCert        string
	tlsKey         string
	turnTimeout    time.Duration
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
	if c.capacity < 2 {
		return fmt.Errorf("invalid capacity (must be at least 2): %d", c.capacity)
	}
	if c.rounds < 1 {
		return fmt.Errorf("invalid rounds (must be at least 1): %d", c.rounds)
	}
	if c.turnTimeout <= 0 {
		return fmt.Errorf("invalid turn timeout (must be positive): %s", c.turnTimeout)
	}
	if c.oracleRetries < 0 {
		return fmt.Errorf("invalid oracle retries (must not be negative): %d", c.oracleRetries)
	}
	for flag, raw := range map[string]string{"--prompt-url": c.promptURL, "--rate-url": c.rateURL} {
		if raw == "" {
			continue
		}
		u, err := url.ParseRequestURI(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid %s (must be an absolute http(s) URL): %q", flag, raw)
		}
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

// settings is the per-room configuration handed to the game registry.
func (c *Config) settings() trivia.Settings {
	return trivia.Settings{
		Capacity:      c.capacity,
		MaxRounds:     c.rounds,
		TurnTimeout:   c.turnTimeout,
		OracleRetries: c.oracleRetries,
		OracleBackoff: c.oracleBackoff,
		OracleTimeout: c.oracleTimeout,
		Logf: func(format string, args ...any) {
			logf(c, format, args...)
		},
	}
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("PROMPTPARTY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "promptparty",
		Short:         "A real-time party game where players answer prompts and an oracle picks the winner.",
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

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: PROMPTPARTY_BIND)")
	fs.IntVarP(&cfg.capacity, "capacity", "c", trivia.DefaultCapacity, "players per room (env: PROMPTPARTY_CAPACITY)")
	fs.DurationVar(&cfg.oracleBackoff, "oracle-backoff", trivia.DefaultOracleBackoff, "initial delay between oracle retries (env: PROMPTPARTY_ORACLE_BACKOFF)")
	fs.IntVar(&cfg.oracleRetries, "oracle-retries", trivia.DefaultOracleRetries, "retries per prompt or rating request before a game is abandoned (env: PROMPTPARTY_ORACLE_RETRIES)")
	fs.DurationVar(&cfg.oracleTimeout, "oracle-timeout", trivia.DefaultOracleTimeout, "timeout for a single prompt or rating request (env: PROMPTPARTY_ORACLE_TIMEOUT)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: PROMPTPARTY_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: PROMPTPARTY_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: PROMPTPARTY_PROFILE)")
	fs.StringVar(&cfg.promptURL, "prompt-url", "", "URL returning {\"prompt\": ...}; built-in prompts are used if unset (env: PROMPTPARTY_PROMPT_URL)")
	fs.StringVar(&cfg.rateURL, "rate-url", "", "URL rating a posted {\"prompt\", \"answer\"}; a built-in rater is used if unset (env: PROMPTPARTY_RATE_URL)")
	fs.IntVarP(&cfg.rounds, "rounds", "r", trivia.DefaultMaxRounds, "rounds per game (env: PROMPTPARTY_ROUNDS)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle rooms are closed (env: PROMPTPARTY_SESSION_TIMEOUT)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: PROMPTPARTY_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: PROMPTPARTY_TLS_KEY)")
	fs.DurationVarP(&cfg.turnTimeout, "turn-timeout", "t", trivia.DefaultTurnTimeout, "time players have to answer each prompt (env: PROMPTPARTY_TURN_TIMEOUT)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: PROMPTPARTY_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: PROMPTPARTY_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("promptparty v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
