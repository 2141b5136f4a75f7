package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mcdev12/sketchturn/go/internal/dbconfig"
	"github.com/mcdev12/sketchturn/go/internal/session"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type Config struct {
	bind        string
	port        int
	databaseURL string
	natsURL     string
	clientURL   string
	publicURL   string
	rulesPath   string
	mdns        bool
	verbose     bool
}

func (c *Config) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.clientURL == "" {
		return errors.New("--client-url must not be empty (use * to allow any origin)")
	}
	return nil
}

// dsn is the Postgres URL the server should use, or "" to run in memory.
// DB_HOST alone is enough to opt into the DB_* variables.
func (c *Config) dsn() string {
	if c.databaseURL != "" {
		return c.databaseURL
	}
	if os.Getenv("DB_HOST") != "" {
		return dbconfig.NewConfigFromEnv().DSN()
	}
	return ""
}

// migrationDSN always resolves to a database, defaulting to the DB_* variables.
func (c *Config) migrationDSN() string {
	if c.databaseURL != "" {
		return c.databaseURL
	}
	return dbconfig.NewConfigFromEnv().DSN()
}

// loadRules reads game rules from a YAML file. Keys missing from the file keep
// their default value. An empty path returns the defaults.
func loadRules(path string) (session.Rules, error) {
	rules := session.DefaultRules()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return session.Rules{}, fmt.Errorf("failed to read rules file: %w", err)
	}
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return session.Rules{}, fmt.Errorf("failed to parse rules: %w", err)
	}
	if err := rules.Validate(); err != nil {
		return session.Rules{}, fmt.Errorf("invalid rules in %s: %w", path, err)
	}
	return rules, nil
}

func newRootCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("SKETCHTURN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:     "sketchturn",
		Short:   "Turn-based multiplayer drawing game server.",
		Args:    cobra.NoArgs,
		Version: releaseVersion,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(cfg.verbose)
		},
	}

	pfs := cmd.PersistentFlags()
	pfs.StringVar(&cfg.databaseURL, "database-url", "", "postgres connection URL, DB_* variables are used when empty (env: SKETCHTURN_DATABASE_URL)")
	pfs.BoolVarP(&cfg.verbose, "verbose", "v", false, "log at debug level (env: SKETCHTURN_VERBOSE)")
	bindEnv(v, pfs)

	cmd.AddCommand(newServeCmd(cfg, v), newMigrateCmd(cfg))

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("sketchturn v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}

func newServeCmd(cfg *Config, v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the game server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			rules, err := loadRules(cfg.rulesPath)
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg, rules)
		},
	}

	fs := cmd.Flags()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: SKETCHTURN_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 3001, "port to listen on (env: SKETCHTURN_PORT)")
	fs.StringVar(&cfg.natsURL, "nats-url", "", "mirror broadcasts to this NATS server, disabled when empty (env: SKETCHTURN_NATS_URL)")
	fs.StringVar(&cfg.clientURL, "client-url", "*", "origin allowed by CORS (env: SKETCHTURN_CLIENT_URL)")
	fs.StringVar(&cfg.publicURL, "public-url", "", "join URL encoded in the QR code, request host when empty (env: SKETCHTURN_PUBLIC_URL)")
	fs.StringVar(&cfg.rulesPath, "rules", "", "YAML file with game rules (env: SKETCHTURN_RULES)")
	fs.BoolVar(&cfg.mdns, "mdns", false, "advertise the server on the local network (env: SKETCHTURN_MDNS)")
	bindEnv(v, fs)

	return cmd
}

// bindEnv lets SKETCHTURN_<FLAG> supply any flag not given on the command line.
func bindEnv(v *viper.Viper, fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}
