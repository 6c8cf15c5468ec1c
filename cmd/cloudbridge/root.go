package main

import (
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"

	"github.com/jacentio/cloudbridge/bridge"
	"github.com/jacentio/cloudbridge/rest"
)

// options holds the persistent flags shared by all commands.
type options struct {
	configPath string
	mapping    string
	logLevel   string
	out        io.Writer
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &options{out: out}

	root := &cobra.Command{
		Use:   "cloudbridge",
		Short: "cloudbridge maps local objects to REST resources",
		Long: `cloudbridge expands REST path templates against JSON objects, fetches
resources from a REST backend and runs the DynamoDB stream handler that
propagates cascade deletes.

Backend settings are read from a YAML file given with --config.`,
		Version:       fmt.Sprintf("%s (%s)", Version, Commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file")
	root.PersistentFlags().StringVar(&opts.mapping, "mapping", "", "property mapping: identity or underscored (overrides config)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn, error")

	root.AddCommand(
		newSubstituteCmd(opts),
		newFetchCmd(opts),
		newCascadeCmd(opts),
	)
	return root
}

// config loads the REST config, applying flag overrides.
func (o *options) config() (rest.Config, error) {
	cfg := rest.DefaultConfig()
	if o.configPath != "" {
		var err error
		if cfg, err = rest.LoadConfig(o.configPath); err != nil {
			return cfg, err
		}
	}
	if o.mapping != "" {
		cfg.Mapping = o.mapping
	}
	if _, err := cfg.PropertyMapping(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// newLogger returns a text logger on w at level.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// parseObject decodes a JSON object given on the command line.
func parseObject(data string) (rest.Record, error) {
	if strings.TrimSpace(data) == "" {
		return rest.Record{}, nil
	}
	v, err := oj.ParseString(data)
	if err != nil {
		return nil, fmt.Errorf("parse object: %w", err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("parse object: expected a JSON object, got %T", v)
	}
	return rest.Record(m), nil
}

func newSubstituteCmd(opts *options) *cobra.Command {
	var object string

	cmd := &cobra.Command{
		Use:   "substitute TEMPLATE",
		Short: "Expand a path template against a JSON object",
		Example: `  cloudbridge substitute /posts/:id/comments --object '{"id": 42}'
  cloudbridge substitute /users/:user_id --mapping underscored --object '{"userId": 7}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config()
			if err != nil {
				return err
			}
			mapping, _ := cfg.PropertyMapping()
			obj, err := parseObject(object)
			if err != nil {
				return err
			}
			fmt.Fprintln(opts.out, bridge.Substitute(obj, args[0], mapping))
			return nil
		},
	}
	cmd.Flags().StringVar(&object, "object", "", "JSON object supplying placeholder values")
	return cmd
}

func newFetchCmd(opts *options) *cobra.Command {
	var (
		object  string
		baseURL string
		params  map[string]string
	)

	cmd := &cobra.Command{
		Use:   "fetch TEMPLATE",
		Short: "Expand a path template and GET it from the backend",
		Example: `  cloudbridge fetch /posts/:id/comments --object '{"id": 42}' --base-url https://api.example.com
  cloudbridge fetch /comments --param postId=42 --config cloudbridge.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config()
			if err != nil {
				return err
			}
			if baseURL != "" {
				cfg.BaseURL = baseURL
			}
			if cfg.BaseURL == "" {
				return fmt.Errorf("no base URL: set base_url in the config or pass --base-url")
			}
			level, err := parseLevel(opts.logLevel)
			if err != nil {
				return err
			}
			logger := newLogger(cmd.ErrOrStderr(), level)

			mapping, _ := cfg.PropertyMapping()
			obj, err := parseObject(object)
			if err != nil {
				return err
			}

			query := url.Values{}
			for k, v := range params {
				query.Set(k, v)
			}

			session := rest.NewHTTPSession(cfg, rest.WithLogger(logger))
			payload, err := session.Get(cmd.Context(), bridge.Substitute(obj, args[0], mapping), query)
			if err != nil {
				return err
			}
			fmt.Fprintln(opts.out, oj.JSON(payload, &oj.Options{Indent: 2, Sort: true}))
			return nil
		},
	}
	cmd.Flags().StringVar(&object, "object", "", "JSON object supplying placeholder values")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "backend base URL (overrides config)")
	cmd.Flags().StringToStringVar(&params, "param", nil, "query parameter key=value (repeatable)")
	return cmd
}
