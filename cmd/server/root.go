package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"spellcast/server/internal/app"
	"spellcast/server/internal/catalog"
	"spellcast/server/internal/config"
	"spellcast/server/logging"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "spellcast",
		Short: "Ability cast sequencing server",
		Long: `Spellcast hosts units that cast abilities defined in a designer catalog.

Each ability is a timeline of steps dispatched to effect handlers, paced by
per-step intervals and interruptible where the catalog allows it.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.AddCommand(newServeCmd(), newValidateCmd(), newSchemaCmd())
	return root
}

type serveFlags struct {
	addr         string
	tickRate     int
	catalog      []string
	logSinks     []string
	logJSON      string
	minSeverity  string
	faultPolicy  string
	otelEndpoint string
}

func newServeCmd() *cobra.Command {
	var flags serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the arena server",
		Long: `Serve loads the ability catalog and runs the arena loop behind the HTTP
and websocket endpoints. Settings come from SPELLCAST_* environment variables;
flags override them.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			applyServeFlags(cmd, flags, &cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return app.Run(ctx, cfg, app.Options{})
		},
	}
	f := cmd.Flags()
	f.StringVar(&flags.addr, "addr", "", "listen address")
	f.IntVar(&flags.tickRate, "tick-rate", 0, "arena ticks per second")
	f.StringSliceVar(&flags.catalog, "catalog", nil, "ability catalog files (later files override earlier ones)")
	f.StringSliceVar(&flags.logSinks, "log-sinks", nil, "log sinks (console, json, memory)")
	f.StringVar(&flags.logJSON, "log-json", "", "path of the json log sink")
	f.StringVar(&flags.minSeverity, "min-severity", "", "minimum routed event severity (debug, info, warn, error)")
	f.StringVar(&flags.faultPolicy, "fault-policy", "", "step fault handling (abort, hold)")
	f.StringVar(&flags.otelEndpoint, "otel-endpoint", "", "OTLP/HTTP trace endpoint")
	return cmd
}

func applyServeFlags(cmd *cobra.Command, flags serveFlags, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("addr") {
		cfg.Addr = flags.addr
	}
	if changed("tick-rate") {
		cfg.TickRate = flags.tickRate
	}
	if changed("catalog") {
		cfg.Catalog = flags.catalog
	}
	if changed("log-sinks") {
		cfg.LogSinks = flags.logSinks
	}
	if changed("log-json") {
		cfg.LogJSONPath = flags.logJSON
	}
	if changed("min-severity") {
		cfg.LogMinSeverity = flags.minSeverity
	}
	if changed("fault-policy") {
		cfg.FaultPolicy = flags.faultPolicy
	}
	if changed("otel-endpoint") {
		cfg.OTelEndpoint = flags.otelEndpoint
	}
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <files...>",
		Short: "Check ability catalog files",
		Long: `Validate parses each catalog file and checks every entry, including that its
step types have a handler in this server build.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := app.NewEffects(logging.NopPublisher(), nil)
			count, err := catalog.Validate(registry, args...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d abilities ok\n", count)
			return nil
		},
	}
}

func newSchemaCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the ability catalog JSON schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if out != "" {
				if err := catalog.WriteSchema(out); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
				return nil
			}
			data, err := json.MarshalIndent(catalog.Schema(), "", "  ")
			if err != nil {
				return fmt.Errorf("encode schema: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the schema to a file instead of stdout")
	return cmd
}
