package main

import (
	"github.com/hcengineering/tree-sitter-offload/internal/config"
	"github.com/hcengineering/tree-sitter-offload/internal/logging"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	fs      afero.Fs
	v       *viper.Viper
	cfgFile string
	cfg     config.Config
}

func newRootCmd(fs afero.Fs) *cobra.Command {
	a := &app{fs: fs, v: config.New(fs)}

	root := &cobra.Command{
		Use:           "tsoffload",
		Short:         "Multi-language syntax highlighting, folding and indentation",
		Long:          `tsoffload parses documents with tree-sitter, follows language injections into nested grammars, and reports highlight tokens, fold ranges and indent ranges.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.fs, a.v, a.cfgFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			logger := logging.NewWriter(cmd.ErrOrStderr(), cfg.LogLevel)
			logging.SetDefault(logger)
			cmd.SetContext(logging.WithLogger(cmd.Context(), logger))
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.cfgFile, "config", "c", "", "config file (default: ./.tsoffload.yaml or ~/.config/tsoffload/config.yaml)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("theme", "", "chroma style used for colors")
	flags.String("manifest", "", "YAML manifest of extra languages")
	flags.Int("cache-size", 0, "highlight results kept in memory, 0 disables")
	flags.Bool("trace", false, "print OpenTelemetry spans to stderr")

	_ = a.v.BindPFlag(config.KeyLogLevel, flags.Lookup("log-level"))
	_ = a.v.BindPFlag(config.KeyTheme, flags.Lookup("theme"))
	_ = a.v.BindPFlag(config.KeyManifest, flags.Lookup("manifest"))
	_ = a.v.BindPFlag(config.KeyHighlightCacheSize, flags.Lookup("cache-size"))
	_ = a.v.BindPFlag(config.KeyTracing, flags.Lookup("trace"))

	root.AddCommand(
		newHighlightCmd(a),
		newTokensCmd(a),
		newFoldsCmd(a),
		newIndentsCmd(a),
		newForestCmd(a),
		newEditCmd(a),
		newLanguagesCmd(a),
	)
	return root
}
