package main

import (
	"github.com/spf13/cobra"

	"github.com/feichai0017/testcase-generator/config"
	"github.com/feichai0017/testcase-generator/pkg/logger"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "qagen",
		Short:         "Generate QA test cases from requirement documents",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "config.yaml", "path to the YAML configuration")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level")

	cmd.AddCommand(
		newGenerateCmd(opts),
		newParseCmd(opts),
		newMCPCmd(opts),
	)
	return cmd
}

// load reads the configuration and builds a logger that writes to stderr
// only, so stdout stays free for results and the MCP transport.
func (o *rootOptions) load() (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	lc := cfg.Log
	lc.Encoding = "console"
	lc.OutputPaths = []string{"stderr"}
	lc.ErrorPaths = []string{"stderr"}
	if o.logLevel != "" {
		lc.Level = o.logLevel
	}
	log, err := logger.NewFromConfig(lc)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}
