// Package cli implements the agentrouter command line.
package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hupe1980/agentrouter/config"
	"github.com/hupe1980/agentrouter/logging"
)

// state is shared by all subcommands. PersistentPreRunE fills it.
type state struct {
	cfgFile   string
	logLevel  string
	logFormat string

	cfg    *config.Config
	zap    *zap.Logger
	logger logging.Logger

	// lookupEnv feeds the config loader; tests replace it.
	lookupEnv func(string) (string, bool)
}

func newRootCmd(st *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agentrouter",
		Short: "agentrouter routes customer conversations between cooperating agents",
		Long: "agentrouter answers chat messages with a triage agent that can hand the " +
			"conversation off to specialised agents along a fixed delegation table.",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loader := config.NewLoader().WithConfigPath(st.cfgFile)
			if st.lookupEnv != nil {
				loader = loader.WithLookupEnv(st.lookupEnv)
			}
			cfg, err := loader.Load()
			if err != nil {
				return err
			}
			if st.logLevel != "" {
				cfg.Log.Level = st.logLevel
			}
			if st.logFormat != "" {
				cfg.Log.Format = st.logFormat
			}

			st.cfg = cfg
			st.zap = logging.NewZap(cfg.Log)
			st.logger = logging.NewZapAdapter(st.zap)
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if st.zap != nil {
				_ = st.zap.Sync()
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&st.cfgFile, "config", "agentrouter.yaml", "config file (missing file keeps the defaults)")
	cmd.PersistentFlags().StringVar(&st.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&st.logFormat, "log-format", "", "log format (json, console)")

	cmd.AddCommand(newServeCmd(st))
	cmd.AddCommand(newHandoffCmd(st))
	cmd.AddCommand(newAskCmd(st))
	cmd.AddCommand(newAgentsCmd(st))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd(&state{}).Execute()
}
