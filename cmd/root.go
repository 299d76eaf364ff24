// -- cmd/root.go --
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/domscript/internal/config"
	"github.com/xkilldash9x/domscript/internal/observability"
)

// app carries state shared by the subcommands of one invocation.
type app struct {
	cfgFile string
	cfg     *config.Config
	logger  *zap.Logger
}

// NewRootCmd builds the command tree. Each call returns an independent
// tree, so tests never share flag state.
func NewRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:   "domscript",
		Short: "domscript runs browser-flavored JavaScript against parsed web pages.",
		// Version is dynamically set at build time. See cmd/version.go.
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initialize()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default is ./domscript.yaml, then ~/.config/domscript/domscript.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s version %s\n" .Name .Version}}`)

	rootCmd.AddCommand(
		newRunCmd(a),
		newProfilesCmd(a),
		newClassesCmd(a),
		newCharsetCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

// initialize loads configuration and sets up the global logger.
func (a *app) initialize() error {
	cfg, err := config.Load(viper.New(), a.cfgFile)
	if err != nil {
		// Initialize a basic logger so the failure is still reported.
		observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "domscript"})
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}
	a.cfg = cfg
	observability.InitializeLogger(cfg.Logger())
	a.logger = observability.GetLogger()
	a.logger.Debug("Starting domscript", zap.String("version", Version))
	return nil
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	defer observability.Sync()
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		observability.Sync()
		os.Exit(1)
	}
}
