/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/josephgoksu/guidedmodules/internal/logger"
	"github.com/josephgoksu/guidedmodules/internal/ui"
)

var (
	// cfgFile is the path to the configuration file.
	cfgFile string
	// verbose enables verbose output.
	verbose bool
	// version is the application version, set at build time.
	version = "0.1.0"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "guidedmodules",
	Short: "Answer guided modules and render their documents.",
	Long: `guidedmodules drives versioned questionnaires ("modules") for a project.

Each task is one instantiation of a module. Questions become answerable as
their dependencies are settled, hidden questions are imputed, and once a task
is complete its output documents can be rendered as markdown, HTML or text.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.SetCommand(cmd.CommandPath())
		if isJSON() || !ui.IsInteractive() {
			ui.DisableColor()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	logger.SetVersion(version)
	if err := rootCmd.Execute(); err != nil {
		PrintError(userMessage(err), err)
		os.Exit(exitCode(err))
	}
}

func init() {
	cobra.OnInitialize(InitConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "c", "", "config file (default is ./.guidedmodules/.guidedmodules.yaml or $HOME/.guidedmodules.yaml)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	pf.String("user", "", "act as this user ID")
	pf.String("org", "", "act within this organization ID")
	pf.Bool("json", false, "print machine-readable JSON")

	_ = viper.BindPFlag("config", pf.Lookup("config"))
	_ = viper.BindPFlag("verbose", pf.Lookup("verbose"))
	_ = viper.BindPFlag("actor.userId", pf.Lookup("user"))
	_ = viper.BindPFlag("actor.organizationId", pf.Lookup("org"))
	_ = viper.BindPFlag("json", pf.Lookup("json"))
}
