// Command rulesengine is a thin demonstration CLI for the rules-engine
// library: it loads a rule and a value context (or an entity population)
// from JSON files on disk and prints the result, exercising the library
// end-to-end without the HTTP/auth surface spec.md places out of scope.
//
// Grounded on the teacher's cli/root.go cobra/viper wiring, restructured
// from one HTTP-serving root command into a root command with
// `evaluate`/`filter` subcommands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"rulesengine/common"
	"rulesengine/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "rulesengine",
	Short: "evaluate rules and filter entities against the rules engine",
	Long: `rulesengine is a demonstration CLI over the rules-engine library.

It loads a rule tree and either a value context or an entity population
from JSON files, runs it through the same evaluation/resolution/filter
pipeline the library exposes, and prints the result.`,
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.rulesengine.yaml)")
	rootCmd.AddCommand(evaluateCmd, filterCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".rulesengine")
	}
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err == nil {
		common.Logger.WithField("configFile", viper.ConfigFileUsed()).Info("using config file")
	}
}

func loadEngineConfig() *config.RulesEngineConfig {
	cfg, err := config.NewConfigLoader("RULES_ENGINE").LoadAll()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
