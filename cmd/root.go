/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/profile"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notargets/gopart/config"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gopart",
	Short: "Graph and mesh partitioning and fill reducing ordering",
	Long: `
Partitions graphs and finite element meshes with multilevel k-way and
recursive bisection schemes, computes nested dissection orderings and runs
the distributed partitioner over an in-process group of ranks.

gopart partgraph -F grid.graph -n 8`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		switch mode, _ := cmd.Flags().GetString("profile"); mode {
		case "cpu":
			stopProfile = profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop
		case "mem":
			stopProfile = profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if stopProfile != nil {
			stopProfile()
		}
	},
}

var stopProfile func()

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.gopart.yaml)")
	rootCmd.PersistentFlags().String("profile", "", "write a cpu or mem profile to the current directory")
	rootCmd.PersistentFlags().Bool("perf", false, "count CPU instructions of the run (linux)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().Int("coarsen-to", 20, "stop coarsening at this many vertices")
	rootCmd.PersistentFlags().Int64("max-bytes", 0, "working set limit of a call in bytes, 0 for none")

	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("engine.coarsen_to", rootCmd.PersistentFlags().Lookup("coarsen-to"))
	_ = viper.BindPFlag("engine.max_working_set_bytes", rootCmd.PersistentFlags().Lookup("max-bytes"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory with name ".gopart" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigName(".gopart")
	}

	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

// setup builds the configuration and logger shared by every subcommand.
func setup() (*config.Config, zerolog.Logger) {
	cfg := config.FromViper(viper.GetViper())
	return cfg, cfg.CreateLogger()
}

// measured runs fn, counting its CPU instructions when --perf is set.
func measured(cmd *cobra.Command, logger zerolog.Logger, fn func() error) error {
	if on, _ := cmd.Flags().GetBool("perf"); !on {
		return fn()
	}
	return countInstructions(logger, fn)
}
