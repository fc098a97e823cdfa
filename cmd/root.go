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
	"io"
	"os"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/profile"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/notargets/gorefine/InputParameters"
	"github.com/notargets/gorefine/mesh"
)

var (
	cfgFile  string
	profiler interface{ Stop() }
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gorefine",
	Short: "Hierarchical quadtree and octree mesh refinement",
	Long: `
Builds forests of quadtrees and octrees over a macro mesh, refines them following
an input plan, checks the neighbour relations between all leaves and resolves the
hanging nodes of the refined mesh.

gorefine selftest -I input.yaml`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if viper.GetBool("profile") {
			profiler = profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.Quiet)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if profiler != nil {
			profiler.Stop()
			profiler = nil
		}
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.gorefine.yaml)")
	rootCmd.PersistentFlags().StringP("inputConditionsFile", "I", "", "YAML file for input parameters like:\n\t- NX, NY\n\t- NNode1D\n\t- Refine")
	rootCmd.PersistentFlags().StringP("gridFile", "F", "", "Grid file to read in SU2 (.su2) format, replaces the generated mesh")
	rootCmd.PersistentFlags().String("policy", "", "hanging node policy, Conforming or Mortar, overrides the input file")
	rootCmd.PersistentFlags().String("logLevel", "warn", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("logFile", "", "also write the log to this file, rotated")
	rootCmd.PersistentFlags().Bool("profile", false, "write a CPU profile to the current directory")
	for _, name := range []string{"policy", "logLevel", "logFile", "profile"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}
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
		// Search config in home directory with name ".gorefine" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigName(".gorefine")
	}
	viper.SetEnvPrefix("GOREFINE")
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newLogger writes to the console and, with --logFile, to a rotated file as well
func newLogger(console io.Writer) (log zerolog.Logger, err error) {
	var (
		level zerolog.Level
		w     io.Writer = zerolog.ConsoleWriter{Out: console, TimeFormat: "15:04:05"}
	)
	if level, err = zerolog.ParseLevel(viper.GetString("logLevel")); err != nil {
		return
	}
	if name := viper.GetString("logFile"); name != "" {
		w = zerolog.MultiLevelWriter(w, &lumberjack.Logger{
			Filename:   name,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
		})
	}
	log = zerolog.New(w).Level(level).With().Timestamp().Logger()
	return
}

// buildMesh reads the input parameters named on the command line and builds the refined mesh
func buildMesh(cmd *cobra.Command) (m *mesh.Mesh, ip *InputParameters.InputParameters, err error) {
	var (
		icFile, gridFile string
		log              zerolog.Logger
		cfg              mesh.Config
	)
	if icFile, err = cmd.Flags().GetString("inputConditionsFile"); err != nil {
		return
	}
	if gridFile, err = cmd.Flags().GetString("gridFile"); err != nil {
		return
	}
	if len(icFile) == 0 {
		exampleFile := `
########################################
Title: "Test Case"
Kind: Quad
NX: 2
NY: 2
Lengths: [2, 2]
NNode1D: 2
Policy: Conforming # Can be Mortar
Refine:
  - Roots: [3]
  - Box: [1, 1.5, 1, 1.5]
########################################
`
		err = fmt.Errorf("must supply an input parameters file (-I, --inputConditionsFile), example:%s", exampleFile)
		return
	}
	ip = &InputParameters.InputParameters{}
	if err = ip.ReadFile(icFile); err != nil {
		return
	}
	if len(gridFile) != 0 {
		ip.MeshFile = gridFile
	}
	if policy := viper.GetString("policy"); policy != "" {
		ip.Policy = policy
	}
	if cfg, err = ip.Config(); err != nil {
		return
	}
	if log, err = newLogger(cmd.ErrOrStderr()); err != nil {
		return
	}
	cfg.Logger = &log
	m, err = ip.BuildMesh(cfg)
	return
}
