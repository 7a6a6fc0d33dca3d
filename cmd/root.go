// Copyright 2025 Arion Yau
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"github.com/spf13/cobra"
	"loaner/internal/logger"
)

var (
	configPath string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "loaner",
	Short: "Loaner - laptop loan coordination server and clients",
	Long: `Loaner keeps track of a pool of loan laptops shared by many students.
The server binds laptops to students through reservations and keeps a waitlist per
performance class when nothing matching is free. Every connected client sees changes
made by the others as they happen.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debug {
			logger.SetSilentMode(false)
			logger.SetLevel(logger.LOG_DEBUG)
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "configuration file (default loaner.yml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(clientCmd)
	rootCmd.AddCommand(consoleCmd)
	rootCmd.AddCommand(watchCmd)
}
