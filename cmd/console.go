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
	"loaner/cmd/console"
	"loaner/internal/client"
	"loaner/internal/logger"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Start the interactive console",
	Long: `Launch the interactive terminal console. It lists laptops, students, active
reservations and both queues, and refreshes whenever any client changes something.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !debug {
			logger.SetSilentMode(true)
		}

		config := client.NewDefaultConfig()
		if clientAddress != "" {
			config.Address = clientAddress
		}

		log := logger.GetLogger("main")
		log.Info().Str("address", config.Address).Msg("Starting loaner console")

		if err := console.StartConsole(cmd.Context(), config); err != nil {
			log.Error().Err(err).Msg("Failed to start console")
			return err
		}
		return nil
	},
}

func init() {
	consoleCmd.Flags().StringVarP(&clientAddress, "address", "a", "", "server address (default localhost:8888)")
}
