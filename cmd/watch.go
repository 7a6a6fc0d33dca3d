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
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"loaner/internal/client"
	"loaner/internal/protocol"
	"loaner/internal/relay"
)

var (
	watchRelay  string
	watchTopics []string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print every change as it happens",
	Long: `Print server events as they happen. By default the command registers as a client
over TCP and receives the same pushes as any other client. With --relay it follows the
ZeroMQ event relay instead, optionally filtered with --topic.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		show := func(msg *protocol.Message) {
			cmd.Printf("%s  %-28s %s\n", msg.Timestamp.Local().Format(time.TimeOnly), msg.Type, string(msg.Payload))
		}

		if watchRelay != "" {
			topics := make([]protocol.EventType, 0, len(watchTopics))
			for _, topic := range watchTopics {
				topics = append(topics, protocol.EventType(topic))
			}
			sub, err := relay.NewSubscriber(watchRelay, topics...)
			if err != nil {
				return err
			}
			defer sub.Close()

			cmd.Printf("Following relay %s (Ctrl+C to stop)\n", watchRelay)
			return sub.Run(ctx, show)
		}

		config := client.NewDefaultConfig()
		if clientAddress != "" {
			config.Address = clientAddress
		}
		config.Subscribe = true

		stub := client.New(config)
		lost := make(chan struct{}, 1)
		stub.Subscribe(client.ObserverFunc(func(msg *protocol.Message) {
			if msg.Type == string(protocol.EventDisconnect) {
				select {
				case lost <- struct{}{}:
				default:
				}
				return
			}
			show(msg)
		}))

		if err := stub.Connect(ctx); err != nil {
			return err
		}
		defer stub.Close()

		cmd.Printf("Watching %s as session %s (Ctrl+C to stop)\n", config.Address, stub.SessionID())
		select {
		case <-ctx.Done():
			return nil
		case <-lost:
			return fmt.Errorf("server closed the connection")
		}
	},
}

func init() {
	watchCmd.Flags().StringVarP(&clientAddress, "address", "a", "", "server address (default localhost:8888)")
	watchCmd.Flags().StringVar(&watchRelay, "relay", "", "follow a ZeroMQ relay endpoint instead, e.g. tcp://localhost:5556")
	watchCmd.Flags().StringSliceVar(&watchTopics, "topic", nil, "event types to follow on the relay (default all)")
}
