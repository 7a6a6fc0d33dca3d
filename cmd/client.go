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
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"loaner/internal/client"
	"loaner/internal/inventory"
)

var (
	clientAddress string
	clientTimeout time.Duration

	laptopBrand    string
	laptopModel    string
	laptopCapacity int
	laptopRAM      int
	laptopClass    string

	studentName    string
	studentProgram string
	studentEnd     string
	studentEmail   string
	studentPhone   string
	studentClass   string
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Send one request to a running server",
	Long: `Connect to a loaner server, send a single request and print the
response as JSON. A response that does not arrive within the timeout is reported as an error.`,
}

// withStub connects to the server, runs fn and prints what it returns
func withStub(cmd *cobra.Command, fn func(ctx context.Context, stub *client.Stub) (interface{}, error)) error {
	config := client.NewDefaultConfig()
	if clientAddress != "" {
		config.Address = clientAddress
	}
	if clientTimeout > 0 {
		config.Timeout = clientTimeout
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), config.DialTimeout+config.Timeout)
	defer cancel()

	stub, err := client.Dial(ctx, config)
	if err != nil {
		return err
	}
	defer stub.Close()

	result, err := fn(ctx, stub)
	if err != nil {
		return err
	}
	if result == nil {
		cmd.Println("✓ Done")
		return nil
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func parseClassArg(arg string) (inventory.PerformanceClass, error) {
	return inventory.ParsePerformanceClass(arg)
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the server answers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStub(cmd, func(ctx context.Context, stub *client.Stub) (interface{}, error) {
			return stub.Ping(ctx)
		})
	},
}

// Laptops

var laptopsCmd = &cobra.Command{
	Use:   "laptops [available|loaned]",
	Short: "List laptops",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStub(cmd, func(ctx context.Context, stub *client.Stub) (interface{}, error) {
			if len(args) == 0 {
				return stub.Laptops(ctx)
			}
			switch inventory.LaptopState(args[0]) {
			case inventory.StateAvailable:
				return stub.AvailableLaptops(ctx)
			case inventory.StateLoaned:
				return stub.LoanedLaptops(ctx)
			}
			return nil, fmt.Errorf("unknown laptop state %q", args[0])
		})
	},
}

var laptopCmd = &cobra.Command{
	Use:   "laptop",
	Short: "Manage one laptop",
}

var laptopGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a laptop",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStub(cmd, func(ctx context.Context, stub *client.Stub) (interface{}, error) {
			return stub.Laptop(ctx, args[0])
		})
	},
}

var laptopNextCmd = &cobra.Command{
	Use:   "next <class>",
	Short: "Show the laptop the next reservation of a class would take",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		class, err := parseClassArg(args[0])
		if err != nil {
			return err
		}
		return withStub(cmd, func(ctx context.Context, stub *client.Stub) (interface{}, error) {
			return stub.NextAvailableLaptop(ctx, class)
		})
	},
}

var laptopCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Add a laptop to the pool",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		spec, err := laptopSpecFromFlags()
		if err != nil {
			return err
		}
		return withStub(cmd, func(ctx context.Context, stub *client.Stub) (interface{}, error) {
			return stub.CreateLaptop(ctx, spec)
		})
	},
}

var laptopUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Replace the descriptive fields of a laptop",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		spec, err := laptopSpecFromFlags()
		if err != nil {
			return err
		}
		return withStub(cmd, func(ctx context.Context, stub *client.Stub) (interface{}, error) {
			return stub.UpdateLaptop(ctx, args[0], spec)
		})
	},
}

var laptopToggleCmd = &cobra.Command{
	Use:   "toggle <id>",
	Short: "Flip a laptop between available and loaned",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStub(cmd, func(ctx context.Context, stub *client.Stub) (interface{}, error) {
			return stub.ToggleLaptopState(ctx, args[0])
		})
	},
}

var laptopDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Remove a laptop from the pool",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStub(cmd, func(ctx context.Context, stub *client.Stub) (interface{}, error) {
			return nil, stub.DeleteLaptop(ctx, args[0])
		})
	},
}

func laptopSpecFromFlags() (inventory.LaptopSpec, error) {
	spec := inventory.LaptopSpec{
		Brand:      laptopBrand,
		Model:      laptopModel,
		CapacityGB: laptopCapacity,
		RAMGB:      laptopRAM,
	}
	if laptopClass != "" {
		class, err := parseClassArg(laptopClass)
		if err != nil {
			return spec, err
		}
		spec.Class = class
	}
	return spec, nil
}

// Students

var studentsCmd = &cobra.Command{
	Use:   "students [class]",
	Short: "List students, optionally of one class",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStub(cmd, func(ctx context.Context, stub *client.Stub) (interface{}, error) {
			if len(args) == 0 {
				return stub.Students(ctx)
			}
			class, err := parseClassArg(args[0])
			if err != nil {
				return nil, err
			}
			return stub.StudentsByClass(ctx, class)
		})
	},
}

var studentCmd = &cobra.Command{
	Use:   "student",
	Short: "Manage one student",
}

var studentGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a student",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStub(cmd, func(ctx context.Context, stub *client.Stub) (interface{}, error) {
			return stub.Student(ctx, args[0])
		})
	},
}

var studentCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Count registered students",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStub(cmd, func(ctx context.Context, stub *client.Stub) (interface{}, error) {
			n, err := stub.StudentCount(ctx)
			if err != nil {
				return nil, err
			}
			return map[string]int{"count": n}, nil
		})
	},
}

var studentCreateCmd = &cobra.Command{
	Use:   "create <id>",
	Short: "Register a student and assign a laptop or queue them",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		student, err := studentFromFlags(args[0])
		if err != nil {
			return err
		}
		return withStub(cmd, func(ctx context.Context, stub *client.Stub) (interface{}, error) {
			return stub.CreateStudent(ctx, student)
		})
	},
}

var studentUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Replace the contact details of a student",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		student, err := studentFromFlags(args[0])
		if err != nil {
			return err
		}
		return withStub(cmd, func(ctx context.Context, stub *client.Stub) (interface{}, error) {
			return stub.UpdateStudent(ctx, student)
		})
	},
}

var studentDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Remove a student",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStub(cmd, func(ctx context.Context, stub *client.Stub) (interface{}, error) {
			return nil, stub.DeleteStudent(ctx, args[0])
		})
	},
}

func studentFromFlags(id string) (inventory.Student, error) {
	student := inventory.Student{
		ID:         id,
		Name:       studentName,
		Program:    studentProgram,
		ProgramEnd: studentEnd,
		Email:      studentEmail,
		Phone:      studentPhone,
	}
	if studentClass != "" {
		class, err := parseClassArg(studentClass)
		if err != nil {
			return student, err
		}
		student.RequiredClass = class
	}
	return student, nil
}

// Reservations

var reservationsCmd = &cobra.Command{
	Use:   "reservations [active]",
	Short: "List reservations",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStub(cmd, func(ctx context.Context, stub *client.Stub) (interface{}, error) {
			if len(args) == 1 {
				if args[0] != string(inventory.ReservationActive) {
					return nil, fmt.Errorf("unknown filter %q", args[0])
				}
				return stub.ActiveReservations(ctx)
			}
			return stub.Reservations(ctx)
		})
	},
}

var reservationCmd = &cobra.Command{
	Use:   "reservation",
	Short: "Manage one reservation",
}

var reservationCreateCmd = &cobra.Command{
	Use:   "create <student-id> <laptop-id>",
	Short: "Loan a specific laptop to a student",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStub(cmd, func(ctx context.Context, stub *client.Stub) (interface{}, error) {
			return stub.CreateReservation(ctx, args[0], args[1])
		})
	},
}

var reservationGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a reservation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStub(cmd, func(ctx context.Context, stub *client.Stub) (interface{}, error) {
			return stub.Reservation(ctx, args[0])
		})
	},
}

var reservationCompleteCmd = &cobra.Command{
	Use:   "complete <id>",
	Short: "Return the laptop of a reservation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStub(cmd, func(ctx context.Context, stub *client.Stub) (interface{}, error) {
			return stub.CompleteReservation(ctx, args[0])
		})
	},
}

var reservationCancelCmd = &cobra.Command{
	Use:   "cancel <id>",
	Short: "Cancel a reservation and free its laptop",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStub(cmd, func(ctx context.Context, stub *client.Stub) (interface{}, error) {
			return stub.CancelReservation(ctx, args[0])
		})
	},
}

// Queues

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and drain the waiting queues",
}

var queueShowCmd = &cobra.Command{
	Use:   "show <class>",
	Short: "List the students waiting for a class",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		class, err := parseClassArg(args[0])
		if err != nil {
			return err
		}
		return withStub(cmd, func(ctx context.Context, stub *client.Stub) (interface{}, error) {
			return stub.Queue(ctx, class)
		})
	},
}

var queueAddCmd = &cobra.Command{
	Use:   "add <student-id> <class>",
	Short: "Put a student at the back of a queue",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		class, err := parseClassArg(args[1])
		if err != nil {
			return err
		}
		return withStub(cmd, func(ctx context.Context, stub *client.Stub) (interface{}, error) {
			return stub.AddToQueue(ctx, args[0], class)
		})
	},
}

var queueProcessCmd = &cobra.Command{
	Use:   "process",
	Short: "Assign free laptops to waiting students, high class first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStub(cmd, func(ctx context.Context, stub *client.Stub) (interface{}, error) {
			return stub.ProcessQueues(ctx)
		})
	},
}

func init() {
	clientCmd.PersistentFlags().StringVarP(&clientAddress, "address", "a", "", "server address (default localhost:8888)")
	clientCmd.PersistentFlags().DurationVarP(&clientTimeout, "timeout", "t", client.DefaultTimeout, "response timeout")

	for _, c := range []*cobra.Command{laptopCreateCmd, laptopUpdateCmd} {
		c.Flags().StringVar(&laptopBrand, "brand", "", "manufacturer")
		c.Flags().StringVar(&laptopModel, "model", "", "model name")
		c.Flags().IntVar(&laptopCapacity, "capacity", 0, "storage capacity in GB")
		c.Flags().IntVar(&laptopRAM, "ram", 0, "memory in GB")
		c.Flags().StringVar(&laptopClass, "class", "", "performance class (high or low)")
	}
	for _, c := range []*cobra.Command{studentCreateCmd, studentUpdateCmd} {
		c.Flags().StringVar(&studentName, "name", "", "full name")
		c.Flags().StringVar(&studentProgram, "program", "", "study program")
		c.Flags().StringVar(&studentEnd, "program-end", "", "program end date (YYYY-MM-DD)")
		c.Flags().StringVar(&studentEmail, "email", "", "email address")
		c.Flags().StringVar(&studentPhone, "phone", "", "phone number")
		c.Flags().StringVar(&studentClass, "class", "", "required performance class (high or low)")
	}

	laptopCmd.AddCommand(laptopGetCmd, laptopNextCmd, laptopCreateCmd, laptopUpdateCmd, laptopToggleCmd, laptopDeleteCmd)
	studentCmd.AddCommand(studentGetCmd, studentCountCmd, studentCreateCmd, studentUpdateCmd, studentDeleteCmd)
	reservationCmd.AddCommand(reservationCreateCmd, reservationGetCmd, reservationCompleteCmd, reservationCancelCmd)
	queueCmd.AddCommand(queueShowCmd, queueAddCmd, queueProcessCmd)

	clientCmd.AddCommand(pingCmd, laptopsCmd, laptopCmd, studentsCmd, studentCmd, reservationsCmd, reservationCmd, queueCmd)
}
