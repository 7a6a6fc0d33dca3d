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

// Package console is an interactive terminal view of a loaner server that
// redraws whenever another client changes something.
package console

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbletea"
	"loaner/internal/client"
	"loaner/internal/inventory"
	"loaner/internal/logger"
	"loaner/internal/protocol"
)

const maxEvents = 6

// eventMsg carries one push received by the stub
type eventMsg struct {
	event *protocol.Message
}

// dataMsg is the result of a full refresh
type dataMsg struct {
	laptops      []*inventory.Laptop
	students     []*inventory.Student
	reservations []*inventory.Reservation
	highQueue    []*inventory.QueueEntry
	lowQueue     []*inventory.QueueEntry
	fetched      time.Time
}

// drainMsg is the result of a process_queues request
type drainMsg struct {
	result *protocol.DrainResult
}

type errMsg struct {
	err error
}

// eventEntry is one line of the event log
type eventEntry struct {
	Timestamp time.Time
	Type      string
}

// Model is the console screen
type Model struct {
	stub   *client.Stub
	events <-chan *protocol.Message

	current tab
	data    dataMsg
	log     []eventEntry

	status    string
	lastError error
	loading   bool
	quitting  bool

	width  int
	height int
}

// NewModel creates a console bound to stub. events must carry every push
// the stub receives.
func NewModel(stub *client.Stub, events <-chan *protocol.Message) Model {
	return Model{
		stub:    stub,
		events:  events,
		loading: true,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.refresh(), m.waitForEvent())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		case "tab", "right":
			m.current = (m.current + 1) % tabCount
		case "shift+tab", "left":
			m.current = (m.current + tabCount - 1) % tabCount
		case "1", "2", "3", "4":
			m.current = tab(msg.String()[0] - '1')
		case "r":
			m.loading = true
			return m, m.refresh()
		case "p":
			m.status = "Processing queues..."
			return m, m.processQueues()
		}
		return m, nil

	case eventMsg:
		if msg.event == nil {
			m.lastError = fmt.Errorf("event stream closed")
			return m, nil
		}
		m.log = append(m.log, eventEntry{Timestamp: msg.event.Timestamp, Type: msg.event.Type})
		if len(m.log) > maxEvents {
			m.log = m.log[len(m.log)-maxEvents:]
		}
		if msg.event.Type == string(protocol.EventDisconnect) {
			m.lastError = fmt.Errorf("server disconnected, next refresh reconnects")
			return m, m.waitForEvent()
		}
		return m, tea.Batch(m.refresh(), m.waitForEvent())

	case dataMsg:
		m.data = msg
		m.loading = false
		m.lastError = nil
		return m, nil

	case drainMsg:
		m.status = fmt.Sprintf("Created %d reservations (high %d, low %d)", msg.result.Created, msg.result.High, msg.result.Low)
		return m, nil

	case errMsg:
		m.loading = false
		m.lastError = msg.err
		return m, nil
	}

	return m, nil
}

// waitForEvent blocks on the next push
func (m Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		event, ok := <-m.events
		if !ok {
			return eventMsg{}
		}
		return eventMsg{event: event}
	}
}

// refresh reloads every list shown by the console
func (m Model) refresh() tea.Cmd {
	stub := m.stub
	return func() tea.Msg {
		ctx := context.Background()
		var data dataMsg
		var err error

		if data.laptops, err = stub.Laptops(ctx); err != nil {
			return errMsg{err}
		}
		if data.students, err = stub.Students(ctx); err != nil {
			return errMsg{err}
		}
		if data.reservations, err = stub.ActiveReservations(ctx); err != nil {
			return errMsg{err}
		}
		if data.highQueue, err = stub.Queue(ctx, inventory.ClassHigh); err != nil {
			return errMsg{err}
		}
		if data.lowQueue, err = stub.Queue(ctx, inventory.ClassLow); err != nil {
			return errMsg{err}
		}
		data.fetched = time.Now()
		return data
	}
}

func (m Model) processQueues() tea.Cmd {
	stub := m.stub
	return func() tea.Msg {
		result, err := stub.ProcessQueues(context.Background())
		if err != nil {
			return errMsg{err}
		}
		return drainMsg{result: result}
	}
}

// StartConsole connects to the server and runs the console until the user quits
func StartConsole(ctx context.Context, config client.Config) error {
	log := logger.GetLogger("console")

	config.Subscribe = true
	stub := client.New(config)
	defer stub.Close()

	events := make(chan *protocol.Message, 64)
	stub.Subscribe(client.ObserverFunc(func(msg *protocol.Message) {
		if msg.Type == string(protocol.EventSnapshot) || msg.Type == string(protocol.EventWelcome) {
			return
		}
		select {
		case events <- msg:
		default:
			log.Warn().Str("event", msg.Type).Msg("Console busy, event dropped")
		}
	}))

	if err := stub.Connect(ctx); err != nil {
		return err
	}

	p := tea.NewProgram(
		NewModel(stub, events),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	defer func() {
		if r := recover(); r != nil {
			p.Kill()
		}
	}()

	_, err := p.Run()
	return err
}
