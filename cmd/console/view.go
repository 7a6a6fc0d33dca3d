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

package console

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"loaner/internal/inventory"
)

func (m Model) View() string {
	if m.quitting {
		return successStyle.Render("Bye!") + "\n"
	}

	var b strings.Builder

	header := titleStyle.Render("Loaner Console")
	if id := m.stub.SessionID(); id != "" {
		header += "  " + helpStyle.Render("session "+truncate(id, 8))
	}
	b.WriteString(header + "\n\n")
	b.WriteString(m.renderTabs() + "\n\n")

	switch {
	case m.loading && m.data.fetched.IsZero():
		b.WriteString("Loading...\n")
	default:
		switch m.current {
		case tabLaptops:
			b.WriteString(m.renderLaptops())
		case tabStudents:
			b.WriteString(m.renderStudents())
		case tabReservations:
			b.WriteString(m.renderReservations())
		case tabQueues:
			b.WriteString(m.renderQueues())
		}
	}

	b.WriteString("\n")
	if m.lastError != nil {
		b.WriteString(errorStyle.Render("✗ "+m.lastError.Error()) + "\n")
	} else if m.status != "" {
		b.WriteString(successStyle.Render("✓ "+m.status) + "\n")
	}

	b.WriteString("\n" + m.renderEvents())
	b.WriteString("\n" + helpStyle.Render("tab/shift+tab: switch • r: refresh • p: process queues • q: quit"))
	return b.String()
}

func (m Model) renderTabs() string {
	tabs := make([]string, 0, tabCount)
	for t := tab(0); t < tabCount; t++ {
		label := fmt.Sprintf("%d %s", t+1, t)
		if t == m.current {
			tabs = append(tabs, tabActiveStyle.Render(label))
		} else {
			tabs = append(tabs, tabStyle.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) renderLaptops() string {
	if len(m.data.laptops) == 0 {
		return helpStyle.Render("No laptops registered") + "\n"
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-8s  %-12s %-16s %7s %5s  %-5s  %s", "ID", "Brand", "Model", "Disk", "RAM", "Class", "State")) + "\n")
	for _, l := range m.data.laptops {
		state := availableStyle.Render(string(l.State))
		if l.State == inventory.StateLoaned {
			state = loanedStyle.Render(string(l.State))
		}
		fmt.Fprintf(&b, "%-8s  %-12s %-16s %5dGB %3dGB  %-5s  %s\n",
			truncate(l.ID, 8), truncate(l.Brand, 12), truncate(l.Model, 16), l.CapacityGB, l.RAMGB, l.Class, state)
	}
	return b.String()
}

func (m Model) renderStudents() string {
	if len(m.data.students) == 0 {
		return helpStyle.Render("No students registered") + "\n"
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-8s  %-20s %-16s %-10s %s", "ID", "Name", "Program", "Ends", "Class")) + "\n")
	for _, s := range m.data.students {
		fmt.Fprintf(&b, "%-8s  %-20s %-16s %-10s %s\n",
			s.ID, truncate(s.Name, 20), truncate(s.Program, 16), s.ProgramEnd, s.RequiredClass)
	}
	return b.String()
}

func (m Model) renderReservations() string {
	if len(m.data.reservations) == 0 {
		return helpStyle.Render("No active reservations") + "\n"
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-8s  %-8s  %-8s  %s", "ID", "Student", "Laptop", "Since")) + "\n")
	for _, r := range m.data.reservations {
		fmt.Fprintf(&b, "%-8s  %-8s  %-8s  %s\n",
			truncate(r.ID, 8), r.StudentID, truncate(r.LaptopID, 8), r.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return b.String()
}

func (m Model) renderQueues() string {
	render := func(class inventory.PerformanceClass, entries []*inventory.QueueEntry) string {
		var b strings.Builder
		b.WriteString(subtitleStyle.Render(fmt.Sprintf("%s (%d waiting)", class, len(entries))) + "\n")
		if len(entries) == 0 {
			b.WriteString(helpStyle.Render("empty"))
		}
		for i, e := range entries {
			if i > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "%2d. %s  %s", i+1, e.StudentID, e.EnqueuedAt.Local().Format("01-02 15:04"))
		}
		return panelStyle.Render(b.String())
	}

	return lipgloss.JoinHorizontal(lipgloss.Top,
		render(inventory.ClassHigh, m.data.highQueue),
		"  ",
		render(inventory.ClassLow, m.data.lowQueue),
	) + "\n"
}

func (m Model) renderEvents() string {
	var b strings.Builder
	b.WriteString(subtitleStyle.Render("Recent changes") + "\n")
	if len(m.log) == 0 {
		b.WriteString(helpStyle.Render("none yet") + "\n")
		return b.String()
	}

	limit := maxEvents
	if m.height > 0 && m.height < 30 {
		limit = 3
	}
	shown := m.log[len(m.log)-min(len(m.log), limit):]
	for _, e := range shown {
		fmt.Fprintf(&b, "%s  %s\n", helpStyle.Render(e.Timestamp.Local().Format("15:04:05")), e.Type)
	}
	return b.String()
}
