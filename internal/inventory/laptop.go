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

package inventory

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// PerformanceClass is the hardware tier a laptop provides and a student requires
type PerformanceClass string

const (
	ClassHigh PerformanceClass = "high"
	ClassLow  PerformanceClass = "low"
)

// Classes returns every performance class in queue drain order
func Classes() []PerformanceClass {
	return []PerformanceClass{ClassHigh, ClassLow}
}

// Valid reports whether c is one of the two known classes
func (c PerformanceClass) Valid() bool {
	return c == ClassHigh || c == ClassLow
}

// ParsePerformanceClass accepts "high", "low" and the long "high_performance" / "low_performance" forms
func ParsePerformanceClass(s string) (PerformanceClass, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high", "high_performance", "high-performance":
		return ClassHigh, nil
	case "low", "low_performance", "low-performance":
		return ClassLow, nil
	}
	return "", invalid("class", "unknown performance class %q", s)
}

// LaptopState is the availability of a laptop
type LaptopState string

const (
	StateAvailable LaptopState = "available"
	StateLoaned    LaptopState = "loaned"
)

// Valid reports whether s is a known state
func (s LaptopState) Valid() bool {
	return s == StateAvailable || s == StateLoaned
}

// Toggle is the single transition of the laptop state machine
func (s LaptopState) Toggle() LaptopState {
	if s == StateAvailable {
		return StateLoaned
	}
	return StateAvailable
}

// Capacity and memory bounds in gigabytes
const (
	MinCapacityGB = 64
	MaxCapacityGB = 8192
	MinRAMGB      = 2
	MaxRAMGB      = 256
)

// Laptop is a loanable device
type Laptop struct {
	ID         string           `json:"id"`
	Brand      string           `json:"brand"`
	Model      string           `json:"model"`
	CapacityGB int              `json:"capacity_gb"`
	RAMGB      int              `json:"ram_gb"`
	Class      PerformanceClass `json:"class"`
	State      LaptopState      `json:"state"`
	CreatedAt  time.Time        `json:"created_at"`
}

// LaptopSpec holds the caller supplied fields of a new laptop
type LaptopSpec struct {
	Brand      string           `json:"brand"`
	Model      string           `json:"model"`
	CapacityGB int              `json:"capacity_gb"`
	RAMGB      int              `json:"ram_gb"`
	Class      PerformanceClass `json:"class"`
}

// Validate checks required fields and hardware bounds
func (s LaptopSpec) Validate() error {
	if strings.TrimSpace(s.Brand) == "" {
		return invalid("brand", "must not be empty")
	}
	if strings.TrimSpace(s.Model) == "" {
		return invalid("model", "must not be empty")
	}
	if s.CapacityGB < MinCapacityGB || s.CapacityGB > MaxCapacityGB {
		return invalid("capacity_gb", "must be between %d and %d", MinCapacityGB, MaxCapacityGB)
	}
	if s.RAMGB < MinRAMGB || s.RAMGB > MaxRAMGB {
		return invalid("ram_gb", "must be between %d and %d", MinRAMGB, MaxRAMGB)
	}
	if !s.Class.Valid() {
		return invalid("class", "unknown performance class %q", s.Class)
	}
	return nil
}

// NewLaptop validates spec and returns an AVAILABLE laptop with a fresh id
func NewLaptop(spec LaptopSpec, now time.Time) (*Laptop, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &Laptop{
		ID:         uuid.New().String(),
		Brand:      strings.TrimSpace(spec.Brand),
		Model:      strings.TrimSpace(spec.Model),
		CapacityGB: spec.CapacityGB,
		RAMGB:      spec.RAMGB,
		Class:      spec.Class,
		State:      StateAvailable,
		CreatedAt:  now.UTC(),
	}, nil
}

// ApplyUpdate changes the mutable descriptive fields. Class is fixed at creation.
func (l *Laptop) ApplyUpdate(spec LaptopSpec) error {
	if spec.Class != "" && spec.Class != l.Class {
		return invalid("class", "performance class cannot change after creation")
	}
	spec.Class = l.Class
	if err := spec.Validate(); err != nil {
		return err
	}
	l.Brand = strings.TrimSpace(spec.Brand)
	l.Model = strings.TrimSpace(spec.Model)
	l.CapacityGB = spec.CapacityGB
	l.RAMGB = spec.RAMGB
	return nil
}

// Available reports whether the laptop can be claimed
func (l *Laptop) Available() bool {
	return l.State == StateAvailable
}

// ValidateLaptopID checks that id is a UUID
func ValidateLaptopID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return invalid("laptop_id", "must be a UUID")
	}
	return nil
}
