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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func validSpec() LaptopSpec {
	return LaptopSpec{Brand: "Lenovo", Model: "T14", CapacityGB: 512, RAMGB: 16, Class: ClassHigh}
}

func validStudent() *Student {
	return &Student{
		ID:            "12345678",
		Name:          "Ada Lovelace",
		Program:       "Computer Science",
		ProgramEnd:    "2027-06-30",
		Email:         "ada@example.com",
		Phone:         "+4712345678",
		RequiredClass: ClassHigh,
	}
}

func TestLaptopState(t *testing.T) {
	t.Run("toggle flips between the two states", func(t *testing.T) {
		assert.Equal(t, StateLoaned, StateAvailable.Toggle())
		assert.Equal(t, StateAvailable, StateLoaned.Toggle())
	})

	t.Run("valid only for known states", func(t *testing.T) {
		assert.True(t, StateAvailable.Valid())
		assert.True(t, StateLoaned.Valid())
		assert.False(t, LaptopState("broken").Valid())
	})
}

func TestParsePerformanceClass(t *testing.T) {
	for _, in := range []string{"high", "HIGH", " high_performance "} {
		c, err := ParsePerformanceClass(in)
		require.NoError(t, err, in)
		assert.Equal(t, ClassHigh, c)
	}
	c, err := ParsePerformanceClass("low-performance")
	require.NoError(t, err)
	assert.Equal(t, ClassLow, c)

	_, err = ParsePerformanceClass("medium")
	assert.True(t, IsValidation(err))
}

func TestNewLaptop(t *testing.T) {
	t.Run("creates available laptop with uuid", func(t *testing.T) {
		l, err := NewLaptop(validSpec(), testNow)
		require.NoError(t, err)
		assert.Equal(t, StateAvailable, l.State)
		assert.NoError(t, ValidateLaptopID(l.ID))
		assert.True(t, l.Available())
	})

	cases := map[string]func(*LaptopSpec){
		"empty brand":   func(s *LaptopSpec) { s.Brand = " " },
		"empty model":   func(s *LaptopSpec) { s.Model = "" },
		"capacity low":  func(s *LaptopSpec) { s.CapacityGB = MinCapacityGB - 1 },
		"capacity high": func(s *LaptopSpec) { s.CapacityGB = MaxCapacityGB + 1 },
		"ram low":       func(s *LaptopSpec) { s.RAMGB = 0 },
		"ram high":      func(s *LaptopSpec) { s.RAMGB = MaxRAMGB + 1 },
		"unknown class": func(s *LaptopSpec) { s.Class = "medium" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			spec := validSpec()
			mutate(&spec)
			_, err := NewLaptop(spec, testNow)
			require.Error(t, err)
			assert.True(t, IsValidation(err))
		})
	}
}

func TestLaptopApplyUpdate(t *testing.T) {
	l, err := NewLaptop(validSpec(), testNow)
	require.NoError(t, err)

	err = l.ApplyUpdate(LaptopSpec{Brand: "Dell", Model: "XPS", CapacityGB: 1024, RAMGB: 32})
	require.NoError(t, err)
	assert.Equal(t, "Dell", l.Brand)
	assert.Equal(t, ClassHigh, l.Class)

	err = l.ApplyUpdate(LaptopSpec{Brand: "Dell", Model: "XPS", CapacityGB: 1024, RAMGB: 32, Class: ClassLow})
	assert.True(t, IsValidation(err))
	assert.Equal(t, ClassHigh, l.Class)
}

func TestStudentValidate(t *testing.T) {
	t.Run("valid profile", func(t *testing.T) {
		s := validStudent()
		s.Normalize()
		assert.NoError(t, s.Validate(testNow))
	})

	t.Run("normalize strips phone separators", func(t *testing.T) {
		s := validStudent()
		s.Phone = "+47 123-45 678"
		s.Email = " ADA@Example.com "
		s.Normalize()
		assert.Equal(t, "+4712345678", s.Phone)
		assert.Equal(t, "ada@example.com", s.Email)
	})

	cases := map[string]func(*Student){
		"short id":       func(s *Student) { s.ID = "1234" },
		"non digit id":   func(s *Student) { s.ID = "1234567a" },
		"empty name":     func(s *Student) { s.Name = "" },
		"empty program":  func(s *Student) { s.Program = "" },
		"bad date":       func(s *Student) { s.ProgramEnd = "30/06/2027" },
		"past end date":  func(s *Student) { s.ProgramEnd = "2025-01-01" },
		"end date today": func(s *Student) { s.ProgramEnd = "2026-03-01" },
		"bad email":      func(s *Student) { s.Email = "ada.example.com" },
		"bad phone":      func(s *Student) { s.Phone = "12ab" },
		"unknown class":  func(s *Student) { s.RequiredClass = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			s := validStudent()
			mutate(s)
			err := s.Validate(testNow)
			require.Error(t, err)
			assert.True(t, IsValidation(err))
		})
	}
}

func TestStudentEqual(t *testing.T) {
	a := validStudent()
	b := validStudent()
	b.Name = "Someone Else"
	assert.True(t, a.Equal(b))

	b.ID = "87654321"
	assert.False(t, a.Equal(b))
	assert.False(t, a.Equal(nil))
}

func TestReservationTransitions(t *testing.T) {
	r := NewReservation("12345678", "laptop", testNow)
	assert.Equal(t, ReservationActive, r.Status)

	assert.NoError(t, ReservationActive.CanTransition(ReservationCompleted))
	assert.NoError(t, ReservationActive.CanTransition(ReservationCancelled))

	err := ReservationActive.CanTransition(ReservationActive)
	assert.True(t, IsValidation(err))

	err = ReservationCompleted.CanTransition(ReservationCancelled)
	assert.True(t, errors.Is(err, ErrReservationNotActive))
	assert.True(t, ReservationCancelled.Terminal())
	assert.False(t, ReservationActive.Terminal())
}
