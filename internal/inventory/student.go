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
	"regexp"
	"strings"
	"time"
)

// StudentIDLength is the fixed number of digits in a student id
const StudentIDLength = 8

// DateLayout is the wire and storage format of program end dates
const DateLayout = "2006-01-02"

var (
	studentIDPattern = regexp.MustCompile(`^[0-9]{8}$`)
	emailPattern     = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)
	phonePattern     = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
	phoneSeparators  = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")
)

// Student is a requester that can be granted a laptop
type Student struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	Program       string           `json:"program"`
	ProgramEnd    string           `json:"program_end"`
	Email         string           `json:"email"`
	Phone         string           `json:"phone"`
	RequiredClass PerformanceClass `json:"required_class"`
	CreatedAt     time.Time        `json:"created_at"`
}

// Equal compares students by their natural key
func (s *Student) Equal(other *Student) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.ID == other.ID
}

// Normalize trims whitespace and strips phone separators
func (s *Student) Normalize() {
	s.ID = strings.TrimSpace(s.ID)
	s.Name = strings.TrimSpace(s.Name)
	s.Program = strings.TrimSpace(s.Program)
	s.ProgramEnd = strings.TrimSpace(s.ProgramEnd)
	s.Email = strings.ToLower(strings.TrimSpace(s.Email))
	s.Phone = phoneSeparators.Replace(strings.TrimSpace(s.Phone))
}

// Validate checks every profile field. The program must end after now.
func (s *Student) Validate(now time.Time) error {
	if err := ValidateStudentID(s.ID); err != nil {
		return err
	}
	if s.Name == "" {
		return invalid("name", "must not be empty")
	}
	if s.Program == "" {
		return invalid("program", "must not be empty")
	}
	end, err := time.Parse(DateLayout, s.ProgramEnd)
	if err != nil {
		return invalid("program_end", "must be a date in %s format", DateLayout)
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if !end.After(today) {
		return invalid("program_end", "must be in the future")
	}
	if !emailPattern.MatchString(s.Email) {
		return invalid("email", "%q is not a valid address", s.Email)
	}
	if !phonePattern.MatchString(s.Phone) {
		return invalid("phone", "%q is not a valid phone number", s.Phone)
	}
	if !s.RequiredClass.Valid() {
		return invalid("required_class", "unknown performance class %q", s.RequiredClass)
	}
	return nil
}

// ValidateStudentID checks the fixed digit-length id format
func ValidateStudentID(id string) error {
	if !studentIDPattern.MatchString(id) {
		return invalid("student_id", "must be exactly %d digits", StudentIDLength)
	}
	return nil
}
