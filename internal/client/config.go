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

package client

import (
	"fmt"
	"time"

	"loaner/internal/protocol"
)

// DefaultTimeout bounds the wait for a response
const DefaultTimeout = 5 * time.Second

// Config contains client connection settings
type Config struct {
	Address       string        `yaml:"address"`
	Timeout       time.Duration `yaml:"timeout"`
	DialTimeout   time.Duration `yaml:"dial_timeout"`
	MaxFrameBytes int           `yaml:"max_frame_bytes"`
	// Subscribe sends new_client after every (re)connect so that the stub
	// receives the snapshot and all later broadcasts
	Subscribe bool `yaml:"subscribe"`
}

// NewDefaultConfig returns the settings used when none are given
func NewDefaultConfig() Config {
	return Config{
		Address:       fmt.Sprintf("localhost:%d", protocol.DEFAULT_PORT),
		Timeout:       DefaultTimeout,
		DialTimeout:   DefaultTimeout,
		MaxFrameBytes: protocol.DefaultMaxFrameBytes,
	}
}

func (c *Config) setDefaults() {
	defaults := NewDefaultConfig()
	if c.Address == "" {
		c.Address = defaults.Address
	}
	if c.Timeout <= 0 {
		c.Timeout = defaults.Timeout
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = defaults.DialTimeout
	}
	if c.MaxFrameBytes <= 0 {
		c.MaxFrameBytes = defaults.MaxFrameBytes
	}
}
