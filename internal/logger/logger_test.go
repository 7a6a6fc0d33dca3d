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

package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLoggerTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetSilentMode(true) })

	log := GetLogger("engine")
	log.Info().Str("laptop_id", "x").Msg("Laptop created")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "engine", line["component"])
	assert.Equal(t, "x", line["laptop_id"])
	assert.Equal(t, "Laptop created", line["message"])
}

func TestSetLevel(t *testing.T) {
	t.Cleanup(func() { SetLevel(LOG_INFO) })

	for level, want := range map[string]zerolog.Level{
		LOG_DEBUG: zerolog.DebugLevel,
		LOG_WARN:  zerolog.WarnLevel,
		LOG_ERROR: zerolog.ErrorLevel,
		"bogus":   zerolog.InfoLevel,
	} {
		SetLevel(level)
		assert.Equal(t, want, zerolog.GlobalLevel(), level)
	}
}
