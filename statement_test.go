// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package r2dbc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatement_NativeCarriesParams(t *testing.T) {
	stmt := Statement{SQL: "SELECT * FROM Books WHERE Id = @id", Params: map[string]any{"id": int64(1)}}
	native := stmt.native()
	assert.Equal(t, stmt.SQL, native.SQL)
	assert.Equal(t, int64(1), native.Params["id"])
}

func TestNewStatement_HasNoParams(t *testing.T) {
	stmt := NewStatement("SELECT 1")
	assert.Empty(t, stmt.Params)
	assert.Equal(t, "SELECT 1", stmt.native().SQL)
}
