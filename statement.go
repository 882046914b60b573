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

import "cloud.google.com/go/spanner"

// Statement is an already-built SQL statement with named-parameter
// bindings. Building one from a higher-level statement object (parsing
// positional placeholders, type coercion, etc.) is a concern of a layer
// above this package; Conn only ever consumes finished Statement values.
type Statement struct {
	SQL    string
	Params map[string]any
}

// NewStatement builds a Statement with no parameters.
func NewStatement(sql string) Statement {
	return Statement{SQL: sql}
}

func (s Statement) native() spanner.Statement {
	stmt := spanner.NewStatement(s.SQL)
	for name, value := range s.Params {
		stmt.Params[name] = value
	}
	return stmt
}
