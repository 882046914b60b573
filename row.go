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

// Row is an opaque, copied-out wrapper over a native *spanner.Row. It is
// safe to retain after the result sequence that produced it has moved on,
// unlike the native row the client library hands to a result-set callback.
type Row struct {
	native *spanner.Row
}

// ColumnCount returns the number of columns in the row.
func (r Row) ColumnCount() int {
	return r.native.Size()
}

// ColumnName returns the name of the column at the given 0-based index.
func (r Row) ColumnName(i int) string {
	return r.native.ColumnName(i)
}

// Get decodes the column at the given 1-based ordinal into ptr.
func (r Row) Get(ordinal int, ptr any) error {
	return r.native.Column(ordinal-1, ptr)
}

// GetByName decodes the named column into ptr.
func (r Row) GetByName(name string, ptr any) error {
	return r.native.ColumnByName(name, ptr)
}

// RowMetadata describes the shape of a Row: its column names, in order.
// It is handed alongside each Row to Result.Map, mirroring the
// BiFunction<Row, RowMetadata, T> signature of the Java adapter's
// SpannerResult.map.
type RowMetadata struct {
	columnNames []string
}

// ColumnNames returns the names of the columns, in ordinal order.
func (m RowMetadata) ColumnNames() []string {
	return m.columnNames
}

func newRow(native *spanner.Row) Row {
	return Row{native: native}
}

func newRowMetadata(native *spanner.Row) RowMetadata {
	names := make([]string, native.Size())
	for i := range names {
		names[i] = native.ColumnName(i)
	}
	return RowMetadata{columnNames: names}
}
