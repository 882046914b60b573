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

package testutil

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/longrunning/autogen/longrunningpb"
	databasepb "cloud.google.com/go/spanner/admin/database/apiv1/databasepb"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/proto"
)

// InMemDatabaseAdminServer is a fake databasepb.DatabaseAdminServer,
// narrowed to the UpdateDatabaseDdl surface ddl_test.go drives: every
// RPC gets the first scripted long-running-operation response set by
// SetResps, and the requests it received are recorded. Every other admin RPC is left to the embedded nil
// databasepb.DatabaseAdminServer and will panic if ever called -- this
// fake only stands in for DDL round-trip testing.
type InMemDatabaseAdminServer interface {
	databasepb.DatabaseAdminServer
	Reqs() []proto.Message
	SetResps([]proto.Message)
}

type inMemDatabaseAdminServer struct {
	databasepb.DatabaseAdminServer
	reqs  []proto.Message
	resps []proto.Message
}

// NewInMemDatabaseAdminServer creates a fake admin server with no scripted
// responses; call SetResps before routing any UpdateDatabaseDdl RPC to it.
func NewInMemDatabaseAdminServer() InMemDatabaseAdminServer {
	return &inMemDatabaseAdminServer{}
}

func (s *inMemDatabaseAdminServer) UpdateDatabaseDdl(ctx context.Context, req *databasepb.UpdateDatabaseDdlRequest) (*longrunningpb.Operation, error) {
	if err := requireGoClientHeader(ctx); err != nil {
		return nil, err
	}
	s.reqs = append(s.reqs, req)
	return s.resps[0].(*longrunningpb.Operation), nil
}

// requireGoClientHeader asserts the request carries the gax-go user-agent
// header, the way a real Spanner admin endpoint would reject anything
// that didn't come through the Go client library.
func requireGoClientHeader(ctx context.Context) error {
	md, _ := metadata.FromIncomingContext(ctx)
	xg := md["x-goog-api-client"]
	if len(xg) == 0 || !strings.Contains(xg[0], "gl-go/") {
		return fmt.Errorf("x-goog-api-client = %v, expected gl-go key", xg)
	}
	return nil
}

func (s *inMemDatabaseAdminServer) Reqs() []proto.Message {
	return s.reqs
}

func (s *inMemDatabaseAdminServer) SetResps(resps []proto.Message) {
	s.resps = resps
}
