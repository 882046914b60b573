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
	"context"
	"net"
	"testing"

	"cloud.google.com/go/longrunning/autogen/longrunningpb"
	adminapi "cloud.google.com/go/spanner/admin/database/apiv1"
	databasepb "cloud.google.com/go/spanner/admin/database/apiv1/databasepb"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/ttomsu/cloud-spanner-r2dbc/testutil"
)

// startAdminServer boots the teacher's in-memory database-admin fake on a
// random local port and returns client options to reach it.
func startAdminServer(t *testing.T) (testutil.InMemDatabaseAdminServer, []option.ClientOption, func()) {
	t.Helper()
	admin := testutil.NewInMemDatabaseAdminServer()
	server := grpc.NewServer()
	databasepb.RegisterDatabaseAdminServer(server, admin)

	lis, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	go server.Serve(lis)

	opts := []option.ClientOption{
		option.WithEndpoint(lis.Addr().String()),
		option.WithGRPCDialOption(grpc.WithInsecure()),
		option.WithoutAuthentication(),
	}
	return admin, opts, server.Stop
}

func TestConn_RunDdlStatementAppliesThroughAdminClient(t *testing.T) {
	admin, opts, stop := startAdminServer(t)
	defer stop()

	respAny, err := anypb.New(&emptypb.Empty{})
	require.NoError(t, err)
	admin.SetResps([]proto.Message{&longrunningpb.Operation{
		Name:   "projects/proj/instances/inst/databases/db/operations/1",
		Done:   true,
		Result: &longrunningpb.Operation_Response{Response: respAny},
	}})

	adminClient, err := adminapi.NewDatabaseAdminClient(context.Background(), opts...)
	require.NoError(t, err)
	defer adminClient.Close()

	cfg := Config{Project: "proj", Instance: "inst", Database: "db"}
	c := &Conn{config: cfg, adminClient: adminClient, executor: newExecutor(1), txManager: &transactionManager{}, logger: noopLogger}

	_, err = c.RunDdlStatement("ALTER TABLE Books ADD COLUMN Notes STRING(MAX)").Get(context.Background())
	require.NoError(t, err)

	require.Len(t, admin.Reqs(), 1)
	req := admin.Reqs()[0].(*databasepb.UpdateDatabaseDdlRequest)
	require.Equal(t, []string{"ALTER TABLE Books ADD COLUMN Notes STRING(MAX)"}, req.Statements)
}
