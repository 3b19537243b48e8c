package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/BrandonDHaskell/rollcall/internal/config"
	"github.com/BrandonDHaskell/rollcall/internal/grpcapi"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/types"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "rollcall", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"serve", "scan", "reset", "dump"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			require.NotNil(t, sub)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)

	serverFlag := cmd.PersistentFlags().Lookup("server")
	require.NotNil(t, serverFlag)
	assert.Equal(t, "localhost:9090", serverFlag.DefValue)

	dump, _, err := cmd.Find([]string{"dump"})
	require.NoError(t, err)
	assert.NotNil(t, dump.Flags().Lookup("chronological"))
}

func TestInvalidFormat(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"dump", "--format", "xml"})
	cmd.SetOut(&bytes.Buffer{})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

// ── Client commands against an in-process server ─────────────────────────────

func newTestApp(t *testing.T, cfg config.Config) *App {
	t.Helper()
	app, err := NewApp(context.Background(), cfg, zerolog.Nop(), strings.NewReader(""))
	require.NoError(t, err)
	t.Cleanup(app.Close)
	return app
}

// runCLI executes args against app's gRPC service over bufconn.
func runCLI(t *testing.T, app *App, args ...string) string {
	t.Helper()

	svc := grpcapi.NewService(grpcapi.Dependencies{
		Logger:     zerolog.Nop(),
		Attendance: app.Dispatcher,
		Bus:        app.Bus,
	})
	srv := grpcapi.NewServer("bufnet", svc, zerolog.Nop())
	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(func() { srv.Stop(context.Background()) })

	opts := &RootOptions{dial: func(string) (*grpcapi.Client, error) {
		conn, err := grpc.NewClient("passthrough:///bufnet",
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
				return lis.DialContext(ctx)
			}),
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		)
		if err != nil {
			return nil, err
		}
		t.Cleanup(func() { _ = conn.Close() })
		return grpcapi.NewClient(conn), nil
	}}

	var out bytes.Buffer
	cmd := newRootCommand(opts)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String()
}

func memoryConfig() config.Config {
	cfg := config.Defaults()
	cfg.Store = "memory"
	cfg.GRPCAddr = ""
	return cfg
}

func TestScanResetDump(t *testing.T) {
	cfg := memoryConfig()
	// Both scans land in the same second.
	cfg.LedgerKeys = "sequenced"
	app := newTestApp(t, cfg)

	assert.Equal(t, "1234567890123 IN\n", runCLI(t, app, "scan", "1234567890123"))
	assert.Equal(t, "1234567890123 OUT\n", runCLI(t, app, "scan", "1234567890123"))

	out := runCLI(t, app, "dump", "--chronological", "--format", "json")
	var recs []types.Record
	require.NoError(t, json.Unmarshal([]byte(out), &recs))
	require.Len(t, recs, 2)
	assert.Equal(t, types.In, recs[0].Direction)
	assert.Equal(t, types.Out, recs[1].Direction)

	text := runCLI(t, app, "dump")
	assert.Equal(t, 2, strings.Count(text, "\n"))
	assert.Contains(t, text, "\t1234567890123\t")

	assert.Equal(t, "reset\n", runCLI(t, app, "reset"))
	assert.Empty(t, runCLI(t, app, "dump"))
}

func TestScanRejectsBadTagLocally(t *testing.T) {
	cmd := newRootCommand(&RootOptions{dial: func(string) (*grpcapi.Client, error) {
		t.Fatal("must not dial for an invalid tag")
		return nil, nil
	}})
	cmd.SetArgs([]string{"scan", "not-a-tag"})
	cmd.SetOut(&bytes.Buffer{})
	assert.Error(t, cmd.Execute())
}

// ── App wiring ───────────────────────────────────────────────────────────────

func TestApp_HTTPWithSQLite(t *testing.T) {
	cfg := config.Defaults()
	cfg.Store = "sqlite"
	cfg.DBPath = filepath.Join(t.TempDir(), "rollcall.db")
	cfg.GRPCAddr = ""
	cfg.LedgerKeys = "sequenced"
	app := newTestApp(t, cfg)

	ts := httptest.NewServer(app.HTTP.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/scan", "application/json", strings.NewReader(`{"card_tag":"42"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sr types.ScanResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sr))
	assert.Equal(t, types.In, sr.Direction)

	snap, err := app.Dispatcher.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snap, 1)
	assert.Equal(t, types.Tag(42), snap[0].Tag)
}

func TestApp_ScanInputFromStdin(t *testing.T) {
	cfg := memoryConfig()
	cfg.ScanInput = "-"
	app, err := NewApp(context.Background(), cfg, zerolog.Nop(), strings.NewReader("7\n8\n7\n"))
	require.NoError(t, err)
	defer app.Close()

	require.NotNil(t, app.lineSource)
	require.NoError(t, app.lineSource.Run(context.Background()))

	tags, err := app.Dispatcher.PresentTags(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []types.Tag{8}, tags)
}

func TestApp_RejectsUnknownKeyScheme(t *testing.T) {
	cfg := memoryConfig()
	cfg.LedgerKeys = "uuid"
	_, err := NewApp(context.Background(), cfg, zerolog.Nop(), nil)
	assert.Error(t, err)
}

func TestApp_SQLiteEnrollsKnownReaders(t *testing.T) {
	cfg := config.Defaults()
	cfg.Store = "sqlite"
	cfg.DBPath = filepath.Join(t.TempDir(), "rollcall.db")
	cfg.GRPCAddr = ""
	cfg.KnownReaders = []string{"lobby-01"}
	app := newTestApp(t, cfg)

	ts := httptest.NewServer(app.HTTP.Handler())
	defer ts.Close()

	post := func(body string) int {
		resp, err := http.Post(ts.URL+"/v1/scan", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		defer resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusForbidden, post(`{"reader_id":"attic-9","card_tag":"42"}`))
	assert.Equal(t, http.StatusOK, post(`{"reader_id":"lobby-01","card_tag":"42"}`))
}
