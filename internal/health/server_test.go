package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
)

func serveHealthz(t *testing.T, checker Checker) (int, map[string]string) {
	t.Helper()
	srv := Serve("127.0.0.1:0", checker)
	t.Cleanup(func() { _ = Shutdown(context.Background(), srv) })

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return rec.Code, body
}

func TestHealthzAllChecksPass(t *testing.T) {
	ok := func(context.Context) error { return nil }
	code, body := serveHealthz(t, Checker{DBPing: ok, HostPing: ok, L1Ping: ok})

	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	for _, key := range []string{"db", "host_rpc", "l1_rpc"} {
		if body[key] != "ok" {
			t.Fatalf("%s = %q, want ok", key, body[key])
		}
	}
}

func TestHealthzReportsFailure(t *testing.T) {
	ok := func(context.Context) error { return nil }
	fail := func(context.Context) error { return errors.New("down") }
	code, body := serveHealthz(t, Checker{DBPing: ok, HostPing: fail, L1Ping: ok})

	if code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", code)
	}
	if body["host_rpc"] != "fail" {
		t.Fatalf("host_rpc = %q, want fail", body["host_rpc"])
	}
	if body["db"] != "ok" || body["l1_rpc"] != "ok" {
		t.Fatalf("healthy checks misreported: %v", body)
	}
}

// An unconfigured check is omitted, not failed. The L1 side may never be
// dialed when no qualifying events appear.
func TestHealthzSkipsAbsentChecks(t *testing.T) {
	ok := func(context.Context) error { return nil }
	code, body := serveHealthz(t, Checker{DBPing: ok})

	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if _, present := body["l1_rpc"]; present {
		t.Fatalf("l1_rpc should be absent: %v", body)
	}
	if _, present := body["host_rpc"]; present {
		t.Fatalf("host_rpc should be absent: %v", body)
	}
}

type headerClient struct {
	err error
}

func (c *headerClient) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &types.Header{Number: big.NewInt(1)}, nil
}

func (c *headerClient) BlockByNumber(context.Context, *big.Int) (*types.Block, error) {
	return nil, fmt.Errorf("not used")
}

func (c *headerClient) BlockReceipts(context.Context, rpc.BlockNumberOrHash) ([]*types.Receipt, error) {
	return nil, fmt.Errorf("not used")
}

func TestRPCCheckerPing(t *testing.T) {
	if err := NewRPCChecker(&headerClient{}).Ping(context.Background()); err != nil {
		t.Fatalf("ping healthy client: %v", err)
	}

	want := errors.New("connection refused")
	err := NewRPCChecker(&headerClient{err: want}).Ping(context.Background())
	if !errors.Is(err, want) {
		t.Fatalf("expected ping to surface client error, got %v", err)
	}
}
