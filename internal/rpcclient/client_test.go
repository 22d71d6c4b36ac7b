package rpcclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	chainsync "github.com/cellchain/cellwallet/internal/sync"
	"github.com/cellchain/cellwallet/pkg/block"
	"github.com/cellchain/cellwallet/pkg/types"
)

// rpcHandler serves scripted JSON-RPC responses keyed by method name.
func rpcHandler(t *testing.T, results map[string]interface{}) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
			ID     int             `json:"id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}

		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		if result, ok := results[req.Method]; ok {
			resp["result"] = result
		} else {
			resp["error"] = map[string]interface{}{
				"code":    CodeNotFound,
				"message": "not found: " + req.Method,
			}
		}
		json.NewEncoder(w).Encode(resp)
	}
}

func TestCall_Result(t *testing.T) {
	srv := httptest.NewServer(rpcHandler(t, map[string]interface{}{
		"chain_getInfo": ChainInfo{Network: "testnet", TipHeight: 42},
	}))
	defer srv.Close()

	client := New(srv.URL)
	info, err := client.GetChainInfo(context.Background())
	if err != nil {
		t.Fatalf("GetChainInfo: %v", err)
	}
	if info.Network != "testnet" || info.TipHeight != 42 {
		t.Errorf("info = %+v, want testnet/42", info)
	}
}

func TestCall_ServerDown(t *testing.T) {
	srv := httptest.NewServer(rpcHandler(t, nil))
	srv.Close()

	client := New(srv.URL)
	_, err := client.GetTipHeader(context.Background())
	if !errors.Is(err, chainsync.ErrNodeUnavailable) {
		t.Errorf("err = %v, want ErrNodeUnavailable", err)
	}
}

func TestCall_NotFoundMapsToSentinel(t *testing.T) {
	srv := httptest.NewServer(rpcHandler(t, nil))
	defer srv.Close()

	client := New(srv.URL)
	_, err := client.GetBlock(context.Background(), 999)
	if !errors.Is(err, chainsync.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}

	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("err = %v, want *RPCError", err)
	}
	if rpcErr.Code != CodeNotFound {
		t.Errorf("code = %d, want %d", rpcErr.Code, CodeNotFound)
	}
}

func TestCall_OtherErrorNotSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0", "id": 1,
			"error": map[string]interface{}{"code": -32602, "message": "bad params"},
		})
	}))
	defer srv.Close()

	client := New(srv.URL)
	_, err := client.GetHeader(context.Background(), 1)
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, chainsync.ErrNotFound) {
		t.Error("non-CodeNotFound error should not match ErrNotFound")
	}
	if errors.Is(err, chainsync.ErrNodeUnavailable) {
		t.Error("rpc-level error should not match ErrNodeUnavailable")
	}
}

func TestCall_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(rpcHandler(t, nil))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := New(srv.URL)
	_, err := client.GetTipHeader(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestGetHeader_RoundTrip(t *testing.T) {
	want := block.Header{
		Version:    1,
		Height:     7,
		ParentHash: types.Hash{1, 2, 3},
		Timestamp:  1234,
	}
	srv := httptest.NewServer(rpcHandler(t, map[string]interface{}{
		"chain_getHeaderByHeight": want,
	}))
	defer srv.Close()

	client := New(srv.URL)
	got, err := client.GetHeader(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetHeader: %v", err)
	}
	if got.Height != want.Height || got.ParentHash != want.ParentHash {
		t.Errorf("header = %+v, want %+v", got, want)
	}
}
