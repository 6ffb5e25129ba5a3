package solana

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestTransport(t *testing.T, handler http.HandlerFunc, opts ...TransportOption) *Transport {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	opts = append([]TransportOption{WithLogger(testLogger())}, opts...)
	return NewTransport(srv.URL, opts...)
}

func writeResult(t *testing.T, w http.ResponseWriter, id uint64, result any) {
	t.Helper()
	raw, err := json.Marshal(result)
	require.NoError(t, err)
	err = json.NewEncoder(w).Encode(rpcResponse{JSONRPC: "2.0", ID: id, Result: raw})
	require.NoError(t, err)
}

func TestTransport_Call_Success(t *testing.T) {
	transport := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "2.0", req.JSONRPC)
		assert.Equal(t, "getBalance", req.Method)
		require.Len(t, req.Params, 1)
		assert.Equal(t, "some-address", req.Params[0])

		writeResult(t, w, req.ID, map[string]any{"value": 1420000000})
	})

	var out struct {
		Value uint64 `json:"value"`
	}
	err := transport.Call(context.Background(), "getBalance", []any{"some-address"}, &out)
	require.NoError(t, err)
	assert.Equal(t, uint64(1420000000), out.Value)
}

func TestTransport_Call_RequestIDsIncrement(t *testing.T) {
	var mu sync.Mutex
	var ids []uint64
	transport := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		mu.Lock()
		ids = append(ids, req.ID)
		mu.Unlock()
		writeResult(t, w, req.ID, 1)
	})

	require.NoError(t, transport.Call(context.Background(), "getSlot", nil, nil))
	require.NoError(t, transport.Call(context.Background(), "getSlot", nil, nil))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []uint64{1, 2}, ids)
}

func TestTransport_Call_SingleExchangePerCall(t *testing.T) {
	var requests atomic.Int64
	transport := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	err := transport.Call(context.Background(), "getSlot", nil, nil)
	require.Error(t, err)
	assert.Equal(t, int64(1), requests.Load(), "transport must never retry on its own")
}

func TestTransport_Call_HTTPStatusFailure(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantRetryable bool
	}{
		{name: "server error", status: http.StatusInternalServerError, wantRetryable: true},
		{name: "bad gateway", status: http.StatusBadGateway, wantRetryable: true},
		{name: "rate limited", status: http.StatusTooManyRequests, wantRetryable: true},
		{name: "bad request", status: http.StatusBadRequest, wantRetryable: false},
		{name: "not found", status: http.StatusNotFound, wantRetryable: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})

			err := transport.Call(context.Background(), "getSlot", nil, nil)
			require.Error(t, err)

			var te *TransportError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, FailureHTTPStatus, te.Kind)
			assert.Equal(t, tt.status, te.HTTPStatus)
			assert.Equal(t, tt.wantRetryable, te.Retryable())
		})
	}
}

func TestTransport_Call_RPCErrorFailure(t *testing.T) {
	tests := []struct {
		name          string
		code          int
		wantRetryable bool
	}{
		{name: "invalid params", code: -32602, wantRetryable: false},
		{name: "method not found", code: -32601, wantRetryable: false},
		{name: "node unhealthy", code: -32005, wantRetryable: true},
		{name: "block cleaned up", code: -32001, wantRetryable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
				var req rpcRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				resp := rpcResponse{
					JSONRPC: "2.0",
					ID:      req.ID,
					Error:   &rpcError{Code: tt.code, Message: "upstream says no"},
				}
				require.NoError(t, json.NewEncoder(w).Encode(resp))
			})

			err := transport.Call(context.Background(), "getBalance", []any{"addr"}, nil)
			require.Error(t, err)

			var te *TransportError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, FailureRPCError, te.Kind)
			assert.Equal(t, tt.code, te.Code)
			assert.Equal(t, "upstream says no", te.Message)
			assert.Equal(t, tt.wantRetryable, te.Retryable())
		})
	}
}

func TestTransport_Call_MalformedEnvelope(t *testing.T) {
	transport := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "this is not json")
	})

	err := transport.Call(context.Background(), "getSlot", nil, nil)
	require.Error(t, err)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, FailureDecode, te.Kind)
	assert.False(t, te.Retryable())
}

func TestTransport_Call_MalformedResult(t *testing.T) {
	transport := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		writeResult(t, w, req.ID, "not-an-object")
	})

	var out struct {
		Value uint64 `json:"value"`
	}
	err := transport.Call(context.Background(), "getBalance", []any{"addr"}, &out)
	require.Error(t, err)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, FailureDecode, te.Kind)
}

func TestTransport_Call_NullResultLeavesPointerNil(t *testing.T) {
	transport := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		io.WriteString(w, `{"jsonrpc":"2.0","id":1,"result":null}`)
	})

	var out *transactionResult
	err := transport.Call(context.Background(), "getTransaction", []any{"sig"}, &out)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestTransport_Call_Timeout(t *testing.T) {
	transport := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}, WithTimeout(25*time.Millisecond))

	err := transport.Call(context.Background(), "getSlot", nil, nil)
	require.Error(t, err)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, FailureTimeout, te.Kind)
	assert.True(t, te.Retryable())
}

func TestTransport_Call_CallerDeadlineWins(t *testing.T) {
	transport := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}, WithTimeout(10*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()

	err := transport.Call(ctx, "getSlot", nil, nil)
	require.Error(t, err)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, FailureTimeout, te.Kind)
}

func TestTransport_Call_ConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := srv.URL
	srv.Close()

	transport := NewTransport(endpoint, WithLogger(testLogger()))
	err := transport.Call(context.Background(), "getSlot", nil, nil)
	require.Error(t, err)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, FailureConnection, te.Kind)
	assert.True(t, te.Retryable())
}
