// Package testutil provides a fake JSON-RPC endpoint and fixtures shared by
// package tests. Nothing here reaches the network.
package testutil

import (
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

const (
	// Well known anvil/hardhat development key #0
	TestPrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	SepoliaChainID = int64(11155111)
)

var TestOwner = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

type RPCRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type Handler func(params []json.RawMessage) (interface{}, *RPCError)

// RPCServer is an httptest server answering JSON-RPC calls from per method
// handlers. Unknown methods get -32601. Every request is recorded.
type RPCServer struct {
	URL string

	mu       sync.Mutex
	handlers map[string]Handler
	requests []RPCRequest
}

func NewRPCServer(t testing.TB) *RPCServer {
	t.Helper()

	s := &RPCServer{handlers: map[string]Handler{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req RPCRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("invalid JSON-RPC request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		s.mu.Lock()
		s.requests = append(s.requests, req)
		h, ok := s.handlers[req.Method]
		s.mu.Unlock()

		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		if !ok {
			resp["error"] = &RPCError{Code: -32601, Message: "method not found: " + req.Method}
		} else if result, rpcErr := h(req.Params); rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)

	s.URL = srv.URL
	return s
}

func (s *RPCServer) Handle(method string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = h
}

// Result answers method with a fixed result. A nil v is sent as JSON null.
func (s *RPCServer) Result(method string, v interface{}) {
	s.Handle(method, func([]json.RawMessage) (interface{}, *RPCError) { return v, nil })
}

func (s *RPCServer) Fail(method string, code int, message string) {
	s.Handle(method, func([]json.RawMessage) (interface{}, *RPCError) {
		return nil, &RPCError{Code: code, Message: message}
	})
}

// Calls returns the recorded requests for method, all requests when method is empty.
func (s *RPCServer) Calls(method string) []RPCRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []RPCRequest
	for _, req := range s.requests {
		if method == "" || req.Method == method {
			out = append(out, req)
		}
	}
	return out
}

// CallInput extracts the calldata of an eth_call request. go-ethereum sends it
// as "input", older clients as "data".
func CallInput(params []json.RawMessage) []byte {
	if len(params) == 0 {
		return nil
	}
	var msg struct {
		Input hexutil.Bytes `json:"input"`
		Data  hexutil.Bytes `json:"data"`
	}
	if err := json.Unmarshal(params[0], &msg); err != nil {
		return nil
	}
	if len(msg.Input) > 0 {
		return msg.Input
	}
	return msg.Data
}

// Word left pads b to a 32 byte ABI word, hex encoded.
func Word(b []byte) string {
	return hexutil.Encode(common.LeftPadBytes(b, 32))
}

// Header is a latest block header with the given base fee.
func Header(baseFee *big.Int) *types.Header {
	return &types.Header{
		UncleHash:   types.EmptyUncleHash,
		Root:        types.EmptyRootHash,
		TxHash:      types.EmptyTxsHash,
		ReceiptHash: types.EmptyReceiptsHash,
		Difficulty:  big.NewInt(0),
		Number:      big.NewInt(100),
		GasLimit:    30_000_000,
		Time:        uint64(time.Now().Unix()),
		Extra:       []byte{},
		BaseFee:     baseFee,
	}
}

// Isolate moves the test into an empty directory so no stray .env is read.
func Isolate(t testing.TB) {
	t.Helper()

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
