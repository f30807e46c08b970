package rpc_test

import (
	"context"
	"fmt"
	"log"

	"github.com/jonwraymond/rpcmesh/resilience"
	"github.com/jonwraymond/rpcmesh/rpc"
)

func Example() {
	// A serving endpoint: supplying methods binds the HTTP/2 listener.
	endpoint, err := rpc.New(rpc.Config{
		Port: 4000,
		Methods: map[string]rpc.Handler{
			"add": func(ctx context.Context, params map[string]any) (any, error) {
				a, _ := params["a"].(float64)
				b, _ := params["b"].(float64)
				return map[string]any{"result": a + b}, nil
			},
		},
	})
	if err != nil {
		log.Fatal(err)
	}
	defer endpoint.Stop(context.Background())

	// The same endpoint acts as a client toward peers.
	data, err := endpoint.Call(context.Background(), "http://peer.internal:4000",
		"add", map[string]any{"a": 5, "b": 3}, nil)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(data)
}

func ExampleEndpoint_AddMethod() {
	endpoint, err := rpc.New(rpc.Config{})
	if err != nil {
		log.Fatal(err)
	}

	// A hot method gets its own, tighter bulkhead.
	err = endpoint.AddMethod("render",
		func(ctx context.Context, params map[string]any) (any, error) {
			return map[string]any{"ok": true}, nil
		},
		rpc.WithBulkhead(resilience.BulkheadConfig{
			MaxConcurrent: 2,
			MaxQueue:      4,
		}),
	)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(endpoint.Methods())
	// Output: [render]
}

func ExampleEndpoint_Call_retryOptions() {
	endpoint, err := rpc.New(rpc.Config{})
	if err != nil {
		log.Fatal(err)
	}

	noRetries := 0
	_, err = endpoint.Call(context.Background(), "http://peer.internal:4000",
		"status", nil, &rpc.CallOptions{
			Token:      "bearer-token",
			MaxRetries: &noRetries,
		})
	if err != nil {
		fmt.Println("call failed")
	}
}
