// Command tcprest-example is a self-contained demonstration: it starts an
// in-process TCPREST server exposing one resource, dials it with the
// client package, and prints the round-tripped result. It exists to show
// the server and client APIs working together end to end, not as a demo
// application in its own right.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/tcprest/tcprest-go/client"
	"github.com/tcprest/tcprest-go/internal/convert"
	"github.com/tcprest/tcprest-go/internal/logging"
	"github.com/tcprest/tcprest-go/internal/mapper"
	"github.com/tcprest/tcprest-go/server"
)

// greeterResource is the one class exposed by this demo: two overload-free
// methods reachable through the dispatch core's reflection-based invoker.
type greeterResource struct{}

func (greeterResource) Greet(name string) string {
	return "hello, " + name
}

func (greeterResource) Add(a, b int) int {
	return a + b
}

func main() {
	logger := logging.NewStdLogger()

	srv := server.New("127.0.0.1:0", logger)
	if err := srv.AddSingletonResource("tcprest.example.Greeter", greeterResource{}); err != nil {
		log.Fatalf("registering resource: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listenerReady := make(chan struct{})
	go func() {
		// Start binds synchronously before entering the accept loop, but
		// the bound address is only visible once the listener exists;
		// poll briefly rather than reach into server internals.
		for srv.Addr() == "" {
			time.Sleep(time.Millisecond)
		}
		close(listenerReady)
	}()
	errCh := srv.StartBackground(ctx)

	select {
	case <-listenerReady:
	case err := <-errCh:
		log.Fatalf("server failed to start: %v", err)
	}

	addr := srv.Addr()
	fmt.Printf("tcprest-example server listening on %s\n", addr)

	c := client.New(addr, client.NetworkTCP)

	greeting, err := c.Call("tcprest.example.Greeter", "Greet",
		[]convert.Arg{{Value: "world", TypeFQN: mapper.TypeString}},
		mapper.TypeString)
	if err != nil {
		log.Fatalf("Greet call failed: %v", err)
	}
	fmt.Printf("Greet(\"world\") = %v\n", greeting)

	sum, err := c.Call("tcprest.example.Greeter", "Add",
		[]convert.Arg{
			{Value: 2, TypeFQN: mapper.TypeInt},
			{Value: 40, TypeFQN: mapper.TypeInt},
		},
		mapper.TypeInt)
	if err != nil {
		log.Fatalf("Add call failed: %v", err)
	}
	fmt.Printf("Add(2, 40) = %v\n", sum)

	srv.GracefulStop()
}
