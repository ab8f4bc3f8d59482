package net

import (
	"context"
	"net"
	"reflect"
	"sync"
	"testing"
	"time"

	cm "github.com/mosaicnetworks/skipgraph/src/common"
)

func TestNetworkTransport_StartStop(t *testing.T) {
	trans := NewTCPTransport("127.0.0.1", 2, time.Second, cm.NewTestEntry(t, "tcp"))
	if _, err := trans.Bind(0); err != nil {
		t.Fatalf("err: %v", err)
	}
	trans.Close()
}

func TestNetworkTransport_BindTwice(t *testing.T) {
	trans := NewTCPTransport("127.0.0.1", 2, time.Second, cm.NewTestEntry(t, "tcp"))
	defer trans.Close()

	if _, err := trans.Bind(0); err != nil {
		t.Fatalf("err: %v", err)
	}
	if _, err := trans.Bind(0); !cm.Is(err, cm.InitializationFailed) {
		t.Fatalf("expected InitializationFailed, got %v", err)
	}
}

func TestNetworkTransport_PortInUse(t *testing.T) {
	list, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer list.Close()
	port := list.Addr().(*net.TCPAddr).Port

	trans := NewTCPTransport("127.0.0.1", 2, time.Second, cm.NewTestEntry(t, "tcp"))
	defer trans.Close()

	if _, err := trans.Bind(port); !cm.Is(err, cm.InitializationFailed) {
		t.Fatalf("expected InitializationFailed, got %v", err)
	}
	if trans.LocalAddr() != "" {
		t.Fatalf("failed Bind should leave no local address, got %s", trans.LocalAddr())
	}
}

func TestNetworkTransport_ClosedPort(t *testing.T) {
	list, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	target := list.Addr().String()
	list.Close()

	trans := NewTCPTransport("127.0.0.1", 2, time.Second, cm.NewTestEntry(t, "tcp"))
	defer trans.Close()
	if _, err := trans.Bind(0); err != nil {
		t.Fatal(err)
	}

	_, err = trans.Send(context.Background(), target, &Request{Op: OpPing})
	if !cm.Is(err, cm.Unreachable) {
		t.Fatalf("expected Unreachable, got %v", err)
	}
}

func TestNetworkTransport_TransportTimeout(t *testing.T) {
	trans1 := NewTCPTransport("127.0.0.1", 2, time.Second, cm.NewTestEntry(t, "tcp1"))
	if _, err := trans1.Bind(0); err != nil {
		t.Fatalf("err: %v", err)
	}
	defer trans1.Close()
	go trans1.Listen()

	// Answer every request, but too late
	go func() {
		for rpc := range trans1.Consumer() {
			go func(rpc RPC) {
				time.Sleep(time.Second)
				resp, err := NewResponse(PingResult{})
				rpc.Respond(resp, err)
			}(rpc)
		}
	}()

	// The transport timeout is the only bound on the call
	trans2 := NewTCPTransport("127.0.0.1", 2, 150*time.Millisecond, cm.NewTestEntry(t, "tcp2"))
	if _, err := trans2.Bind(0); err != nil {
		t.Fatalf("err: %v", err)
	}
	defer trans2.Close()

	for i := 0; i < 3; i++ {
		start := time.Now()
		_, err := trans2.Send(context.Background(), trans1.LocalAddr(), &Request{Op: OpPing})
		if !cm.Is(err, cm.Timeout) {
			t.Fatalf("attempt %d: expected Timeout, got %v", i, err)
		}
		if elapsed := time.Since(start); elapsed > 900*time.Millisecond {
			t.Fatalf("attempt %d: call should end at the transport timeout, took %v", i, elapsed)
		}
	}
}

func TestNetworkTransport_PooledConn(t *testing.T) {
	// Transport 1 is consumer
	trans1 := NewTCPTransport("127.0.0.1", 2, time.Second, cm.NewTestEntry(t, "tcp1"))
	if _, err := trans1.Bind(0); err != nil {
		t.Fatalf("err: %v", err)
	}
	defer trans1.Close()
	go trans1.Listen()
	rpcCh := trans1.Consumer()

	result := PingResult{Size: 9}

	// Listen for a request
	go func() {
		for {
			select {
			case rpc := <-rpcCh:
				if rpc.Command.Op != OpPing {
					t.Errorf("command mismatch: %v", rpc.Command.Op)
				}
				resp, err := NewResponse(result)
				rpc.Respond(resp, err)

			case <-time.After(500 * time.Millisecond):
				return
			}
		}
	}()

	// Transport 2 makes outbound request, 3 conn pool
	trans2 := NewTCPTransport("127.0.0.1", 3, time.Second, cm.NewTestEntry(t, "tcp2"))
	if _, err := trans2.Bind(0); err != nil {
		t.Fatalf("err: %v", err)
	}
	defer trans2.Close()

	// Create wait group
	wg := &sync.WaitGroup{}
	wg.Add(5)

	pingFunc := func() {
		defer wg.Done()
		out, err := trans2.Send(context.Background(), trans1.LocalAddr(), &Request{Op: OpPing})
		if err != nil {
			t.Errorf("err: %v", err)
			return
		}

		var got PingResult
		if err := out.Decode(&got); err != nil {
			t.Errorf("err: %v", err)
			return
		}
		if !reflect.DeepEqual(got, result) {
			t.Errorf("response mismatch: %#v %#v", got, result)
		}
	}

	// Try to do parallel pings, should stress the conn pool
	for i := 0; i < 5; i++ {
		go pingFunc()
	}

	// Wait for the routines to finish
	wg.Wait()

	// Check the conn pool size
	addr := trans1.LocalAddr()
	trans2.connPoolLock.Lock()
	defer trans2.connPoolLock.Unlock()
	if len(trans2.connPool[addr]) != 3 {
		t.Fatalf("Expected 3 pooled conns, got %d", len(trans2.connPool[addr]))
	}
}
