package transport

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestWebSocketRoundTrip(t *testing.T) {
	ln, err := ListenWebSocket("127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	url := "ws://" + ln.Addr().String() + "/"

	serverDone := make(chan struct{})
	var serverErr error
	go func() {
		defer close(serverDone)
		conn, err := ln.Accept()
		if err != nil {
			serverErr = err
			return
		}
		defer conn.Close()
		packet, err := conn.Receive()
		if err != nil {
			serverErr = err
			return
		}
		if err := conn.Send(packet); err != nil {
			serverErr = err
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := DialWebSocket(ctx, url)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	packet := []byte("encoded-bitchat-packet")
	if err := client.Send(packet); err != nil {
		t.Fatalf("send: %v", err)
	}
	echoed, err := client.Receive()
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if !bytes.Equal(echoed, packet) {
		t.Fatalf("echoed = %q, want %q", echoed, packet)
	}

	<-serverDone
	if serverErr != nil {
		t.Fatalf("server: %v", serverErr)
	}
}

func TestDialWebSocketRejectsUnreachableEndpoint(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := DialWebSocket(ctx, "ws://127.0.0.1:1/"); err == nil {
		t.Fatal("expected dial failure against an unreachable endpoint")
	}
}
