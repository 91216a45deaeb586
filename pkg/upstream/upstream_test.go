package upstream

import (
	"bufio"
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/ogn-network/ogn-gateway/pkg/aprs"
)

func TestRunParsesPositionsAndSkipsComments(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listening: %v", err)
	}
	defer ln.Close()

	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		reader := bufio.NewReader(conn)
		if _, err := reader.ReadString('\n'); err != nil {
			return
		}

		conn.Write([]byte("# aprsc 2.1.4-g408ed49\r\n"))
		conn.Write([]byte("FLRDD9612>APRS,qAS,VillaBlau:/141956h4911.18N/00815.93E'126/059/A=003716 !W75! id06DD9612 -355fpm -1.2rot 3.0dB 2e -1.3kHz gps3x3\r\n"))
		conn.Write([]byte("garbage line that does not parse\r\n"))
		time.Sleep(50 * time.Millisecond)
	}()

	var mu sync.Mutex
	var received []aprs.Position

	r := New(ln.Addr().String(), "TESTCALL", func(pos aprs.Position) {
		mu.Lock()
		received = append(received, pos)
		mu.Unlock()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	<-serverDone
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("expected 1 parsed position, got %d: %+v", len(received), received)
	}
	if received[0].ID != "FLRDD9612" {
		t.Fatalf("unexpected id: %q", received[0].ID)
	}
}

func TestJitterStaysWithinBounds(t *testing.T) {
	d := 10 * time.Second
	for i := 0; i < 100; i++ {
		got := jitter(d)
		if got < d/2 || got > d {
			t.Fatalf("jitter(%v) = %v out of expected [%v, %v]", d, got, d/2, d)
		}
	}
}
