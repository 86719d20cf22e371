package respserver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stefankamdem/minikv/internal/resp"
	"github.com/stefankamdem/minikv/internal/store"
)

func startTestServer(t *testing.T, cfg *Config) (*Server, *store.Store) {
	t.Helper()

	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.Addr = "127.0.0.1:0"

	st := store.New()
	srv := New(cfg, st, slog.New(slog.DiscardHandler), nil)
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv, st
}

func dialTestServer(t *testing.T, srv *Server) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
	return conn
}

// roundTrip writes one raw request frame and decodes one response.
func roundTrip(t *testing.T, conn net.Conn, r *resp.Reader, raw string) resp.Value {
	t.Helper()
	if _, err := conn.Write([]byte(raw)); err != nil {
		t.Fatalf("write request: %v", err)
	}
	reply, err := r.ReadValue()
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return reply
}

func TestServer_SetGetRoundTrip(t *testing.T) {
	srv, _ := startTestServer(t, nil)
	conn := dialTestServer(t, srv)
	r := resp.NewReader(conn)

	reply := roundTrip(t, conn, r, "*3\r\n$3\r\nSET\r\n$1\r\na\r\n$5\r\nhello\r\n")
	if !reply.Equal(resp.Integer(1)) {
		t.Fatalf("SET reply = %+v", reply)
	}

	reply = roundTrip(t, conn, r, "*2\r\n$3\r\nGET\r\n$1\r\na\r\n")
	if !reply.Equal(resp.BulkText("hello")) {
		t.Errorf("GET reply = %+v, want \"hello\"", reply)
	}

	reply = roundTrip(t, conn, r, "*2\r\n$3\r\nGET\r\n$1\r\nz\r\n")
	if !reply.IsNull() {
		t.Errorf("GET absent reply = %+v, want null", reply)
	}
}

func TestServer_InlineCommand(t *testing.T) {
	srv, st := startTestServer(t, nil)
	st.Set("a", resp.Integer(7))
	conn := dialTestServer(t, srv)
	r := resp.NewReader(conn)

	// A request may also arrive as a single bulk string, split on
	// whitespace by the dispatcher.
	reply := roundTrip(t, conn, r, "$5\r\nGET a\r\n")
	if !reply.Equal(resp.Integer(7)) {
		t.Errorf("inline GET reply = %+v, want 7", reply)
	}
}

func TestServer_UnknownCommandKeepsSession(t *testing.T) {
	srv, _ := startTestServer(t, nil)
	conn := dialTestServer(t, srv)
	r := resp.NewReader(conn)

	reply := roundTrip(t, conn, r, "*1\r\n$3\r\nFOO\r\n")
	if reply.Kind != resp.KindError || reply.Str != "Unrecognized command: FOO" {
		t.Fatalf("FOO reply = %+v", reply)
	}

	// The session must accept further requests after a command error.
	reply = roundTrip(t, conn, r, "*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$1\r\nv\r\n")
	if !reply.Equal(resp.Integer(1)) {
		t.Errorf("SET after error = %+v", reply)
	}
}

func TestServer_ProtocolErrorClosesWithoutResponse(t *testing.T) {
	srv, _ := startTestServer(t, nil)
	conn := dialTestServer(t, srv)

	// Bulk string declared with length 5 but carrying only 3 payload
	// bytes plus the terminator: framing violation, fatal.
	if _, err := conn.Write([]byte("*1\r\n$5\r\nabc\r\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	// Half-close so the server observes EOF mid-frame instead of waiting
	// out its read deadline for the missing payload bytes.
	if err := conn.(*net.TCPConn).CloseWrite(); err != nil {
		t.Fatalf("close write: %v", err)
	}

	buf := make([]byte, 1)
	_, err := conn.Read(buf)
	if !errors.Is(err, io.EOF) {
		t.Errorf("read after protocol error = %v, want EOF with no response bytes", err)
	}
}

func TestServer_UnknownMarkerClosesConnection(t *testing.T) {
	srv, _ := startTestServer(t, nil)
	conn := dialTestServer(t, srv)

	if _, err := conn.Write([]byte("@bogus\r\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	buf := make([]byte, 1)
	if _, err := conn.Read(buf); !errors.Is(err, io.EOF) {
		t.Errorf("read = %v, want EOF", err)
	}
}

func TestServer_CleanDisconnect(t *testing.T) {
	srv, _ := startTestServer(t, nil)
	conn := dialTestServer(t, srv)
	r := resp.NewReader(conn)

	roundTrip(t, conn, r, "*3\r\n$3\r\nSET\r\n$1\r\na\r\n$1\r\n1\r\n")
	_ = conn.Close()

	// The session ends silently; the server keeps running.
	deadline := time.Now().Add(2 * time.Second)
	for srv.ActiveConns() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("session did not end after disconnect, active=%d", srv.ActiveConns())
		}
		time.Sleep(10 * time.Millisecond)
	}

	conn2 := dialTestServer(t, srv)
	r2 := resp.NewReader(conn2)
	if reply := roundTrip(t, conn2, r2, "*2\r\n$3\r\nGET\r\n$1\r\na\r\n"); !reply.Equal(resp.BulkText("1")) {
		t.Errorf("GET on new connection = %+v", reply)
	}
}

func TestServer_BackpressureDefersAcceptance(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxClients = 1
	srv, _ := startTestServer(t, cfg)

	first := dialTestServer(t, srv)
	r1 := resp.NewReader(first)
	roundTrip(t, first, r1, "*3\r\n$3\r\nSET\r\n$1\r\na\r\n$1\r\n1\r\n")

	// The second connection is not refused; it waits in the listen queue
	// until the first session releases the slot.
	second := dialTestServer(t, srv)
	if _, err := second.Write([]byte("*2\r\n$3\r\nGET\r\n$1\r\na\r\n")); err != nil {
		t.Fatalf("write on second conn: %v", err)
	}

	_ = first.Close()

	_ = second.SetReadDeadline(time.Now().Add(5 * time.Second))
	reply, err := resp.NewReader(second).ReadValue()
	if err != nil {
		t.Fatalf("second conn not served after slot freed: %v", err)
	}
	if !reply.Equal(resp.BulkText("1")) {
		t.Errorf("reply = %+v, want \"1\"", reply)
	}
}

func TestServer_ConcurrentSessions(t *testing.T) {
	srv, st := startTestServer(t, nil)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()

			conn, err := net.Dial("tcp", srv.Addr().String())
			if err != nil {
				t.Errorf("dial: %v", err)
				return
			}
			defer conn.Close()
			_ = conn.SetDeadline(time.Now().Add(10 * time.Second))
			r := resp.NewReader(conn)

			for i := 0; i < 50; i++ {
				key := "k" + strconv.Itoa(i%8)
				val := strconv.Itoa(g)
				frame := "*3\r\n$3\r\nSET\r\n$" + strconv.Itoa(len(key)) + "\r\n" + key +
					"\r\n$" + strconv.Itoa(len(val)) + "\r\n" + val + "\r\n"
				if _, err := conn.Write([]byte(frame)); err != nil {
					t.Errorf("write: %v", err)
					return
				}
				reply, err := r.ReadValue()
				if err != nil || !reply.Equal(resp.Integer(1)) {
					t.Errorf("SET reply = %+v, err %v", reply, err)
					return
				}
			}
		}(g)
	}
	wg.Wait()

	// Every surviving value must be exactly what one of the writers
	// wrote, never interleaved bytes.
	for i := 0; i < 8; i++ {
		v := st.Get("k" + strconv.Itoa(i))
		text, ok := v.Text()
		if !ok {
			t.Fatalf("k%d holds %+v", i, v)
		}
		n, err := strconv.Atoi(text)
		if err != nil || n < 0 || n > 7 {
			t.Errorf("k%d holds torn value %q", i, text)
		}
	}
}

func TestServer_ShutdownClosesJustAcceptedConns(t *testing.T) {
	// A connection accepted moments before Shutdown must still be swept
	// by the close-all pass even if its session goroutine has not run
	// yet; otherwise a silent client pins Shutdown until ctx expires.
	for i := 0; i < 20; i++ {
		cfg := DefaultConfig()
		cfg.Addr = "127.0.0.1:0"
		srv := New(cfg, store.New(), slog.New(slog.DiscardHandler), nil)
		if err := srv.Start(context.Background()); err != nil {
			t.Fatalf("start: %v", err)
		}

		conn, err := net.Dial("tcp", srv.Addr().String())
		if err != nil {
			t.Fatalf("dial: %v", err)
		}

		// No bytes sent: the session, once running, blocks waiting for a
		// request under the idle deadline.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := srv.Shutdown(ctx); err != nil {
			t.Fatalf("shutdown with silent client: %v", err)
		}
		cancel()
		_ = conn.Close()
	}
}

func TestServer_Shutdown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	st := store.New()
	srv := New(cfg, st, slog.New(slog.DiscardHandler), nil)
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	// The listener is gone and the active connection has been closed.
	if _, err := net.Dial("tcp", srv.Addr().String()); err == nil {
		t.Error("dial succeeded after shutdown")
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	if _, err := conn.Read(buf); err == nil {
		t.Error("connection still open after shutdown")
	}
}
