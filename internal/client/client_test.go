package client

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stefankamdem/minikv/internal/resp"
	"github.com/stefankamdem/minikv/internal/server/respserver"
	"github.com/stefankamdem/minikv/internal/store"
)

func startServer(t *testing.T) string {
	t.Helper()

	cfg := respserver.DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	srv := respserver.New(cfg, store.New(), slog.New(slog.DiscardHandler), nil)
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv.Addr().String()
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := Dial(startServer(t), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestClient_SetGetDelete(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	if err := c.Set(ctx, "greeting", "hello"); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := c.Get(ctx, "greeting")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Equal(resp.BulkText("hello")) {
		t.Errorf("get = %+v", got)
	}

	removed, err := c.Delete(ctx, "greeting")
	if err != nil || !removed {
		t.Errorf("delete = %v, %v; want true, nil", removed, err)
	}
	removed, err = c.Delete(ctx, "greeting")
	if err != nil || removed {
		t.Errorf("second delete = %v, %v; want false, nil", removed, err)
	}

	got, err = c.Get(ctx, "greeting")
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if !got.IsNull() {
		t.Errorf("get after delete = %+v, want null", got)
	}
}

func TestClient_MSetMGetFlush(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	n, err := c.MSet(ctx, "a", "1", "b", "2")
	if err != nil || n != 2 {
		t.Fatalf("mset = %d, %v; want 2, nil", n, err)
	}

	values, err := c.MGet(ctx, "a", "missing", "b")
	if err != nil {
		t.Fatalf("mget: %v", err)
	}
	if len(values) != 3 {
		t.Fatalf("mget returned %d values", len(values))
	}
	if !values[0].Equal(resp.BulkText("1")) || !values[1].IsNull() || !values[2].Equal(resp.BulkText("2")) {
		t.Errorf("mget = %+v", values)
	}

	flushed, err := c.Flush(ctx)
	if err != nil || flushed != 2 {
		t.Errorf("flush = %d, %v; want 2, nil", flushed, err)
	}
}

func TestClient_CommandErrorKeepsConnection(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, err := c.Do(ctx, "FOO")
	var ce *CommandError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want CommandError", err)
	}
	if ce.Message != "Unrecognized command: FOO" {
		t.Errorf("message = %q", ce.Message)
	}

	// Odd MSET arity is also in-band and recoverable.
	if _, err := c.MSet(ctx, "k1", "v1", "k2"); !errors.As(err, &ce) {
		t.Errorf("odd mset err = %v, want CommandError", err)
	}

	// The connection is still usable.
	if err := c.Set(ctx, "k", "v"); err != nil {
		t.Errorf("set after command errors: %v", err)
	}
}

func TestClient_ContextDeadline(t *testing.T) {
	c := newTestClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Set(ctx, "k", "v"); err != nil {
		t.Errorf("set with deadline: %v", err)
	}
}
