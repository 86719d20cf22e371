// Package client provides a small client library for the minikv wire
// protocol, used by minikv-cli and by integration tests.
package client

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/stefankamdem/minikv/internal/resp"
)

// CommandError is an in-band error response from the server.
type CommandError struct {
	Message string
}

func (e *CommandError) Error() string {
	return e.Message
}

// Options configures a Client.
type Options struct {
	// DialTimeout bounds the initial TCP connect (default: 5s).
	DialTimeout time.Duration
}

// Client is a connection to a minikv server. It is not safe for
// concurrent use; the protocol is strict request/response alternation.
type Client struct {
	conn   net.Conn
	reader *resp.Reader
}

// Dial connects to a minikv server at addr.
func Dial(addr string, opts *Options) (*Client, error) {
	if opts == nil {
		opts = &Options{}
	}
	dialTimeout := opts.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}

	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Client{
		conn:   conn,
		reader: resp.NewReader(conn),
	}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Do sends one command with its arguments and returns the decoded
// response. An error response from the server is returned as a
// *CommandError; the connection stays usable after it.
func (c *Client) Do(ctx context.Context, args ...string) (resp.Value, error) {
	elems := make([]resp.Value, 0, len(args))
	for _, a := range args {
		elems = append(elems, resp.BulkText(a))
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return resp.Value{}, err
	}

	if err := resp.WriteValue(c.conn, resp.ArrayOf(elems...)); err != nil {
		return resp.Value{}, fmt.Errorf("write request: %w", err)
	}

	reply, err := c.reader.ReadValue()
	if err != nil {
		return resp.Value{}, fmt.Errorf("read response: %w", err)
	}
	if reply.Kind == resp.KindError {
		return resp.Value{}, &CommandError{Message: reply.Str}
	}
	return reply, nil
}

// Get returns the value stored under key, or the null value if absent.
func (c *Client) Get(ctx context.Context, key string) (resp.Value, error) {
	return c.Do(ctx, "GET", key)
}

// Set stores value under key.
func (c *Client) Set(ctx context.Context, key, value string) error {
	_, err := c.Do(ctx, "SET", key, value)
	return err
}

// Delete removes key, reporting whether it was present.
func (c *Client) Delete(ctx context.Context, key string) (bool, error) {
	reply, err := c.Do(ctx, "DELETE", key)
	if err != nil {
		return false, err
	}
	return reply.Kind == resp.KindInteger && reply.Int == 1, nil
}

// Flush empties the store and returns the number of removed entries.
func (c *Client) Flush(ctx context.Context) (int64, error) {
	reply, err := c.Do(ctx, "FLUSH")
	if err != nil {
		return 0, err
	}
	return reply.Int, nil
}

// MGet returns one value per key, in order; absent keys yield null.
func (c *Client) MGet(ctx context.Context, keys ...string) ([]resp.Value, error) {
	args := append([]string{"MGET"}, keys...)
	reply, err := c.Do(ctx, args...)
	if err != nil {
		return nil, err
	}
	return reply.Array, nil
}

// MSet stores all key-value pairs and returns the number written.
// kv alternates key, value, key, value.
func (c *Client) MSet(ctx context.Context, kv ...string) (int64, error) {
	args := append([]string{"MSET"}, kv...)
	reply, err := c.Do(ctx, args...)
	if err != nil {
		return 0, err
	}
	return reply.Int, nil
}
