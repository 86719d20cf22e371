package command

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/stefankamdem/minikv/internal/client"
	"github.com/stefankamdem/minikv/internal/resp"
)

// GetCommand returns the `get` command.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Fetch the value stored under a key",
		ArgsUsage: "KEY",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("usage: get KEY", 2)
			}
			return withClient(c, func(ctx context.Context, cl *client.Client) error {
				value, err := cl.Get(ctx, c.Args().Get(0))
				if err != nil {
					return err
				}
				fmt.Fprintln(c.App.Writer, FormatValue(value))
				return nil
			})
		},
	}
}

// SetCommand returns the `set` command.
func SetCommand() *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "Store a value under a key",
		ArgsUsage: "KEY VALUE",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return cli.Exit("usage: set KEY VALUE", 2)
			}
			return withClient(c, func(ctx context.Context, cl *client.Client) error {
				if err := cl.Set(ctx, c.Args().Get(0), c.Args().Get(1)); err != nil {
					return err
				}
				fmt.Fprintln(c.App.Writer, "OK")
				return nil
			})
		},
	}
}

// DeleteCommand returns the `delete` command.
func DeleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Aliases:   []string{"del"},
		Usage:     "Remove a key",
		ArgsUsage: "KEY",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("usage: delete KEY", 2)
			}
			return withClient(c, func(ctx context.Context, cl *client.Client) error {
				removed, err := cl.Delete(ctx, c.Args().Get(0))
				if err != nil {
					return err
				}
				if removed {
					fmt.Fprintln(c.App.Writer, "deleted")
				} else {
					fmt.Fprintln(c.App.Writer, "not found")
				}
				return nil
			})
		},
	}
}

// FlushCommand returns the `flush` command.
func FlushCommand() *cli.Command {
	return &cli.Command{
		Name:  "flush",
		Usage: "Remove every key from the store",
		Action: func(c *cli.Context) error {
			return withClient(c, func(ctx context.Context, cl *client.Client) error {
				n, err := cl.Flush(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "flushed %d keys\n", n)
				return nil
			})
		},
	}
}

// MGetCommand returns the `mget` command.
func MGetCommand() *cli.Command {
	return &cli.Command{
		Name:      "mget",
		Usage:     "Fetch several keys at once",
		ArgsUsage: "KEY [KEY...]",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return cli.Exit("usage: mget KEY [KEY...]", 2)
			}
			return withClient(c, func(ctx context.Context, cl *client.Client) error {
				values, err := cl.MGet(ctx, c.Args().Slice()...)
				if err != nil {
					return err
				}
				for i, v := range values {
					fmt.Fprintf(c.App.Writer, "%s: %s\n", c.Args().Get(i), FormatValue(v))
				}
				return nil
			})
		},
	}
}

// MSetCommand returns the `mset` command.
func MSetCommand() *cli.Command {
	return &cli.Command{
		Name:      "mset",
		Usage:     "Store several key-value pairs at once",
		ArgsUsage: "KEY VALUE [KEY VALUE...]",
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 || c.NArg()%2 != 0 {
				return cli.Exit("usage: mset KEY VALUE [KEY VALUE...]", 2)
			}
			return withClient(c, func(ctx context.Context, cl *client.Client) error {
				n, err := cl.MSet(ctx, c.Args().Slice()...)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "set %d pairs\n", n)
				return nil
			})
		},
	}
}

// FormatValue renders a protocol value for terminal output.
func FormatValue(v resp.Value) string {
	switch v.Kind {
	case resp.KindNull:
		return "(nil)"
	case resp.KindSimpleString:
		return v.Str
	case resp.KindError:
		return "(error) " + v.Str
	case resp.KindInteger:
		return strconv.FormatInt(v.Int, 10)
	case resp.KindBulkString:
		return string(v.Bulk)
	case resp.KindArray:
		parts := make([]string, 0, len(v.Array))
		for _, elem := range v.Array {
			parts = append(parts, FormatValue(elem))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case resp.KindMap:
		parts := make([]string, 0, len(v.Pairs))
		for _, pair := range v.Pairs {
			parts = append(parts, FormatValue(pair.Key)+": "+FormatValue(pair.Value))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return "(unknown)"
	}
}
