package respserver

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/stefankamdem/minikv/internal/resp"
	"github.com/stefankamdem/minikv/internal/store"
	"github.com/stefankamdem/minikv/internal/telemetry/metric"
)

// CommandError marks a well-formed but semantically invalid request:
// unknown command, wrong arity, bad request shape. It is recoverable and
// reported in-band as an error value; the session continues.
type CommandError struct {
	Message string
}

func (e *CommandError) Error() string {
	return e.Message
}

func commandErrorf(format string, args ...any) error {
	return &CommandError{Message: fmt.Sprintf(format, args...)}
}

// HandlerFunc executes one command against the store.
type HandlerFunc func(args []resp.Value) (resp.Value, error)

// Dispatcher normalizes decoded requests and routes them to command
// handlers. The command table is built once and never mutated.
type Dispatcher struct {
	store    *store.Store
	logger   *slog.Logger
	metrics  *metric.Metrics
	commands map[string]HandlerFunc
}

// NewDispatcher creates a dispatcher bound to st.
func NewDispatcher(st *store.Store, logger *slog.Logger, m *metric.Metrics) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metric.New(nil, nil)
	}

	d := &Dispatcher{
		store:   st,
		logger:  logger,
		metrics: m,
	}
	d.commands = map[string]HandlerFunc{
		"GET":    d.handleGet,
		"SET":    d.handleSet,
		"DELETE": d.handleDelete,
		"FLUSH":  d.handleFlush,
		"MGET":   d.handleMGet,
		"MSET":   d.handleMSet,
	}
	return d
}

// Dispatch executes one request and always produces a response value.
// Every failure on this path is a command error by construction, so it is
// converted to an in-band error value rather than terminating the session.
func (d *Dispatcher) Dispatch(req resp.Value) resp.Value {
	reply, err := d.dispatch(req)
	if err != nil {
		d.metrics.CommandErrors.Inc()

		var ce *CommandError
		if errors.As(err, &ce) {
			d.logger.Debug("command error", "error", ce.Message)
			return resp.Error(ce.Message)
		}
		d.logger.Warn("unexpected dispatch failure", "error", err)
		return resp.Error(err.Error())
	}
	return reply
}

func (d *Dispatcher) dispatch(req resp.Value) (resp.Value, error) {
	tokens, err := normalizeRequest(req)
	if err != nil {
		return resp.Value{}, err
	}
	if len(tokens) == 0 {
		return resp.Value{}, commandErrorf("Missing command")
	}

	name, ok := tokens[0].Text()
	if !ok {
		return resp.Value{}, commandErrorf("Request must be list or simple string.")
	}
	name = strings.ToUpper(name)

	handler, ok := d.commands[name]
	if !ok {
		return resp.Value{}, commandErrorf("Unrecognized command: %s", name)
	}

	start := time.Now()
	reply, err := handler(tokens[1:])
	d.metrics.CommandsTotal.WithLabelValues(name).Inc()
	d.metrics.CommandDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	return reply, err
}

// normalizeRequest turns the decoded request into command tokens. An
// array is used as-is with element 0 as the command; a single string
// value is split on whitespace. Any other top-level shape is rejected.
func normalizeRequest(req resp.Value) ([]resp.Value, error) {
	switch req.Kind {
	case resp.KindArray:
		return req.Array, nil
	case resp.KindSimpleString, resp.KindBulkString:
		text, _ := req.Text()
		fields := strings.Fields(text)
		tokens := make([]resp.Value, 0, len(fields))
		for _, f := range fields {
			tokens = append(tokens, resp.BulkText(f))
		}
		return tokens, nil
	default:
		return nil, commandErrorf("Request must be list or simple string.")
	}
}

// argKey extracts a store key from one argument. Keys are binary safe;
// any string-like value qualifies.
func argKey(name string, arg resp.Value) (string, error) {
	key, ok := arg.Text()
	if !ok {
		return "", commandErrorf("%s key must be a string", name)
	}
	return key, nil
}

func (d *Dispatcher) handleGet(args []resp.Value) (resp.Value, error) {
	if len(args) != 1 {
		return resp.Value{}, commandErrorf("wrong number of arguments for GET")
	}
	key, err := argKey("GET", args[0])
	if err != nil {
		return resp.Value{}, err
	}
	return d.store.Get(key), nil
}

func (d *Dispatcher) handleSet(args []resp.Value) (resp.Value, error) {
	if len(args) != 2 {
		return resp.Value{}, commandErrorf("wrong number of arguments for SET")
	}
	key, err := argKey("SET", args[0])
	if err != nil {
		return resp.Value{}, err
	}
	d.store.Set(key, args[1])
	return resp.Integer(1), nil
}

func (d *Dispatcher) handleDelete(args []resp.Value) (resp.Value, error) {
	if len(args) != 1 {
		return resp.Value{}, commandErrorf("wrong number of arguments for DELETE")
	}
	key, err := argKey("DELETE", args[0])
	if err != nil {
		return resp.Value{}, err
	}
	if d.store.Delete(key) {
		return resp.Integer(1), nil
	}
	return resp.Integer(0), nil
}

func (d *Dispatcher) handleFlush(args []resp.Value) (resp.Value, error) {
	if len(args) != 0 {
		return resp.Value{}, commandErrorf("wrong number of arguments for FLUSH")
	}
	return resp.Integer(int64(d.store.Flush())), nil
}

func (d *Dispatcher) handleMGet(args []resp.Value) (resp.Value, error) {
	keys := make([]string, 0, len(args))
	for _, arg := range args {
		key, err := argKey("MGET", arg)
		if err != nil {
			return resp.Value{}, err
		}
		keys = append(keys, key)
	}
	return resp.ArrayOf(d.store.MGet(keys...)...), nil
}

func (d *Dispatcher) handleMSet(args []resp.Value) (resp.Value, error) {
	if len(args)%2 != 0 {
		// Argument validation happens before any write, so an odd call
		// leaves the store completely untouched.
		return resp.Value{}, commandErrorf("MSET requires even number of arguments")
	}

	pairs := make([]store.Pair, 0, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		key, err := argKey("MSET", args[i])
		if err != nil {
			return resp.Value{}, err
		}
		pairs = append(pairs, store.Pair{Key: key, Value: args[i+1]})
	}
	d.store.MSet(pairs)
	return resp.Integer(int64(len(pairs))), nil
}
