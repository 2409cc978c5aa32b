package suitable

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Action is one engine module bound to a client.
type Action struct {
	Name string

	client *Client
	// args is the argument string of the last call.
	args string
}

// String renders the action like a task line: "name: args".
func (a *Action) String() string {
	return fmt.Sprintf("%s: %s", a.Name, a.args)
}

// Run executes the action with positional and keyword arguments.
func (a *Action) Run(ctx context.Context, args []string, kwargs map[string]any) (*Result, error) {
	if a == nil || a.client == nil || a.client.actions[a.Name] != a {
		return nil, ErrNotHookedUp
	}
	return a.client.run(ctx, a, args, kwargs)
}

// Execute runs the action called name.
func (c *Client) Execute(ctx context.Context, name string, args []string, kwargs map[string]any) (*Result, error) {
	a, err := c.Action(name)
	if err != nil {
		return nil, err
	}
	return a.Run(ctx, args, kwargs)
}

// ModuleArgs serializes call arguments into one module argument string.
// Positional arguments are joined by spaces with "=" escaped; keyword
// arguments follow as key="value" pairs, sorted by key, with quotes in the
// value escaped. Lists are comma-joined and maps are rendered as JSON.
func ModuleArgs(args []string, kwargs map[string]any) string {
	positional := strings.ReplaceAll(strings.Join(args, " "), "=", `\=`)

	keys := make([]string, 0, len(kwargs))
	for k := range kwargs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		value := strings.ReplaceAll(argValue(kwargs[k]), `"`, `\"`)
		pairs = append(pairs, fmt.Sprintf(`%s="%s"`, k, value))
	}

	return strings.TrimSpace(positional + " " + strings.Join(pairs, " "))
}

func argValue(v any) string {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if b, ok := v.([]byte); ok {
			return string(b)
		}
		items := make([]string, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			item := rv.Index(i).Interface()
			switch reflect.ValueOf(item).Kind() {
			case reflect.Slice, reflect.Array, reflect.Map, reflect.Struct:
				items = append(items, jsonValue(item))
			default:
				items = append(items, fmt.Sprint(item))
			}
		}
		return strings.Join(items, ",")
	case reflect.Map, reflect.Struct:
		return jsonValue(v)
	default:
		return fmt.Sprint(v)
	}
}

func jsonValue(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// Ping runs the ping module.
func (c *Client) Ping(ctx context.Context) (*Result, error) {
	return c.Execute(ctx, "ping", nil, nil)
}

// Command runs cmd through the command module, without a shell.
func (c *Client) Command(ctx context.Context, cmd string, kwargs map[string]any) (*Result, error) {
	return c.Execute(ctx, "command", []string{cmd}, kwargs)
}

// Shell runs cmd through the shell module.
func (c *Client) Shell(ctx context.Context, cmd string, kwargs map[string]any) (*Result, error) {
	return c.Execute(ctx, "shell", []string{cmd}, kwargs)
}

// File runs the file module.
func (c *Client) File(ctx context.Context, kwargs map[string]any) (*Result, error) {
	return c.Execute(ctx, "file", nil, kwargs)
}

// Copy runs the copy module.
func (c *Client) Copy(ctx context.Context, kwargs map[string]any) (*Result, error) {
	return c.Execute(ctx, "copy", nil, kwargs)
}
