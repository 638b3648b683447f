package IO

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
)

var ErrSchema = errors.New("command does not match the action schema")

const (
	ActionAlert        = "alert"
	ActionNavigate     = "navigate"
	ActionToggle       = "toggle"
	ActionUnrecognized = "unrecognized"
)

// SystemActions are the parameterless actions.
var SystemActions = []string{
	"back", "refresh", "close", "cancel", "stop", "pause", "resume",
	"play", "start", "restart", "clear", "reset", "delete",
}

// Command is one action object. Only the field belonging to Action is set.
type Command struct {
	Action  string
	Message string // alert
	Target  string // navigate
	Setting string // toggle
	Input   string // unrecognized
}

func Alert(msg string) Command { return Command{Action: ActionAlert, Message: msg} }
func Navigate(target string) Command { return Command{Action: ActionNavigate, Target: target} }
func Toggle(setting string) Command { return Command{Action: ActionToggle, Setting: setting} }
func System(action string) Command { return Command{Action: action} }
func Unrecognized(in string) Command { return Command{Action: ActionUnrecognized, Input: in} }

// param returns the key and value of the action's single parameter, if any.
func (c Command) param() (key, val string, ok bool) {
	switch c.Action {
	case ActionAlert:
		return "message", c.Message, true
	case ActionNavigate:
		return "target", c.Target, true
	case ActionToggle:
		return "setting", c.Setting, true
	case ActionUnrecognized:
		return "input", c.Input, true
	}
	return "", "", false
}

func quote(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return strings.TrimRight(buf.String(), "\n")
}

// Canonical renders the single-line training form, action first:
//
//	{"action": "alert", "message": "Hello"}
func (c Command) Canonical() string {
	var sb strings.Builder
	sb.WriteString(`{"action": `)
	sb.WriteString(quote(c.Action))
	if key, val, ok := c.param(); ok {
		sb.WriteString(", ")
		sb.WriteString(quote(key))
		sb.WriteString(": ")
		sb.WriteString(quote(val))
	}
	sb.WriteByte('}')
	return sb.String()
}

func (c Command) String() string { return c.Canonical() }

// ParseCommand decodes a JSON object and checks it against the closed action schema.
func ParseCommand(s string) (Command, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return Command{}, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	action, ok := obj["action"].(string)
	if !ok {
		return Command{}, fmt.Errorf("%w: missing string action", ErrSchema)
	}
	c := Command{Action: action}
	key, _, hasParam := c.param()
	if !hasParam && !slices.Contains(SystemActions, action) {
		return Command{}, fmt.Errorf("%w: unknown action %q", ErrSchema, action)
	}

	want := 1
	if hasParam {
		want = 2
		val, ok := obj[key].(string)
		if !ok {
			return Command{}, fmt.Errorf("%w: action %q needs string %q", ErrSchema, action, key)
		}
		switch key {
		case "message":
			c.Message = val
		case "target":
			c.Target = val
		case "setting":
			c.Setting = val
		case "input":
			c.Input = val
		}
	}
	if len(obj) != want {
		return Command{}, fmt.Errorf("%w: unexpected fields for action %q", ErrSchema, action)
	}
	return c, nil
}
