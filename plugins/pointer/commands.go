package main

import (
	"fmt"
	"strconv"
)

var clickCommands = map[string]string{
	"left":   "c",
	"right":  "rc",
	"double": "dc",
}

// commandFor maps an action to cliclick arguments. Positions are absolute
// pixels unless params["relative"] is "true", in which case they are offsets
// from the current pointer.
func commandFor(action string, params map[string]string) ([]string, error) {
	switch action {
	case "click":
		button := params["button"]
		if button == "" {
			button = "left"
		}
		cmd, ok := clickCommands[button]
		if !ok {
			return nil, fmt.Errorf("unknown button %q", button)
		}
		return []string{cmd + ":."}, nil

	case "double-click":
		return []string{"dc:."}, nil

	case "move":
		x, err := coord(params, "x")
		if err != nil {
			return nil, err
		}
		y, err := coord(params, "y")
		if err != nil {
			return nil, err
		}
		if params["relative"] == "true" {
			return []string{fmt.Sprintf("m:%s,%s", signed(x), signed(y))}, nil
		}
		if x < 0 || y < 0 {
			return nil, fmt.Errorf("absolute position must not be negative")
		}
		return []string{fmt.Sprintf("m:%d,%d", x, y)}, nil
	}
	return nil, fmt.Errorf("unknown action: %s", action)
}

func coord(params map[string]string, name string) (int, error) {
	v, ok := params[name]
	if !ok || v == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, v)
	}
	return n, nil
}

// signed formats an offset the way cliclick expects: +n or -n.
func signed(n int) string {
	if n >= 0 {
		return "+" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
