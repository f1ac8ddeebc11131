package main

import (
	"fmt"
	"os"
	"slices"
	"strings"
)

// choice normalizes an enumerated flag value. An empty value selects the
// first allowed value.
func choice(flag, value string, allowed ...string) (string, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return allowed[0], nil
	}
	if !slices.Contains(allowed, v) {
		return "", fmt.Errorf("invalid --%s value %q (expected %s)", flag, value, strings.Join(allowed, "|"))
	}
	return v, nil
}

type uiMode string

const (
	uiModeAuto uiMode = "auto"
	uiModeOn   uiMode = "on"
	uiModeOff  uiMode = "off"
)

func readUIMode(value string) (uiMode, error) {
	v, err := choice("ui", value, string(uiModeAuto), string(uiModeOn), string(uiModeOff))
	return uiMode(v), err
}

// shouldUseTUI reports whether the progress UI replaces the plain result
// lines; auto only enables it on a terminal.
func shouldUseTUI(mode uiMode) bool {
	return mode == uiModeOn || mode == uiModeAuto && isTerminal(os.Stdout)
}
