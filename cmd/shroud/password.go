package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/viper"
	"golang.org/x/term"
)

var errNoPassword = errors.New("no master password: set SHROUD_PASSWORD or run from a terminal")

// readPassword takes the master password from SHROUD_PASSWORD, or prompts
// without echo when stdin is a terminal.
func readPassword(v *viper.Viper, in *os.File, prompt io.Writer) (string, error) {
	if pw := v.GetString(keyPassword); pw != "" {
		return pw, nil
	}
	if in == nil {
		return "", errNoPassword
	}
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return "", errNoPassword
	}

	fmt.Fprint(prompt, "Master password: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(prompt)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	defer clear(b)
	if len(b) == 0 {
		return "", errNoPassword
	}
	return string(b), nil
}
