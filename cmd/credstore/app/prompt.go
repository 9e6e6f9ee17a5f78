package app

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// Domain: Secret Input
// This file contains logic for reading secrets from a terminal or a pipe

// readSecret prompts twice without echo on a terminal, otherwise reads all
// of stdin and drops one trailing line ending
func readSecret(cmd *cobra.Command, forceStdin bool) (string, error) {
	if f, ok := stdinFile(cmd); ok && !forceStdin && term.IsTerminal(int(f.Fd())) {
		return promptPassword(cmd, int(f.Fd()))
	}

	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	s := string(data)
	s = strings.TrimSuffix(s, "\n")
	s = strings.TrimSuffix(s, "\r")
	return s, nil
}

func promptPassword(cmd *cobra.Command, fd int) (string, error) {
	errOut := cmd.ErrOrStderr()

	fmt.Fprint(errOut, "Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(errOut)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	fmt.Fprint(errOut, "Confirm password: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(errOut)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}
