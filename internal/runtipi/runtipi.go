// tipictl - Runtipi lifecycle tooling for ASUSTOR App Central
// Copyright 2026 runtipi-contrib
// SPDX-License-Identifier: GPL-3.0-or-later
// https://github.com/runtipi-contrib/tipictl

// Package runtipi invokes the bundled runtipi-cli binary. The CLI is treated
// as an opaque collaborator: tipictl passes verbs through, relays its output
// into the log, and surfaces the exit code. What the CLI does with the Docker
// stack is its own business.
package runtipi

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/runtipi-contrib/tipictl/internal/logging"
)

// ErrCLINotFound means the runtipi-cli binary is missing or not executable.
var ErrCLINotFound = errors.New("runtipi-cli not found")

// Client runs runtipi-cli commands from the Runtipi directory.
type Client struct {
	cliPath string
	workDir string
}

// NewClient builds a client for the CLI binary at cliPath, executed with
// workDir as its working directory.
func NewClient(cliPath, workDir string) *Client {
	return &Client{cliPath: cliPath, workDir: workDir}
}

// Start brings the Runtipi stack up.
func (c *Client) Start(ctx context.Context) error {
	return c.run(ctx, "start")
}

// Stop shuts the Runtipi stack down.
func (c *Client) Stop(ctx context.Context) error {
	return c.run(ctx, "stop")
}

// Version returns the CLI's version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	if err := c.check(); err != nil {
		return "", err
	}
	out, err := exec.CommandContext(ctx, c.cliPath, "version").Output() //nolint:gosec // G204: path comes from config
	if err != nil {
		return "", fmt.Errorf("runtipi-cli version: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// run executes one CLI verb, relaying its combined output into the log.
func (c *Client) run(ctx context.Context, verb string) error {
	if err := c.check(); err != nil {
		return err
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, c.cliPath, verb) //nolint:gosec // G204: path comes from config
	cmd.Dir = c.workDir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("runtipi-cli %s: %w", verb, err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("runtipi-cli %s: %w", verb, err)
	}

	relayOutput(verb, stdout)

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("runtipi-cli %s failed: %w", verb, err)
	}

	logging.Info().
		Str("verb", verb).
		Dur("took", time.Since(start)).
		Msg("runtipi-cli completed")

	return nil
}

// relayOutput forwards CLI output lines into the log at debug level.
func relayOutput(verb string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		logging.Debug().Str("verb", verb).Msg(line)
	}
}

// check verifies the CLI binary exists before trying to execute it, so the
// operator gets a clear message instead of a raw exec error.
func (c *Client) check() error {
	if _, err := exec.LookPath(c.cliPath); err != nil {
		return fmt.Errorf("%w: %s", ErrCLINotFound, c.cliPath)
	}
	return nil
}
