package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"hytun/internal/config/emitter"
	pkgerrors "hytun/pkg/errors"
)

// Controller drives the hysteria systemd unit and owns the client config
// file on disk. It holds no locks of its own; callers compute configs and
// invoke it outside their store critical sections.
type Controller struct {
	runner     Runner
	unit       string
	configPath string
	timeout    time.Duration
}

// NewController creates a controller for the given systemd unit.
func NewController(runner Runner, unit, configPath string, timeout time.Duration) *Controller {
	return &Controller{
		runner:     runner,
		unit:       unit,
		configPath: configPath,
		timeout:    timeout,
	}
}

// ConfigPath returns the path of the managed client config.
func (c *Controller) ConfigPath() string {
	return c.configPath
}

// WriteConfig replaces the client config, backing up the previous file
// first. A failed write leaves the previous config in place.
func (c *Controller) WriteConfig(data []byte) error {
	if prev, err := os.ReadFile(c.configPath); err == nil {
		if err := os.WriteFile(c.configPath+".bak", prev, 0600); err != nil {
			return fmt.Errorf("failed to back up previous config: %w", err)
		}
	}

	tmp := c.configPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := os.Rename(tmp, c.configPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace config: %w", err)
	}
	return nil
}

// Start starts the hysteria unit and verifies it came up.
func (c *Controller) Start(ctx context.Context) error {
	if _, err := os.Stat(c.configPath); err != nil {
		return pkgerrors.ErrNoCurrentNode
	}

	if err := c.systemctl(ctx, "start"); err != nil {
		return err
	}

	// Give the unit a moment before checking.
	select {
	case <-time.After(2 * time.Second):
	case <-ctx.Done():
		return ctx.Err()
	}

	if !c.IsActive(ctx) {
		return fmt.Errorf("%w: unit %s did not become active", pkgerrors.ErrCommandFailed, c.unit)
	}
	return nil
}

// Stop stops the hysteria unit and removes a stale TUN device if the
// process left one behind.
func (c *Controller) Stop(ctx context.Context) error {
	if err := c.systemctl(ctx, "stop"); err != nil {
		return err
	}

	// Best effort; the device is usually gone already.
	c.runner.Run(ctx, 5*time.Second, "ip", "link", "delete", emitter.TunName)
	return nil
}

// Restart stops then starts the unit.
func (c *Controller) Restart(ctx context.Context) error {
	if err := c.Stop(ctx); err != nil {
		slog.Warn("stop before restart failed", "unit", c.unit, "error", err)
	}

	select {
	case <-time.After(time.Second):
	case <-ctx.Done():
		return ctx.Err()
	}

	return c.Start(ctx)
}

// IsActive reports whether the unit is active.
func (c *Controller) IsActive(ctx context.Context) bool {
	res, err := c.runner.Run(ctx, c.timeout, "systemctl", "is-active", c.unit)
	if err != nil {
		return false
	}
	return strings.TrimSpace(res.Stdout) == "active"
}

// TunUp reports whether the TUN device exists.
func (c *Controller) TunUp(ctx context.Context) bool {
	res, err := c.runner.Run(ctx, c.timeout, "ip", "link", "show", emitter.TunName)
	return err == nil && res.ExitCode == 0
}

// TailLog returns the last n lines of the given log file.
func (c *Controller) TailLog(ctx context.Context, path string, n int) ([]string, error) {
	res, err := c.runner.Run(ctx, c.timeout, "tail", "-n", strconv.Itoa(n), path)
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, &pkgerrors.CommandError{Cmd: "tail " + path, ExitCode: res.ExitCode, Stderr: res.Stderr}
	}
	return strings.Split(strings.TrimRight(res.Stdout, "\n"), "\n"), nil
}

func (c *Controller) systemctl(ctx context.Context, action string) error {
	res, err := c.runner.Run(ctx, c.timeout, "systemctl", action, c.unit)
	if err != nil {
		slog.Error("systemctl invocation failed", "action", action, "unit", c.unit, "error", err)
		return err
	}
	if res.ExitCode != 0 {
		cmdErr := &pkgerrors.CommandError{
			Cmd:      fmt.Sprintf("systemctl %s %s", action, c.unit),
			ExitCode: res.ExitCode,
			Stderr:   strings.TrimSpace(res.Stderr),
		}
		slog.Error("systemctl failed", "action", action, "unit", c.unit, "stderr", cmdErr.Stderr)
		return cmdErr
	}
	return nil
}
