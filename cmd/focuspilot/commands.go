package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/loykin/focuspilot/pkg/client"
	"github.com/spf13/cobra"
)

type command struct {
	flags *GlobalFlags
}

// apiClient returns a client for the configured daemon, failing early when
// the daemon does not answer.
func (c *command) apiClient(ctx context.Context) (*client.Client, error) {
	cfg := client.DefaultConfig()
	if c.flags.APIUrl != "" {
		cfg.BaseURL = c.flags.APIUrl
	}
	if c.flags.APITimeout > 0 {
		cfg.Timeout = c.flags.APITimeout
	}
	cl := client.New(cfg)
	if !cl.IsReachable(ctx) {
		return nil, fmt.Errorf("daemon not reachable at %s - please start daemon first with 'focuspilot serve'", cfg.BaseURL)
	}
	return cl, nil
}

func (c *command) Stats(cmd *cobra.Command, f StatsFlags) error {
	cl, err := c.apiClient(cmd.Context())
	if err != nil {
		return err
	}
	st, err := cl.GetStats(cmd.Context())
	if err != nil {
		return err
	}
	if f.JSON {
		return printJSON(cmd.OutOrStdout(), st)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), renderStats(st))
	return err
}

func (c *command) Reset(cmd *cobra.Command) error {
	cl, err := c.apiClient(cmd.Context())
	if err != nil {
		return err
	}
	if _, err := cl.ResetData(cmd.Context()); err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), "focus data cleared")
	return err
}

func (c *command) Dashboard(cmd *cobra.Command) error {
	cl, err := c.apiClient(cmd.Context())
	if err != nil {
		return err
	}
	ack, err := cl.OpenDashboard(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), ack)
}

func (c *command) Settings(cmd *cobra.Command, sites bool) error {
	cl, err := c.apiClient(cmd.Context())
	if err != nil {
		return err
	}
	tab := ""
	if sites {
		tab = "sites"
	}
	ack, err := cl.OpenSettings(cmd.Context(), tab)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), ack)
}

func (c *command) Focus(cmd *cobra.Command, f FocusFlags) error {
	if f.Minutes <= 0 {
		return fmt.Errorf("--minutes must be positive, got %d", f.Minutes)
	}
	cl, err := c.apiClient(cmd.Context())
	if err != nil {
		return err
	}
	out, err := cl.StartFocusSession(cmd.Context(), f.Minutes)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "focus session started, ends at %s\n", formatMillis(out.EndsAt))
	return err
}

func (c *command) Snooze(cmd *cobra.Command, f SnoozeFlags) error {
	if f.Duration < 0 {
		return fmt.Errorf("--duration must not be negative, got %s", f.Duration)
	}
	cl, err := c.apiClient(cmd.Context())
	if err != nil {
		return err
	}
	out, err := cl.Snooze(cmd.Context(), f.Duration)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "reminders snoozed until %s\n", formatMillis(out.Until))
	return err
}

func (c *command) State(cmd *cobra.Command) error {
	cl, err := c.apiClient(cmd.Context())
	if err != nil {
		return err
	}
	st, err := cl.State(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), st)
}

func (c *command) Assess(cmd *cobra.Command) error {
	cl, err := c.apiClient(cmd.Context())
	if err != nil {
		return err
	}
	d, err := cl.Assess(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), d)
}

func (c *command) EventActivated(cmd *cobra.Command, f EventFlags) error {
	cl, err := c.apiClient(cmd.Context())
	if err != nil {
		return err
	}
	return cl.TabActivated(cmd.Context(), f.TabID, f.WindowID, f.URL)
}

func (c *command) EventUpdated(cmd *cobra.Command, f EventFlags) error {
	cl, err := c.apiClient(cmd.Context())
	if err != nil {
		return err
	}
	return cl.TabUpdated(cmd.Context(), f.TabID, f.URL)
}

func (c *command) EventRemoved(cmd *cobra.Command, f EventFlags) error {
	cl, err := c.apiClient(cmd.Context())
	if err != nil {
		return err
	}
	return cl.TabRemoved(cmd.Context(), f.TabID)
}

func (c *command) EventIdle(cmd *cobra.Command, state string) error {
	switch state {
	case client.IdleActive, client.IdleIdle, client.IdleLocked:
	default:
		return fmt.Errorf("unknown idle state %q (want active, idle or locked)", state)
	}
	cl, err := c.apiClient(cmd.Context())
	if err != nil {
		return err
	}
	return cl.IdleState(cmd.Context(), state)
}

func (c *command) ConfigGet(cmd *cobra.Command) error {
	cl, err := c.apiClient(cmd.Context())
	if err != nil {
		return err
	}
	f, err := cl.GetConfig(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), f)
}

func (c *command) ConfigSet(cmd *cobra.Command, raw string) error {
	var patch map[string]any
	if err := json.Unmarshal([]byte(raw), &patch); err != nil {
		return fmt.Errorf("settings must be a JSON object: %w", err)
	}
	cl, err := c.apiClient(cmd.Context())
	if err != nil {
		return err
	}
	f, err := cl.UpdateConfig(cmd.Context(), patch)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), f)
}
