package cmd

import (
	"context"

	"grimm.is/lancfg/internal/i18n"
)

// RunCheck validates the device configurations and prints every problem.
// Warnings alone do not fail the check.
func RunCheck(ctx context.Context, env *Env, verbose bool) error {
	items, err := env.Items(ctx)
	if err != nil {
		return err
	}
	report := items.Validate()
	for _, w := range report.Warnings {
		env.printf(i18n.MsgWarning, w)
	}
	if err := report.Err(); err != nil {
		return err
	}
	if verbose {
		Printer.Fprintf(env.Out, "Devices: %d (%d configured)\n", items.Len(), len(items.Configured()))
		Printer.Fprintf(env.Out, "Sysconfig: %s\n", env.Config.Paths.SysconfigDir())
		Printer.Fprintf(env.Out, "Naming: %s\n", env.Config.Mechanism())
	}
	env.printf(i18n.MsgNoProblems)
	return nil
}
