package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/switchyard/internal/config"
)

var resumeCmd = &cobra.Command{
	Use:   "resume --thread <id> <reply>",
	Short: "Answer a suspended run",
	Long: `Resume a run that suspended for approval, sending the reply as the
resume value. Replies that parse as JSON are sent as JSON; anything else
is sent as a string.

Suspended runs survive restarts only with the sqlite checkpoint driver.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResume,
}

func init() {
	addRunFlags(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	if chatThread == "" {
		return errors.New("--thread is required")
	}
	if cfg.Checkpoint.Driver == config.DriverMemory {
		logger.Warn().Msg("memory checkpoints do not survive restarts; nothing to resume")
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, logger.Logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := invoke(ctx, a, resumeRequest(strings.Join(args, " "), chatThread), cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("resume %s: %w", chatThread, err)
	}
	return nil
}
