package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"logserver/client"
	"logserver/domain"
	"logserver/internal"

	"github.com/spf13/cobra"
)

var emitCmd = &cobra.Command{
	Use:   "emit [message...]",
	Short: "Send one event to a running server",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runEmit,
}

func init() {
	emitCmd.Flags().String("severity", "INFO", "event severity (EMERG..DEBUG)")
	emitCmd.Flags().String("facility", "general", "comma separated facility names")
	emitCmd.Flags().Duration("timeout", 2*time.Second, "give up after this long")
	rootCmd.AddCommand(emitCmd)
}

func runEmit(cmd *cobra.Command, args []string) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	cfg, err := internal.Load(envFile)
	if err != nil {
		return fmt.Errorf("%w: %w", errConfig, err)
	}
	severityName, _ := cmd.Flags().GetString("severity")
	facilityNames, _ := cmd.Flags().GetString("facility")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	severity, err := domain.ParseSeverity(severityName)
	if err != nil {
		return fmt.Errorf("%w: %w", errConfig, err)
	}
	mask, err := domain.ParseMask(facilityNames)
	if err != nil {
		return fmt.Errorf("%w: %w", errConfig, err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	c, err := client.Dial(ctx, cfg.SocketNetwork, cfg.SocketAddress, cfg.Application, client.WithThreadName("emit"))
	if err != nil {
		return err
	}
	defer c.Close()
	return c.Emit(ctx, severity, mask, strings.Join(args, " "))
}
