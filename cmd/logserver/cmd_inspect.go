package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"logserver/domain"
	"logserver/internal"
	"logserver/runtime"

	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print the events stored by the database sink",
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().Int("limit", 50, "maximum number of events, 0 for all")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, _ []string) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	limit, _ := cmd.Flags().GetInt("limit")
	cfg, err := internal.Load(envFile)
	if err != nil {
		return fmt.Errorf("%w: %w", errConfig, err)
	}
	if cfg.DatabaseDriver == "none" {
		return fmt.Errorf("%w: DATABASE_DRIVER is none", errConfig)
	}

	store, err := runtime.OpenEventStore(cfg, logs.GetLoggerFromString(cfg.LogLevel))
	if err != nil {
		return err
	}
	defer store.Close()
	lister, ok := store.(internal.EventLister)
	if !ok {
		return fmt.Errorf("driver %s cannot list events", cfg.DatabaseDriver)
	}
	events, err := lister.List(limit)
	if err != nil {
		return err
	}
	renderEvents(os.Stdout, events)
	return nil
}

func renderEvents(w io.Writer, events []domain.Event) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Time", "Level", "Application", "PID", "TID", "Location", "Message"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, e := range events {
		location := "-"
		if e.Location.File != "" {
			location = e.Location.File + ":" + strconv.Itoa(e.Location.Line)
		}
		table.Append([]string{
			e.Timestamp.UTC().Format("2006-01-02 15:04:05.000000"),
			e.Severity.String(),
			e.Application,
			strconv.FormatInt(e.ProcessID, 10),
			strconv.FormatInt(e.ThreadID, 10),
			location,
			e.Message,
		})
	}
	table.Render()
}
