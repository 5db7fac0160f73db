package main

import (
	"errors"
	"fmt"
	"os"

	apperrors "logserver/errors"

	"github.com/spf13/cobra"
)

// Exit codes for the log server.
const (
	exitOK                   = 0
	exitRuntime              = 1
	exitConfig               = 2
	exitTransportUnavailable = 3
	exitNoSinks              = 4
)

// errConfig marks failures of configuration loading.
var errConfig = errors.New("configuration")

var rootCmd = &cobra.Command{
	Use:           "logserver",
	Short:         "Fan-out log server for local producers",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("env-file", "", "dotenv file loaded before the environment")
}

func main() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logserver: %v\n", err)
	}
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errConfig):
		return exitConfig
	case errors.Is(err, apperrors.ErrTransportUnavailable):
		return exitTransportUnavailable
	case errors.Is(err, apperrors.ErrNoSinks):
		return exitNoSinks
	default:
		return exitRuntime
	}
}
