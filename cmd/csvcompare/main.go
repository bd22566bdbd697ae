// Command csvcompare compares folders of CSV and binary files against a
// rules file, and serves the comparison engine over HTTP.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/csvcompare/internal/config"
	"github.com/JonMunkholm/csvcompare/internal/core"
	"github.com/JonMunkholm/csvcompare/internal/logging"
)

// errMismatch makes the process exit with status 1 without printing an error.
var errMismatch = errors.New("files differ")

var verbose bool

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errMismatch) {
			printError(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// printError shows the coded message for known failures and the raw error
// otherwise.
func printError(w io.Writer, err error) {
	if !core.IsUserFacing(err) {
		fmt.Fprintln(w, "Error:", err)
		return
	}
	fmt.Fprintln(w, "Error:", core.FormatUserError(err))
	fmt.Fprintln(w, "  cause:", err)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "csvcompare",
		Short:         "Compare CSV tables and files with configurable tolerances",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")

	root.AddCommand(newCompareCmd(), newSchemaCmd(), newServeCmd())
	return root
}

// loadConfig reads .env (overriding the environment), loads the
// configuration and sets up logging on stderr.
func loadConfig() (*config.Config, error) {
	envLoaded := godotenv.Overload() == nil

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	logging.SetupWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	if envLoaded {
		slog.Debug("loaded .env file (overwriting existing env vars)")
	}
	slog.Debug("configuration loaded", "config", cfg.String())
	return cfg, nil
}
