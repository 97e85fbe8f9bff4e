// Package cli implements the canvas command-line interface.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/canvas/internal/paths"
	"github.com/mesh-intelligence/canvas/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	jsonMode  bool
	logLevel  string
}

// app carries per-invocation state from the root command to subcommands.
type app struct {
	flags    rootFlags
	settings settings
	stderr   io.Writer
}

// exitError carries an exit code up to Execute.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// userError marks err as caused by user input (exit code 1).
func userError(err error) error { return &exitError{code: exitUserError, err: err} }

// sysError marks err as a system failure (exit code 2).
func sysError(err error) error { return &exitError{code: exitSysError, err: err} }

// classify picks the exit code from the error category.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return err
	}
	if errors.Is(err, types.ErrNotFound) || errors.Is(err, types.ErrInvalidArgument) {
		return userError(err)
	}
	return sysError(err)
}

// NewRootCmd creates the top-level "canvas" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{stderr: os.Stderr}

	root := &cobra.Command{
		Use:   "canvas",
		Short: "Compose multi-tenant sites from rows, columns and elements",
		Long: "Canvas stores site schemas (rows of grid columns holding typed elements)\n" +
			"and edits them through a validated mutation engine.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.stderr = cmd.ErrOrStderr()
			if cmd.Name() == "version" {
				return nil
			}
			configDir, err := paths.ResolveConfigDir(a.flags.configDir)
			if err != nil {
				return sysError(fmt.Errorf("resolve config dir: %w", err))
			}
			s, err := loadSettings(configDir)
			if err != nil {
				return sysError(err)
			}
			if a.flags.logLevel != "" {
				s.LogLevel = a.flags.logLevel
			}
			a.settings = s
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (env "+paths.EnvConfigDir+")")
	root.PersistentFlags().StringVar(&a.flags.dataDir, "data-dir", "", "data directory (env "+paths.EnvDataDir+")")
	root.PersistentFlags().BoolVar(&a.flags.jsonMode, "json", false, "output in JSON format")
	root.PersistentFlags().StringVar(&a.flags.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(a),
		newSiteCmd(a),
		newRowCmd(a),
		newColumnCmd(a),
		newElementCmd(a),
		newServeCmd(a),
	)
	return root
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	return run(NewRootCmd(), os.Args[1:])
}

func run(root *cobra.Command, args []string) int {
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return exitSuccess
	}
	fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	// Unclassified errors come from cobra itself: bad flags or arguments.
	return exitUserError
}

// newLogger builds a text logger on stderr at the configured level.
func (a *app) newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: parseLevel(a.settings.LogLevel)}))
}

func parseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
