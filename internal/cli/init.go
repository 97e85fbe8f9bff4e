package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/canvas/internal/paths"
	"github.com/mesh-intelligence/canvas/internal/sqlite"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize canvas storage",
		Long:  "Create the configuration file and data directory, then initialize the storage backend.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, err := paths.ResolveConfigDir(a.flags.configDir)
			if err != nil {
				return sysError(fmt.Errorf("resolve config dir: %w", err))
			}
			cfg, err := a.backendConfig()
			if err != nil {
				return userError(err)
			}

			configPath := filepath.Join(configDir, configFileExt)
			created, err := writeConfigIfMissing(configPath, cfg.DataDir)
			if err != nil {
				return sysError(err)
			}

			backend := sqlite.NewBackend(sqlite.WithLogger(a.newLogger()))
			if err := backend.Attach(cfg); err != nil {
				return sysError(fmt.Errorf("initialize storage: %w", err))
			}
			if err := backend.Detach(); err != nil {
				return sysError(fmt.Errorf("finalize storage: %w", err))
			}

			out := cmd.OutOrStdout()
			if a.flags.jsonMode {
				return writeJSON(out, map[string]any{
					"config": configPath, "configCreated": created, "dataDir": cfg.DataDir,
				})
			}
			if created {
				fmt.Fprintf(out, "Wrote %s\n", configPath)
			}
			fmt.Fprintf(out, "Canvas initialized in %s\n", cfg.DataDir)
			return nil
		},
	}
}
