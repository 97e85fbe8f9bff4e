package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/canvas/pkg/types"
)

func newSiteCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "site",
		Short: "Create, inspect and transfer sites",
	}
	cmd.AddCommand(
		newSiteCreateCmd(a),
		newSiteListCmd(a),
		newSiteShowCmd(a),
		newSiteUpdateCmd(a),
		newSitePublishCmd(a),
		newSiteDeleteCmd(a),
		newSiteExportCmd(a),
		newSiteImportCmd(a),
	)
	return cmd
}

func newSiteCreateCmd(a *app) *cobra.Command {
	var s types.Site
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an empty site for a tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(func(sess *session) error {
				t, err := sess.editor.CreateSite(cmd.Context(), s)
				if err != nil {
					return err
				}
				if a.flags.jsonMode {
					return writeJSON(cmd.OutOrStdout(), t.Site())
				}
				fmt.Fprintln(cmd.OutOrStdout(), t.Site().ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&s.TenantID, "tenant", "", "owning tenant (required)")
	cmd.Flags().StringVar(&s.ID, "id", "", "site ID (default: generated)")
	cmd.Flags().StringVar(&s.Title, "title", "", "page title")
	cmd.Flags().StringVar(&s.Favicon, "favicon", "", "favicon URL")
	cmd.Flags().StringVar(&s.MetaDescription, "meta-description", "", "meta description")
	cmd.Flags().StringVar(&s.AnalyticsID, "analytics-id", "", "analytics tracking ID")
	cmd.MarkFlagRequired("tenant")
	return cmd
}

func newSiteListCmd(a *app) *cobra.Command {
	var tenant string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sites, optionally for one tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(func(sess *session) error {
				sites, err := sess.editor.ListSites(cmd.Context(), tenant)
				if err != nil {
					return err
				}
				if a.flags.jsonMode {
					return writeJSON(cmd.OutOrStdout(), sites)
				}
				for _, s := range sites {
					printSite(cmd.OutOrStdout(), s)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "only sites of this tenant")
	return cmd
}

func newSiteShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <site-id>",
		Short: "Show a site's schema with effective element properties",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(func(sess *session) error {
				t, err := sess.editor.Tree(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if a.flags.jsonMode {
					return writeJSON(cmd.OutOrStdout(), t.Snapshot())
				}
				return printTree(cmd.OutOrStdout(), sess.editor.Engine(), t)
			})
		},
	}
}

func newSiteUpdateCmd(a *app) *cobra.Command {
	var title, favicon, meta, analytics string
	cmd := &cobra.Command{
		Use:   "update <site-id>",
		Short: "Change site metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch types.SitePatch
			set := func(name string, dst **string, v *string) {
				if cmd.Flags().Changed(name) {
					*dst = v
				}
			}
			set("title", &patch.Title, &title)
			set("favicon", &patch.Favicon, &favicon)
			set("meta-description", &patch.MetaDescription, &meta)
			set("analytics-id", &patch.AnalyticsID, &analytics)
			if patch.Empty() {
				return userError(fmt.Errorf("%w: nothing to update", types.ErrInvalidArgument))
			}
			return a.withSession(func(sess *session) error {
				t, err := sess.editor.UpdateSite(cmd.Context(), args[0], patch)
				if err != nil {
					return err
				}
				if a.flags.jsonMode {
					return writeJSON(cmd.OutOrStdout(), t.Site())
				}
				printSite(cmd.OutOrStdout(), t.Site())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "page title")
	cmd.Flags().StringVar(&favicon, "favicon", "", "favicon URL")
	cmd.Flags().StringVar(&meta, "meta-description", "", "meta description")
	cmd.Flags().StringVar(&analytics, "analytics-id", "", "analytics tracking ID")
	return cmd
}

func newSitePublishCmd(a *app) *cobra.Command {
	var unpublish bool
	cmd := &cobra.Command{
		Use:   "publish <site-id>",
		Short: "Publish a site (or take it offline with --unpublish)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(func(sess *session) error {
				t, err := sess.editor.SetPublished(cmd.Context(), args[0], !unpublish)
				if err != nil {
					return err
				}
				if a.flags.jsonMode {
					return writeJSON(cmd.OutOrStdout(), t.Site())
				}
				printSite(cmd.OutOrStdout(), t.Site())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&unpublish, "unpublish", false, "mark the site as draft")
	return cmd
}

func newSiteDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <site-id>",
		Short: "Delete a site and its schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(func(sess *session) error {
				if err := sess.editor.DeleteSite(cmd.Context(), args[0]); err != nil {
					return err
				}
				if a.flags.jsonMode {
					return writeJSON(cmd.OutOrStdout(), map[string]string{"deleted": args[0]})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func newSiteExportCmd(a *app) *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "export <site-id>",
		Short: "Write a site snapshot as JSON or YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "" && !cmd.Flags().Changed("format") {
				format = formatFromPath(output)
			}
			return a.withSession(func(sess *session) error {
				t, err := sess.editor.Tree(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				data, err := encodeSnapshot(t.Snapshot(), format)
				if err != nil {
					return userError(err)
				}
				if output == "" {
					_, err = cmd.OutOrStdout().Write(data)
					return err
				}
				if err := os.WriteFile(output, data, 0o644); err != nil {
					return sysError(fmt.Errorf("write %s: %w", output, err))
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %s to %s\n", args[0], output)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "json or yaml")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	return cmd
}

func newSiteImportCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "import <file|->",
		Short: "Store a JSON or YAML snapshot, replacing a site with the same ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
				if !cmd.Flags().Changed("format") {
					format = formatFromPath(args[0])
				}
			}
			if err != nil {
				return userError(fmt.Errorf("read snapshot: %w", err))
			}
			snap, err := decodeSnapshot(data, format)
			if err != nil {
				return userError(err)
			}
			return a.withSession(func(sess *session) error {
				t, err := sess.editor.Import(cmd.Context(), snap)
				if err != nil {
					return err
				}
				if a.flags.jsonMode {
					return writeJSON(cmd.OutOrStdout(), t.Site())
				}
				rows, cols, els := t.Counts()
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %s (%d rows, %d columns, %d elements)\n",
					t.Site().ID, rows, cols, els)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "json or yaml")
	return cmd
}

func formatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}

func encodeSnapshot(snap types.Snapshot, format string) ([]byte, error) {
	switch format {
	case "json":
		var buf bytes.Buffer
		if err := writeJSON(&buf, snap); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case "yaml":
		return yaml.Marshal(snap)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", types.ErrInvalidArgument, format)
	}
}

func decodeSnapshot(data []byte, format string) (types.Snapshot, error) {
	var snap types.Snapshot
	var err error
	switch format {
	case "json":
		err = json.Unmarshal(data, &snap)
	case "yaml":
		err = yaml.Unmarshal(data, &snap)
	default:
		return snap, fmt.Errorf("%w: unknown format %q", types.ErrInvalidArgument, format)
	}
	if err != nil {
		return snap, fmt.Errorf("%w: decode %s snapshot: %v", types.ErrInvalidSnapshot, format, err)
	}
	return snap, nil
}
