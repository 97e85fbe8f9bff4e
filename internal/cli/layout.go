package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/canvas/pkg/types"
)

func newRowCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "row", Short: "Manage rows"}
	cmd.AddCommand(&cobra.Command{
		Use:   "add <site-id>",
		Short: "Append a row to a site",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(func(sess *session) error {
				_, row, err := sess.editor.AddRow(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if a.flags.jsonMode {
					return writeJSON(cmd.OutOrStdout(), row)
				}
				fmt.Fprintln(cmd.OutOrStdout(), row.ID)
				return nil
			})
		},
	})
	return cmd
}

func newColumnCmd(a *app) *cobra.Command {
	var width int
	add := &cobra.Command{
		Use:   "add <site-id> <row-id>",
		Short: "Append a column to a row",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(func(sess *session) error {
				_, col, err := sess.editor.AddColumn(cmd.Context(), args[0], args[1], width)
				if err != nil {
					return err
				}
				if a.flags.jsonMode {
					return writeJSON(cmd.OutOrStdout(), col)
				}
				fmt.Fprintln(cmd.OutOrStdout(), col.ID)
				return nil
			})
		},
	}
	add.Flags().IntVar(&width, "width", types.MaxColumnWidth,
		fmt.Sprintf("grid width, %d to %d", types.MinColumnWidth, types.MaxColumnWidth))

	cmd := &cobra.Command{Use: "column", Short: "Manage columns"}
	cmd.AddCommand(add)
	return cmd
}

func newElementCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "element", Short: "Manage elements"}
	cmd.AddCommand(
		newElementAddCmd(a),
		newElementUpdateCmd(a),
		newElementDeleteCmd(a),
		newElementTypesCmd(a),
	)
	return cmd
}

func newElementAddCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add <site-id> <column-id> <type>",
		Short: "Append an element with default properties to a column",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(func(sess *session) error {
				_, el, err := sess.editor.AddElement(cmd.Context(), args[0], args[1], types.ElementType(args[2]))
				if err != nil {
					return err
				}
				if a.flags.jsonMode {
					return writeJSON(cmd.OutOrStdout(), el)
				}
				fmt.Fprintln(cmd.OutOrStdout(), el.ID)
				return nil
			})
		},
	}
}

func newElementUpdateCmd(a *app) *cobra.Command {
	var (
		sets      []string
		propsJSON string
	)
	cmd := &cobra.Command{
		Use:   "update <site-id> <element-id>",
		Short: "Merge property overrides into an element",
		Long: "Merge property overrides into an element. --props takes a JSON object;\n" +
			"--set key=value may repeat and accepts dotted keys for nested records.\n" +
			"A null value removes the override and restores the default.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			partial := map[string]any{}
			if propsJSON != "" {
				if err := json.Unmarshal([]byte(propsJSON), &partial); err != nil {
					return userError(fmt.Errorf("%w: --props: %v", types.ErrInvalidProps, err))
				}
			}
			assigned, err := parseAssignments(sets)
			if err != nil {
				return userError(err)
			}
			for k, v := range assigned {
				partial[k] = v
			}
			if len(partial) == 0 {
				return userError(fmt.Errorf("%w: no properties given", types.ErrInvalidArgument))
			}
			return a.withSession(func(sess *session) error {
				t, el, err := sess.editor.UpdateElement(cmd.Context(), args[0], args[1], partial)
				if err != nil {
					return err
				}
				props, err := sess.editor.Engine().EffectiveProps(t, el.ID)
				if err != nil {
					return err
				}
				if a.flags.jsonMode {
					return writeJSON(cmd.OutOrStdout(), map[string]any{"element": el, "props": props})
				}
				b, err := json.Marshal(props)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", el.Type, el.ID, b)
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "key=value override (repeatable)")
	cmd.Flags().StringVar(&propsJSON, "props", "", "JSON object of overrides")
	return cmd
}

func newElementDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <site-id> <element-id>",
		Short: "Remove an element (no-op if absent)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(func(sess *session) error {
				_, removed, err := sess.editor.DeleteElement(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				if a.flags.jsonMode {
					return writeJSON(cmd.OutOrStdout(), map[string]bool{"removed": removed})
				}
				if removed {
					fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[1])
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "No element %s\n", args[1])
				}
				return nil
			})
		},
	}
}

func newElementTypesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List element types and their default properties",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := a.registry()
			out := cmd.OutOrStdout()
			all := map[types.ElementType]map[string]any{}
			for _, t := range reg.Types() {
				d, err := reg.Defaults(t)
				if err != nil {
					return sysError(err)
				}
				all[t] = d
			}
			if a.flags.jsonMode {
				return writeJSON(out, all)
			}
			for _, t := range reg.Types() {
				b, err := json.Marshal(all[t])
				if err != nil {
					return sysError(err)
				}
				fmt.Fprintf(out, "%-12s %s\n", t, b)
			}
			return nil
		},
	}
}
