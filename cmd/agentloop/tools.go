package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/agentloop/internal/tools"
	"github.com/fyrsmithlabs/agentloop/internal/tools/builtin"
)

func newToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect the tool registry",
	}
	cmd.AddCommand(newToolsListCmd(), newToolsInfoCmd())
	return cmd
}

// loadRegistry builds the registry the agent would run with, including
// permissions file overrides, without starting the rest of the app.
func loadRegistry() (*tools.Registry, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	reg := tools.NewRegistry()
	if err := builtin.Register(reg, builtin.OptionsFromConfig(cfg)); err != nil {
		return nil, err
	}
	if cfg.Tools.PermissionsFile != "" {
		if _, err := tools.NewPermissionFile(cfg.Tools.PermissionsFile, reg, nil).Apply(); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func newToolsListCmd() *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := loadRegistry()
			if err != nil {
				return err
			}
			infos := reg.Export()
			sort.Slice(infos, func(i, j int) bool {
				if infos[i].Category != infos[j].Category {
					return infos[i].Category < infos[j].Category
				}
				return infos[i].Name < infos[j].Name
			})

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tCATEGORY\tPERMISSION\tRISK\tDESCRIPTION")
			for _, info := range infos {
				if category != "" && info.Category != category {
					continue
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", info.Name, info.Category, info.Permission, info.RiskLevel, info.Description)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "only list tools in this category")
	return cmd
}

func newToolsInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <name>",
		Short: "Show a tool's definition and parameter schema as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadRegistry()
			if err != nil {
				return err
			}
			info, ok := reg.Info(args[0])
			if !ok {
				return fmt.Errorf("%w: %s", tools.ErrToolNotFound, args[0])
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		},
	}
}
