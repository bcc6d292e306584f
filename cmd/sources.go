package cmd

import (
	"fmt"
	"os"
	"sort"

	"rigger/internal/source"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Inspect and combine inventory source documents",
}

var sourcesMergeCmd = &cobra.Command{
	Use:   "merge <file> [file...]",
	Short: "Merge inventory documents and print the result as YAML",
	Long: `Merge folds the given inventory documents together left to right
using the same semantics the plugin applies to relationship contributions:
host entries from later documents overwrite same-named entries, and merging
a document twice changes nothing.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		merged := source.NewDocument()
		for _, path := range args {
			doc, err := readDocument(path)
			if err != nil {
				return err
			}
			merged.Merge(doc)
		}
		data, err := merged.Marshal()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var sourcesShowCmd = &cobra.Command{
	Use:   "show <file>",
	Short: "Render an inventory document as a host table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := readDocument(args[0])
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(cmd.OutOrStdout())
		t.AppendHeader(table.Row{"Group", "Host", "Address", "User"})
		for _, groupName := range doc.GroupNames() {
			group := doc[groupName]
			if group == nil {
				continue
			}
			hostnames := make([]string, 0, len(group.Hosts))
			for hostname := range group.Hosts {
				hostnames = append(hostnames, hostname)
			}
			sort.Strings(hostnames)
			for _, hostname := range hostnames {
				vars := group.Hosts[hostname]
				t.AppendRow(table.Row{
					groupName,
					hostname,
					stringVar(vars, source.VarHost),
					stringVar(vars, source.VarUser),
				})
			}
		}
		t.SetStyle(table.StyleLight)
		t.Render()
		return nil
	},
}

func init() {
	sourcesCmd.AddCommand(sourcesMergeCmd)
	sourcesCmd.AddCommand(sourcesShowCmd)
	rootCmd.AddCommand(sourcesCmd)
}

func readDocument(path string) (source.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	doc, err := source.ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

func stringVar(vars source.Vars, key string) string {
	if vars == nil {
		return "-"
	}
	value, ok := vars[key]
	if !ok || value == nil {
		return "-"
	}
	return fmt.Sprintf("%v", value)
}
