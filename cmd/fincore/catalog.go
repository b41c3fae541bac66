package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"fincore/internal/pkg/jsonutil"
)

func newCatalogCmd(opts *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "catalog [standard]",
		Short: "Describe the standard models and their providers",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer opts.close()
			a, _, err := opts.buildApp(cmd)
			if err != nil {
				return err
			}
			var v any = a.Interface().Catalog()
			if len(args) == 1 {
				entry, err := a.Interface().CatalogEntry(args[0])
				if err != nil {
					return err
				}
				v = entry
			}
			return writeFormatted(cmd.OutOrStdout(), v, format)
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "Output format (json|yaml)")
	return cmd
}

// writeFormatted prints v as indented JSON or as YAML with the JSON field
// names.
func writeFormatted(w io.Writer, v any, format string) error {
	raw, err := jsonutil.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	switch format {
	case "json", "":
		_, err = fmt.Fprintln(w, string(raw))
		return err
	case "yaml", "yml":
		var node yaml.Node
		if err := yaml.Unmarshal(raw, &node); err != nil {
			return err
		}
		clearStyle(&node)
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(&node); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format %q (json|yaml)", format)
	}
}

// clearStyle drops the flow style JSON input leaves on every node.
func clearStyle(n *yaml.Node) {
	n.Style &^= yaml.FlowStyle
	if n.Kind == yaml.ScalarNode && n.Style&yaml.DoubleQuotedStyle != 0 && n.Tag == "!!str" {
		n.Style &^= yaml.DoubleQuotedStyle
	}
	for _, c := range n.Content {
		clearStyle(c)
	}
}
