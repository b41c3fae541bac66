package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"fincore/internal/codegen"
)

func newGenCmd(opts *rootOptions) *cobra.Command {
	var (
		out string
		pkg string
	)
	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate a typed Go client for the registered standard models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer opts.close()
			a, _, err := opts.buildApp(cmd)
			if err != nil {
				return err
			}
			src, err := codegen.Generate(a.Interface(), codegen.Options{Package: pkg})
			if err != nil {
				return err
			}
			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write(src)
				return err
			}
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(out, src, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "Output file (default stdout)")
	cmd.Flags().StringVar(&pkg, "package", codegen.DefaultPackage, "Package name of the generated file")
	return cmd
}
