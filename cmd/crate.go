package cmd

import (
	"github.com/FAIRDataPipeline/data-registry/render"

	"github.com/spf13/cobra"
)

var crateFlags reportFlags

var crateCmd = &cobra.Command{
	Use:   "crate",
	Short: "Write an RO-Crate of a data product or code run",
}

var crateDataProductCmd = &cobra.Command{
	Use:   "data-product <id>",
	Short: "RO-Crate centred on a data product",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCrate(cmd, args[0], false)
	},
}

var crateCodeRunCmd = &cobra.Command{
	Use:   "code-run <id>",
	Short: "RO-Crate centred on a code run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCrate(cmd, args[0], true)
	},
}

func runCrate(cmd *cobra.Command, rawID string, codeRun bool) error {
	req, err := crateFlags.request(rawID)
	if err != nil {
		return err
	}

	a, cleanup, err := newApp()
	if err != nil {
		return err
	}
	defer cleanup()

	build := a.reports.CrateFromDataProduct
	if codeRun {
		build = a.reports.CrateFromCodeRun
	}
	out, err := build(cmd.Context(), req)
	if err != nil {
		return err
	}
	return crateFlags.write(cmd, out)
}

func init() {
	crateFlags.bind(crateCmd, render.FormatZip, true)
	crateCmd.AddCommand(crateDataProductCmd, crateCodeRunCmd)
	rootCmd.AddCommand(crateCmd)
}
