package cmd

import (
	"github.com/FAIRDataPipeline/data-registry/render"

	"github.com/spf13/cobra"
)

var provFlags reportFlags

var provCmd = &cobra.Command{
	Use:   "prov <data-product-id>",
	Short: "Write the provenance report of a data product",
	Long: `Write the W3C PROV report of a data product.

Examples:
  data-registry prov 3
  data-registry prov 3 --depth 2 --format provn
  data-registry prov 3 -f svg -o d3.svg --aspect-ratio 1 --dpi 150`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := provFlags.request(args[0])
		if err != nil {
			return err
		}

		a, cleanup, err := newApp()
		if err != nil {
			return err
		}
		defer cleanup()

		out, err := a.reports.ProvReport(cmd.Context(), req)
		if err != nil {
			return err
		}
		return provFlags.write(cmd, out)
	},
}

func init() {
	provFlags.bind(provCmd, render.FormatJSON, false)
	provCmd.Flags().StringVar(&provFlags.params.Attributes, "attributes", "true", "show attributes in image formats")
	provCmd.Flags().StringVar(&provFlags.params.AspectRatio, "aspect-ratio", "", "image aspect ratio")
	provCmd.Flags().StringVar(&provFlags.params.DPI, "dpi", "", "image resolution")
	rootCmd.AddCommand(provCmd)
}
