package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/FAIRDataPipeline/data-registry/entity"
	"github.com/FAIRDataPipeline/data-registry/render"
	"github.com/FAIRDataPipeline/data-registry/service"

	"github.com/spf13/cobra"
)

// reportFlags are shared by prov and crate.
type reportFlags struct {
	params  entity.ReportParams
	output  string
	baseURI string
}

func (f *reportFlags) bind(cmd *cobra.Command, defaultFormat string, persistent bool) {
	flags := cmd.Flags()
	if persistent {
		flags = cmd.PersistentFlags()
	}
	flags.StringVarP(&f.params.Depth, "depth", "d", strconv.Itoa(entity.DefaultReportDepth), "levels of provenance to include")
	flags.StringVarP(&f.params.Format, "format", "f", defaultFormat, "output format")
	flags.StringVarP(&f.output, "output", "o", "", "write to file instead of stdout")
	flags.StringVar(&f.baseURI, "base-uri", "", "registry address ids are built from (default: server.public_base_url)")
}

func (f *reportFlags) request(rawID string) (service.ReportRequest, error) {
	id, err := strconv.ParseUint(rawID, 10, 64)
	if err != nil || id == 0 {
		return service.ReportRequest{}, fmt.Errorf("%w: %s", service.ErrInvalidID, rawID)
	}
	return service.ReportRequest{
		ID:      uint(id),
		Options: f.params.Normalize(),
		BaseURI: f.baseURI,
	}, nil
}

// write sends out to --output, to its download name for binary formats, or to stdout.
func (f *reportFlags) write(cmd *cobra.Command, out render.Output) error {
	path := f.output
	if path == "" && out.FileName != "" {
		path = out.FileName
	}
	if path == "" || path == "-" {
		_, err := cmd.OutOrStdout().Write(out.Body)
		return err
	}

	if err := os.WriteFile(path, out.Body, 0o644); err != nil {
		return fmt.Errorf("write output file failed: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d bytes)\n", path, len(out.Body))
	return nil
}
