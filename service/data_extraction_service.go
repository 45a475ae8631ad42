package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/FAIRDataPipeline/data-registry/graph"
	"github.com/FAIRDataPipeline/data-registry/infrastructure/tracing"
	"github.com/FAIRDataPipeline/data-registry/prov"
)

var ErrNotExtracted = errors.New("data product was not derived from an external object")

// DataExtraction describes the import of a supplement data product from its external source.
type DataExtraction struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	StartTime       string `json:"startTime"`
	Description     string `json:"description"`
	DataProduct     string `json:"data_product"`
	ExternalProduct string `json:"external_product"`
}

// DataExtraction looks up the extraction activity of a data product.
// Products without an external object, or whose external object is primary, yield ErrNotExtracted.
func (s *ReportService) DataExtraction(ctx context.Context, dataProductID uint, requestBase string) (*DataExtraction, error) {
	logger := serviceLogger().With("service", "ReportService", "method", "DataExtraction")
	if dataProductID == 0 {
		return nil, ErrInvalidID
	}

	ctx, span := s.opts.Tracer.Start(ctx, "report."+reportKindExtraction)
	defer span.End()

	base := s.BaseURI(requestBase)
	var result *DataExtraction
	err := s.source.Snapshot(ctx, func(acc graph.Accessor) error {
		dp, err := acc.DataProduct(ctx, dataProductID)
		if err != nil {
			return err
		}
		external, err := acc.ExternalObject(ctx, dp.ID)
		if err != nil {
			return fmt.Errorf("find external object failed: %w", err)
		}
		if external == nil || external.PrimaryNotSupplement {
			return ErrNotExtracted
		}

		result = &DataExtraction{
			ID:              fmt.Sprintf("%sapi/data_extraction/%d", base, dp.ID),
			Name:            fmt.Sprintf("data extraction %d", dp.ID),
			StartTime:       dp.LastUpdated.UTC().Format(time.RFC3339),
			Description:     prov.DataExtractionDescription,
			DataProduct:     fmt.Sprintf("%sapi/data_product/%d", base, dp.ID),
			ExternalProduct: fmt.Sprintf("%sapi/external_object/%d", base, external.ID),
		}
		return nil
	})

	status := statusOf(err)
	if errors.Is(err, ErrNotExtracted) {
		status = buildStatusNotFound
	}
	reportBuilds.WithLabelValues(reportKindExtraction, "json", status).Inc()
	if err != nil {
		if status != buildStatusNotFound {
			tracing.RecordError(span, err)
			logger.Error("find data extraction failed", "data_product_id", dataProductID, "error", err)
		}
		return nil, err
	}
	return result, nil
}
