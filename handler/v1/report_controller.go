package v1

import (
	"context"
	"net/http"

	"github.com/FAIRDataPipeline/data-registry/entity"
	"github.com/FAIRDataPipeline/data-registry/render"
	"github.com/FAIRDataPipeline/data-registry/service"

	"github.com/gin-gonic/gin"
)

type ReportController struct {
	reportService *service.ReportService
}

func NewReportController(reportService *service.ReportService) *ReportController {
	return &ReportController{reportService: reportService}
}

type reportFunc func(context.Context, service.ReportRequest) (render.Output, error)

func (c *ReportController) serveReport(ctx *gin.Context, build reportFunc) {
	id, err := parseUintPathParam(ctx, "id")
	if err != nil {
		writeHTTPError(ctx, err)
		return
	}

	// 参数非法时静默回落到默认值，不返回 400
	var params entity.ReportParams
	_ = ctx.ShouldBindQuery(&params)

	out, err := build(ctx.Request.Context(), service.ReportRequest{
		ID:       id,
		Options:  params.Normalize(),
		Accept:   ctx.GetHeader("Accept"),
		BaseURI:  requestBaseURI(ctx),
		CacheKey: requestCacheKey(ctx),
	})
	if err != nil {
		writeHTTPError(ctx, err)
		return
	}
	writeReport(ctx, out)
}

// ProvReport handles GET /api/prov-report/:id
func (c *ReportController) ProvReport(ctx *gin.Context) {
	c.serveReport(ctx, c.reportService.ProvReport)
}

// DataProductCrate handles GET /api/ro-crate/data_product/:id
func (c *ReportController) DataProductCrate(ctx *gin.Context) {
	c.serveReport(ctx, c.reportService.CrateFromDataProduct)
}

// CodeRunCrate handles GET /api/ro-crate/code_run/:id
func (c *ReportController) CodeRunCrate(ctx *gin.Context) {
	c.serveReport(ctx, c.reportService.CrateFromCodeRun)
}

// DataExtraction handles GET /api/data_extraction/:id
func (c *ReportController) DataExtraction(ctx *gin.Context) {
	id, err := parseUintPathParam(ctx, "id")
	if err != nil {
		writeHTTPError(ctx, err)
		return
	}

	result, err := c.reportService.DataExtraction(ctx.Request.Context(), id, requestBaseURI(ctx))
	if err != nil {
		writeHTTPError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// Formats handles GET /api/formats, listing what each report can be served as.
func (c *ReportController) Formats(ctx *gin.Context) {
	renderer := c.reportService.Renderer()
	ctx.JSON(http.StatusOK, gin.H{
		"prov-report": renderer.ProvFormats(),
		"ro-crate":    renderer.CrateFormats(),
	})
}
