package v1

import (
	"net/http"

	"github.com/FAIRDataPipeline/data-registry/entity"
	"github.com/FAIRDataPipeline/data-registry/service"

	"github.com/gin-gonic/gin"
)

type DataProductController struct {
	dataProductService *service.DataProductService
}

func NewDataProductController(dataProductService *service.DataProductService) *DataProductController {
	return &DataProductController{dataProductService: dataProductService}
}

// GetAllDataProducts handles GET /api/data_product
func (c *DataProductController) GetAllDataProducts(ctx *gin.Context) {
	var params entity.QueryParams
	if err := ctx.ShouldBindQuery(&params); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := c.dataProductService.GetAllDataProducts(ctx.Request.Context(), params, requestBaseURI(ctx))
	if err != nil {
		writeHTTPError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, result)
}

// GetDataProduct handles GET /api/data_product/:id
func (c *DataProductController) GetDataProduct(ctx *gin.Context) {
	id, err := parseUintPathParam(ctx, "id")
	if err != nil {
		writeHTTPError(ctx, err)
		return
	}

	result, err := c.dataProductService.GetDataProduct(ctx.Request.Context(), id, requestBaseURI(ctx))
	if err != nil {
		writeHTTPError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, result)
}
