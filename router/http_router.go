package router

import (
	v1 "github.com/FAIRDataPipeline/data-registry/handler/v1"
	"github.com/FAIRDataPipeline/data-registry/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRouter(reportService *service.ReportService, dataProductService *service.DataProductService) *gin.Engine {
	reportController := v1.NewReportController(reportService)
	dataProductController := v1.NewDataProductController(dataProductService)

	r := gin.Default()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	{
		api.GET("/prov-report/:id", reportController.ProvReport)
		api.GET("/data_extraction/:id", reportController.DataExtraction)
		api.GET("/formats", reportController.Formats)

		products := api.Group("/data_product")
		{
			products.GET("", dataProductController.GetAllDataProducts)
			products.GET("/:id", dataProductController.GetDataProduct)
		}

		crates := api.Group("/ro-crate")
		{
			crates.GET("/data_product/:id", reportController.DataProductCrate)
			crates.GET("/code_run/:id", reportController.CodeRunCrate)
		}
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
