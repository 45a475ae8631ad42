package v1

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/FAIRDataPipeline/data-registry/config"
	"github.com/FAIRDataPipeline/data-registry/graph"
	"github.com/FAIRDataPipeline/data-registry/render"
	"github.com/FAIRDataPipeline/data-registry/service"

	"github.com/gin-gonic/gin"
)

var errInvalidPathID = errors.New("invalid id")

func handlerLogger() *slog.Logger {
	logger := config.EnsureLoggerInitialized()
	if logger == nil {
		return slog.Default().With("layer", "handler")
	}
	return logger.With("layer", "handler")
}

func writeHTTPError(ctx *gin.Context, err error) {
	logger := handlerLogger().With(
		"method", ctx.Request.Method,
		"path", ctx.FullPath(),
	)

	switch {
	case errors.Is(err, errInvalidPathID), errors.Is(err, service.ErrInvalidID):
		logger.Warn("request failed", "status", http.StatusBadRequest, "error", err)
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, graph.ErrNotFound):
		logger.Warn("request failed", "status", http.StatusNotFound, "error", err)
		ctx.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
	case errors.Is(err, service.ErrNotExtracted):
		logger.Warn("request failed", "status", http.StatusNotFound, "error", err)
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, render.ErrUnsupportedFormat):
		logger.Warn("request failed", "status", http.StatusNotAcceptable, "error", err)
		ctx.JSON(http.StatusNotAcceptable, gin.H{"error": err.Error()})
	default:
		logger.Error("request failed", "status", http.StatusInternalServerError, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func parseUintPathParam(ctx *gin.Context, key string) (uint, error) {
	raw := strings.TrimSpace(ctx.Param(key))
	if raw == "" {
		return 0, fmt.Errorf("%w: %s is required", errInvalidPathID, key)
	}

	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || value == 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", errInvalidPathID, key)
	}
	return uint(value), nil
}

// requestBaseURI 根据请求还原站点根地址，例如 http://localhost:8000/
func requestBaseURI(ctx *gin.Context) string {
	host := strings.TrimSpace(ctx.Request.Host)
	if host == "" {
		return ""
	}
	scheme := "http"
	if ctx.Request.TLS != nil {
		scheme = "https"
	}
	if forwarded := strings.TrimSpace(ctx.GetHeader("X-Forwarded-Proto")); forwarded != "" {
		scheme = strings.ToLower(strings.Split(forwarded, ",")[0])
	}
	return scheme + "://" + host + "/"
}

// requestCacheKey is the absolute request URL including the query string.
func requestCacheKey(ctx *gin.Context) string {
	base := requestBaseURI(ctx)
	if base == "" {
		return ""
	}
	return strings.TrimSuffix(base, "/") + ctx.Request.URL.RequestURI()
}

func writeReport(ctx *gin.Context, out render.Output) {
	if out.FileName != "" {
		ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", out.FileName))
	}
	ctx.Data(http.StatusOK, out.ContentType, out.Body)
}
