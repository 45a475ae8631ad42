package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/FAIRDataPipeline/data-registry/config"
	"github.com/FAIRDataPipeline/data-registry/entity"
	"github.com/FAIRDataPipeline/data-registry/graph"
	"github.com/FAIRDataPipeline/data-registry/infrastructure/tracing"
	"github.com/FAIRDataPipeline/data-registry/prov"
	"github.com/FAIRDataPipeline/data-registry/render"
	"github.com/FAIRDataPipeline/data-registry/rocrate"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

var ErrInvalidID = errors.New("invalid id")

// ReportRequest describes one report as asked for over HTTP or the CLI.
type ReportRequest struct {
	ID      uint
	Options entity.ReportOptions
	Accept  string
	// BaseURI is the absolute root the request reached, e.g. "http://localhost:8000/".
	BaseURI string
	// CacheKey is usually the full request URL. Empty skips the cache.
	CacheKey string
}

type ReportServiceOptions struct {
	CentralRegistryURL string
	PublicBaseURL      string
	Remote             config.RemoteRegistry
	Fetchers           rocrate.Fetchers
	TempDir            string
	// Cache is only consulted when Remote is enabled.
	Cache  ReportCache
	Tracer trace.Tracer
	Clock  func() time.Time
}

// ReportService builds provenance reports and RO-Crates against a graph source.
type ReportService struct {
	source   graph.Source
	renderer *render.Renderer
	opts     ReportServiceOptions
}

func NewReportService(source graph.Source, renderer *render.Renderer, opts ReportServiceOptions) *ReportService {
	if renderer == nil {
		renderer = render.New()
	}
	if opts.Tracer == nil {
		opts.Tracer = noop.NewTracerProvider().Tracer("noop")
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if strings.TrimSpace(opts.CentralRegistryURL) == "" {
		opts.CentralRegistryURL = config.DefaultCentralRegistryURL
	}
	if strings.TrimSpace(opts.PublicBaseURL) == "" {
		opts.PublicBaseURL = config.DefaultPublicBaseURL
	}
	return &ReportService{source: source, renderer: renderer, opts: opts}
}

// NewReportServiceFromConfig reads the remote-registry file and wires fetchers and cache from cfg.
func NewReportServiceFromConfig(cfg *config.Config, source graph.Source, redisClient *redis.Client, tracer trace.Tracer) (*ReportService, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	remote, err := config.LoadRemoteRegistry(cfg.Registry.RemoteConfig)
	if err != nil {
		return nil, fmt.Errorf("load remote registry failed: %w", err)
	}

	opts := ReportServiceOptions{
		CentralRegistryURL: cfg.Registry.CentralRegistryURL,
		PublicBaseURL:      cfg.Server.PublicBaseURL,
		Remote:             remote,
		TempDir:            cfg.Fetch.TempDir,
		Tracer:             tracer,
	}
	if remote.Enabled {
		opts.Fetchers = NewFetchers(cfg, remote)
		opts.Cache = NewReportCache(cfg.Cache, redisClient)
	}

	serviceLogger().Info(
		"report service ready",
		"remote", remote.Enabled,
		"central_registry", opts.CentralRegistryURL,
		"cache", opts.Cache != nil,
	)
	return NewReportService(source, render.New(), opts), nil
}

// Renderer exposes the format list to callers that advertise it.
func (s *ReportService) Renderer() *render.Renderer {
	return s.renderer
}

// BaseURI picks the registry address ids are minted from: the request's own root,
// then the remote-registry host, then the configured public URL.
func (s *ReportService) BaseURI(requestBase string) string {
	for _, candidate := range []string{requestBase, s.opts.Remote.Host, s.opts.PublicBaseURL} {
		if strings.TrimSpace(candidate) != "" {
			return prov.WithTrailingSlash(candidate)
		}
	}
	return config.DefaultPublicBaseURL
}

func (s *ReportService) provOptions(base string) prov.Options {
	return prov.Options{
		BaseURI:            s.BaseURI(base),
		CentralRegistryURI: s.opts.CentralRegistryURL,
	}
}

func (s *ReportService) crateOptions(base string) rocrate.Options {
	return rocrate.Options{
		BaseURI:            s.BaseURI(base),
		CentralRegistryURI: s.opts.CentralRegistryURL,
		Remote:             s.opts.Remote.Enabled,
		Fetchers:           s.opts.Fetchers,
		TempDir:            s.opts.TempDir,
		Clock:              s.opts.Clock,
		Logger:             config.EnsureLoggerInitialized(),
	}
}

func (s *ReportService) cache() ReportCache {
	if !s.opts.Remote.Enabled {
		return nil
	}
	return s.opts.Cache
}

// ProvReport renders the provenance document of a data product.
func (s *ReportService) ProvReport(ctx context.Context, req ReportRequest) (render.Output, error) {
	format, err := s.negotiate(reportKindProv, req, s.renderer.ProvFormats())
	if err != nil {
		return render.Output{}, err
	}
	return s.serve(ctx, reportKindProv, format, req, func(ctx context.Context) (render.Output, error) {
		doc, err := prov.Build(ctx, s.source, req.ID, req.Options.Depth, s.provOptions(req.BaseURI))
		if err != nil {
			return render.Output{}, err
		}
		return s.renderer.Prov(ctx, doc, format, req.Options)
	})
}

// CrateFromDataProduct renders an RO-Crate centred on a data product.
func (s *ReportService) CrateFromDataProduct(ctx context.Context, req ReportRequest) (render.Output, error) {
	format, err := s.negotiate(reportKindCrateDP, req, s.renderer.CrateFormats())
	if err != nil {
		return render.Output{}, err
	}
	return s.serve(ctx, reportKindCrateDP, format, req, func(ctx context.Context) (render.Output, error) {
		crate, err := rocrate.FromDataProduct(ctx, s.source, req.ID, req.Options.Depth, s.crateOptions(req.BaseURI))
		if err != nil {
			return render.Output{}, err
		}
		return s.renderCrate(crate, format)
	})
}

// CrateFromCodeRun renders an RO-Crate centred on a code run.
func (s *ReportService) CrateFromCodeRun(ctx context.Context, req ReportRequest) (render.Output, error) {
	format, err := s.negotiate(reportKindCrateRun, req, s.renderer.CrateFormats())
	if err != nil {
		return render.Output{}, err
	}
	return s.serve(ctx, reportKindCrateRun, format, req, func(ctx context.Context) (render.Output, error) {
		crate, err := rocrate.FromCodeRun(ctx, s.source, req.ID, req.Options.Depth, s.crateOptions(req.BaseURI))
		if err != nil {
			return render.Output{}, err
		}
		return s.renderCrate(crate, format)
	})
}

func (s *ReportService) renderCrate(crate *rocrate.Crate, format string) (render.Output, error) {
	defer func() {
		if err := crate.Close(); err != nil {
			serviceLogger().Warn("remove crate temp files failed", "error", err)
		}
	}()
	if failures := crate.FetchFailures(); failures > 0 {
		remoteFetchFailures.Add(float64(failures))
	}
	return s.renderer.Crate(crate, format)
}

func (s *ReportService) negotiate(kind string, req ReportRequest, supported []string) (string, error) {
	if req.ID == 0 {
		return "", ErrInvalidID
	}
	format, err := render.Negotiate(req.Options.Format, req.Accept, supported)
	if err != nil {
		reportBuilds.WithLabelValues(kind, req.Options.Format, buildStatusBadFormat).Inc()
		serviceLogger().With("service", "ReportService", "method", "negotiate").Warn(
			"format rejected",
			"kind", kind,
			"format", req.Options.Format,
			"accept", req.Accept,
		)
		return "", err
	}
	return format, nil
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return buildStatusOK
	case errors.Is(err, graph.ErrNotFound):
		return buildStatusNotFound
	case errors.Is(err, render.ErrUnsupportedFormat):
		return buildStatusBadFormat
	default:
		return buildStatusError
	}
}

// serve wraps one build with the cache, a span, metrics and a log line.
func (s *ReportService) serve(ctx context.Context, kind, format string, req ReportRequest, build func(context.Context) (render.Output, error)) (render.Output, error) {
	logger := serviceLogger().With("service", "ReportService", "method", kind)
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := s.opts.Tracer.Start(ctx, "report."+kind, trace.WithAttributes(
		attribute.Int64("report.id", int64(req.ID)),
		attribute.String("report.format", format),
		attribute.Int("report.depth", req.Options.Depth),
	))
	defer span.End()

	cache := s.cache()
	cacheKey := ""
	if cache != nil && req.CacheKey != "" {
		cacheKey = kind + ":" + format + ":" + req.CacheKey
		out, err := cache.Get(ctx, cacheKey)
		if err == nil {
			reportCacheHits.WithLabelValues(kind).Inc()
			span.SetAttributes(attribute.Bool("report.cached", true))
			logger.Debug("served from cache", "id", req.ID, "format", format)
			return out, nil
		}
		if !errors.Is(err, ErrReportCacheMiss) {
			logger.Warn("read report cache failed", "error", err)
		}
	}

	start := time.Now()
	out, err := build(ctx)
	elapsed := time.Since(start)
	reportBuildDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
	reportBuilds.WithLabelValues(kind, format, statusOf(err)).Inc()

	if err != nil {
		tracing.RecordError(span, err)
		if errors.Is(err, graph.ErrNotFound) {
			logger.Warn("build report failed: not found", "id", req.ID)
		} else {
			logger.Error("build report failed", "id", req.ID, "format", format, "error", err)
		}
		return render.Output{}, err
	}

	if cacheKey != "" {
		if err := cache.Set(ctx, cacheKey, out); err != nil {
			logger.Warn("write report cache failed", "error", err)
		}
	}
	logger.Info(
		"build report success",
		"id", req.ID,
		"format", format,
		"depth", req.Options.Depth,
		"bytes", len(out.Body),
		"cost_ms", elapsed.Milliseconds(),
	)
	return out, nil
}
