package service

import (
	"errors"

	"github.com/FAIRDataPipeline/data-registry/config"
	"github.com/FAIRDataPipeline/data-registry/rocrate"
)

// NewFetchers wires every storage scheme a remote registry can bundle from.
// S3 is skipped when no endpoint is configured.
func NewFetchers(cfg *config.Config, remote config.RemoteRegistry) rocrate.Fetchers {
	logger := serviceLogger().With("service", "Fetchers", "method", "NewFetchers")

	httpFetcher := rocrate.NewHTTPFetcher(cfg.Fetch.Timeout, remote.Token, remote.Host)
	sftpFetcher := NewSFTPFetcher(cfg.SFTP)
	fetchers := rocrate.Fetchers{
		"http":  httpFetcher,
		"https": httpFetcher,
		"sftp":  sftpFetcher,
		"ssh":   sftpFetcher,
	}

	s3Fetcher, err := NewS3Fetcher(cfg.S3)
	switch {
	case err == nil:
		fetchers["s3"] = s3Fetcher
	case errors.Is(err, ErrS3NotConfigured):
		logger.Debug("s3 fetcher disabled")
	default:
		logger.Warn("s3 fetcher disabled", "error", err)
	}
	return fetchers
}
