// Package fetcher downloads landslide catalogs and raster archives over HTTP.
package fetcher

import (
	"context"
	"io"
)

// Fetcher retrieves remote catalog and raster files.
type Fetcher interface {
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile streams url into path and reports the byte count. The
	// file at path is left untouched when the transfer fails.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)

	// DownloadIfChanged sends etag as If-None-Match. When the server answers
	// 304 the body is nil and changed is false.
	DownloadIfChanged(ctx context.Context, url string, etag string) (body io.ReadCloser, newETag string, changed bool, err error)
}
