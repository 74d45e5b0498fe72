package fetcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// etagSuffix names the sidecar file that remembers the last ETag for a
// download.
const etagSuffix = ".etag"

// SyncResult describes the outcome of Sync.
type SyncResult struct {
	Path      string   `json:"path"`
	Changed   bool     `json:"changed"`
	Bytes     int64    `json:"bytes"`
	ETag      string   `json:"etag,omitempty"`
	Extracted []string `json:"extracted,omitempty"`
}

// Sync downloads rawURL to dest unless the server reports the copy from the
// previous sync is current. ZIP downloads are unpacked next to dest.
func Sync(ctx context.Context, f Fetcher, rawURL, dest string) (*SyncResult, error) {
	log := zap.L().With(zap.String("component", "fetcher.sync"), zap.String("url", rawURL))

	var etag string
	if _, err := os.Stat(dest); err == nil {
		if b, err := os.ReadFile(dest + etagSuffix); err == nil {
			etag = strings.TrimSpace(string(b))
		}
	}

	body, newETag, changed, err := f.DownloadIfChanged(ctx, rawURL, etag)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: sync %s", rawURL)
	}
	res := &SyncResult{Path: dest, Changed: changed, ETag: newETag}
	if !changed {
		log.Info("remote unchanged, keeping local copy", zap.String("path", dest))
		return res, nil
	}
	defer body.Close() //nolint:errcheck

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, eris.Wrapf(err, "fetcher: create directory for %s", dest)
	}
	if res.Bytes, err = writeAtomic(dest, body); err != nil {
		return nil, eris.Wrapf(err, "fetcher: write %s", dest)
	}

	if newETag != "" {
		if err := os.WriteFile(dest+etagSuffix, []byte(newETag+"\n"), 0o644); err != nil {
			return nil, eris.Wrapf(err, "fetcher: write etag for %s", dest)
		}
	} else {
		_ = os.Remove(dest + etagSuffix)
	}

	if strings.EqualFold(filepath.Ext(dest), ".zip") {
		res.Extracted, err = ExtractZIP(dest, filepath.Dir(dest))
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: unpack %s", dest)
		}
	}

	log.Info("downloaded",
		zap.String("path", dest),
		zap.Int64("bytes", res.Bytes),
		zap.Int("extracted", len(res.Extracted)),
	)
	return res, nil
}
