package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/landslide-cli/internal/config"
	"github.com/sells-group/landslide-cli/internal/fetcher"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the landslide catalog",
	Long:  "Downloads the catalog from --url (or catalog.url) to --out (or catalog.path). Unchanged remote files are not downloaded again; ZIP archives are unpacked next to the download.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rawURL, _ := cmd.Flags().GetString("url")
		if rawURL == "" {
			rawURL = cfg.Catalog.URL
		}
		if rawURL == "" {
			return eris.New("fetch: --url or catalog.url is required")
		}
		dest, _ := cmd.Flags().GetString("out")
		if dest == "" {
			dest = defaultFetchDest(cfg, rawURL)
		}

		res, err := fetcher.Sync(cmd.Context(), newFetcher(cfg.Fetch), rawURL, dest)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	fetchCmd.Flags().String("url", "", "catalog URL; overrides catalog.url")
	fetchCmd.Flags().String("out", "", "destination file; defaults to catalog.path")
	rootCmd.AddCommand(fetchCmd)
}

func newFetcher(fc config.FetchConfig) *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:   fc.UserAgent,
		Timeout:     time.Duration(fc.TimeoutSecs) * time.Second,
		MaxRetries:  fc.MaxRetries,
		RatePerHost: fc.RatePerHost,
		Burst:       fc.Burst,
	})
}

// defaultFetchDest keeps archives beside the catalog under their own name so
// the unpacked catalog lands at catalog.path.
func defaultFetchDest(c *config.Config, rawURL string) string {
	if filepath.Ext(rawURL) == ".zip" && c.Catalog.Path != "" {
		return filepath.Join(filepath.Dir(c.Catalog.Path), filepath.Base(rawURL))
	}
	return c.Catalog.Path
}
