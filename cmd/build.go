package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/landslide-cli/internal/catalog"
	"github.com/sells-group/landslide-cli/internal/config"
	"github.com/sells-group/landslide-cli/internal/model"
	"github.com/sells-group/landslide-cli/internal/pipeline"
	"github.com/sells-group/landslide-cli/internal/raster/gdalraster"
	"github.com/sells-group/landslide-cli/internal/store"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the labelled landslide dataset",
	Long:  "Loads the landslide catalog, samples pseudo-absence points, joins the configured rasters and writes the dataset as CSV (and optionally a shapefile).",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := applyBuildFlags(cmd, cfg); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		positives, err := loadCatalog(cfg)
		if err != nil {
			return err
		}

		layers, err := gdalraster.OpenAll(layerSources(cfg))
		if err != nil {
			return err
		}

		var st store.Store
		if noStore, _ := cmd.Flags().GetBool("no-store"); !noStore {
			st, err = initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
		}

		p, err := pipeline.New(cfg, st, layers)
		if err != nil {
			return err
		}
		res, err := p.Run(ctx, positives)
		if err != nil {
			return eris.Wrap(err, "build")
		}

		formatBuildSummary(os.Stdout, res)
		return nil
	},
}

func init() {
	addSamplingFlags(buildCmd)
	f := buildCmd.Flags()
	f.String("output", "", "dataset CSV path; overrides output.csv")
	f.String("shapefile", "", "also write a point shapefile here; overrides output.shapefile")
	f.Int("concurrency", 0, "raster join workers; overrides join.concurrency")
	f.Bool("no-store", false, "do not record the run in the store")
	rootCmd.AddCommand(buildCmd)
}

// addSamplingFlags registers the catalog and sampler overrides shared by
// build and sample.
func addSamplingFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("catalog", "", "landslide catalog (.csv or .shp); overrides catalog.path")
	f.String("country", "", "keep catalog rows for this country; overrides catalog.country")
	f.Uint64("seed", 0, "sampler seed; overrides sampling.seed")
	f.Float64("min-distance", 0, "exclusion distance in meters; overrides sampling.min_distance")
	f.Int("target", 0, "pseudo-absence count, 0 matches the landslide count; overrides sampling.target")
	f.String("oracle", "", "distance oracle (indexed, linear); overrides sampling.oracle")
}

// applyBuildFlags copies explicitly set flags over the loaded config.
func applyBuildFlags(cmd *cobra.Command, c *config.Config) error {
	f := cmd.Flags()
	var err error
	if f.Changed("catalog") {
		c.Catalog.Path, err = f.GetString("catalog")
	}
	if err == nil && f.Changed("output") {
		c.Output.CSV, err = f.GetString("output")
	}
	if err == nil && f.Changed("shapefile") {
		c.Output.Shapefile, err = f.GetString("shapefile")
	}
	if err == nil && f.Changed("country") {
		c.Catalog.Country, err = f.GetString("country")
	}
	if err == nil && f.Changed("seed") {
		c.Sampling.Seed, err = f.GetUint64("seed")
	}
	if err == nil && f.Changed("min-distance") {
		c.Sampling.MinDistance, err = f.GetFloat64("min-distance")
	}
	if err == nil && f.Changed("target") {
		c.Sampling.Target, err = f.GetInt("target")
	}
	if err == nil && f.Changed("oracle") {
		c.Sampling.Oracle, err = f.GetString("oracle")
	}
	if err == nil && f.Changed("concurrency") {
		c.Join.Concurrency, err = f.GetInt("concurrency")
	}
	return eris.Wrap(err, "read flags")
}

// loadCatalog reads the configured inventory, keeping points in the region.
func loadCatalog(c *config.Config) ([]model.LandslideRecord, error) {
	if c.Catalog.Path == "" {
		return nil, eris.New("catalog path is required (--catalog or catalog.path)")
	}
	region := c.Region
	recs, stats, err := catalog.Load(c.Catalog.Path, catalog.Options{
		Country:  c.Catalog.Country,
		Region:   &region,
		Encoding: c.Catalog.Encoding,
	})
	if err != nil {
		return nil, err
	}
	zap.L().Info("catalog loaded",
		zap.String("path", c.Catalog.Path),
		zap.Int("read", stats.Read),
		zap.Int("loaded", stats.Loaded),
	)
	return recs, nil
}

// layerSources lists the rasters the configured features use.
func layerSources(c *config.Config) []gdalraster.Source {
	used := make(map[string]bool, len(c.Features))
	for _, f := range c.Features {
		used[f.Layer] = true
	}
	var out []gdalraster.Source
	for _, l := range c.Layers {
		if used[l.Name] {
			out = append(out, gdalraster.Source{Name: l.Name, Path: l.Path, Band: l.Band})
		}
	}
	return out
}

// formatBuildSummary writes the counts of a finished build to w.
func formatBuildSummary(out io.Writer, res *pipeline.Result) {
	s := res.Summary
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if res.RunID != "" {
		_, _ = fmt.Fprintf(w, "Run:\t%s\n", res.RunID)
	}
	_, _ = fmt.Fprintf(w, "Rows:\t%d\n", s.Rows)
	_, _ = fmt.Fprintf(w, "  Landslides:\t%d (dropped %d)\n", s.Positives, s.DroppedPositives)
	_, _ = fmt.Fprintf(w, "  Pseudo-absences:\t%d (dropped %d)\n", s.Negatives, s.DroppedNegatives)
	_, _ = fmt.Fprintf(w, "Candidates drawn:\t%d in %d batches\n", s.Candidates, s.Batches)
	_, _ = fmt.Fprintf(w, "CSV:\t%s\n", s.OutputPath)
	if s.ShapefilePath != "" {
		_, _ = fmt.Fprintf(w, "Shapefile:\t%s\n", s.ShapefilePath)
	}
	if res.Dataset != nil {
		for _, st := range res.Dataset.Summary().Features {
			_, _ = fmt.Fprintf(w, "%s:\tmin %.4g\tmax %.4g\tmean %.4g\n", st.Feature, st.Min, st.Max, st.Mean)
		}
	}
	_ = w.Flush()
}
