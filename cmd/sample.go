package main

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/landslide-cli/internal/model"
	"github.com/sells-group/landslide-cli/internal/pipeline"
)

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Draw pseudo-absence points without joining rasters",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := applyBuildFlags(cmd, cfg); err != nil {
			return err
		}
		if err := cfg.Region.Validate(); err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("format")
		if err := checkFormat(format); err != nil {
			return err
		}

		positives, err := loadCatalog(cfg)
		if err != nil {
			return err
		}

		res, err := pipeline.SampleNegatives(cfg, positives, cfg.Sampling.Target)
		if err != nil {
			return eris.Wrap(err, "sample")
		}
		zap.L().Info("sampled pseudo-absences",
			zap.Int("points", len(res.Points)),
			zap.Int("candidates", res.Candidates),
			zap.Int("rejected", res.Rejected),
			zap.Int("batches", res.Batches),
		)

		if path, _ := cmd.Flags().GetString("out"); path != "" {
			return writePointsFile(path, format, res.Points)
		}
		return writePoints(os.Stdout, format, res.Points)
	},
}

func init() {
	addSamplingFlags(sampleCmd)
	f := sampleCmd.Flags()
	f.String("format", "csv", "output format (csv, json)")
	f.String("out", "", "write to this file instead of stdout")
	rootCmd.AddCommand(sampleCmd)
}

func checkFormat(format string) error {
	switch format {
	case "csv", "json", "":
		return nil
	}
	return eris.Errorf("sample: unknown format %q", format)
}

// writePointsFile writes points to path. An unknown format fails before the
// file is created.
func writePointsFile(path, format string, points []model.GeoPoint) error {
	if err := checkFormat(format); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "sample: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	if err := writePoints(f, format, points); err != nil {
		return err
	}
	return eris.Wrapf(f.Close(), "sample: close %s", path)
}

// writePoints renders points as CSV (latitude,longitude) or a JSON array.
func writePoints(out io.Writer, format string, points []model.GeoPoint) error {
	switch format {
	case "json":
		type point struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		}
		list := make([]point, len(points))
		for i, p := range points {
			list[i] = point{Latitude: p.Latitude, Longitude: p.Longitude}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	case "csv", "":
		w := csv.NewWriter(out)
		_ = w.Write([]string{"latitude", "longitude"})
		for _, p := range points {
			_ = w.Write([]string{
				strconv.FormatFloat(p.Latitude, 'g', -1, 64),
				strconv.FormatFloat(p.Longitude, 'g', -1, 64),
			})
		}
		w.Flush()
		return eris.Wrap(w.Error(), "sample: write csv")
	}
	return checkFormat(format)
}
