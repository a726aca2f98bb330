package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/couchcryptid/lightning-data-service/internal/adapter/fmi"
	"github.com/couchcryptid/lightning-data-service/internal/domain"
	"github.com/couchcryptid/lightning-data-service/internal/observability"
	"github.com/couchcryptid/lightning-data-service/internal/pipeline"
	"github.com/spf13/cobra"
)

type fetchOptions struct {
	start  string
	end    string
	bbox   string
	crs    string
	format string
	lines  int
	store  bool
	output string
}

func newFetchCmd(global *globalOptions) *cobra.Command {
	opts := &fetchOptions{}

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Run one query and print the observations.",
		Long: `fetch runs a single query over [--start, --end] (layout 2006-01-02T15:04:05).
Windows longer than 168h are clamped to 12h from the start; reversed windows
are rebased to the 6h leading up to the end. Without bounds the last 6h are
queried.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := global.load()
			if err != nil {
				return err
			}
			store := opts.store || (!cmd.Flags().Changed("store") && cfg.StoreEnabled)

			sinks, err := openSinks(cmd.Context(), cfg, store, logger)
			if err != nil {
				return err
			}
			defer sinks.Close(logger)

			metrics := observability.NewMetrics()
			client := fmi.NewClient(cfg.FMIBaseURL, cfg.FetchTimeout, metrics, logger)
			p := pipeline.New(client, sinks.sinks, pipelineOptions(cfg), logger, metrics)

			logger.Debug("fetching", "sinks", describeSinks(sinks.sinks))
			res, err := p.Run(cmd.Context(), pipeline.Request{
				Start:   opts.start,
				End:     opts.end,
				BBox:    opts.bbox,
				CRS:     opts.crs,
				Format:  domain.ParseFormat(opts.format),
				Limit:   opts.lines,
				Persist: len(sinks.sinks) > 0,
			})
			if err != nil {
				return err
			}
			return writeRendered(cmd.OutOrStdout(), opts.output, res.Output)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.start, "start", "", "window start, e.g. 2024-06-01T12:00:00")
	f.StringVar(&opts.end, "end", "", "window end, e.g. 2024-06-01T18:00:00")
	f.StringVar(&opts.bbox, "bbox", "", "minLon,minLat,maxLon,maxLat (default from config)")
	f.StringVar(&opts.crs, "crs", "", "bounding box CRS, e.g. EPSG::4326")
	f.StringVarP(&opts.format, "format", "f", string(domain.FormatArray), "output format: array, csv or json")
	f.IntVarP(&opts.lines, "lines", "n", 0, "print at most this many observations (0 prints all)")
	f.BoolVar(&opts.store, "store", false, "write observations to MySQL (default from config)")
	f.StringVarP(&opts.output, "output", "o", "", "write observations to this file instead of stdout")
	return cmd
}

// writeRendered writes r to the file at path, or to out when path is empty.
// An existing file is truncated.
func writeRendered(out io.Writer, path string, r domain.Rendered) (err error) {
	if path == "" {
		_, err = r.WriteTo(out)
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	if _, err := r.WriteTo(f); err != nil {
		return fmt.Errorf("write output file %s: %w", path, err)
	}
	return nil
}
