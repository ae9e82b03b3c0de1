package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dgallion1/projpack/internal/fetch"
	"github.com/dgallion1/projpack/internal/pipeline"
	"github.com/dgallion1/projpack/internal/report"
	"github.com/dgallion1/projpack/internal/transcode"
)

type packFlags struct {
	title      string
	quality    int
	compress   bool
	separate   bool
	out        string
	reportPath string
	list       bool
}

func newPackCommand(ctx *cliContext) *cobra.Command {
	var flags packFlags

	cmd := &cobra.Command{
		Use:   "pack <url>",
		Short: "Download a project and write it as a zip archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.config()
			if err != nil {
				return err
			}
			req := pipeline.Request{
				SourceURL:            args[0],
				Title:                flags.title,
				Quality:              cfg.DefaultQuality,
				EnableCompression:    cfg.EnableCompression,
				SaveImagesSeparately: cfg.SaveImagesSeparately,
			}
			if cmd.Flags().Changed("quality") {
				req.Quality = flags.quality
			}
			if cmd.Flags().Changed("compress") {
				req.EnableCompression = flags.compress
			}
			if cmd.Flags().Changed("separate-images") {
				req.SaveImagesSeparately = flags.separate
			}
			if err := req.Validate(); err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log := ctx.logger()
			fetcher := fetch.NewClient(fetch.Options{
				Timeout:   cfg.FetchTimeout,
				MaxBytes:  cfg.MaxFetchBytes,
				UserAgent: cfg.UserAgent,
			})
			defer fetcher.Close()
			packer := pipeline.NewPacker(fetcher, transcode.NewWASMCodec(), pipeline.PackerOptions{
				FetchWorkers:       cfg.FetchWorkers,
				TranscodeWorkers:   cfg.TranscodeWorkers,
				MaxConcurrentCrawl: cfg.MaxConcurrentCrawl,
			}, log)

			progress := newProgress(cmd.ErrOrStderr())
			res, err := packer.Pack(runCtx, req, progress)
			progress.Finish()
			if err != nil {
				return err
			}

			path, err := outputPath(flags.out, res.Name)
			if err != nil {
				return err
			}
			if err := os.WriteFile(path, res.Archive, 0o644); err != nil {
				return fmt.Errorf("write archive: %w", err)
			}
			if flags.reportPath != "" {
				if err := os.WriteFile(flags.reportPath, []byte(report.Markdown(res)), 0o644); err != nil {
					return fmt.Errorf("write report: %w", err)
				}
			}
			writeSummary(cmd.OutOrStdout(), path, res)
			if flags.list {
				fmt.Fprintln(cmd.OutOrStdout(), manifestTable(res.Manifest))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&flags.title, "title", "t", "", "Archive name (defaults to the project directory)")
	cmd.Flags().IntVarP(&flags.quality, "quality", "q", 33, "Re-encode quality, 0-100")
	cmd.Flags().BoolVar(&flags.compress, "compress", true, "Re-encode inline images to AVIF/WebP")
	cmd.Flags().BoolVar(&flags.separate, "separate-images", false, "Store images as separate archive members")
	cmd.Flags().StringVarP(&flags.out, "out", "o", "", "Output file or directory")
	cmd.Flags().StringVar(&flags.reportPath, "report", "", "Also write a Markdown run report to this path")
	cmd.Flags().BoolVarP(&flags.list, "list", "l", false, "Print the archive members after packing")
	return cmd
}

// outputPath places name inside out when out is an existing directory, uses
// out verbatim otherwise, and falls back to name in the working directory.
func outputPath(out, name string) (string, error) {
	if out == "" {
		return name, nil
	}
	info, err := os.Stat(out)
	switch {
	case err == nil && info.IsDir():
		return filepath.Join(out, name), nil
	case err == nil || errors.Is(err, os.ErrNotExist):
		return out, nil
	default:
		return "", fmt.Errorf("inspect output path: %w", err)
	}
}

func writeSummary(w io.Writer, path string, res *pipeline.Result) {
	fmt.Fprintf(w, "Wrote %s (%s, %d files) in %s\n",
		path,
		humanize.Bytes(uint64(len(res.Archive))),
		len(res.Manifest.Entries),
		res.Elapsed.Round(10*time.Millisecond),
	)
	fmt.Fprintf(w, "  images: %d found, %d inlined\n", res.Images, res.Inlined)
	if t := res.Transcode; t.Converted+t.Kept+t.Failed > 0 {
		fmt.Fprintf(w, "  re-encoded: %d, kept: %d, failed: %d, saved %s\n",
			t.Converted, t.Kept, t.Failed, humanize.Bytes(uint64(max(t.BytesSaved, 0))))
	}
	if res.Separated > 0 {
		fmt.Fprintf(w, "  separate images: %d\n", res.Separated)
	}
	fmt.Fprintf(w, "  document: %s -> %s\n",
		humanize.Bytes(uint64(res.DocumentBefore)), humanize.Bytes(uint64(res.DocumentAfter)))
}
