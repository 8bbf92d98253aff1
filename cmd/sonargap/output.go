package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"sonargap/internal/browser"
	"sonargap/internal/collector"
	"sonargap/internal/config"
	"sonargap/internal/coverage"
	"sonargap/internal/export"
	"sonargap/internal/loader"
	"sonargap/internal/logging"
	"sonargap/internal/report"
)

// applyOutputFlags lets command flags override the output section.
func applyOutputFlags(format, dir string) error {
	if format != "" {
		cfg.Output.Format = format
	}
	if dir != "" {
		cfg.Output.Dir = dir
	}
	return cfg.Validate()
}

func newFetcher() *loader.HTTPLoader {
	return loader.NewHTTPLoader(cfg.LoaderConfig(), nil)
}

func newRenderer() *browser.Renderer {
	return browser.NewRenderer(cfg.RendererConfig())
}

func newBuilder() *report.Builder {
	return report.NewBuilder(cfg.BuilderOptions()...)
}

func shutdownRenderer(r *browser.Renderer) {
	if err := r.Shutdown(); err != nil {
		logging.BrowserWarn("failed to shut down chrome: %v", err)
	}
}

func writeReport(cmd *cobra.Command, rep *coverage.Report) error {
	summary := fmt.Sprintf("%d uncovered new-code lines in %d blocks", rep.TotalUncoveredLines(), len(rep.Groups()))

	switch cfg.Output.Format {
	case config.FormatTerminal:
		if err := renderToTerminal(cmd.OutOrStdout(), export.Report(rep).Content); err != nil {
			return err
		}
		fmt.Fprintln(cmd.ErrOrStderr(), successStyle.Render("✓ "+summary))
		return nil

	case config.FormatJSON:
		data, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		return saveAndAnnounce(cmd, export.ReportFileName(rep.FilePath(), time.Now(), "json"), data, summary)

	default:
		doc := export.Report(rep)
		return saveAndAnnounce(cmd, doc.FileName, []byte(doc.Content), summary)
	}
}

func writeBundle(cmd *cobra.Command, res *collector.Result) error {
	summary := fmt.Sprintf("%d reports, %d skipped", len(res.Reports), len(res.Skipped))

	switch cfg.Output.Format {
	case config.FormatJSON:
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		return saveAndAnnounce(cmd, export.BundleFileName(time.Now(), "json"), data, summary)
	}

	doc, err := export.Bundle(res.Reports, res.Skipped)
	if err != nil {
		return err
	}
	if cfg.Output.Format == config.FormatTerminal {
		return renderToTerminal(cmd.OutOrStdout(), doc.Content)
	}
	return saveAndAnnounce(cmd, doc.FileName, []byte(doc.Content), summary)
}

func renderToTerminal(w io.Writer, markdown string) error {
	out, err := export.RenderTerminal(markdown, cfg.Output.WordWrap)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}

func saveAndAnnounce(cmd *cobra.Command, name string, data []byte, summary string) error {
	path, err := writeFile(cfg.Output.Dir, name, data)
	if err != nil {
		return err
	}
	logging.Export("wrote %s", path)
	fmt.Fprintln(cmd.ErrOrStderr(), successStyle.Render("✓ "+summary)+" "+mutedStyle.Render("→ "+path))
	return nil
}

func writeFile(dir, name string, data []byte) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

func printCollectSummary(w io.Writer, res *collector.Result) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Collected %d of %d files", len(res.Reports), len(res.Reports)+len(res.Skipped))))
	for _, s := range res.Skipped {
		if s.NoNewCoverage() {
			fmt.Fprintln(w, mutedStyle.Render("  – "+s.Label+" (no new code)"))
			continue
		}
		fmt.Fprintln(w, warnStyle.Render("  ⚠ "+s.Error))
	}
}
