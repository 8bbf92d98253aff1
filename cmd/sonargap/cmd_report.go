package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"sonargap/internal/coverage"
	"sonargap/internal/loader"
	"sonargap/internal/logging"
	"sonargap/internal/report"
)

var (
	reportHTML   string
	reportFormat string
	reportOut    string
	reportRender bool
)

// reportCmd extracts one file's uncovered new-code lines
var reportCmd = &cobra.Command{
	Use:   "report <url>",
	Short: "Report uncovered new-code lines of one file",
	Long: `Loads a file-level SonarQube viewer page and reports its uncovered
new-code lines.

The page is fetched over HTTP and rendered in headless Chrome when the fetch
yields no usable viewer. With --html a saved page is parsed instead and <url>
only supplies the project and file metadata.

Examples:
  sonargap report "https://sonar.example.com/code?id=app&selected=app%3Asrc%2Fmain.go"
  sonargap report --html page.html --format terminal "https://sonar.example.com/code?id=app"`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportHTML, "html", "", "Parse a saved viewer page instead of loading <url>")
	reportCmd.Flags().StringVar(&reportFormat, "format", "", "Output format: json, markdown or terminal (default from config)")
	reportCmd.Flags().StringVarP(&reportOut, "out", "o", "", "Output directory (default from config)")
	reportCmd.Flags().BoolVar(&reportRender, "render", false, "Load <url> in headless Chrome only")
}

func runReport(cmd *cobra.Command, args []string) error {
	if err := applyOutputFlags(reportFormat, reportOut); err != nil {
		return err
	}

	ctx, cancel := commandContext()
	defer cancel()

	sourceURL := args[0]
	logging.Boot("building report for %s", sourceURL)

	rep, err := buildReport(ctx, sourceURL)
	if report.IsNoNewCoverage(err) {
		fmt.Fprintln(cmd.ErrOrStderr(), warnStyle.Render(err.Error()))
		return nil
	}
	if err != nil {
		return err
	}
	return writeReport(cmd, rep)
}

// buildReport loads sourceURL through each configured source in turn and
// returns the first report built, or the last error. A page without new
// uncovered lines ends the search.
func buildReport(ctx context.Context, sourceURL string) (*coverage.Report, error) {
	builder := newBuilder()

	if reportHTML != "" {
		doc, err := loader.LoadFile(reportHTML, sourceURL)
		if err != nil {
			return nil, err
		}
		return builder.Build(doc, sourceURL)
	}

	var sources []loader.Source
	if !reportRender {
		sources = append(sources, newFetcher())
	}
	if reportRender || cfg.Browser.Enabled {
		renderer := newRenderer()
		defer shutdownRenderer(renderer)
		sources = append(sources, renderer)
	}

	var lastErr error
	for _, src := range sources {
		doc, err := src.Load(ctx, sourceURL)
		if err == nil {
			var rep *coverage.Report
			if rep, err = builder.Build(doc, sourceURL); err == nil {
				return rep, nil
			}
			if report.IsNoNewCoverage(err) {
				return nil, err
			}
		}
		logging.Get(logging.CategoryReport).Debug("%T failed for %s: %v", src, sourceURL, err)
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}
