package main

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/spf13/cobra"

	"sonargap/internal/collector"
	"sonargap/internal/loader"
	"sonargap/internal/logging"
)

var (
	collectHTML      string
	collectFormat    string
	collectOut       string
	collectNoBrowser bool
	collectQuiet     bool
)

// collectCmd reports every file linked from a list view
var collectCmd = &cobra.Command{
	Use:   "collect <url>",
	Short: "Report every file linked from a New Code list view",
	Long: `Discovers the files linked from a SonarQube "New Code" list view and builds
one report per file, strictly one file at a time.

Each file is fetched first and rendered in headless Chrome when the fetch
fails. Files without uncovered new-code lines are listed as skipped. The
command only fails when the page links to no files at all.

Examples:
  sonargap collect "https://sonar.example.com/component_measures?id=app&metric=new_coverage&view=list"
  sonargap collect --no-browser --format json -o reports "https://sonar.example.com/..."`,
	Args: cobra.ExactArgs(1),
	RunE: runCollect,
}

func init() {
	collectCmd.Flags().StringVar(&collectHTML, "html", "", "Discover files from a saved list page instead of loading <url>")
	collectCmd.Flags().StringVar(&collectFormat, "format", "", "Output format: json, markdown or terminal (default from config)")
	collectCmd.Flags().StringVarP(&collectOut, "out", "o", "", "Output directory (default from config)")
	collectCmd.Flags().BoolVar(&collectNoBrowser, "no-browser", false, "Never fall back to headless Chrome")
	collectCmd.Flags().BoolVarP(&collectQuiet, "quiet", "q", false, "Hide the progress bar")
}

func runCollect(cmd *cobra.Command, args []string) error {
	if err := applyOutputFlags(collectFormat, collectOut); err != nil {
		return err
	}

	ctx, cancel := commandContext()
	defer cancel()

	currentURL := args[0]
	var doc *goquery.Document
	if collectHTML != "" {
		var err error
		if doc, err = loader.LoadFile(collectHTML, currentURL); err != nil {
			return err
		}
	}

	opts := []collector.Option{collector.WithBuilder(newBuilder())}
	if !collectQuiet {
		opts = append(opts, collector.WithProgress(newBarProgress(cmd.ErrOrStderr())))
	}
	if cfg.Browser.Enabled && !collectNoBrowser {
		renderer := newRenderer()
		defer shutdownRenderer(renderer)
		opts = append(opts, collector.WithRenderer(renderer))
	}

	res, err := collector.New(newFetcher(), opts...).CollectAll(ctx, doc, currentURL)
	if err != nil {
		return err
	}
	logging.Boot("run %s finished", res.RunID)

	printCollectSummary(cmd.ErrOrStderr(), res)
	if len(res.Reports) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), warnStyle.Render("No reports to export."))
		return nil
	}
	return writeBundle(cmd, res)
}
