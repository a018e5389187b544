package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-search/internal/constants"
	"github.com/kozaktomas/face-search/internal/facematch"
	"github.com/kozaktomas/face-search/internal/web/handlers"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search <image>",
	Short: "Search the photo directory for faces in an image",
	Long: `Detect faces in the given image and list every photo in the corpus
that contains a matching face, ordered by similarity.

Examples:
  face-search search me.jpg
  face-search search me.jpg --dir ./photos --threshold 0.4 --policy best
  face-search search me.jpg --json`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().String("dir", "", "Photo directory to search (overrides CORPUS_DIR)")
	searchCmd.Flags().Float64("threshold", 0, "Maximum descriptor distance for a match (overrides MATCH_THRESHOLD)")
	searchCmd.Flags().String("policy", "", "Face pair selection: first or best (overrides MATCH_POLICY)")
	searchCmd.Flags().Int("workers", 0, "Number of photos compared in parallel (overrides MATCH_WORKERS)")
	searchCmd.Flags().Bool("json", false, "Output as JSON in the HTTP response shape")
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if dir := mustGetString(cmd, "dir"); dir != "" {
		cfg.Corpus.Dir = dir
	}
	if t := mustGetFloat64(cmd, "threshold"); t != 0 {
		cfg.Match.Threshold = t
	}
	if policy := mustGetString(cmd, "policy"); policy != "" {
		cfg.Match.Policy = policy
	}
	if workers := mustGetInt(cmd, "workers"); workers > 0 {
		cfg.Match.Workers = workers
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	jsonOutput := mustGetBool(cmd, "json")

	image, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading query image: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	p := newPipeline(cfg)

	var bar *progressbar.ProgressBar
	if !jsonOutput {
		p.searcher.OnProgress(func(done, total int) {
			if bar == nil {
				bar = progressbar.NewOptions(total,
					progressbar.OptionSetWriter(os.Stderr),
					progressbar.OptionSetDescription("Comparing photos"),
					progressbar.OptionShowCount(),
					progressbar.OptionShowIts(),
					progressbar.OptionSetItsString("photos"),
					progressbar.OptionShowElapsedTimeOnFinish(),
					progressbar.OptionSetPredictTime(true),
					progressbar.OptionFullWidth(),
				)
			}
			bar.Set(done)
		})
	}

	outcome, err := p.searcher.Search(ctx, image)
	if bar != nil {
		bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return fmt.Errorf("face matching failed: %w", err)
	}

	if jsonOutput {
		return outputJSON(handlers.NewSearchResponse(uuid.New().String(), outcome))
	}

	printOutcome(outcome)
	return nil
}

func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}

// printOutcome prints matches as a table followed by the debug counters.
func printOutcome(outcome *facematch.Outcome) {
	if outcome.NoFaces {
		fmt.Println(facematch.NoFacesMessage)
		return
	}

	fmt.Printf("Detected %d face(s) in query image\n", outcome.DetectedFaces)
	fmt.Printf("Compared %d photo(s), %d processed, %d failed\n\n",
		outcome.ComparedFiles, outcome.ComparedFiles-len(outcome.Failures), len(outcome.Failures))

	if len(outcome.Matches) == 0 {
		fmt.Println("No matching photos found.")
	} else {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "FILE\tSIMILARITY\tDISTANCE")
		fmt.Fprintln(w, "----\t----------\t--------")
		for i := range outcome.Matches {
			m := &outcome.Matches[i]
			fmt.Fprintf(w, "%s\t%d%%\t%.4f\n", m.CandidateID, m.Similarity, m.Distance)
		}
		w.Flush()
	}

	if len(outcome.Failures) > 0 {
		fmt.Println("\nFailed photos:")
		for _, f := range outcome.Failures {
			fmt.Printf("  %s: %v\n", f.CandidateID, f.Err)
		}
	}
}
