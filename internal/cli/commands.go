// Package cli implements the fpquality command line tool.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"go-fingerprint-quality/internal/analyzer"
	"go-fingerprint-quality/internal/batch"
	"go-fingerprint-quality/internal/factory"
	"go-fingerprint-quality/internal/logger"
	"go-fingerprint-quality/internal/model"
	"go-fingerprint-quality/internal/service"
	"go-fingerprint-quality/internal/storage"
	"go-fingerprint-quality/internal/strategy"
	"go-fingerprint-quality/pkg/models"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// globals holds the persistent flags shared by every subcommand
type globals struct {
	jsonOutput bool
	quiet      bool
	verbose    bool
	modelInfo  string
}

// logLevel picks the CLI log level. Warnings show by default.
func (g *globals) logLevel() logrus.Level {
	switch {
	case g.verbose:
		return logrus.DebugLevel
	case g.quiet:
		return logrus.ErrorLevel
	default:
		return logrus.WarnLevel
	}
}

// qualityService builds a service over the selected model. Batches of more
// than one worker parallelise across images, so each image runs its modules sequentially.
func (g *globals) qualityService(workers int) (service.QualityService, error) {
	opts := analyzer.DefaultOptions()
	if workers != 1 {
		opts = analyzer.SequentialOptions()
	}
	return factory.NewComponentFactory(factory.StorageOptions{}).CreateQualityService(g.modelInfo, opts)
}

// NewCommand creates the fpquality command tree.
//
// Commands provided:
//   - score <files...> [--actionable] [--speed] [--features] [--native] [--csv]
//   - check <files...>
//   - extract <files...> [--modules a,b]
//   - features
//   - actionable
//   - model [--info file]
//
// Global flags: --json, --quiet, --verbose, --model-info
func NewCommand() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:   "fpquality",
		Short: "Fingerprint image quality scoring",
		Long:  "Score 500 PPI fingerprint images on a 0-100 scale and report actionable capture feedback.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// logs go to stderr so stdout stays machine readable
			logger.SetOutput(cmd.ErrOrStderr())
			logger.SetLevel(g.logLevel())
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVar(&g.jsonOutput, "json", false, "Output in JSON format")
	cmd.PersistentFlags().BoolVarP(&g.quiet, "quiet", "q", false, "Only log errors")
	cmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Verbose output")
	cmd.PersistentFlags().StringVar(&g.modelInfo, "model-info", "", "Model info file (default: bundled model)")

	// Add subcommands
	cmd.AddCommand(scoreCmd(g))
	cmd.AddCommand(checkCmd(g))
	cmd.AddCommand(extractCmd(g))
	cmd.AddCommand(featuresCmd(g))
	cmd.AddCommand(actionableCmd(g))
	cmd.AddCommand(modelCmd(g))

	return cmd
}

// batchFlags are shared by the commands that read image files
type batchFlags struct {
	workers int
	ppi     int
	trim    bool
}

func (b *batchFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&b.workers, "workers", "w", 1, "Images evaluated in parallel (0 = CPU count)")
	cmd.Flags().IntVar(&b.ppi, "ppi", models.Resolution500PPI, "Resolution of the input images")
	cmd.Flags().BoolVar(&b.trim, "trim", false, "Remove a near-white scanner frame before evaluation")
}

func (b *batchFlags) run(cmd *cobra.Command, s strategy.ScoringStrategy, paths []string) []batch.Result {
	load := batch.FileLoader(storage.NewFileImageFetcher(""), b.ppi, b.trim)
	return batch.NewRunner(s, load, b.workers).Run(cmd.Context(), paths)
}

func scoreCmd(g *globals) *cobra.Command {
	var (
		flags batchFlags
		opts  reportOptions
		csv   bool
	)

	cmd := &cobra.Command{
		Use:   "score <files...>",
		Short: "Compute quality scores",
		Long:  "Compute the quality score of each image, with optional feedback, features and timings.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			quality, err := g.qualityService(flags.workers)
			if err != nil {
				return err
			}

			results := flags.run(cmd, strategy.NewFullScoreStrategy(quality), args)
			report := buildReport(quality, results, opts)

			w := cmd.OutOrStdout()
			switch {
			case g.jsonOutput:
				err = writeJSON(w, report.Records)
			case csv:
				err = report.writeCSV(w)
			default:
				err = report.writeTable(w)
			}
			if err != nil {
				return err
			}
			return failures(results)
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVarP(&opts.actionable, "actionable", "a", false, "Include actionable feedback columns")
	cmd.Flags().BoolVarP(&opts.speed, "speed", "s", false, "Include per-group extraction times (ms)")
	cmd.Flags().BoolVarP(&opts.features, "features", "f", false, "Include every feature value")
	cmd.Flags().BoolVarP(&opts.native, "native", "n", false, "Include native quality values")
	cmd.Flags().BoolVar(&csv, "csv", false, "Output comma separated values")
	return cmd
}

func checkCmd(g *globals) *cobra.Command {
	var flags batchFlags

	cmd := &cobra.Command{
		Use:   "check <files...>",
		Short: "Report actionable feedback only",
		Long:  "Run only the feature modules the feedback rules need and list the triggered identifiers.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			quality, err := g.qualityService(flags.workers)
			if err != nil {
				return err
			}
			results := flags.run(cmd, strategy.NewFeedbackStrategy(quality), args)

			w := cmd.OutOrStdout()
			if g.jsonOutput {
				out := make(map[string]any, len(results))
				for _, r := range results {
					if r.Err != nil {
						out[r.Path] = map[string]string{"error": r.Err.Error()}
						continue
					}
					out[r.Path] = r.Evaluation.Feedback
				}
				if err := writeJSON(w, out); err != nil {
					return err
				}
				return failures(results)
			}

			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "FILENAME\tFEEDBACK")
			for _, r := range results {
				fmt.Fprintf(tw, "%s\t%s\n", r.Path, feedbackSummary(r))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			return failures(results)
		},
	}

	flags.register(cmd)
	return cmd
}

func feedbackSummary(r batch.Result) string {
	if r.Err != nil {
		return "error: " + r.Err.Error()
	}
	if len(r.Evaluation.Feedback) == 0 {
		return "-"
	}
	ids := make([]string, len(r.Evaluation.Feedback))
	for i, it := range r.Evaluation.Feedback {
		ids[i] = string(it.ID)
	}
	return strings.Join(ids, ",")
}

func extractCmd(g *globals) *cobra.Command {
	var (
		flags   batchFlags
		modules []string
	)

	cmd := &cobra.Command{
		Use:   "extract <files...>",
		Short: "Extract quality features without scoring",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			quality, err := g.qualityService(flags.workers)
			if err != nil {
				return err
			}
			results := flags.run(cmd, strategy.NewFeatureStrategy(quality, modules...), args)

			out := make(map[string]any, len(results))
			for _, r := range results {
				if r.Err != nil {
					out[r.Path] = map[string]string{"error": r.Err.Error()}
					continue
				}
				out[r.Path] = r.Evaluation.Features.Vector.Map()
			}
			if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
				return err
			}
			return failures(results)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringSliceVarP(&modules, "modules", "m", nil, "Feature modules to run (default: all)")
	return cmd
}

func featuresCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "features",
		Short: "List quality feature identifiers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeList(cmd.OutOrStdout(), analyzer.DefaultSchema().FeatureIDs(), g.jsonOutput)
		},
	}
}

func actionableCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "actionable",
		Short: "List actionable feedback identifiers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			quality, err := g.qualityService(1)
			if err != nil {
				return err
			}
			var ids []string
			for _, id := range quality.AllActionableIdentifiers() {
				ids = append(ids, string(id))
			}
			return writeList(cmd.OutOrStdout(), ids, g.jsonOutput)
		},
	}
}

func modelCmd(g *globals) *cobra.Command {
	var infoPath string

	cmd := &cobra.Command{
		Use:   "model",
		Short: "Show model information",
		Long:  "Load and verify a model, then print its metadata.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if infoPath == "" {
				infoPath = g.modelInfo
			}
			m, err := factory.NewModelFactory(analyzer.DefaultSchema()).CreateModel(infoPath)
			if err != nil {
				return err
			}
			return outputModelInfo(cmd.OutOrStdout(), m.Info(), g.jsonOutput)
		},
	}

	cmd.Flags().StringVar(&infoPath, "info", "", "Model info file to inspect")
	return cmd
}

func outputModelInfo(w io.Writer, info model.Info, asJSON bool) error {
	resp := models.ModelInfoResponse{
		Name:          info.Name(),
		Trainer:       info.Trainer(),
		Description:   info.Description(),
		Version:       info.Version(),
		Hash:          info.Hash(),
		SchemaVersion: info.SchemaVersion(),
		FeatureCount:  info.FeatureCount(),
	}
	if asJSON {
		return writeJSON(w, resp)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Name:\t%s\n", resp.Name)
	fmt.Fprintf(tw, "Trainer:\t%s\n", resp.Trainer)
	fmt.Fprintf(tw, "Description:\t%s\n", resp.Description)
	fmt.Fprintf(tw, "Version:\t%s\n", resp.Version)
	fmt.Fprintf(tw, "Hash:\t%s\n", resp.Hash)
	fmt.Fprintf(tw, "Schema:\t%s\n", resp.SchemaVersion)
	fmt.Fprintf(tw, "Features:\t%d\n", resp.FeatureCount)
	return tw.Flush()
}

func writeList(w io.Writer, items []string, asJSON bool) error {
	if asJSON {
		return writeJSON(w, items)
	}
	for _, it := range items {
		if _, err := fmt.Fprintln(w, it); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
