package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dgallion1/quizgest/internal/config"
	"github.com/dgallion1/quizgest/internal/convert"
	"github.com/dgallion1/quizgest/internal/parser"
	"github.com/dgallion1/quizgest/internal/quiz"
	"github.com/spf13/cobra"
)

type convertOptions struct {
	output    string
	tolerance float64
	cropInset float64
	pdftotext bool
	strict    bool
	verbose   bool
}

func newConvertCmd() *cobra.Command {
	// Flag defaults follow the same environment variables as the server.
	cfg := config.Load()
	opts := convertOptions{
		output:    "questions.json",
		tolerance: cfg.LineTolerance,
		cropInset: cfg.PDFCropInset,
		pdftotext: cfg.PDFFallbackPdftotext,
	}

	cmd := &cobra.Command{
		Use:   "convert <file>",
		Short: "Convert a quiz document to a JSON question array",
		Long: `Convert reads one document and writes its questions to the output file.

If the document cannot be decoded, an empty array is still written so that
downstream tooling always finds a valid file. Use --strict to also exit
with a non-zero status in that case.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0], opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.output, "output", "o", opts.output, `Output file ("-" for stdout)`)
	f.Float64Var(&opts.tolerance, "tolerance", opts.tolerance, "Vertical distance in points within which tokens share a line")
	f.Float64Var(&opts.cropInset, "crop-inset", opts.cropInset, "PDF page margin in points to ignore")
	f.BoolVar(&opts.pdftotext, "pdftotext", opts.pdftotext, "Fall back to pdftotext when the PDF decoder fails")
	f.BoolVar(&opts.strict, "strict", false, "Exit non-zero when the document cannot be decoded")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "Log debug details")
	return cmd
}

func runConvert(stdout, stderr io.Writer, path string, opts convertOptions) error {
	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	if opts.tolerance <= 0 {
		return fmt.Errorf("tolerance must be positive, got %v", opts.tolerance)
	}
	conv := &convert.Converter{
		Tolerance: opts.tolerance,
		Parser: parser.Options{
			CropInset:         opts.cropInset,
			FallbackPdftotext: opts.pdftotext,
		},
	}

	res, convErr := convertFile(conv, path)
	var questions []quiz.Question
	if convErr != nil {
		log.Error("conversion failed", "file", path, "error", convErr)
	} else {
		questions = res.Questions
		log.Debug("converted", "file", path, "pages", res.Pages, "lines", res.Lines)
	}

	if err := writeQuestions(stdout, opts.output, questions); err != nil {
		return err
	}

	summaryOut := stdout
	if opts.output == "-" {
		summaryOut = stderr
	}
	FormatSummary(summaryOut, path, opts.output, res, convErr)

	if convErr != nil && opts.strict {
		return convErr
	}
	return nil
}

func convertFile(conv *convert.Converter, path string) (*convert.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()
	return conv.Convert(f, filepath.Base(path))
}

func writeQuestions(stdout io.Writer, output string, qs []quiz.Question) error {
	if output == "-" {
		return quiz.WriteJSON(stdout, qs)
	}
	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := quiz.WriteJSON(f, qs); err != nil {
		f.Close()
		return fmt.Errorf("write output: %w", err)
	}
	return f.Close()
}
