package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/clinlab/amrclassify/internal/adapters"
	"github.com/clinlab/amrclassify/internal/domain"
)

var (
	classifyInputPath   string
	classifyFormat      string
	classifySource      string
	classifyCorrelation string
	classifyOutputPath  string
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify one ingestion payload and print the results as JSON",
	Long: `classify reads a FHIR bundle, HL7v2 message, or native JSON
payload (auto-detected unless --format is given), runs it through the
full classification pipeline, and prints one JSON result per
(specimen, organism, antibiotic) tuple.`,
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().StringVarP(&classifyInputPath, "input", "i", "-", "Input file path, or - for stdin")
	classifyCmd.Flags().StringVarP(&classifyFormat, "format", "f", "", "Input format: fhir|hl7v2|native (default: auto-detect)")
	classifyCmd.Flags().StringVarP(&classifySource, "source", "s", "", "Preferred breakpoint source: EUCAST|CLSI|LOCAL (default: catalog policy)")
	classifyCmd.Flags().StringVar(&classifyCorrelation, "correlation-id", "", "Correlation id to stamp on results and audit records (default: generated)")
	classifyCmd.Flags().StringVarP(&classifyOutputPath, "output", "o", "-", "Output file path, or - for stdout")
}

func runClassify(cmd *cobra.Command, args []string) error {
	app, err := loadAppContext()
	if err != nil {
		return err
	}
	eng, err := app.buildEngine()
	if err != nil {
		return err
	}

	payload, err := readInput(classifyInputPath)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	format, err := parseFormat(classifyFormat)
	if err != nil {
		return err
	}

	source, err := parseSource(classifySource)
	if err != nil {
		return err
	}

	results, err := eng.Classify(context.Background(), payload, format, source, classifyCorrelation)
	if err != nil {
		return fmt.Errorf("classification failed: %w", err)
	}

	return writeResults(classifyOutputPath, results)
}

func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func parseFormat(raw string) (adapters.InputFormat, error) {
	switch raw {
	case "":
		return "", nil
	case "fhir":
		return adapters.FormatFHIR, nil
	case "hl7v2":
		return adapters.FormatHL7v2, nil
	case "native":
		return adapters.FormatNative, nil
	default:
		return "", fmt.Errorf("unrecognized --format %q (want fhir, hl7v2, or native)", raw)
	}
}

func parseSource(raw string) (domain.Source, error) {
	switch raw {
	case "":
		return "", nil
	case string(domain.EUCAST), string(domain.CLSI), string(domain.LOCAL):
		return domain.Source(raw), nil
	default:
		return "", fmt.Errorf("unrecognized --source %q (want EUCAST, CLSI, or LOCAL)", raw)
	}
}

func writeResults(path string, results []domain.ClassificationResult) error {
	views := make([]resultView, 0, len(results))
	for _, r := range results {
		views = append(views, newResultView(r))
	}

	out := os.Stdout
	if path != "" && path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to open output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(views)
}
