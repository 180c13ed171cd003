package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/solatis/gridxlate/internal/metrics"
	"github.com/solatis/gridxlate/internal/rules"
	"github.com/solatis/gridxlate/internal/types"
)

var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "Apply a rule file to a JSON component pool",
	Long: `Reads a JSON object mapping type tags to lists of field objects, applies
the rules in dependency order and writes converted records plus skip
diagnostics as JSON.`,
	RunE: runTranslate,
}

func init() {
	rootCmd.AddCommand(translateCmd)
	translateCmd.Flags().String("rules", "", "YAML rule file (default translate.rules_file)")
	translateCmd.Flags().String("input", "-", "input JSON file, - for stdin")
	translateCmd.Flags().String("output", "-", "output JSON file, - for stdout")
	translateCmd.Flags().Int("version", 0, "only run rules targeting this version (0 = all)")
	translateCmd.Flags().String("metrics", "", "write prometheus text metrics to this file")
}

type translateOutput struct {
	Converted int                         `json:"converted"`
	Skipped   int                         `json:"skipped"`
	Rules     []ruleOutput                `json:"rules"`
	Records   map[string][]map[string]any `json:"records"`
}

type ruleOutput struct {
	Rule      string       `json:"rule"`
	Source    string       `json:"source_type"`
	Target    string       `json:"target_type"`
	Converted int          `json:"converted"`
	Skipped   int          `json:"skipped"`
	Skips     []skipOutput `json:"skips,omitempty"`
}

type skipOutput struct {
	Candidate string `json:"candidate,omitempty"`
	Kind      string `json:"kind"`
	Reason    string `json:"reason"`
}

func runTranslate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	flags := cmd.Flags()
	rulesPath := cfg.Translate.RulesFile
	if flags.Changed("rules") {
		rulesPath, _ = flags.GetString("rules")
	}
	if rulesPath == "" {
		return fmt.Errorf("--rules required (or set translate.rules_file)")
	}
	version := cfg.Translate.Version
	if flags.Changed("version") {
		version, _ = flags.GetInt("version")
	}
	inputPath, _ := flags.GetString("input")
	outputPath, _ := flags.GetString("output")
	metricsPath, _ := flags.GetString("metrics")

	ruleList, err := rules.LoadFile(rulesPath, rules.WithDefaultIdentityField(cfg.Translate.IdentityField))
	if err != nil {
		return err
	}
	// Surfaces duplicate names and conversion keys before anything runs.
	ruleSet, err := rules.NewRuleSet(ruleList...)
	if err != nil {
		return err
	}

	pool, err := readPool(inputPath)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	collector, err := metrics.New(reg)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	engine := rules.NewEngine(rules.WithLogger(logger), rules.WithMetrics(collector))
	result, err := engine.ApplyRulesToContext(ruleSet.Rules(), pool, rules.WithVersion(version))
	if err != nil {
		return err
	}
	logger.Info("translated pool",
		zap.String("rules_file", rulesPath),
		zap.Int("candidates", pool.Len()),
		zap.Int("converted", result.Converted),
		zap.Int("skipped", result.Skipped))

	if err := writeJSON(outputPath, summarize(result)); err != nil {
		return err
	}
	if metricsPath != "" {
		return writeMetrics(metricsPath, reg)
	}
	return nil
}

func readPool(path string) (types.Pool, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	var raw map[string][]map[string]any
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode input: %w", err)
	}

	pool := make(types.Pool, len(raw))
	for typeName, items := range raw {
		for _, fields := range items {
			pool.Add(types.NewComponent(typeName, fields))
		}
	}
	return pool, nil
}

func summarize(result *rules.TranslationResult) translateOutput {
	out := translateOutput{
		Converted: result.Converted,
		Skipped:   result.Skipped,
		Rules:     make([]ruleOutput, 0, len(result.Results)),
		Records:   make(map[string][]map[string]any),
	}
	for _, rr := range result.Results {
		ro := ruleOutput{
			Rule:      rr.Rule.Key(),
			Source:    rr.Rule.SourceType(),
			Target:    rr.Rule.TargetType(),
			Converted: rr.Converted,
			Skipped:   rr.Skipped,
		}
		for _, s := range rr.Skips {
			so := skipOutput{Kind: s.Kind.String(), Reason: s.Reason}
			if s.Candidate != nil {
				if name, ok := s.Candidate.Field(rr.Rule.IdentityField()); ok {
					so.Candidate = fmt.Sprint(name)
				}
			}
			ro.Skips = append(ro.Skips, so)
		}
		out.Rules = append(out.Rules, ro)
	}
	for typeName, records := range result.RecordsByType() {
		for _, c := range records {
			out.Records[typeName] = append(out.Records[typeName], c.Fields)
		}
	}
	return out
}

func writeJSON(path string, v any) (err error) {
	var w io.Writer = os.Stdout
	if path != "-" {
		f, createErr := os.Create(path)
		if createErr != nil {
			return fmt.Errorf("failed to create output: %w", createErr)
		}
		defer closeOutput(f, &err)
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func writeMetrics(path string, reg *prometheus.Registry) (err error) {
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create metrics file: %w", err)
	}
	defer closeOutput(f, &err)

	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(f, mf); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return nil
}

// closeOutput closes a file that was written to. A close error is reported
// through err unless an earlier error is already there.
func closeOutput(c io.Closer, err *error) {
	if cerr := c.Close(); cerr != nil && *err == nil {
		*err = fmt.Errorf("failed to close output: %w", cerr)
	}
}
