package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"rulesengine/eval"
	"rulesengine/rule"
)

var (
	evaluateRulePath    string
	evaluateContextPath string
	evaluateTrace       bool
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "evaluate a rule against a value context",
	Run:   runEvaluate,
}

func init() {
	evaluateCmd.Flags().StringVar(&evaluateRulePath, "rule", "", "path to rule JSON (required)")
	evaluateCmd.Flags().StringVar(&evaluateContextPath, "context", "", "path to value-context JSON (required)")
	evaluateCmd.Flags().BoolVar(&evaluateTrace, "trace", false, "include a per-leaf evaluation trace")
	evaluateCmd.MarkFlagRequired("rule")
	evaluateCmd.MarkFlagRequired("context")
}

func runEvaluate(cmd *cobra.Command, args []string) {
	cfg := loadEngineConfig()

	ruleBytes, err := os.ReadFile(evaluateRulePath)
	if err != nil {
		fatalf("reading rule file: %v", err)
	}
	r, err := rule.Parse(ruleBytes, rule.Limits{MaxDepth: cfg.RuleLimits.MaxDepth, MaxLeaves: cfg.RuleLimits.MaxLeaves})
	if err != nil {
		fatalf("parsing rule: %v", err)
	}

	ctxBytes, err := os.ReadFile(evaluateContextPath)
	if err != nil {
		fatalf("reading context file: %v", err)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(ctxBytes, &raw); err != nil {
		fatalf("parsing context: %v", err)
	}

	result, err := eval.Evaluate(r, valuesFromJSON(raw), eval.EvalOptions{Trace: evaluateTrace})
	if err != nil {
		fatalf("evaluating rule: %v", err)
	}

	printJSON(result)
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fatalf("encoding result: %v", err)
	}
}
