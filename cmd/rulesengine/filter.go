package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"rulesengine/dataservice"
	"rulesengine/entityfilter"
	"rulesengine/rule"
)

var (
	filterEntityTypePath string
	filterRulePath       string
	filterIDs            string
	filterBatchSize      int
	filterConcurrency    int
)

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "filter an entity population against a rule",
	Run:   runFilter,
}

func init() {
	filterCmd.Flags().StringVar(&filterEntityTypePath, "entity-type", "", "path to entity-type JSON (required)")
	filterCmd.Flags().StringVar(&filterRulePath, "rule", "", "path to rule JSON (required)")
	filterCmd.Flags().StringVar(&filterIDs, "ids", "", "comma-separated entity IDs (paginates from the entity type's data service if omitted)")
	filterCmd.Flags().IntVar(&filterBatchSize, "batch-size", 0, "entities processed per sequential batch")
	filterCmd.Flags().IntVar(&filterConcurrency, "concurrency", 0, "entities processed concurrently per batch")
	filterCmd.MarkFlagRequired("entity-type")
	filterCmd.MarkFlagRequired("rule")
}

func runFilter(cmd *cobra.Command, args []string) {
	cfg := loadEngineConfig()

	etBytes, err := os.ReadFile(filterEntityTypePath)
	if err != nil {
		fatalf("reading entity-type file: %v", err)
	}
	var entityType rule.EntityType
	if err := json.Unmarshal(etBytes, &entityType); err != nil {
		fatalf("parsing entity type: %v", err)
	}

	ruleBytes, err := os.ReadFile(filterRulePath)
	if err != nil {
		fatalf("reading rule file: %v", err)
	}
	limits := rule.Limits{MaxDepth: cfg.RuleLimits.MaxDepth, MaxLeaves: cfg.RuleLimits.MaxLeaves}

	var ids []string
	if filterIDs != "" {
		ids = strings.Split(filterIDs, ",")
	}

	policy := dataservice.DefaultRetryPolicy()
	policy.MaxRetries = cfg.DataService.MaxRetries
	policy.BackoffInitial = cfg.DataService.BackoffInitial
	client := dataservice.NewDispatcher(http.DefaultClient, policy)

	result, err := entityfilter.Filter(context.Background(), entityType, ids, ruleBytes, limits,
		entityfilter.Dependencies{DataService: client},
		entityfilter.FilterOptions{BatchSize: filterBatchSize, Concurrency: filterConcurrency})
	if err != nil {
		fatalf("filtering entities: %v", err)
	}

	printJSON(result)
}
