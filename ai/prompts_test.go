package ai

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storeql/storeql/store"
)

func sampleContext() store.SchemaContext {
	earliest := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	latest := time.Date(2026, 2, 27, 18, 30, 0, 0, time.UTC)
	return store.SchemaContext{
		StoreID:           "store-a",
		Currency:          "EUR",
		TotalOrders:       1542,
		TotalProducts:     87,
		TotalCustomers:    960,
		TotalCategories:   12,
		EarliestOrderDate: &earliest,
		LatestOrderDate:   &latest,
	}
}

func TestBuildPromptIsDeterministic(t *testing.T) {
	sc := sampleContext()
	assert.Equal(t, BuildPrompt(sc), BuildPrompt(sc))
}

func TestBuildPromptSectionOrder(t *testing.T) {
	p := BuildPrompt(sampleContext())

	idxSchema := strings.Index(p, "# Warehouse schema")
	idxStore := strings.Index(p, "# This store")
	idxRules := strings.Index(p, "# Safety rules")
	idxContract := strings.Index(p, "# Response format")
	idxExamples := strings.Index(p, "# Examples")

	require.True(t, idxSchema >= 0 && idxStore >= 0 && idxRules >= 0 && idxContract >= 0 && idxExamples >= 0)
	assert.True(t, idxSchema < idxStore)
	assert.True(t, idxStore < idxRules)
	assert.True(t, idxRules < idxContract)
	assert.True(t, idxContract < idxExamples)
}

func TestBuildPromptIncludesLiveMetadata(t *testing.T) {
	p := BuildPrompt(sampleContext())

	assert.Contains(t, p, "currency: EUR")
	assert.Contains(t, p, "orders: 1542")
	assert.Contains(t, p, "earliest order: 2024-05-01")
	assert.Contains(t, p, "latest order: 2026-02-27")
}

func TestBuildPromptHandlesEmptyStore(t *testing.T) {
	p := BuildPrompt(store.SchemaContext{StoreID: "store-b", Currency: "USD"})

	assert.Contains(t, p, "earliest order: none")
	assert.Contains(t, p, "latest order: none")
}

func TestBuildPromptTenRules(t *testing.T) {
	p := BuildPrompt(sampleContext())
	for i := 1; i <= 10; i++ {
		assert.Regexp(t, regexp.MustCompile(`(?m)^`+regexp.QuoteMeta(ruleNumber(i))), p)
	}
}

func ruleNumber(i int) string {
	if i < 10 {
		return string(rune('0'+i)) + ". "
	}
	return "10. "
}

// Every worked example must itself obey the safety rules it teaches:
// tenant filter on $1 and an explicit LIMIT.
func TestExampleLibraryFollowsOwnRules(t *testing.T) {
	require.GreaterOrEqual(t, len(exampleLibrary), 25)

	tenantFilter := regexp.MustCompile(`(?i)\bstore_id\s*=\s*\$1\b`)
	limitClause := regexp.MustCompile(`(?i)\bLIMIT\s+\d+\b`)
	for _, ex := range exampleLibrary {
		assert.Regexp(t, tenantFilter, ex.SQL, ex.Question)
		assert.Regexp(t, limitClause, ex.SQL, ex.Question)
		assert.True(t, strings.HasPrefix(ex.SQL, "SELECT"), ex.Question)
		assert.NotContains(t, ex.SQL, ";", ex.Question)
		assert.NotContains(t, strings.ToLower(ex.SQL), "email_hash", ex.Question)
	}
}
