package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Korbielowski/AutoApply/internal/domain"
)

func TestSiteProfileCacheInvalidation(t *testing.T) {
	p := domain.NewSiteProfile("boards", "https://boards.example.com")
	pred := domain.Predicate{Strategy: domain.StrategyID, Value: "next"}

	p.Remember(domain.StepNextPage, pred)
	assert.True(t, p.Dirty())

	got, ok := p.Lookup(domain.StepNextPage)
	assert.True(t, ok)
	assert.Equal(t, pred, got.Predicate)

	assert.False(t, p.RecordMiss(domain.StepNextPage))
	assert.True(t, p.RecordMiss(domain.StepNextPage))
	_, ok = p.Lookup(domain.StepNextPage)
	assert.False(t, ok)

	assert.False(t, p.RecordMiss(domain.StepConsent))
}

func TestSiteProfileRememberResetsFailures(t *testing.T) {
	p := domain.NewSiteProfile("boards", "https://boards.example.com")
	pred := domain.Predicate{Strategy: domain.StrategyClass, Value: "offer"}

	p.Remember(domain.StepEntries, pred)
	p.RecordMiss(domain.StepEntries)
	p.Remember(domain.StepEntries, pred)

	got, _ := p.Lookup(domain.StepEntries)
	assert.Zero(t, got.Failures)
}

func TestStepKeyStep(t *testing.T) {
	assert.Equal(t, "login", domain.StepLoginEmail.Step())
	assert.Equal(t, "next-page", domain.StepNextPage.Step())
	assert.Equal(t, "list-navigation", domain.StepListBottom.Step())
}

func TestHasCredentials(t *testing.T) {
	p := domain.NewSiteProfile("boards", "https://boards.example.com")
	assert.False(t, p.HasCredentials())
	p.Email, p.Password = "me@example.com", "secret"
	assert.True(t, p.HasCredentials())
}
