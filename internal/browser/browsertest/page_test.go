package browsertest_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Korbielowski/AutoApply/internal/browser"
	"github.com/Korbielowski/AutoApply/internal/browser/browsertest"
	"github.com/Korbielowski/AutoApply/internal/domain"
)

func TestPageFollowsLinks(t *testing.T) {
	ctx := context.Background()
	p := browsertest.NewPage(browsertest.Site{
		"https://x.test/":    `<html><body><a id="go" href="/two">Two</a></body></html>`,
		"https://x.test/two": `<html><body><h1>Second</h1></body></html>`,
	})
	require.NoError(t, p.Goto(ctx, "https://x.test/"))

	els, err := p.Query(ctx, domain.Predicate{Strategy: domain.StrategyID, Value: "go"})
	require.NoError(t, err)
	require.Len(t, els, 1)
	require.NoError(t, p.Click(ctx, els[0]))

	u, _ := p.URL(ctx)
	assert.Equal(t, "https://x.test/two", u)
}

func TestPageFailActions(t *testing.T) {
	ctx := context.Background()
	p := browsertest.NewPage(nil)
	p.Load("https://x.test/", `<html><body><input id="q"></body></html>`)
	p.FailActions = 1

	els, err := p.Query(ctx, domain.Predicate{Strategy: domain.StrategyID, Value: "q"})
	require.NoError(t, err)
	require.ErrorIs(t, p.Fill(ctx, els[0], "go"), browser.ErrTimeout)
	require.NoError(t, p.Fill(ctx, els[0], "go"))
	assert.Equal(t, "go", p.FilledValue(els[0]))
}

func TestBrowserTracksOpenPages(t *testing.T) {
	b := browsertest.NewBrowser(nil)
	p, err := b.NewPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, b.OpenPages())
	require.NoError(t, p.Close())
	assert.Equal(t, 0, b.OpenPages())
}
