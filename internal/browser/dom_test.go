package browser_test

import (
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Korbielowski/AutoApply/internal/browser"
	"github.com/Korbielowski/AutoApply/internal/domain"
)

const loginHTML = `<html><head><title>Sign in</title></head><body>
<form id="login">
  <label for="email-field">E-mail</label>
  <input id="email-field" name="email" type="email" placeholder="you@example.com" class="input wide">
  <label>Password <input name="pass" type="password" class="input"></label>
  <input type="hidden" name="csrf" value="x">
  <button type="submit" class="btn primary">Sign in</button>
  <a href="/forgot" class="link">Forgot password?</a>
  <div role="button" aria-label="Close dialog" class="btn">x</div>
  <span style="display: none" class="btn">Sign in</span>
</form>
<ul class="offers">
  <li class="offer"><a href="/jobs/1"><h3>Go Developer</h3></a></li>
  <li class="offer"><a href="/jobs/2"><h3>Rust Developer</h3></a></li>
</ul>
</body></html>`

func stampedDoc(t *testing.T, raw string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	require.NoError(t, err)
	browser.Stamp(doc)
	return doc
}

func TestMatch(t *testing.T) {
	doc := stampedDoc(t, loginHTML)
	base, _ := url.Parse("https://boards.example.com/login")

	testCases := []struct {
		name     string
		pred     domain.Predicate
		wantTags []string
	}{
		{"id", domain.Predicate{Strategy: domain.StrategyID, Value: "email-field"}, []string{"input"}},
		{"implicit button role", domain.Predicate{Strategy: domain.StrategyRole, Value: "button"}, []string{"button", "div"}},
		{"textbox role", domain.Predicate{Strategy: domain.StrategyRole, Value: "textbox"}, []string{"input", "input"}},
		{"link role", domain.Predicate{Strategy: domain.StrategyRole, Value: "link"}, []string{"a", "a", "a"}},
		{"text is innermost and visible", domain.Predicate{Strategy: domain.StrategyText, Value: "Sign in"}, []string{"button"}},
		{"text is case sensitive", domain.Predicate{Strategy: domain.StrategyText, Value: "sign in"}, nil},
		{"aria label is case sensitive", domain.Predicate{Strategy: domain.StrategyAriaLabel, Value: "close dialog"}, nil},
		{"role is exact", domain.Predicate{Strategy: domain.StrategyRole, Value: "Textbox"}, nil},
		{"aria label attribute", domain.Predicate{Strategy: domain.StrategyAriaLabel, Value: "Close dialog"}, []string{"div"}},
		{"aria label via label for", domain.Predicate{Strategy: domain.StrategyAriaLabel, Value: "E-mail"}, []string{"input"}},
		{"aria label via nested label", domain.Predicate{Strategy: domain.StrategyAriaLabel, Value: "Password"}, []string{"input"}},
		{"name skips hidden inputs", domain.Predicate{Strategy: domain.StrategyName, Value: "csrf"}, nil},
		{"placeholder", domain.Predicate{Strategy: domain.StrategyPlaceholder, Value: "you@example.com"}, []string{"input"}},
		{"type attribute", domain.Predicate{Strategy: domain.StrategyType, Value: "password"}, []string{"input"}},
		{"type as tag", domain.Predicate{Strategy: domain.StrategyType, Value: "form"}, []string{"form"}},
		{"class", domain.Predicate{Strategy: domain.StrategyClass, Value: ".primary"}, []string{"button"}},
		{"class skips hidden", domain.Predicate{Strategy: domain.StrategyClass, Value: "btn"}, []string{"button", "div"}},
		{"css", domain.Predicate{Strategy: domain.StrategyCSS, Value: "ul.offers > li"}, []string{"li", "li"}},
		{"empty value", domain.Predicate{Strategy: domain.StrategyID, Value: " "}, nil},
		{"unknown strategy", domain.Predicate{Strategy: "xpath", Value: "//a"}, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var tags []string
			for _, el := range browser.Match(doc, tc.pred, base) {
				tags = append(tags, el.Tag)
			}
			assert.Equal(t, tc.wantTags, tags)
		})
	}
}

func TestMatchElementHandle(t *testing.T) {
	doc := stampedDoc(t, loginHTML)
	base, _ := url.Parse("https://boards.example.com/login")

	offers := browser.Match(doc, domain.Predicate{Strategy: domain.StrategyClass, Value: "offer"}, base)
	require.Len(t, offers, 2)

	assert.Equal(t, "Go Developer", offers[0].Text)
	assert.Equal(t, "https://boards.example.com/jobs/1", offers[0].Href)
	assert.True(t, strings.HasPrefix(offers[0].Ref, `[data-aa-ref="`))
	assert.Equal(t, 1, doc.Find(offers[1].Ref).Length())

	heading := browser.Match(doc, domain.Predicate{Strategy: domain.StrategyText, Value: "Rust Developer"}, base)
	require.Len(t, heading, 1)
	assert.Equal(t, "https://boards.example.com/jobs/2", heading[0].Href, "href taken from enclosing link")
}

func TestStampKeepsExistingRefs(t *testing.T) {
	doc := stampedDoc(t, loginHTML)
	before, _ := doc.Find("#email-field").Attr(browser.RefAttr)

	doc.Find("form").AppendHtml(`<button id="late">Late</button>`)
	browser.Stamp(doc)

	after, _ := doc.Find("#email-field").Attr(browser.RefAttr)
	late, ok := doc.Find("#late").Attr(browser.RefAttr)
	assert.Equal(t, before, after)
	assert.True(t, ok)
	assert.NotEqual(t, before, late)
}
