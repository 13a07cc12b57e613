package browser

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/Korbielowski/AutoApply/internal/domain"
)

const (
	maxElementText = 300
	maxElementHTML = 1200
)

// Stamp adds RefAttr to every element that lacks one. The live page does the
// same in JavaScript.
func Stamp(doc *goquery.Document) {
	n := 0
	doc.Find("[" + RefAttr + "]").Each(func(_ int, s *goquery.Selection) {
		if v, err := strconv.Atoi(s.AttrOr(RefAttr, "")); err == nil && v > n {
			n = v
		}
	})
	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		if _, ok := s.Attr(RefAttr); ok {
			return
		}
		n++
		s.SetAttr(RefAttr, strconv.Itoa(n))
	})
}

// RefSelector returns the CSS selector for a stamped ref.
func RefSelector(ref string) string {
	return fmt.Sprintf(`[%s="%s"]`, RefAttr, ref)
}

// Match evaluates p against a stamped document. base resolves relative hrefs.
// Role, text, aria-label and placeholder compare exactly after whitespace
// collapsing; type and tag names ignore case.
func Match(doc *goquery.Document, p domain.Predicate, base *url.URL) []Element {
	value := strings.TrimSpace(p.Value)
	if value == "" {
		return nil
	}
	all := doc.Find("body *")

	var sel *goquery.Selection
	switch p.Strategy {
	case domain.StrategyID:
		sel = all.FilterFunction(func(_ int, s *goquery.Selection) bool {
			return s.AttrOr("id", "") == value
		})
	case domain.StrategyRole:
		sel = all.FilterFunction(func(_ int, s *goquery.Selection) bool {
			return RoleOf(s) == value
		})
	case domain.StrategyText:
		sel = innermost(all.FilterFunction(func(_ int, s *goquery.Selection) bool {
			return visibleText(s) == normalize(value)
		}))
	case domain.StrategyAriaLabel:
		sel = all.FilterFunction(func(_ int, s *goquery.Selection) bool {
			return normalize(s.AttrOr("aria-label", "")) == normalize(value)
		}).AddSelection(labelledBy(doc, value))
	case domain.StrategyName:
		sel = attrEquals(all, "name", value)
	case domain.StrategyPlaceholder:
		sel = all.FilterFunction(func(_ int, s *goquery.Selection) bool {
			return strings.TrimSpace(s.AttrOr("placeholder", "")) == value
		})
	case domain.StrategyType:
		sel = all.FilterFunction(func(_ int, s *goquery.Selection) bool {
			return strings.EqualFold(s.AttrOr("type", ""), value) || strings.EqualFold(goquery.NodeName(s), value)
		})
	case domain.StrategyClass:
		cls := strings.TrimPrefix(value, ".")
		sel = all.FilterFunction(func(_ int, s *goquery.Selection) bool {
			return s.HasClass(cls)
		})
	case domain.StrategyCSS:
		sel = doc.Find("body").Find(value)
	default:
		return nil
	}

	var out []Element
	seen := map[*html.Node]bool{}
	sel.Each(func(_ int, s *goquery.Selection) {
		n := s.Get(0)
		if seen[n] || hidden(s) {
			return
		}
		seen[n] = true
		out = append(out, ElementOf(s, base))
	})
	return out
}

func attrEquals(all *goquery.Selection, attr, value string) *goquery.Selection {
	return all.FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.AttrOr(attr, "") == value
	})
}

// labelledBy finds controls whose <label> text equals value.
func labelledBy(doc *goquery.Document, value string) *goquery.Selection {
	var nodes []*html.Node
	doc.Find("label").Each(func(_ int, l *goquery.Selection) {
		if visibleText(l) != normalize(value) {
			return
		}
		if id, ok := l.Attr("for"); ok && id != "" {
			doc.Find("body *").Each(func(_ int, s *goquery.Selection) {
				if s.AttrOr("id", "") == id {
					nodes = append(nodes, s.Get(0))
				}
			})
			return
		}
		if c := l.Find("input, select, textarea").First(); c.Length() > 0 {
			nodes = append(nodes, c.Get(0))
		}
	})
	return doc.FindNodes(nodes...)
}

// innermost drops elements that contain another element of the set.
func innermost(sel *goquery.Selection) *goquery.Selection {
	nodes := sel.Nodes
	return sel.FilterFunction(func(_ int, s *goquery.Selection) bool {
		n := s.Get(0)
		for _, o := range nodes {
			if o != n && contains(n, o) {
				return false
			}
		}
		return true
	})
}

func contains(parent, child *html.Node) bool {
	for p := child.Parent; p != nil; p = p.Parent {
		if p == parent {
			return true
		}
	}
	return false
}

func hidden(s *goquery.Selection) bool {
	if strings.EqualFold(s.AttrOr("type", ""), "hidden") && goquery.NodeName(s) == "input" {
		return true
	}
	if s.Closest("[hidden], [aria-hidden='true'], ["+HiddenAttr+"]").Length() > 0 {
		return true
	}
	style := strings.ReplaceAll(strings.ToLower(s.AttrOr("style", "")), " ", "")
	return strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden")
}

func normalize(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}

func visibleText(s *goquery.Selection) string {
	if goquery.NodeName(s) == "input" {
		switch strings.ToLower(s.AttrOr("type", "")) {
		case "submit", "button", "reset":
			return normalize(s.AttrOr("value", ""))
		}
	}
	return normalize(s.Text())
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8Start(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}

func utf8Start(b byte) bool { return b&0xC0 != 0x80 }

// ElementOf builds the handle for a stamped selection.
func ElementOf(s *goquery.Selection, base *url.URL) Element {
	el := Element{
		Ref:  RefSelector(s.AttrOr(RefAttr, "")),
		Tag:  goquery.NodeName(s),
		Text: truncate(visibleText(s), maxElementText),
		Href: hrefOf(s, base),
	}
	if h, err := goquery.OuterHtml(s); err == nil {
		el.HTML = truncate(normalize(h), maxElementHTML)
	}
	return el
}

func hrefOf(s *goquery.Selection, base *url.URL) string {
	raw, ok := s.Attr("href")
	if !ok {
		raw, ok = s.Find("a[href]").First().Attr("href")
	}
	if !ok {
		raw, ok = s.Closest("a[href]").Attr("href")
	}
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" || strings.HasPrefix(raw, "#") || strings.HasPrefix(strings.ToLower(raw), "javascript:") {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	return u.String()
}

var inputRoles = map[string]string{
	"button":   "button",
	"submit":   "button",
	"reset":    "button",
	"image":    "button",
	"checkbox": "checkbox",
	"radio":    "radio",
	"range":    "slider",
	"number":   "spinbutton",
	"search":   "searchbox",
	"email":    "textbox",
	"tel":      "textbox",
	"text":     "textbox",
	"url":      "textbox",
	"password": "textbox",
	"":         "textbox",
}

var tagRoles = map[string]string{
	"button":   "button",
	"textarea": "textbox",
	"h1":       "heading",
	"h2":       "heading",
	"h3":       "heading",
	"h4":       "heading",
	"h5":       "heading",
	"h6":       "heading",
	"ul":       "list",
	"ol":       "list",
	"li":       "listitem",
	"nav":      "navigation",
	"form":     "form",
	"main":     "main",
	"img":      "img",
	"table":    "table",
	"dialog":   "dialog",
	"article":  "article",
	"header":   "banner",
	"footer":   "contentinfo",
	"option":   "option",
}

// RoleOf returns the explicit role attribute or the implicit ARIA role of
// the element's tag.
func RoleOf(s *goquery.Selection) string {
	if r := strings.TrimSpace(s.AttrOr("role", "")); r != "" {
		return strings.ToLower(strings.Fields(r)[0])
	}
	tag := goquery.NodeName(s)
	switch tag {
	case "a", "area":
		if _, ok := s.Attr("href"); ok {
			return "link"
		}
		return ""
	case "input":
		return inputRoles[strings.ToLower(s.AttrOr("type", ""))]
	case "select":
		if _, ok := s.Attr("multiple"); ok {
			return "listbox"
		}
		return "combobox"
	case "section":
		if s.AttrOr("aria-label", "") != "" {
			return "region"
		}
		return ""
	}
	return tagRoles[tag]
}
