package browser

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Tags that carry no information about interactive elements or posting text.
var strippedTags = []string{
	"head", "meta", "style", "script", "noscript", "template", "iframe",
	"video", "audio", "map", "area", "embed", "object", "applet", "track",
	"canvas", "svg", "img", "picture", "source",
}

var (
	betweenTags = regexp.MustCompile(`>\s+<`)
	spaces      = regexp.MustCompile(`\s{2,}`)
)

// CleanHTML shrinks a document before it is shown to the oracle: it drops
// strippedTags, comments and internal stamps, collapses whitespace and cuts
// the result to maxBytes (0 means no limit).
func CleanHTML(raw string, maxBytes int) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return "", err
	}
	doc.Find(strings.Join(strippedTags, ", ")).Remove()
	doc.Find("[" + RefAttr + "]").RemoveAttr(RefAttr)
	doc.Find("[" + HiddenAttr + "]").RemoveAttr(HiddenAttr)
	removeComments(doc.Get(0))

	body, err := doc.Find("body").Html()
	if err != nil {
		return "", err
	}
	body = betweenTags.ReplaceAllString(body, "><")
	body = spaces.ReplaceAllString(body, " ")
	body = strings.TrimSpace(body)
	if maxBytes > 0 && len(body) > maxBytes {
		body = truncate(body, maxBytes)
	}
	return body, nil
}

func removeComments(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.CommentNode {
			n.RemoveChild(c)
		} else {
			removeComments(c)
		}
		c = next
	}
}
