package docret

import (
	"bytes"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"golang.org/x/net/html"
)

var blankRunRe = regexp.MustCompile(`\n{3,}`)

// Tags that never carry documentation prose.
var droppedTags = map[string]bool{
	"nav": true, "header": true, "footer": true, "aside": true,
	"script": true, "style": true, "noscript": true, "iframe": true,
	"form": true, "button": true, "input": true, "svg": true,
}

// Class fragments used by doc generators for navigation chrome.
var droppedClasses = []string{
	"sidebar", "navbar", "toc", "breadcrumb", "headerlink", "footer", "prev-next",
}

// Page is a converted documentation page.
type Page struct {
	Title    string
	Markdown string
}

// Converter turns documentation HTML into markdown.
type Converter struct {
	md *md.Converter
}

// NewConverter creates a converter with GitHub-flavored tables and code blocks.
func NewConverter() *Converter {
	c := md.NewConverter("", true, nil)
	c.Use(plugin.GitHubFlavored())
	return &Converter{md: c}
}

// Convert extracts the main content of an HTML page and renders it as markdown.
func (c *Converter) Convert(content []byte) (*Page, error) {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}

	title := pageTitle(doc)
	root := mainContent(doc)
	prune(root)

	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return nil, err
	}

	markdown, err := c.md.ConvertString(buf.String())
	if err != nil {
		return nil, err
	}

	return &Page{
		Title:    title,
		Markdown: strings.TrimSpace(blankRunRe.ReplaceAllString(markdown, "\n\n")),
	}, nil
}

func pageTitle(doc *html.Node) string {
	if n := find(doc, func(n *html.Node) bool { return n.Data == "title" }); n != nil && n.FirstChild != nil {
		title := strings.TrimSpace(n.FirstChild.Data)
		// Sphinx appends the project name after an em dash.
		if i := strings.Index(title, " — "); i > 0 {
			title = title[:i]
		}
		return title
	}
	if n := find(doc, func(n *html.Node) bool { return n.Data == "h1" }); n != nil {
		return strings.TrimSpace(textContent(n))
	}
	return ""
}

// mainContent picks <main>, <article> or role=main, falling back to <body>.
func mainContent(doc *html.Node) *html.Node {
	matchers := []func(*html.Node) bool{
		func(n *html.Node) bool { return n.Data == "main" },
		func(n *html.Node) bool { return n.Data == "article" },
		func(n *html.Node) bool { return attr(n, "role") == "main" },
		func(n *html.Node) bool { return n.Data == "body" },
	}
	for _, m := range matchers {
		if n := find(doc, m); n != nil {
			return n
		}
	}
	return doc
}

func prune(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode && (droppedTags[c.Data] || hasDroppedClass(c)) {
			n.RemoveChild(c)
		} else {
			prune(c)
		}
		c = next
	}
}

func hasDroppedClass(n *html.Node) bool {
	class := attr(n, "class")
	if class == "" {
		return false
	}
	for _, field := range strings.Fields(class) {
		for _, frag := range droppedClasses {
			if strings.Contains(field, frag) {
				return true
			}
		}
	}
	return false
}

func find(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, match); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
