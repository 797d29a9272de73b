package parser

import (
	"fmt"
	"strings"

	"github.com/dgallion1/mathreel/internal/doctree"
	"golang.org/x/net/html"
)

// HTMLExtractor handles HTML documents. Math is recognised in text using the same
// TeX delimiters MathJax and KaTeX use.
type HTMLExtractor struct{}

func (e *HTMLExtractor) Extract(doc *doctree.Document) (*doctree.ChapterNode, error) {
	root, err := html.Parse(strings.NewReader(string(doc.Raw())))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	title := doc.Title()
	if t := findTitle(root); t != "" {
		title = t
	}
	b := newTreeBuilder(title)
	if body := findBody(root); body != nil {
		walkHTML(body, b)
	} else {
		walkHTML(root, b)
	}
	return b.finish(), nil
}

// walkHTMLFragment feeds an embedded HTML block (e.g. from Markdown) into b.
func walkHTMLFragment(raw string, b *treeBuilder) {
	root, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		b.text(raw, nil)
		return
	}
	if body := findBody(root); body != nil {
		walkHTML(body, b)
		return
	}
	walkHTML(root, b)
}

func walkHTML(n *html.Node, b *treeBuilder) {
	if n.Type == html.ElementNode {
		if level := headingLevel(n.Data); level > 0 {
			b.heading(textContent(n), level)
			return
		}

		switch n.Data {
		case "script", "style", "nav", "footer", "header", "title":
			return
		case "img":
			b.figure(attr(n, "src"), attr(n, "alt"))
			return
		case "figure":
			ref, caption := "", ""
			if img := findElement(n, "img"); img != nil {
				ref = attr(img, "src")
				caption = attr(img, "alt")
			}
			if fc := findElement(n, "figcaption"); fc != nil {
				caption = textContent(fc)
			}
			b.figure(ref, caption)
			return
		case "p", "li", "td", "blockquote", "dd", "dt":
			if img := findElement(n, "img"); img != nil {
				break // mixed content: recurse so the image keeps its position
			}
			if t := textContent(n); t != "" {
				b.text(t, nil)
			}
			return
		}
	}
	if n.Type == html.TextNode {
		if t := strings.TrimSpace(n.Data); t != "" {
			b.text(t, nil)
		}
		return
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkHTML(c, b)
	}
}

func headingLevel(tag string) int {
	switch tag {
	case "h1":
		return 1
	case "h2":
		return 2
	case "h3":
		return 3
	case "h4":
		return 4
	case "h5":
		return 5
	case "h6":
		return 6
	}
	return 0
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.TrimSpace(buf.String())
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func findElement(n *html.Node, tag string) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			return c
		}
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return textContent(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
