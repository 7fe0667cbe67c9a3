package parser

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dgallion1/quizgest/internal/layout"
	"golang.org/x/net/html"
)

// HTMLParser handles HTML files. Block elements and <br> end lines; text
// inside <b> or <strong> marks its line bold.
type HTMLParser struct{}

func (p *HTMLParser) Parse(r io.Reader, filename string) (*layout.Document, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	title := strings.TrimSuffix(strings.TrimSuffix(filename, ".html"), ".htm")
	if t := findTitle(doc); t != "" {
		title = t
	}

	c := &lineCollector{}
	root := findBody(doc)
	if root == nil {
		root = doc
	}
	walkHTML(root, c, false)

	return &layout.Document{
		Title: title,
		Pages: appendPage(nil, c.page()),
	}, nil
}

func walkHTML(n *html.Node, c *lineCollector, bold bool) {
	switch n.Type {
	case html.TextNode:
		c.write(n.Data, bold)
		return
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "head", "nav":
			return
		case "br":
			c.flush()
			return
		case "b", "strong":
			bold = true
		case "ol":
			walkOrderedList(n, c, bold)
			return
		}
	}

	block := n.Type == html.ElementNode && isBlockElement(n.Data)
	if block {
		c.flush()
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		walkHTML(child, c, bold)
	}
	if block {
		c.flush()
	}
}

// walkOrderedList writes the numbers or letters a browser would render in
// front of each <li>, since they are not part of the text.
func walkOrderedList(ol *html.Node, c *lineCollector, bold bool) {
	c.flush()
	n := 1
	if v, err := strconv.Atoi(attr(ol, "start")); err == nil {
		n = v
	}
	kind := attr(ol, "type")
	for li := ol.FirstChild; li != nil; li = li.NextSibling {
		if li.Type != html.ElementNode || li.Data != "li" {
			continue
		}
		c.flush()
		c.setPrefix(olMarker(kind, n) + " ")
		for child := li.FirstChild; child != nil; child = child.NextSibling {
			walkHTML(child, c, bold)
		}
		c.flush()
		n++
	}
}

func olMarker(kind string, n int) string {
	switch kind {
	case "A", "a":
		if n >= 1 && n <= 26 {
			return string(rune(kind[0])+rune(n-1)) + "."
		}
	}
	return strconv.Itoa(n) + "."
}

func isBlockElement(tag string) bool {
	switch tag {
	case "p", "div", "li", "ul", "td", "th", "tr", "table", "blockquote",
		"section", "article", "header", "footer", "pre",
		"h1", "h2", "h3", "h4", "h5", "h6":
		return true
	}
	return false
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
