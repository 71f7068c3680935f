package assembler

import (
	"bytes"

	"golang.org/x/net/html"
)

// navID identifies the injected version-selector element. Injection keys on
// this id, so re-running assembly replaces the existing selector instead of
// duplicating it.
const navID = "verdocs-version-nav"

// menuLink is one rendered entry of the version selector for a specific page.
type menuLink struct {
	Name string
	Href string
}

// injectVersionNav parses the page, removes any previously injected selector
// and inserts a fresh one as the first child of <body>. Running it twice with
// the same links yields byte-identical output. Pages without a <body> element
// are returned unchanged.
func injectVersionNav(page []byte, links []menuLink) ([]byte, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, err
	}

	body := findElement(doc, "body")
	if body == nil {
		return page, nil
	}

	if existing := findElementByID(doc, navID); existing != nil {
		existing.Parent.RemoveChild(existing)
	}

	nav := buildNav(links)
	body.InsertBefore(nav, body.FirstChild)

	var out bytes.Buffer
	if err := html.Render(&out, doc); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// buildNav constructs <nav id=... class=...><span>Versions:</span><ul>...</ul></nav>.
func buildNav(links []menuLink) *html.Node {
	nav := element("nav",
		html.Attribute{Key: "id", Val: navID},
		html.Attribute{Key: "class", Val: "verdocs-versions"})

	label := element("span")
	label.AppendChild(text("Versions:"))
	nav.AppendChild(label)

	list := element("ul")
	for _, link := range links {
		item := element("li")
		anchor := element("a", html.Attribute{Key: "href", Val: link.Href})
		anchor.AppendChild(text(link.Name))
		item.AppendChild(anchor)
		list.AppendChild(item)
	}
	nav.AppendChild(list)

	return nav
}

func element(tag string, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, Data: tag, Attr: attrs}
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func findElementByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode {
		for _, attr := range n.Attr {
			if attr.Key == "id" && attr.Val == id {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElementByID(c, id); found != nil {
			return found
		}
	}
	return nil
}
