package extract

import (
	"strings"

	"golang.org/x/net/html"
)

const descriptionSelector = ".show-more-less-html__markup"

// ExtractDetail returns the long-form description of a detail page with tags
// stripped and one text block per line. It reports false when the page carries
// no description, which happens on partially rendered pages.
func ExtractDetail(body []byte) (string, bool, error) {
	doc, err := parse(body)
	if err != nil {
		return "", false, err
	}
	markup := doc.Find(descriptionSelector).First()
	if markup.Length() == 0 {
		return "", false, nil
	}

	var lines []string
	for _, node := range markup.Nodes {
		collectText(node, &lines)
	}
	if len(lines) == 0 {
		return "", false, nil
	}
	return strings.Join(lines, "\n"), true, nil
}

func collectText(n *html.Node, lines *[]string) {
	switch n.Type {
	case html.TextNode:
		if text := strings.TrimSpace(n.Data); text != "" {
			*lines = append(*lines, text)
		}
		return
	case html.ElementNode:
		if n.Data == "script" || n.Data == "style" {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, lines)
	}
}
