// Package parser extracts fields from vendor receipt documents: HTML email
// bodies and ticket PDFs. Each vendor function encodes the exact layout of
// that vendor's live template; the traversals are part of the external
// contract and are not generic.
package parser

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
	"golang.org/x/net/html"

	"github.com/yobain/facturabot/pkg/api"
)

var (
	reUberAmount   = regexp.MustCompile(`MX\$.+`)
	reParkingTotal = regexp.MustCompile(`Total:`)
	reAppleTotal   = regexp.MustCompile(`TOTAL`)
	reTicketAnchor = regexp.MustCompile(`Boleto`)
	// Parkimovil embeds the lot name next to a courtesy phrase inside markup
	// that is not stable enough for DOM lookup, so it is pulled straight out
	// of the raw HTML. Keep this pattern-based strategy separate from the
	// structured traversals above.
	reVisitPlace = regexp.MustCompile(`<strong>(.+)</strong>\s*le agradece su visita\.`)
)

// ParseUberAmount returns the charge from an Uber or Uber Eats receipt: the
// first text node matching the MX$ currency prefix.
func ParseUberAmount(body string) (decimal.Decimal, error) {
	root, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return decimal.Zero, &api.ParseError{Source: "uber", Field: "amount"}
	}

	node := findTextNode(root, reUberAmount)
	if node == nil {
		return decimal.Zero, &api.ParseError{Source: "uber", Field: "amount"}
	}

	raw := strings.TrimSpace(node.Data)
	raw = strings.ReplaceAll(raw, "MX$", "")
	return parseAmount("uber", "amount", raw)
}

// ParseParkimovil returns the total and the parking-lot name from a
// Parkimovil receipt. The total lives in the parent of the "Total:" strong
// tag, at child offset 3.
func ParseParkimovil(body string) (amount decimal.Decimal, place string, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return decimal.Zero, "", &api.ParseError{Source: "parkimovil", Field: "amount"}
	}

	totalTag := findElement(doc, "strong", reParkingTotal)
	if totalTag == nil || totalTag.Parent == nil {
		return decimal.Zero, "", &api.ParseError{Source: "parkimovil", Field: "amount"}
	}

	priceNode := childAt(totalTag.Parent, 3)
	if priceNode == nil {
		return decimal.Zero, "", &api.ParseError{Source: "parkimovil", Field: "amount"}
	}

	raw := strings.TrimSpace(strings.ReplaceAll(nodeText(priceNode), "MX$", ""))
	amount, err = parseAmount("parkimovil", "amount", raw)
	if err != nil {
		return decimal.Zero, "", err
	}

	m := reVisitPlace.FindStringSubmatch(body)
	if m == nil {
		return decimal.Zero, "", &api.ParseError{Source: "parkimovil", Field: "place"}
	}

	return amount, m[1], nil
}

// ParseAppleReceipt returns the total and the purchased item titles from an
// Apple receipt. The total lives in the parent of the "TOTAL" cell, at child
// offset 5; items are the span.title texts inside the item cells.
func ParseAppleReceipt(body string) (amount decimal.Decimal, items []string, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return decimal.Zero, nil, &api.ParseError{Source: "apple", Field: "amount"}
	}

	totalTag := findElement(doc, "td", reAppleTotal)
	if totalTag == nil || totalTag.Parent == nil {
		return decimal.Zero, nil, &api.ParseError{Source: "apple", Field: "amount"}
	}

	priceNode := childAt(totalTag.Parent, 5)
	if priceNode == nil {
		return decimal.Zero, nil, &api.ParseError{Source: "apple", Field: "amount"}
	}

	raw := strings.TrimSpace(strings.ReplaceAll(nodeText(priceNode), "$", ""))
	amount, err = parseAmount("apple", "amount", raw)
	if err != nil {
		return decimal.Zero, nil, err
	}

	doc.Find("td.item-cell.aapl-mobile-cell").Each(func(_ int, cell *goquery.Selection) {
		title := strings.TrimSpace(cell.Find("span.title").Text())
		if title != "" {
			items = append(items, title)
		}
	})
	if len(items) == 0 {
		return decimal.Zero, nil, &api.ParseError{Source: "apple", Field: "items"}
	}

	return amount, items, nil
}

// TicketPDFLink returns the href of the "Boleto" anchor in an ADO email,
// pointing at the ticket PDF.
func TicketPDFLink(body string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", &api.ParseError{Source: "ado", Field: "link"}
	}

	anchor := findElement(doc, "a", reTicketAnchor)
	if anchor == nil {
		return "", &api.ParseError{Source: "ado", Field: "link"}
	}
	for _, attr := range anchor.Attr {
		if attr.Key == "href" {
			return attr.Val, nil
		}
	}
	return "", &api.ParseError{Source: "ado", Field: "link"}
}

func parseAmount(source, field, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", ""))
	if err != nil {
		return decimal.Zero, &api.ParseError{Source: source, Field: field}
	}
	return d, nil
}

// findTextNode walks the tree depth-first and returns the first text node
// whose content matches re.
func findTextNode(n *html.Node, re *regexp.Regexp) *html.Node {
	if n.Type == html.TextNode && re.MatchString(n.Data) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findTextNode(c, re); found != nil {
			return found
		}
	}
	return nil
}

// findElement returns the first element with the given tag that has a
// direct text-node child matching re. Matching aggregated descendant text
// would let a wrapper cell that merely contains the marker deep inside
// shadow the leaf element the vendor offsets are defined against.
func findElement(doc *goquery.Document, tag string, re *regexp.Regexp) *html.Node {
	sel := doc.Find(tag).FilterFunction(func(_ int, s *goquery.Selection) bool {
		for c := s.Get(0).FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode && re.MatchString(c.Data) {
				return true
			}
		}
		return false
	})
	if sel.Length() == 0 {
		return nil
	}
	return sel.Get(0)
}

// childAt returns the i-th child of n counting every node, text nodes
// included. The vendor offsets are defined in those terms.
func childAt(n *html.Node, i int) *html.Node {
	idx := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if idx == i {
			return c
		}
		idx++
	}
	return nil
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(nodeText(c))
	}
	return sb.String()
}
