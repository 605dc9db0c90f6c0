package explorer

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/storyqa/storyqa/internal/domain"
)

// types of input elements that never become fillable fields
var skippedFieldTypes = map[string]bool{
	"hidden": true,
	"submit": true,
	"button": true,
	"image":  true,
	"reset":  true,
}

func parsePage(pageURL string, doc *goquery.Document) domain.Page {
	page := domain.Page{
		URL:   pageURL,
		Title: pageTitle(doc),
		Forms: []domain.Form{},
	}
	doc.Find("form").Each(func(_ int, sel *goquery.Selection) {
		page.Forms = append(page.Forms, parseForm(sel))
	})
	page.Links = extractLinks(pageURL, doc)
	return page
}

func pageTitle(doc *goquery.Document) string {
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	if h := strings.TrimSpace(doc.Find("h1").First().Text()); h != "" {
		return h
	}
	return "Untitled"
}

func parseForm(sel *goquery.Selection) domain.Form {
	form := domain.Form{
		Name:    formName(sel),
		Action:  strings.TrimSpace(sel.AttrOr("action", "")),
		Method:  strings.ToLower(sel.AttrOr("method", "get")),
		Fields:  []domain.Field{},
		Buttons: []domain.Button{},
	}

	sel.Find("input, textarea, select").Each(func(_ int, in *goquery.Selection) {
		ftype := fieldType(in)
		if skippedFieldTypes[ftype] {
			return
		}
		placeholder := strings.TrimSpace(in.AttrOr("placeholder", ""))
		name := firstNonEmpty(
			strings.TrimSpace(in.AttrOr("name", "")),
			strings.TrimSpace(in.AttrOr("id", "")),
			placeholder,
			ftype,
		)
		_, required := in.Attr("required")
		form.Fields = append(form.Fields, domain.Field{
			Name:        name,
			Type:        ftype,
			Required:    required,
			Placeholder: placeholder,
		})
	})

	sel.Find("button, input[type='submit'], input[type='button']").Each(func(_ int, b *goquery.Selection) {
		label := firstNonEmpty(
			strings.TrimSpace(b.Text()),
			strings.TrimSpace(b.AttrOr("value", "")),
			"Submit",
		)
		form.Buttons = append(form.Buttons, domain.Button{
			Text: label,
			Type: b.AttrOr("type", "submit"),
		})
	})

	return form
}

// formName prefers id, then name, then the first class token.
func formName(sel *goquery.Selection) string {
	if id := strings.TrimSpace(sel.AttrOr("id", "")); id != "" {
		return id
	}
	if name := strings.TrimSpace(sel.AttrOr("name", "")); name != "" {
		return name
	}
	if class := strings.TrimSpace(sel.AttrOr("class", "")); class != "" {
		return strings.Fields(class)[0]
	}
	return "form"
}

func fieldType(in *goquery.Selection) string {
	switch goquery.NodeName(in) {
	case "textarea":
		return "textarea"
	case "select":
		return "select"
	}
	if t := strings.TrimSpace(in.AttrOr("type", "")); t != "" {
		return strings.ToLower(t)
	}
	return "text"
}

func extractLinks(pageURL string, doc *goquery.Document) []domain.Link {
	links := []domain.Link{}
	base, err := url.Parse(pageURL)
	if err != nil {
		return links
	}
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if len(links) >= maxLinksPerPage {
			return false
		}
		href, ok := a.Attr("href")
		if !ok {
			return true
		}
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
			return true
		}
		ref, err := url.Parse(href)
		if err != nil {
			return true
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return true
		}
		abs.Fragment = ""
		links = append(links, domain.Link{
			URL:  abs.String(),
			Text: strings.TrimSpace(a.Text()),
		})
		return true
	})
	return links
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
