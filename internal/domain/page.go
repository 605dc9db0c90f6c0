package domain

// CrawlResult is the output of exploring a site: the pages reached from
// the start URL, in discovery order.
type CrawlResult struct {
	StartURL string `json:"start_url"`
	Pages    []Page `json:"pages"`
}

// Page is one crawled page. A page that failed to fetch carries Error and
// empty Forms/Links; consumers treat it as having no content.
type Page struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Forms []Form `json:"forms"`
	Links []Link `json:"links"`
	Error string `json:"error,omitempty"`
}

// Form is a form extracted from a page, fields and buttons in document order.
type Form struct {
	Name    string   `json:"name"`
	Action  string   `json:"action"`
	Method  string   `json:"method"`
	Fields  []Field  `json:"fields"`
	Buttons []Button `json:"buttons"`
}

// Field is one fillable control. Name follows the fallback chain
// name attribute, then id, then placeholder, then type.
type Field struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Placeholder string `json:"placeholder,omitempty"`
}

// Button is a clickable control within a form.
type Button struct {
	Text string `json:"text"`
	Type string `json:"type,omitempty"`
}

// Link is an outgoing anchor kept for crawl traversal.
type Link struct {
	URL  string `json:"url"`
	Text string `json:"text,omitempty"`
}
