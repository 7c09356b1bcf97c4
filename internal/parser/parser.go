// Package parser interprets streamed recommendation text into structured
// sections and items. It tolerates partial input: while a response is still
// streaming, an unterminated trailing item is reported as partial instead of
// being committed half-formed.
package parser

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// DefaultSectionTitle is used when items appear without a section heading,
// or when a section heading has an empty body.
const DefaultSectionTitle = "Recommendations"

// Field is an unrecognized detail label, preserved verbatim in input order.
type Field struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Details holds the structured fields of a recommendation item. Recognized
// labels map to the typed members; everything else lands in Extras.
type Details struct {
	Location          string   `json:"location,omitempty"`
	Price             string   `json:"price,omitempty"`
	Hours             string   `json:"hours,omitempty"`
	Booking           string   `json:"booking,omitempty"`
	RatingValue       float64  `json:"ratingValue,omitempty"`
	RatingCount       int      `json:"ratingCount,omitempty"`
	RatingText        string   `json:"ratingText,omitempty"`
	ReviewsSummary    string   `json:"reviewsSummary,omitempty"`
	ReviewsHighlights []string `json:"reviewsHighlights,omitempty"`
	Tips              []string `json:"tips,omitempty"`
	Extras            []Field  `json:"extras,omitempty"`
}

// Item is a single recommendation (place, activity, etc.).
type Item struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Details     Details `json:"details"`
}

// Section is a named grouping of items.
type Section struct {
	Title string `json:"title"`
	Items []Item `json:"items"`
}

// Result is the structured view derived from a response buffer. It is
// recomputed from scratch on every reparse; for any prefix of a well-formed
// response, committed items only accumulate between reparses, never regress.
type Result struct {
	Intro           string    `json:"intro,omitempty"`
	Sections        []Section `json:"sections"`
	HasItemHeadings bool      `json:"hasItemHeadings"`
	HasPartialItem  bool      `json:"hasPartialItem"`
}

// ItemCount returns the number of committed items across all sections.
func (r *Result) ItemCount() int {
	n := 0
	for _, s := range r.Sections {
		n += len(s.Items)
	}
	return n
}

// Parse derives the structured view from text. A JSON object containing a
// "sections" array takes precedence over the markdown heading convention.
// When streaming is true the trailing in-progress item is left uncommitted
// and reported via HasPartialItem.
func Parse(text string, streaming bool) *Result {
	clean := stripFences(text)
	if res, ok := parseJSON(clean); ok {
		return res
	}
	return parseMarkdown(clean, streaming)
}

var paragraphRe = regexp.MustCompile(`\n[ \t]*\n+`)

// Paragraphs splits text into paragraphs on blank-line runs, for the opaque
// prose fallback when neither JSON nor the heading convention yields items.
func Paragraphs(text string) []string {
	var out []string
	for _, block := range paragraphRe.Split(stripFences(text), -1) {
		if t := strings.TrimSpace(block); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// stripFences removes code-fence marker lines; they are noise, not content.
func stripFences(text string) string {
	lines := strings.Split(text, "\n")
	out := lines[:0:len(lines)]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func parseMarkdown(text string, streaming bool) *Result {
	res := &Result{}

	var (
		intro    []string
		sections []*Section
		secIdx   = map[string]int{}
		cur      = -1 // index into sections; -1 until a heading or first commit
		it       *itemBuilder
		seenItem bool
	)

	openSection := func(title string) {
		if title == "" {
			title = DefaultSectionTitle
		}
		if idx, ok := secIdx[title]; ok {
			cur = idx
			return
		}
		sections = append(sections, &Section{Title: title})
		secIdx[title] = len(sections) - 1
		cur = len(sections) - 1
	}

	closeItem := func() {
		if it == nil {
			return
		}
		item, ok := it.finalize()
		it = nil
		if !ok {
			return
		}
		if cur < 0 {
			openSection(DefaultSectionTitle)
		}
		sections[cur].Items = append(sections[cur].Items, item)
	}

	for _, line := range strings.Split(text, "\n") {
		t := strings.TrimSpace(line)

		if name, ok := headingBody(t, "###"); ok {
			closeItem()
			res.HasItemHeadings = true
			seenItem = true
			it = &itemBuilder{name: name}
			continue
		}
		if title, ok := headingBody(t, "##"); ok {
			closeItem()
			openSection(title)
			continue
		}

		if it == nil {
			if t != "" && !seenItem {
				intro = append(intro, t)
			}
			continue
		}

		switch {
		case t == "":
			it.blankLine()
		case fieldLine(t, it):
			// handled
		case strings.HasPrefix(t, "- "):
			it.bullet(strings.TrimSpace(t[2:]))
		case strings.HasPrefix(t, "• "):
			it.bullet(strings.TrimSpace(t[len("• "):]))
		default:
			it.text(t)
		}
	}

	if it != nil {
		if streaming {
			res.HasPartialItem = true
		} else {
			closeItem()
		}
	}

	res.Intro = strings.TrimSpace(strings.Join(intro, "\n"))
	res.Sections = make([]Section, len(sections))
	for i, s := range sections {
		res.Sections[i] = *s
	}
	return res
}

// headingBody reports whether t is a heading of exactly the given marker
// level and returns its trimmed body.
func headingBody(t, marker string) (string, bool) {
	if t == marker {
		return "", true
	}
	if strings.HasPrefix(t, marker+" ") {
		return strings.TrimSpace(t[len(marker)+1:]), true
	}
	return "", false
}

type bulletMode int

const (
	bulletNone bulletMode = iota
	bulletTips
	bulletHighlights
)

// itemBuilder accumulates one in-progress item.
type itemBuilder struct {
	name        string
	description string
	pending     []string
	det         Details
	mode        bulletMode
}

// blankLine closes any open bullet run and flushes pending description text.
func (b *itemBuilder) blankLine() {
	b.mode = bulletNone
	b.flushDescription()
}

func (b *itemBuilder) flushDescription() {
	if len(b.pending) == 0 {
		return
	}
	joined := strings.TrimSpace(strings.Join(b.pending, " "))
	b.pending = nil
	if joined == "" {
		return
	}
	if b.description == "" {
		b.description = joined
	} else {
		b.description += " " + joined
	}
}

func (b *itemBuilder) bullet(text string) {
	switch b.mode {
	case bulletTips:
		b.det.Tips = append(b.det.Tips, text)
	case bulletHighlights:
		b.det.ReviewsHighlights = append(b.det.ReviewsHighlights, text)
	default:
		b.pending = append(b.pending, text)
	}
}

// text handles a plain line: inside a bullet run it is a soft-wrap
// continuation of the previous entry, otherwise description prose.
func (b *itemBuilder) text(t string) {
	switch b.mode {
	case bulletTips:
		appendContinuation(&b.det.Tips, t)
	case bulletHighlights:
		appendContinuation(&b.det.ReviewsHighlights, t)
	default:
		b.pending = append(b.pending, t)
	}
}

func appendContinuation(entries *[]string, t string) {
	if n := len(*entries); n > 0 {
		(*entries)[n-1] += " " + t
		return
	}
	*entries = append(*entries, t)
}

// fieldLine handles a "**Label:** value" line, returning false when t does
// not match the convention.
func fieldLine(t string, b *itemBuilder) bool {
	if !strings.HasPrefix(t, "**") {
		return false
	}
	end := strings.Index(t, ":**")
	if end < 2 {
		return false
	}
	label := strings.TrimSpace(t[2:end])
	value := strings.TrimSpace(t[end+len(":**"):])
	if label == "" {
		return false
	}
	b.mode = bulletNone

	switch strings.ToLower(label) {
	case "description":
		if value != "" {
			b.pending = append(b.pending, value)
		}
	case "location":
		b.det.Location = value
	case "price":
		b.det.Price = value
	case "hours":
		b.det.Hours = value
	case "booking":
		b.det.Booking = value
	case "rating":
		b.det.RatingText = value
		b.det.RatingValue, b.det.RatingCount = parseRating(value)
	case "reviews summary":
		b.det.ReviewsSummary = value
	case "tips":
		b.mode = bulletTips
		if value != "" {
			b.det.Tips = append(b.det.Tips, value)
		}
	case "reviews highlights":
		b.mode = bulletHighlights
		if value != "" {
			b.det.ReviewsHighlights = append(b.det.ReviewsHighlights, value)
		}
	default:
		b.det.Extras = append(b.det.Extras, Field{Label: label, Value: value})
	}
	return true
}

var ratingRe = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*/\s*5(?:\s*\(\s*([\d,]+)\s*reviews?\s*\))?`)

// parseRating extracts the "N/5 (M reviews)" shape. Anything else leaves
// the numeric fields zero; the raw text is always kept by the caller.
func parseRating(text string) (float64, int) {
	m := ratingRe.FindStringSubmatch(text)
	if m == nil {
		return 0, 0
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, 0
	}
	count := 0
	if m[2] != "" {
		count, _ = strconv.Atoi(strings.ReplaceAll(m[2], ",", ""))
	}
	return value, count
}

// finalize drops blank detail fields and discards nameless items.
func (b *itemBuilder) finalize() (Item, bool) {
	b.flushDescription()
	name := strings.TrimSpace(b.name)
	if name == "" {
		return Item{}, false
	}
	d := b.det
	d.Location = strings.TrimSpace(d.Location)
	d.Price = strings.TrimSpace(d.Price)
	d.Hours = strings.TrimSpace(d.Hours)
	d.Booking = strings.TrimSpace(d.Booking)
	d.ReviewsSummary = strings.TrimSpace(d.ReviewsSummary)
	d.Tips = dropBlank(d.Tips)
	d.ReviewsHighlights = dropBlank(d.ReviewsHighlights)
	extras := d.Extras[:0:len(d.Extras)]
	for _, f := range d.Extras {
		if strings.TrimSpace(f.Value) != "" {
			extras = append(extras, f)
		}
	}
	d.Extras = extras
	if len(d.Extras) == 0 {
		d.Extras = nil
	}
	return Item{
		Name:        name,
		Description: strings.TrimSpace(b.description),
		Details:     d,
	}, true
}

func dropBlank(entries []string) []string {
	out := entries[:0:len(entries)]
	for _, e := range entries {
		if t := strings.TrimSpace(e); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// jsonDoc is the shape of a structured JSON response. Sections is a pointer
// so presence of the field (even empty) selects the JSON path.
type jsonDoc struct {
	Intro    string         `json:"intro"`
	Sections *[]jsonSection `json:"sections"`
}

type jsonSection struct {
	Title string     `json:"title"`
	Items []jsonItem `json:"items"`
}

type jsonItem struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Details     map[string]any `json:"details"`
}

// parseJSON looks for a JSON object embedded anywhere in the text; an object
// with a "sections" array bypasses the markdown walk entirely.
func parseJSON(text string) (*Result, bool) {
	start := strings.Index(text, "{")
	if start < 0 {
		return nil, false
	}
	var doc jsonDoc
	dec := json.NewDecoder(strings.NewReader(text[start:]))
	if err := dec.Decode(&doc); err != nil || doc.Sections == nil {
		return nil, false
	}

	res := &Result{Intro: strings.TrimSpace(doc.Intro)}
	for _, s := range *doc.Sections {
		title := strings.TrimSpace(s.Title)
		if title == "" {
			title = DefaultSectionTitle
		}
		sec := Section{Title: title}
		for _, ji := range s.Items {
			name := strings.TrimSpace(ji.Name)
			if name == "" {
				continue
			}
			sec.Items = append(sec.Items, Item{
				Name:        name,
				Description: strings.TrimSpace(ji.Description),
				Details:     detailsFromMap(ji.Details),
			})
		}
		res.Sections = append(res.Sections, sec)
	}
	res.HasItemHeadings = res.ItemCount() > 0
	return res, true
}

func detailsFromMap(m map[string]any) Details {
	var d Details
	var extraKeys []string
	for key := range m {
		switch key {
		case "location", "price", "hours", "booking", "ratingValue",
			"ratingCount", "ratingText", "reviewsSummary",
			"reviewsHighlights", "tips":
		default:
			extraKeys = append(extraKeys, key)
		}
	}
	sort.Strings(extraKeys)

	d.Location = stringValue(m["location"])
	d.Price = stringValue(m["price"])
	d.Hours = stringValue(m["hours"])
	d.Booking = stringValue(m["booking"])
	d.RatingText = stringValue(m["ratingText"])
	d.ReviewsSummary = stringValue(m["reviewsSummary"])
	if v, ok := m["ratingValue"].(float64); ok {
		d.RatingValue = v
	}
	if v, ok := m["ratingCount"].(float64); ok {
		d.RatingCount = int(v)
	}
	d.Tips = stringSlice(m["tips"])
	d.ReviewsHighlights = stringSlice(m["reviewsHighlights"])
	for _, key := range extraKeys {
		if v := stringValue(m[key]); v != "" {
			d.Extras = append(d.Extras, Field{Label: key, Value: v})
		}
	}
	return d
}

func stringValue(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func stringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, e := range raw {
		if s, ok := e.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}
