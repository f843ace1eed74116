package feed

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// Entry bounds per feed kind.
const (
	GeneralEntryLimit   = 20
	PoliticalEntryLimit = 15
	FallbackEntryLimit  = 10
)

// Enclosure is an attached media reference.
type Enclosure struct {
	URL  string
	Type string
}

// Entry is one feed item as the upstream document describes it, before normalization.
type Entry struct {
	Title      string
	Summary    string
	Link       string
	Published  *time.Time
	Updated    *time.Time
	Thumbnails []string
	Enclosures []Enclosure
	Image      string
}

// Parse decodes an RSS/Atom/JSON feed and returns at most limit entries in document order.
// A document cut off mid-way yields the items that were complete. An unparseable
// document yields no entries. A non-positive limit means no bound.
func Parse(data []byte, limit int) []Entry {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	doc, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		repaired := recoverTruncated(data)
		if repaired == nil {
			return nil
		}
		doc, err = gofeed.NewParser().Parse(bytes.NewReader(repaired))
	}
	if err != nil || doc == nil {
		return nil
	}

	n := len(doc.Items)
	if limit > 0 && n > limit {
		n = limit
	}

	entries := make([]Entry, 0, n)
	for _, item := range doc.Items {
		if len(entries) == n {
			break
		}
		if item == nil {
			continue
		}
		entries = append(entries, entryFromItem(item))
	}
	return entries
}

var itemClosers = [][]byte{[]byte("</item>"), []byte("</entry>")}

// recoverTruncated cuts data after its last complete item or entry and closes
// the elements still open there. It returns nil when nothing can be salvaged.
func recoverTruncated(data []byte) []byte {
	cut := -1
	for _, closer := range itemClosers {
		if i := bytes.LastIndex(data, closer); i >= 0 && i+len(closer) > cut {
			cut = i + len(closer)
		}
	}
	if cut < 0 {
		return nil
	}

	prefix := data[:cut]
	dec := xml.NewDecoder(bytes.NewReader(prefix))
	dec.Strict = false
	// only tag structure matters here; gofeed handles the declared charset on re-parse
	dec.CharsetReader = func(_ string, r io.Reader) (io.Reader, error) { return r, nil }

	var open []string
	for {
		tok, err := dec.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil
		}
		switch t := tok.(type) {
		case xml.StartElement:
			open = append(open, rawName(t.Name))
		case xml.EndElement:
			name := rawName(t.Name)
			for i := len(open) - 1; i >= 0; i-- {
				if open[i] == name {
					open = open[:i]
					break
				}
			}
		}
	}
	if len(open) == 0 {
		return nil
	}

	out := make([]byte, 0, len(prefix)+16*len(open))
	out = append(out, prefix...)
	for i := len(open) - 1; i >= 0; i-- {
		out = append(out, "</"+open[i]+">"...)
	}
	return out
}

func rawName(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

func entryFromItem(item *gofeed.Item) Entry {
	summary := item.Description
	if strings.TrimSpace(summary) == "" {
		summary = item.Content
	}

	e := Entry{
		Title:     item.Title,
		Summary:   summary,
		Link:      strings.TrimSpace(item.Link),
		Published: item.PublishedParsed,
		Updated:   item.UpdatedParsed,
	}

	if item.Image != nil {
		e.Image = strings.TrimSpace(item.Image.URL)
	}

	for _, enc := range item.Enclosures {
		if enc == nil || strings.TrimSpace(enc.URL) == "" {
			continue
		}
		e.Enclosures = append(e.Enclosures, Enclosure{URL: strings.TrimSpace(enc.URL), Type: strings.TrimSpace(enc.Type)})
	}

	if media, ok := item.Extensions["media"]; ok {
		for _, thumb := range media["thumbnail"] {
			if u := strings.TrimSpace(thumb.Attrs["url"]); u != "" {
				e.Thumbnails = append(e.Thumbnails, u)
			}
		}
		for _, content := range media["content"] {
			u := strings.TrimSpace(content.Attrs["url"])
			if u == "" {
				continue
			}
			typ := content.Attrs["type"]
			if typ == "" && content.Attrs["medium"] == "image" {
				typ = "image/*"
			}
			e.Enclosures = append(e.Enclosures, Enclosure{URL: u, Type: typ})
		}
	}

	return e
}

// ImageURL picks the entry's image: first thumbnail, then first image enclosure, then the item image.
func (e Entry) ImageURL() string {
	if len(e.Thumbnails) > 0 {
		return e.Thumbnails[0]
	}
	for _, enc := range e.Enclosures {
		if strings.HasPrefix(strings.ToLower(enc.Type), "image/") {
			return enc.URL
		}
	}
	return e.Image
}
