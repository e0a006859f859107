package playstore

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// The details page ships its data as JS callbacks; ds:5 holds the listing.
var ds5Pattern = regexp.MustCompile(`(?s)AF_initDataCallback\(\{key:\s*'ds:5'.*?data:(.*?), sideChannel:\s*\{\}\}\);`)

var (
	tagPattern = regexp.MustCompile(`<[^>]+>`)
	brPattern  = regexp.MustCompile(`(?i)<br\s*/?>`)
)

// gjson paths into the ds:5 payload.
const (
	pathTitle         = "1.2.0.0"
	pathDescription   = "1.2.72.0.1"
	pathScore         = "1.2.51.0.1"
	pathReviews       = "1.2.51.3.1"
	pathIcon          = "1.2.95.0.3.2"
	pathScreenshots   = "1.2.78.0.#.3.2"
	pathDeveloper     = "1.2.68.0"
	pathUpdated       = "1.2.145.0.1.0"
	pathVersion       = "1.2.140.0.0.0"
	pathRecentChanges = "1.2.144.1.1"
)

const updatedLayout = "January 2, 2006"

func parseDetailsPage(body []byte) (*CatalogData, error) {
	m := ds5Pattern.FindSubmatch(body)
	if m == nil {
		return nil, fmt.Errorf("%w: ds:5 block not found", ErrMalformed)
	}
	return parsePayload(m[1])
}

func parsePayload(payload []byte) (*CatalogData, error) {
	if !gjson.ValidBytes(payload) {
		return nil, fmt.Errorf("%w: ds:5 payload is not valid JSON", ErrMalformed)
	}
	root := gjson.ParseBytes(payload)

	title := root.Get(pathTitle).String()
	if title == "" {
		return nil, fmt.Errorf("%w: listing has no title", ErrMalformed)
	}

	// Play stopped publishing download size, so SizeLabel stays empty and the
	// stored value is kept.
	data := &CatalogData{
		Title:         title,
		Description:   cleanText(root.Get(pathDescription).String()),
		Version:       strings.TrimSpace(root.Get(pathVersion).String()),
		Developer:     root.Get(pathDeveloper).String(),
		Icon:          root.Get(pathIcon).String(),
		RatingScore:   clampRating(root.Get(pathScore).Float()),
		ReviewCount:   root.Get(pathReviews).Int(),
		RecentChanges: cleanText(root.Get(pathRecentChanges).String()),
	}

	for _, s := range root.Get(pathScreenshots).Array() {
		if u := s.String(); u != "" {
			data.Screenshots = append(data.Screenshots, u)
		}
	}

	if ts := root.Get(pathUpdated).Int(); ts > 0 {
		data.UpdatedLabel = time.Unix(ts, 0).UTC().Format(updatedLayout)
	}

	return data, nil
}

func cleanText(s string) string {
	s = brPattern.ReplaceAllString(s, "\n")
	s = tagPattern.ReplaceAllString(s, "")
	return strings.TrimSpace(html.UnescapeString(s))
}

func clampRating(score float64) float64 {
	switch {
	case score < 0:
		return 0
	case score > 5:
		return 5
	}
	return score
}
