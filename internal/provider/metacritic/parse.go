package metacritic

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"

	"github.com/filmdata/critic-harvester/internal/harvest"
)

var (
	yearRx       = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	knownTotalRx = regexp.MustCompile(`of\s+([\d,]+)`)
	slugRx       = regexp.MustCompile(`[^a-z0-9&-]+`)
)

// parseListing extracts the visible movie entries from a browse listing
// page. Entries without a movie link are skipped.
func parseListing(html string) []harvest.ListingEntry {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	var entries []harvest.ListingEntry
	doc.Find("a.c-finderProductCard_container").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		slug := slugFromHref(href)
		if slug == "" {
			return
		}
		name := strings.TrimSpace(sel.Find(".c-finderProductCard_titleHeading span").Last().Text())
		if name == "" {
			name = strings.TrimSpace(sel.Find(".c-finderProductCard_titleHeading").Text())
		}
		if name == "" {
			return
		}
		entries = append(entries, harvest.ListingEntry{DisplayName: name, Address: slug})
	})
	return entries
}

// parseSearchHits extracts the result rows of a site search page, top to
// bottom.
func parseSearchHits(html string) []harvest.SearchHit {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	var hits []harvest.SearchHit
	doc.Find("a.c-pageSiteSearch-results-item").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		slug := slugFromHref(href)
		if slug == "" {
			return
		}
		name := strings.TrimSpace(sel.Find("p.g-text-medium-fluid").First().Text())
		if name == "" {
			return
		}
		hit := harvest.SearchHit{DisplayName: name, Address: slug}
		details := sel.Find(".c-pageSiteSearch-results-item_details").Text()
		if m := yearRx.FindString(details); m != "" {
			hit.DeclaredYear, _ = strconv.Atoi(m)
		}
		hits = append(hits, hit)
	})
	return hits
}

// parseProbe reads the declared title and release year off a movie page.
// A missing year comes back as zero.
func parseProbe(html string) (string, int) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", 0
	}
	declared := strings.TrimSpace(doc.Find("h1").First().Text())
	if declared == "" {
		declared, _ = doc.Find(`meta[property="og:title"]`).Attr("content")
		declared = strings.TrimSpace(declared)
	}

	year := 0
	meta := doc.Find(".c-heroMetadata").Text()
	if m := yearRx.FindString(meta); m != "" {
		year, _ = strconv.Atoi(m)
	}
	if year == 0 {
		if v := embeddedState(doc).Get("props.pageProps.item.releaseYear"); v.Exists() {
			year = int(v.Int())
		}
	}
	return declared, year
}

// parseReviews extracts every visible critic review row. The page-level
// metascore, when present, is attached to each item so downstream rows
// stay self-contained.
func parseReviews(html string) []harvest.Item {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	metascore := strings.TrimSpace(doc.Find(".c-productScoreInfo_scoreNumber span").First().Text())

	var items []harvest.Item
	doc.Find("div.c-siteReview").Each(func(_ int, sel *goquery.Selection) {
		fields := map[string]string{
			"publication": strings.TrimSpace(sel.Find(".c-siteReviewHeader_publicationName").First().Text()),
			"author":      strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(sel.Find(".c-siteReviewHeader_criticName").First().Text()), "By ")),
			"score":       strings.TrimSpace(sel.Find(".c-siteReviewScore span").First().Text()),
		}
		if metascore != "" {
			fields["metascore"] = metascore
		}
		if fields["publication"] == "" && fields["author"] == "" && fields["score"] == "" {
			return
		}
		items = append(items, harvest.Item{Fields: fields})
	})
	return items
}

// parseKnownTotal reads the "Showing N of M" marker, falling back to the
// page's embedded JSON state.
func parseKnownTotal(html string) (int, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return 0, false
	}
	marker := doc.Find(".c-pageProductReviews_text").First().Text()
	if m := knownTotalRx.FindStringSubmatch(marker); len(m) == 2 {
		if total, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", "")); err == nil && total > 0 {
			return total, true
		}
	}
	if v := embeddedState(doc).Get("props.pageProps.reviews.totalResults"); v.Exists() && v.Int() > 0 {
		return int(v.Int()), true
	}
	return 0, false
}

// embeddedState returns the page's serialized application state for
// gjson queries; an empty result when the script block is absent.
func embeddedState(doc *goquery.Document) gjson.Result {
	raw := doc.Find("script#__NEXT_DATA__").First().Text()
	if raw == "" {
		return gjson.Result{}
	}
	return gjson.Parse(raw)
}

func slugFromHref(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		href = href[:i]
	}
	const marker = "/movie/"
	i := strings.Index(href, marker)
	if i < 0 {
		return ""
	}
	slug := strings.Trim(href[i+len(marker):], "/")
	// Links deeper than the movie root still locate the same entity.
	if j := strings.IndexByte(slug, '/'); j >= 0 {
		slug = slug[:j]
	}
	return slug
}

func sanitizeSlug(locator string) string {
	return slugRx.ReplaceAllString(strings.ToLower(locator), "-")
}
