package metacritic

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const listingFixture = `<!DOCTYPE html><html><body>
<div class="c-finderProductCard">
  <a class="c-finderProductCard_container" href="/movie/the-great-escape/">
    <h3 class="c-finderProductCard_titleHeading"><span>1.</span><span>The Great Escape</span></h3>
  </a>
</div>
<div class="c-finderProductCard">
  <a class="c-finderProductCard_container" href="/movie/heat/?ref=browse">
    <h3 class="c-finderProductCard_titleHeading"><span>2.</span><span>Heat</span></h3>
  </a>
</div>
<div class="c-finderProductCard">
  <a class="c-finderProductCard_container" href="/tv/some-show/">
    <h3 class="c-finderProductCard_titleHeading"><span>3.</span><span>Not A Movie</span></h3>
  </a>
</div>
</body></html>`

func TestParseListing(t *testing.T) {
	t.Parallel()

	entries := parseListing(listingFixture)
	require.Len(t, entries, 2)
	require.Equal(t, "The Great Escape", entries[0].DisplayName)
	require.Equal(t, "the-great-escape", entries[0].Address)
	require.Equal(t, "heat", entries[1].Address)
}

func TestParseListingEmptyPage(t *testing.T) {
	t.Parallel()

	require.Empty(t, parseListing(`<html><body><p>No results.</p></body></html>`))
}

const searchFixture = `<html><body>
<a class="c-pageSiteSearch-results-item" href="/movie/the-great-escape/">
  <p class="g-text-medium-fluid">The Great Escape</p>
  <span class="c-pageSiteSearch-results-item_details">movie &middot; 2020</span>
</a>
<a class="c-pageSiteSearch-results-item" href="/movie/the-great-escape-artist/">
  <p class="g-text-medium-fluid">The Great Escape Artist</p>
  <span class="c-pageSiteSearch-results-item_details">movie</span>
</a>
</body></html>`

func TestParseSearchHits(t *testing.T) {
	t.Parallel()

	hits := parseSearchHits(searchFixture)
	require.Len(t, hits, 2)
	require.Equal(t, "The Great Escape", hits[0].DisplayName)
	require.Equal(t, "the-great-escape", hits[0].Address)
	require.Equal(t, 2020, hits[0].DeclaredYear)
	require.Zero(t, hits[1].DeclaredYear)
}

const probeFixture = `<html><head>
<meta property="og:title" content="The Great Escape"/>
</head><body>
<h1>The Great Escape</h1>
<div class="c-heroMetadata"><span>R</span><span>Jun 5, 2020</span></div>
</body></html>`

const probeJSONFixture = `<html><body>
<h1>Heat</h1>
<script id="__NEXT_DATA__" type="application/json">{"props":{"pageProps":{"item":{"releaseYear":1995}}}}</script>
</body></html>`

func TestParseProbe(t *testing.T) {
	t.Parallel()

	title, year := parseProbe(probeFixture)
	require.Equal(t, "The Great Escape", title)
	require.Equal(t, 2020, year)
}

func TestParseProbeYearFromEmbeddedState(t *testing.T) {
	t.Parallel()

	title, year := parseProbe(probeJSONFixture)
	require.Equal(t, "Heat", title)
	require.Equal(t, 1995, year)
}

func TestParseProbeMissingYear(t *testing.T) {
	t.Parallel()

	title, year := parseProbe(`<html><body><h1>Obscure Film</h1></body></html>`)
	require.Equal(t, "Obscure Film", title)
	require.Zero(t, year)
}

const reviewsFixture = `<html><body>
<div class="c-productScoreInfo_scoreNumber"><span>81</span></div>
<span class="c-pageProductReviews_text">Showing 2 of 53 Critic Reviews</span>
<div class="c-siteReview">
  <div class="c-siteReviewHeader_publicationName">Variety</div>
  <a class="c-siteReviewHeader_criticName">By Jane Doe</a>
  <div class="c-siteReviewScore"><span>90</span></div>
</div>
<div class="c-siteReview">
  <div class="c-siteReviewHeader_publicationName">Empire</div>
  <a class="c-siteReviewHeader_criticName">John Smith</a>
  <div class="c-siteReviewScore"><span>70</span></div>
</div>
<div class="c-siteReview"></div>
</body></html>`

func TestParseReviews(t *testing.T) {
	t.Parallel()

	items := parseReviews(reviewsFixture)
	require.Len(t, items, 2)
	require.Equal(t, "Variety", items[0].Field("publication"))
	require.Equal(t, "Jane Doe", items[0].Field("author"))
	require.Equal(t, "90", items[0].Field("score"))
	require.Equal(t, "81", items[0].Field("metascore"))
	require.Equal(t, "John Smith", items[1].Field("author"))
}

func TestParseKnownTotal(t *testing.T) {
	t.Parallel()

	total, ok := parseKnownTotal(reviewsFixture)
	require.True(t, ok)
	require.Equal(t, 53, total)
}

func TestParseKnownTotalFromEmbeddedState(t *testing.T) {
	t.Parallel()

	page := `<html><body>
<script id="__NEXT_DATA__" type="application/json">{"props":{"pageProps":{"reviews":{"totalResults":120}}}}</script>
</body></html>`
	total, ok := parseKnownTotal(page)
	require.True(t, ok)
	require.Equal(t, 120, total)

	_, ok = parseKnownTotal(`<html><body></body></html>`)
	require.False(t, ok)
}

func TestSlugFromHref(t *testing.T) {
	t.Parallel()

	tests := []struct {
		href string
		want string
	}{
		{"/movie/the-great-escape/", "the-great-escape"},
		{"https://www.metacritic.com/movie/heat/critic-reviews/", "heat"},
		{"/movie/heat/?ref=nav", "heat"},
		{"/tv/some-show/", ""},
		{"", ""},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, slugFromHref(tc.href), "href %q", tc.href)
	}
}
