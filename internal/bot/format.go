package bot

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pricewatch-bot/pricewatch/internal/store"
)

var amazonURLPattern = regexp.MustCompile(`^https?://(www\.)?amazon\.\w{2,3}/`)

// IsValidAmazonURL reports whether url looks like an Amazon product page.
func IsValidAmazonURL(url string) bool {
	return amazonURLPattern.MatchString(url)
}

// formatProductList renders the numbered markdown list shown by /list. The
// numbers are the handles /remove accepts.
func formatProductList(products []store.Product) string {
	var b strings.Builder
	b.WriteString("Tracked products:\n")
	for i, p := range products {
		fmt.Fprintf(&b, "%d. [%s](%s) - %s\n", i+1, p.Name, p.URL, p.Price)
	}
	return b.String()
}

// formatHistory renders a plain-text timeline, oldest first.
func formatHistory(entries []store.HistoryEntry) string {
	var b strings.Builder
	b.WriteString("Price history:\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "%s - %s\n", e.Timestamp.Format("2006-01-02 15:04"), e.Price)
	}
	return b.String()
}
