package catalog

import (
	"context"
	"log"
	"strconv"
	"strings"
	"unicode/utf8"
)

// stopWords are discarded before building search conditions. Entries
// containing a space can never match a single whitespace token; they are
// kept for parity with the trigger list wording.
var stopWords = map[string]struct{}{
	"là":        {},
	"bao nhiêu": {},
	"có":        {},
	"giá":       {},
	"của":       {},
	"cho":       {},
	"tôi":       {},
	"biết":      {},
	"về":        {},
	"ở":         {},
	"đâu":       {},
	"địa chỉ":   {},
	"đến":       {},
	"mua":       {},
}

// triggerKeywords suggest the user is asking about catalog data; a lookup
// is only attempted when one of them appears in the query.
var triggerKeywords = []string{
	"giá",
	"khuyến mãi",
	"sản phẩm",
	"hàng",
	"raspberry pi",
	"dht22",
	"cảm biến",
	"arduino",
	"địa chỉ",
	"chỉ đường",
	"cửa hàng",
	"ở đâu",
	"mở cửa",
}

const recordSeparator = "\n---\n"

// ShouldSearch reports whether the query warrants a catalog lookup.
func ShouldSearch(query string) bool {
	if query == "" {
		return false
	}
	lower := strings.ToLower(query)
	for _, kw := range triggerKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Tokenize splits a query into lower-cased keyword tokens, dropping stop
// words and single-character tokens.
func Tokenize(query string) []string {
	var out []string
	for _, word := range strings.Fields(strings.ToLower(query)) {
		if utf8.RuneCountInString(word) <= 1 {
			continue
		}
		if _, ok := stopWords[word]; ok {
			continue
		}
		out = append(out, word)
	}
	return out
}

// FormatProduct renders one record as a single labelled line. A record with
// no recognized fields renders to the empty string.
func FormatProduct(p Product) string {
	var parts []string
	if p.Name != "" {
		parts = append(parts, "Tên: "+p.Name)
	}
	if p.HasPrice {
		parts = append(parts, "Giá: "+FormatPrice(p.Price))
	}
	if p.Description != "" {
		parts = append(parts, "Mô tả: "+p.Description)
	}
	if p.Promotion != "" {
		parts = append(parts, "Khuyến mãi: "+p.Promotion)
	}
	if p.Category != "" {
		parts = append(parts, "Danh mục: "+p.Category)
	}
	if p.Brand != "" {
		parts = append(parts, "Thương hiệu: "+p.Brand)
	}
	if p.Address != "" {
		parts = append(parts, "Địa chỉ: "+p.Address)
	}
	if p.OpeningHours != "" {
		parts = append(parts, "Giờ mở cửa: "+p.OpeningHours)
	}
	return strings.Join(parts, ". ")
}

// FormatPrice renders a VND amount with thousands separators, no decimals.
func FormatPrice(price float64) string {
	n := int64(price + 0.5)
	if price < 0 {
		n = int64(price - 0.5)
	}
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, d := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	out := b.String()
	if neg {
		out = "-" + out
	}
	return out + " VND"
}

// Lookup wraps a Store with query gating, tokenizing and formatting.
type Lookup struct {
	store Store
	limit int
}

func NewLookup(store Store, limit int) *Lookup {
	if limit <= 0 {
		limit = 5
	}
	return &Lookup{store: store, limit: limit}
}

// Search builds a knowledge block for the query. The boolean is false when
// the query has no meaningful tokens, the store is unreachable, nothing
// matches, or every match formats to an empty string. Store failures are
// logged and swallowed: the caller degrades to ungrounded model knowledge.
func (l *Lookup) Search(ctx context.Context, query string) (string, bool) {
	tokens := Tokenize(query)
	if len(tokens) == 0 {
		return "", false
	}

	products, err := l.store.Search(ctx, tokens, l.limit)
	if err != nil {
		log.Printf("catalog search failed for %q: %v", query, err)
		return "", false
	}
	if len(products) == 0 {
		return "", false
	}

	lines := make([]string, 0, len(products))
	for _, p := range products {
		if line := FormatProduct(p); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return "", false
	}

	return strings.Join(lines, recordSeparator), true
}
