package catalog

import "context"

// Product is one flat catalog record. Only Name is expected to always be
// present; the remaining fields follow whichever schema variant the record
// was loaded with (store-location records carry Address/OpeningHours
// instead of Price).
type Product struct {
	Name         string  `json:"name"`
	Price        float64 `json:"price"`
	HasPrice     bool    `json:"has_price"`
	Description  string  `json:"description"`
	Promotion    string  `json:"promotion"`
	Category     string  `json:"category"`
	Brand        string  `json:"brand"`
	Keywords     string  `json:"keywords"`
	Address      string  `json:"address"`
	OpeningHours string  `json:"opening_hours"`
}

// Store retrieves catalog records matching keyword tokens. A record matches
// when any token appears as a case-insensitive substring of any searchable
// field. The match is recall-biased and unranked.
type Store interface {
	Search(ctx context.Context, tokens []string, limit int) ([]Product, error)
	Close() error
}
