package invoice

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CatalogItem is the part of an item-master record the form reads.
type CatalogItem struct {
	ID          string          `json:"id"`
	DisplayName string          `json:"display_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxPercent  decimal.Decimal `json:"tax_percent"`
}

// Catalog resolves a catalog item by identifier.
type Catalog interface {
	Lookup(id string) (CatalogItem, bool)
}

// Snapshot is an in-memory catalog loaded once per form session. Items are
// matched by ID only, so a refreshed snapshot keeps existing selections.
type Snapshot []CatalogItem

func (s Snapshot) Lookup(id string) (CatalogItem, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return CatalogItem{}, false
	}
	for _, item := range s {
		if item.ID == id {
			return item, true
		}
	}
	return CatalogItem{}, false
}
