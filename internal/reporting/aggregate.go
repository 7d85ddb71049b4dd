package reporting

import (
	"time"

	"github.com/shopspring/decimal"

	"inbrentory/backend/internal/domain"
)

type saleGroup struct {
	sale  domain.Sale
	items []domain.InventoryItem
}

// Aggregate groups sold items by sale, applies each sale's discount
// proportionally, and buckets the net amounts by the sale's local period key.
// The result covers start..end with no gaps.
func Aggregate(items []domain.SoldItem, start time.Time, end time.Time, loc *time.Location, g Granularity) []domain.PeriodRow {
	groups := make(map[string]*saleGroup)
	order := make([]string, 0, len(items))
	for _, si := range items {
		if si.Sale.ID == "" || si.Sale.CreatedAt.IsZero() {
			continue
		}
		grp, ok := groups[si.Sale.ID]
		if !ok {
			grp = &saleGroup{sale: si.Sale}
			groups[si.Sale.ID] = grp
			order = append(order, si.Sale.ID)
		}
		grp.items = append(grp.items, si.Item)
	}

	startKey := PeriodKey(start, loc, g)
	endKey := PeriodKey(end, loc, g)
	buckets := make(map[string]Bucket)
	for _, id := range order {
		grp := groups[id]
		key := PeriodKey(grp.sale.CreatedAt, loc, g)
		if key < startKey || key > endKey {
			continue
		}

		prices := make([]decimal.Decimal, len(grp.items))
		for i, item := range grp.items {
			prices[i] = centsToMajor(item.EffectivePriceCents())
		}
		nets := Allocate(prices, centsToMajor(grp.sale.DiscountCents))

		b := buckets[key]
		for i, item := range grp.items {
			if item.SoldOnMarketplace {
				b.Marketplace = b.Marketplace.Add(nets[i])
			} else {
				b.Store = b.Store.Add(nets[i])
			}
			b.Count++
		}
		buckets[key] = b
	}

	return FillRange(start, end, g, loc, buckets)
}

func centsToMajor(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
