// internal/lifecycle/fefo.go
package lifecycle

import (
	"sort"

	"freshtrack/internal/models"
)

// OrderFEFO groups sellable inventory (active or discounted) by category
// and orders each group ascending by expiry date, First-Expiry-First-Out.
// Ties are broken by product id so the ordering is deterministic. The
// input slice is not mutated.
func OrderFEFO(products []models.Product) map[string][]models.Product {
	grouped := make(map[string][]models.Product)

	for _, p := range products {
		if p.Status != models.StatusActive && p.Status != models.StatusDiscounted {
			continue
		}
		grouped[p.Category] = append(grouped[p.Category], p)
	}

	for _, group := range grouped {
		sort.SliceStable(group, func(i, j int) bool {
			a, b := group[i], group[j]
			if !a.ExpiryDate.Equal(b.ExpiryDate) {
				return a.ExpiryDate.Before(b.ExpiryDate)
			}
			return a.ID < b.ID
		})
	}

	return grouped
}
