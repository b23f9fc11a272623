package analytics

import (
	"github.com/mmdatafocus/franchise_analytics/models"
	"github.com/shopspring/decimal"
)

const (
	StatusCancelled   = "cancelled"
	NoMostPopularItem = "-"
)

// OrderStats is the order side of a period summary.
type OrderStats struct {
	TotalOrders       int
	TotalRevenue      decimal.Decimal
	AverageOrderValue decimal.Decimal
	UniqueCustomers   int
	MostPopularItem   string
	CancelledOrders   int
	StatusBreakdown   models.CountMap
	ToppingCounts     models.CountMap
	AddOnCounts       models.CountMap
	ComboCounts       models.CountMap
	AddOnRevenue      decimal.Decimal
}

// AggregateWeeklyOrders counts only orders whose total was stored as a number; both the order
// count and revenue skip the rest, string totals included.
func AggregateWeeklyOrders(orders []Order) OrderStats {
	counted := make([]Order, 0, len(orders))
	for _, o := range orders {
		if o.NumericTotal {
			counted = append(counted, o)
		}
	}
	return AggregateOrders(counted)
}

// AggregateOrders counts every order. A missing or non-numeric total adds nothing to revenue.
func AggregateOrders(orders []Order) OrderStats {
	stats := OrderStats{
		TotalOrders:     len(orders),
		TotalRevenue:    decimal.Zero,
		MostPopularItem: NoMostPopularItem,
		StatusBreakdown: models.CountMap{},
		ToppingCounts:   models.CountMap{},
		AddOnCounts:     models.CountMap{},
		ComboCounts:     models.CountMap{},
		AddOnRevenue:    decimal.Zero,
	}

	customers := make(map[string]struct{})
	itemCounts := make(map[string]int)
	// first-seen order decides ties for the most popular item
	var itemOrder []string

	for _, o := range orders {
		if o.HasTotal {
			stats.TotalRevenue = stats.TotalRevenue.Add(o.Total)
		}
		if o.UserId != "" {
			customers[o.UserId] = struct{}{}
		}
		if o.Status != "" {
			stats.StatusBreakdown[o.Status]++
			if o.Status == StatusCancelled {
				stats.CancelledOrders++
			}
		}

		for _, item := range o.Items {
			qty := item.Quantity
			if item.Name != "" {
				if _, seen := itemCounts[item.Name]; !seen {
					itemOrder = append(itemOrder, item.Name)
				}
				itemCounts[item.Name] += qty
			}
			for _, t := range item.Toppings {
				stats.ToppingCounts[t] += qty
			}
			for _, a := range item.AddOns {
				if a.Name == "" {
					continue
				}
				stats.AddOnCounts[a.Name] += qty
				if a.HasPrice {
					stats.AddOnRevenue = stats.AddOnRevenue.Add(a.Price.Mul(decimal.NewFromInt(int64(qty))))
				}
			}
			if item.ComboSignature != "" {
				stats.ComboCounts[item.ComboSignature] += qty
			}
		}
	}

	stats.UniqueCustomers = len(customers)
	stats.AverageOrderValue = averageOrderValue(stats.TotalRevenue, stats.TotalOrders)

	maxCount := 0
	for _, name := range itemOrder {
		if c := itemCounts[name]; c > maxCount {
			maxCount = c
			stats.MostPopularItem = name
		}
	}
	return stats
}

func averageOrderValue(revenue decimal.Decimal, orders int) decimal.Decimal {
	if orders == 0 {
		return decimal.Zero
	}
	return revenue.Div(decimal.NewFromInt(int64(orders)))
}
