package analytics

import (
	"github.com/mmdatafocus/franchise_analytics/config"
	"github.com/sirupsen/logrus"
)

// SelectOrders keeps the orders of franchiseID whose instant falls inside w.
// An empty franchiseID keeps every franchise.
func SelectOrders(orders []Order, franchiseID string, w Window) []Order {
	logger := config.GetLogger()
	selected := make([]Order, 0, len(orders))
	for _, o := range orders {
		reason := ""
		switch {
		case franchiseID != "" && o.FranchiseId != franchiseID:
			reason = "franchise mismatch"
		case !o.HasCreatedAt:
			reason = "unparseable timestamp"
		case !w.Contains(o.CreatedAt):
			reason = "outside window"
		}
		if reason != "" {
			logger.WithFields(logrus.Fields{
				"franchise_id": franchiseID,
				"order_id":     o.ID,
				"period":       w.Period,
				"reason":       reason,
			}).Debug("order excluded")
			continue
		}
		selected = append(selected, o)
	}
	return selected
}

// SelectFeedback keeps feedback that is linked to one of the selected orders or whose own
// instant falls inside w. Feedback scoped to another franchise is always excluded; unscoped
// feedback is attributed by link or time alone.
func SelectFeedback(feedback []Feedback, franchiseID string, orders []Order, w Window) []Feedback {
	logger := config.GetLogger()
	orderIds := make(map[string]struct{}, len(orders))
	for _, o := range orders {
		orderIds[o.ID] = struct{}{}
	}

	selected := make([]Feedback, 0, len(feedback))
	for _, f := range feedback {
		_, linked := orderIds[f.OrderId]
		linked = linked && f.OrderId != ""
		inPeriod := f.HasCreatedAt && w.Contains(f.CreatedAt)
		sameFranchise := f.FranchiseId == "" || franchiseID == "" || f.FranchiseId == franchiseID
		included := (linked || inPeriod) && sameFranchise

		logger.WithFields(logrus.Fields{
			"franchise_id":   franchiseID,
			"feedback_id":    f.ID,
			"linked":         linked,
			"in_period":      inPeriod,
			"same_franchise": sameFranchise,
			"included":       included,
		}).Debug("feedback selection")

		if included {
			selected = append(selected, f)
		}
	}
	return selected
}
