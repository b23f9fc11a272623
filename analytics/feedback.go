package analytics

import (
	"strconv"
	"strings"

	"github.com/mmdatafocus/franchise_analytics/models"
)

const (
	BucketOrder = "order"
	BucketApp   = "app"
)

var modeBuckets = map[string]string{
	"orderexperience":  BucketOrder,
	"order-experience": BucketOrder,
	"order_experience": BucketOrder,
	"ordering":         BucketApp,
	"appexperience":    BucketApp,
	"app-experience":   BucketApp,
	"app_experience":   BucketApp,
}

// FeedbackBucket maps a feedback mode to BucketOrder or BucketApp, or "" for modes that only
// count toward the overall figures.
func FeedbackBucket(mode string) string {
	return modeBuckets[strings.ToLower(strings.TrimSpace(mode))]
}

// AggregateFeedback computes the feedback statistics of a period. totalOrders is the period's
// order count and only feeds the participation rate.
func AggregateFeedback(feedback []Feedback, totalOrders int) models.FeedbackStats {
	var orderBucket, appBucket []Feedback
	for _, f := range feedback {
		switch FeedbackBucket(f.Mode) {
		case BucketOrder:
			orderBucket = append(orderBucket, f)
		case BucketApp:
			appBucket = append(appBucket, f)
		}
	}

	stats := models.FeedbackStats{
		AverageStarRating: averageRating(feedback),
		TotalFeedbacks:    len(feedback),
		OrderFeedback:     modeStats(orderBucket),
		AppFeedback:       modeStats(appBucket),
	}
	if totalOrders > 0 {
		stats.ParticipationRate = float64(len(feedback)) / float64(totalOrders)
	}
	return stats
}

func modeStats(bucket []Feedback) models.ModeStats {
	return models.ModeStats{
		AvgStarRating: averageRating(bucket),
		Count:         len(bucket),
		AvgCategories: CategoryAverages(bucket),
	}
}

// averageRating is nil when no entry carries a numeric rating.
func averageRating(feedback []Feedback) *float64 {
	var sum float64
	n := 0
	for _, f := range feedback {
		if f.Rating == nil {
			continue
		}
		sum += *f.Rating
		n++
	}
	if n == 0 {
		return nil
	}
	avg := sum / float64(n)
	return &avg
}

// CategoryAverages averages "label:score" category entries per label. Entries that do not
// split into exactly two parts, or whose score is not a number, are ignored.
func CategoryAverages(feedback []Feedback) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, f := range feedback {
		for _, entry := range f.Categories {
			parts := strings.Split(entry, ":")
			if len(parts) != 2 {
				continue
			}
			label := strings.TrimSpace(parts[0])
			score, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
			if err != nil {
				continue
			}
			sums[label] += score
			counts[label]++
		}
	}

	averages := make(map[string]float64, len(sums))
	for label, sum := range sums {
		averages[label] = sum / float64(counts[label])
	}
	return averages
}
