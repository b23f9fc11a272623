package analytics

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/franchise_analytics/models"
	"github.com/mmdatafocus/franchise_analytics/utils"
	"github.com/shopspring/decimal"
)

// Order is the decoded view of a raw order document.
type Order struct {
	ID          string
	FranchiseId string
	UserId      string
	Status      string
	Total       decimal.Decimal
	// HasTotal is false when the payload's total is missing or not numeric.
	HasTotal     bool
	// NumericTotal is true only when the payload stored the total as a number, not a string.
	NumericTotal bool
	CreatedAt    time.Time
	HasCreatedAt bool
	Items        []OrderItem
}

type OrderItem struct {
	Name           string
	Quantity       int
	Toppings       []string
	AddOns         []AddOn
	ComboSignature string
}

type AddOn struct {
	Name     string
	Price    decimal.Decimal
	HasPrice bool
}

// Feedback is the decoded view of a raw feedback document.
type Feedback struct {
	ID string
	// FranchiseId is empty for unscoped feedback.
	FranchiseId  string
	OrderId      string
	Mode         string
	Rating       *float64
	Categories   []string
	CreatedAt    time.Time
	HasCreatedAt bool
}

func DecodeOrders(docs []models.OrderDocument) []Order {
	orders := make([]Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, DecodeOrder(doc))
	}
	return orders
}

// DecodeOrder reads the fields the aggregators need. Malformed fields decode to their zero
// value instead of failing the document.
func DecodeOrder(doc models.OrderDocument) Order {
	data := map[string]any(doc.Data)
	o := Order{
		ID:          doc.ID,
		FranchiseId: franchiseOf(doc.FranchiseId, data),
		UserId:      stringField(data, "userId"),
		Status:      stringField(data, "status"),
	}
	if o.FranchiseId == "" {
		o.FranchiseId = models.DefaultFranchiseId
	}
	if total, ok := utils.DecimalFromAny(data["total"]); ok {
		o.Total, o.HasTotal = total, true
		_, isString := data["total"].(string)
		o.NumericTotal = !isString
	}
	o.CreatedAt, o.HasCreatedAt = instantField(data, "createdAt", "timestamp")

	for _, raw := range sliceField(data, "items") {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		o.Items = append(o.Items, decodeItem(m))
	}
	return o
}

func decodeItem(m map[string]any) OrderItem {
	item := OrderItem{
		Name:     stringField(m, "name"),
		Quantity: 1,
	}
	if q, ok := utils.FloatFromAny(m["quantity"]); ok && int(q) != 0 {
		item.Quantity = int(q)
	}

	custom, _ := m["customizations"].(map[string]any)
	if custom == nil {
		return item
	}
	for _, t := range sliceField(custom, "toppings") {
		if label := labelOf(t); label != "" {
			item.Toppings = append(item.Toppings, label)
		}
	}
	for _, raw := range sliceField(custom, "addOns") {
		a, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		addOn := AddOn{Name: stringField(a, "name")}
		addOn.Price, addOn.HasPrice = utils.DecimalFromAny(a["price"])
		item.AddOns = append(item.AddOns, addOn)
	}
	item.ComboSignature = stringField(custom, "comboSignature")
	return item
}

func DecodeFeedbacks(docs []models.FeedbackDocument) []Feedback {
	feedback := make([]Feedback, 0, len(docs))
	for _, doc := range docs {
		feedback = append(feedback, DecodeFeedback(doc))
	}
	return feedback
}

func DecodeFeedback(doc models.FeedbackDocument) Feedback {
	data := map[string]any(doc.Data)
	f := Feedback{
		ID:          doc.ID,
		FranchiseId: franchiseOf(doc.FranchiseId, data),
		OrderId:     stringField(data, "orderId"),
		Mode:        stringField(data, "feedbackMode"),
	}
	if r, ok := numberFromAny(data["rating"]); ok {
		f.Rating = &r
	}
	for _, c := range sliceField(data, "categories") {
		if s, ok := c.(string); ok {
			f.Categories = append(f.Categories, s)
		}
	}
	f.CreatedAt, f.HasCreatedAt = instantField(data, "timestamp", "createdAt")
	return f
}

// franchiseOf prefers the indexed column and falls back to the payload field.
func franchiseOf(column *string, data map[string]any) string {
	if column != nil && *column != "" {
		return *column
	}
	return stringField(data, "franchiseId")
}

func instantField(data map[string]any, keys ...string) (time.Time, bool) {
	for _, key := range keys {
		v, present := data[key]
		if !present || v == nil {
			continue
		}
		return ParseInstant(v)
	}
	return time.Time{}, false
}

func stringField(data map[string]any, key string) string {
	switch v := data[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	case json.Number:
		return v.String()
	case float64, int, int64:
		return fmt.Sprint(v)
	default:
		return ""
	}
}

func sliceField(data map[string]any, key string) []any {
	s, _ := data[key].([]any)
	return s
}

// labelOf accepts a plain label or an object carrying a name.
func labelOf(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case map[string]any:
		return stringField(t, "name")
	default:
		return ""
	}
}
