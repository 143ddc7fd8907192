package services

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// LineItem is a client item descriptor after normalization. UnitPrice is
// whatever the client claimed; it is informational and never used for totals.
type LineItem struct {
	ProductID uint
	Quantity  int
	UnitPrice decimal.Decimal
	Title     string
	Notes     string
}

var (
	productIDKeys = []string{"productId", "product_id", "product", "id"}
	quantityKeys  = []string{"quantity", "qty"}
	unitPriceKeys = []string{"unitPrice", "unit_price", "price", "precio"}
	titleKeys     = []string{"title", "nombre", "name"}
)

// NormalizeLineItem turns a decoded JSON object into a LineItem. It never
// panics: any value that cannot be read as the expected type yields an
// ErrInvalidLineItem.
func NormalizeLineItem(raw map[string]interface{}) (LineItem, error) {
	var item LineItem
	if raw == nil {
		return item, fmt.Errorf("%w: empty item", ErrInvalidLineItem)
	}

	idVal, ok := firstPresent(raw, productIDKeys)
	if !ok {
		return item, fmt.Errorf("%w: product id is required", ErrInvalidLineItem)
	}
	id, ok := toWholeNumber(idVal)
	if !ok || id <= 0 || id > math.MaxUint32 {
		return item, fmt.Errorf("%w: product id %v is not a positive integer", ErrInvalidLineItem, idVal)
	}
	item.ProductID = uint(id)

	qtyVal, ok := firstPresent(raw, quantityKeys)
	if !ok {
		return item, fmt.Errorf("%w: quantity is required", ErrInvalidLineItem)
	}
	qty, ok := toWholeNumber(qtyVal)
	if !ok || qty <= 0 || qty > math.MaxInt32 {
		return item, fmt.Errorf("%w: quantity %v must be a positive integer", ErrInvalidLineItem, qtyVal)
	}
	item.Quantity = int(qty)

	item.UnitPrice = decimal.Zero
	if priceVal, ok := firstPresent(raw, unitPriceKeys); ok {
		price, ok := toDecimal(priceVal)
		if !ok || price.IsNegative() {
			return item, fmt.Errorf("%w: unit price %v must be a non-negative number", ErrInvalidLineItem, priceVal)
		}
		item.UnitPrice = price
	}

	if titleVal, ok := firstPresent(raw, titleKeys); ok {
		if s, ok := titleVal.(string); ok {
			item.Title = strings.TrimSpace(s)
		}
	}
	if notes, ok := raw["notes"].(string); ok {
		item.Notes = strings.TrimSpace(notes)
	}
	return item, nil
}

// firstPresent returns the first non-null value among keys.
func firstPresent(raw map[string]interface{}, keys []string) (interface{}, bool) {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func toDecimal(v interface{}) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(n), true
	case float32:
		return toDecimal(float64(n))
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case uint:
		return decimal.NewFromInt(int64(n)), true
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(s)
		return d, err == nil
	}
	return decimal.Zero, false
}

// toWholeNumber accepts integral numbers and numeric strings ("2", 2, 2.0).
func toWholeNumber(v interface{}) (int64, bool) {
	if s, ok := v.(string); ok {
		if n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return n, true
		}
	}
	d, ok := toDecimal(v)
	if !ok || !d.IsInteger() {
		return 0, false
	}
	if d.GreaterThan(decimal.NewFromInt(math.MaxInt64)) || d.LessThan(decimal.NewFromInt(math.MinInt64)) {
		return 0, false
	}
	return d.IntPart(), true
}

// ParseTableNumber reads a table number sent as a JSON number or string.
// A missing value yields 0.
func ParseTableNumber(v interface{}) (uint, error) {
	if v == nil {
		return 0, nil
	}
	n, ok := toWholeNumber(v)
	if !ok || n <= 0 || n > math.MaxUint32 {
		return 0, fmt.Errorf("%w: table %v is not a positive integer", ErrValidation, v)
	}
	return uint(n), nil
}
