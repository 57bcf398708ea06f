package domain

import (
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// LineConfigurationKey identifies a cart line by variant and ingredient sets.
// Id order and duplicates do not matter.
func LineConfigurationKey(variantID string, addedIDs, removedIDs []string) string {
	return variantID + "|" + canonicalSet(addedIDs) + "|" + canonicalSet(removedIDs)
}

func canonicalSet(ids []string) string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id != "" {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return strings.Join(slices.Compact(out), ",")
}

type AddedIngredient struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type RemovedIngredient struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// LineItem is the frozen form of a purchased cart line. Names and prices are
// resolved when the order is created and never looked up again.
type LineItem struct {
	VariantID   string              `json:"variant_id"`
	ProductName string              `json:"product_name"`
	Dough       string              `json:"dough,omitempty"`
	Size        string              `json:"size,omitempty"`
	UnitPrice   decimal.Decimal     `json:"unit_price"`
	Quantity    int                 `json:"quantity"`
	Added       []AddedIngredient   `json:"added,omitempty"`
	Removed     []RemovedIngredient `json:"removed,omitempty"`
	LineTotal   decimal.Decimal     `json:"line_total"`
}

func NewLineItem(variantID, productName, dough, size string, unitPrice decimal.Decimal, quantity int, added []AddedIngredient, removed []RemovedIngredient) LineItem {
	li := LineItem{
		VariantID:   variantID,
		ProductName: productName,
		Dough:       dough,
		Size:        size,
		UnitPrice:   unitPrice,
		Quantity:    quantity,
		Added:       slices.Clone(added),
		Removed:     slices.Clone(removed),
	}
	li.LineTotal = li.unitWithExtras().Mul(decimal.NewFromInt(int64(quantity))).Round(2)
	return li
}

func (li LineItem) unitWithExtras() decimal.Decimal {
	unit := li.UnitPrice
	for _, a := range li.Added {
		unit = unit.Add(a.Price)
	}
	return unit
}

func (li LineItem) AddedIDs() []string {
	ids := make([]string, len(li.Added))
	for i, a := range li.Added {
		ids[i] = a.ID
	}
	return ids
}

func (li LineItem) RemovedIDs() []string {
	ids := make([]string, len(li.Removed))
	for i, r := range li.Removed {
		ids[i] = r.ID
	}
	return ids
}

// Describe renders the line like "2x Margherita (thin, large) +olives -onion".
func (li LineItem) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%dx %s", li.Quantity, li.ProductName)

	var variant []string
	if li.Dough != "" {
		variant = append(variant, li.Dough)
	}
	if li.Size != "" {
		variant = append(variant, li.Size)
	}
	if len(variant) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(variant, ", "))
	}
	for _, a := range li.Added {
		b.WriteString(" +" + a.Name)
	}
	for _, r := range li.Removed {
		b.WriteString(" -" + r.Name)
	}
	return b.String()
}

// OrderLines is the immutable item list of an order.
type OrderLines []LineItem

func (l OrderLines) Total() decimal.Decimal {
	total := decimal.Zero
	for _, li := range l {
		total = total.Add(li.LineTotal)
	}
	return total
}

func (l OrderLines) Quantity() int {
	n := 0
	for _, li := range l {
		n += li.Quantity
	}
	return n
}

func (l OrderLines) Summary() string {
	parts := make([]string, len(l))
	for i, li := range l {
		parts[i] = li.Describe()
	}
	return strings.Join(parts, "; ")
}
