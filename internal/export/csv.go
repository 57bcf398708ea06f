// Package export renders reporting views of orders.
package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/Skotchmaster/food_order/internal/models"
)

var orderColumns = []string{
	"order_id", "date", "time", "customer_name", "customer_email", "customer_phone",
	"address", "items", "total", "status", "payment_reference", "demo",
}

// WriteOrdersCSV writes one row per order with dates in loc.
func WriteOrdersCSV(w io.Writer, orders []models.Order, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(orderColumns); err != nil {
		return err
	}
	for _, o := range orders {
		at := o.CreatedAt.In(loc)
		row := []string{
			o.ID.String(),
			at.Format("2006-01-02"),
			at.Format("15:04"),
			o.CustomerName,
			o.CustomerEmail,
			o.CustomerPhone,
			o.Address,
			o.Lines.Summary(),
			o.TotalAmount.StringFixed(2),
			string(o.Status),
			o.PaymentReference,
			strconv.FormatBool(o.Demo),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
