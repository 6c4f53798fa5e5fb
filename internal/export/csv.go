// Package export renders report tables as CSV downloads with Polish
// locale formatting for PLN amounts.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var plnPrinter = message.NewPrinter(language.Polish)

// PLN renders a money amount the way Polish receipts do, e.g. "1 234,50 zł".
func PLN(amount decimal.Decimal) string {
	value, _ := amount.Round(2).Float64()
	return plnPrinter.Sprintf("%v zł", number.Decimal(value, number.MinFractionDigits(2), number.MaxFractionDigits(2)))
}

// Quantity renders a quantity with its unit label.
func Quantity(qty decimal.Decimal, unitLabel string) string {
	if unitLabel == "" {
		return qty.String()
	}
	return fmt.Sprintf("%s %s", qty.String(), unitLabel)
}

// WriteTable writes a header row and data rows as CSV.
func WriteTable(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ServeCSV sets download headers and writes the table to the response.
func ServeCSV(w http.ResponseWriter, filename string, header []string, rows [][]string) error {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	return WriteTable(w, header, rows)
}
