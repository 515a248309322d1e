package models

import (
	"strings"
	"time"
)

// Column identifies a field of the transaction log.
type Column uint8

const (
	ColInvoice Column = iota
	ColStockCode
	ColDescription
	ColQuantity
	ColInvoiceDate
	ColPrice
	ColCustomerID
	ColCountry
	NumColumns
)

var columnNames = [NumColumns]string{
	ColInvoice:     "Invoice",
	ColStockCode:   "StockCode",
	ColDescription: "Description",
	ColQuantity:    "Quantity",
	ColInvoiceDate: "InvoiceDate",
	ColPrice:       "Price",
	ColCustomerID:  "Customer ID",
	ColCountry:     "Country",
}

// Header aliases used by the older UCI "Online Retail" export.
var columnAliases = map[string]Column{
	"invoiceno":  ColInvoice,
	"unitprice":  ColPrice,
	"customerid": ColCustomerID,
}

// RequiredColumns must be present in every input file.
var RequiredColumns = []Column{ColInvoice, ColDescription, ColQuantity, ColPrice, ColCountry}

func (c Column) String() string {
	if c < NumColumns {
		return columnNames[c]
	}
	return "Unknown"
}

// ParseColumn maps a header cell to a Column, ignoring case and spacing.
func ParseColumn(header string) (Column, bool) {
	key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(header), " ", ""))
	for c := Column(0); c < NumColumns; c++ {
		if strings.ToLower(strings.ReplaceAll(columnNames[c], " ", "")) == key {
			return c, true
		}
	}
	c, ok := columnAliases[key]
	return c, ok
}

// ColumnSet is a bitmask of columns.
type ColumnSet uint16

func (s ColumnSet) Has(c Column) bool { return s&(1<<c) != 0 }

func (s ColumnSet) With(c Column) ColumnSet { return s | 1<<c }

func (s ColumnSet) Intersects(o ColumnSet) bool { return s&o != 0 }

// Transaction is one invoice line item.
type Transaction struct {
	Invoice     string
	StockCode   string
	Description string
	Quantity    float64
	InvoiceDate time.Time
	Price       float64
	CustomerID  string
	Country     string

	// Missing records the columns that were blank or unparseable.
	Missing ColumnSet
}

// Amount is the line total.
func (t Transaction) Amount() float64 {
	return t.Quantity * t.Price
}

type MissingCount struct {
	Column  string `json:"column"`
	Missing int    `json:"missing"`
}

type BoxStats struct {
	Column       string  `json:"column"`
	Count        int     `json:"count"`
	Min          float64 `json:"min"`
	Q1           float64 `json:"q1"`
	Median       float64 `json:"median"`
	Q3           float64 `json:"q3"`
	Max          float64 `json:"max"`
	LowerWhisker float64 `json:"lower_whisker"`
	UpperWhisker float64 `json:"upper_whisker"`
	Outliers     int     `json:"outliers"`
}

type ScatterPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type PreprocessSummary struct {
	OriginalRows         int     `json:"original_rows"`
	CleanRows            int     `json:"clean_rows"`
	OriginalMeanPrice    float64 `json:"original_mean_price"`
	CleanMeanPrice       float64 `json:"clean_mean_price"`
	OriginalMeanQuantity float64 `json:"original_mean_quantity"`
	CleanMeanQuantity    float64 `json:"clean_mean_quantity"`
}

type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

type HistogramBin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}
