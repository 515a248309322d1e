package dataset

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"basket-insights/internal/models"
)

const retailCSV = `Invoice,StockCode,Description,Quantity,InvoiceDate,Price,Customer ID,Country
489434,85048,"15CM CHRISTMAS GLASS BALL 20 LIGHTS",12,2009-12-01 07:45:00,6.95,13085.0,United Kingdom
489434,79323P,PINK CHERRY LIGHTS,12,2009-12-01 07:45:00,6.75,13085.0,United Kingdom
489435,22350,"CAT BOWL, SMALL",12,2009-12-01 07:46:00,2.55,,United Kingdom
C489449,22087,PAPER BUNTING WHITE LACE,-12,2009-12-01 10:33:00,2.95,16321.0,Australia
489450,21523,,10,2009-12-01 10:40:00,5.95,15299.0,France
489451,22111,SCOTTIE DOG HOT WATER BOTTLE,abc,2009-12-01 10:40:00,4.95,15299.0,France
`

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func loadCSV(t *testing.T, content string) *Frame {
	t.Helper()
	path := writeFile(t, "retail.csv", []byte(content))
	f, err := Load(context.Background(), path, LoadOptions{})
	require.NoError(t, err)
	return f
}

func TestLoad_CSV(t *testing.T) {
	f := loadCSV(t, retailCSV)

	require.Equal(t, 6, f.Len())
	assert.Len(t, f.Columns(), 8)

	rows := f.Rows()
	assert.Equal(t, "489434", rows[0].Invoice)
	assert.Equal(t, "15CM CHRISTMAS GLASS BALL 20 LIGHTS", rows[0].Description)
	assert.Equal(t, 12.0, rows[0].Quantity)
	assert.Equal(t, 6.95, rows[0].Price)
	assert.Equal(t, "13085", rows[0].CustomerID)
	assert.Equal(t, 2009, rows[0].InvoiceDate.Year())

	assert.Equal(t, "CAT BOWL, SMALL", rows[2].Description, "quoted comma stays in the field")
	assert.True(t, rows[2].Missing.Has(models.ColCustomerID))
	assert.True(t, rows[4].Missing.Has(models.ColDescription))
	assert.True(t, rows[5].Missing.Has(models.ColQuantity), "unparseable numbers count as missing")
}

func TestLoad_Latin1(t *testing.T) {
	content := []byte("Invoice,Description,Quantity,Price,Country\n1,CAF\xc9 MUG,1,2.5,Fran\xe7e\n")
	path := writeFile(t, "latin1.csv", content)

	f, err := Load(context.Background(), path, LoadOptions{Encoding: "iso-8859-1"})
	require.NoError(t, err)
	require.Equal(t, 1, f.Len())
	assert.Equal(t, "CAFÉ MUG", f.Rows()[0].Description)
	assert.Equal(t, "Françe", f.Rows()[0].Country)
}

func TestLoad_HeaderAliases(t *testing.T) {
	f := loadCSV(t, "InvoiceNo,Description,Quantity,UnitPrice,CustomerID,Country\n536365,WHITE METAL LANTERN,6,3.39,17850,United Kingdom\n")

	require.Equal(t, 1, f.Len())
	tx := f.Rows()[0]
	assert.Equal(t, "536365", tx.Invoice)
	assert.Equal(t, 3.39, tx.Price)
	assert.Equal(t, "17850", tx.CustomerID)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr error
	}{
		{"empty file", "empty.csv", "", ErrEmptyFile},
		{"missing column", "short.csv", "Invoice,Description,Quantity\n1,A,1\n", ErrMissingColumn},
		{"unsupported extension", "data.json", "{}", ErrUnsupportedFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, []byte(tt.content))
			_, err := Load(context.Background(), path, LoadOptions{})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "absent.csv"), LoadOptions{})
	assert.Error(t, err)
}

func TestLoad_Cancelled(t *testing.T) {
	path := writeFile(t, "retail.csv", []byte(retailCSV))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Load(ctx, path, LoadOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoad_XLSX(t *testing.T) {
	wb := excelize.NewFile()
	defer wb.Close()

	header := []any{"Invoice", "StockCode", "Description", "Quantity", "InvoiceDate", "Price", "Customer ID", "Country"}
	sheets := map[string][][]any{
		"Year 2009-2010": {
			{"489434", "85048", "GLASS BALL", 12, "2009-12-01 07:45:00", 6.95, "13085", "United Kingdom"},
		},
		"Year 2010-2011": {
			{"536365", "71053", "WHITE METAL LANTERN", 6, "2010-12-01 08:26:00", 3.39, "17850", "United Kingdom"},
			{"536366", "22633", "HAND WARMER UNION JACK", 6, "2010-12-01 08:28:00", 1.85, "", "United Kingdom"},
		},
	}
	require.NoError(t, wb.SetSheetName("Sheet1", "Year 2009-2010"))
	_, err := wb.NewSheet("Year 2010-2011")
	require.NoError(t, err)
	for name, rows := range sheets {
		require.NoError(t, wb.SetSheetRow(name, "A1", &header))
		for i, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+2)
			require.NoError(t, err)
			require.NoError(t, wb.SetSheetRow(name, cell, &row))
		}
	}
	path := filepath.Join(t.TempDir(), "retail.xlsx")
	require.NoError(t, wb.SaveAs(path))

	first, err := Load(context.Background(), path, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Len())

	named, err := Load(context.Background(), path, LoadOptions{Sheet: "Year 2010-2011"})
	require.NoError(t, err)
	require.Equal(t, 2, named.Len())
	assert.Equal(t, "WHITE METAL LANTERN", named.Rows()[0].Description)
	assert.True(t, named.Rows()[1].Missing.Has(models.ColCustomerID))

	all, err := Load(context.Background(), path, LoadOptions{Sheet: AllSheets})
	require.NoError(t, err)
	assert.Equal(t, 3, all.Len())

	_, err = Load(context.Background(), path, LoadOptions{Sheet: "Nope"})
	assert.Error(t, err)
}

func TestLoad_XLSXSheetsWithDifferentHeaders(t *testing.T) {
	wb := excelize.NewFile()
	defer wb.Close()

	full := []any{"Invoice", "Description", "Quantity", "Price", "Customer ID", "Country"}
	short := []any{"Invoice", "Description", "Quantity", "Price", "Country"}
	require.NoError(t, wb.SetSheetRow("Sheet1", "A1", &full))
	require.NoError(t, wb.SetSheetRow("Sheet1", "A2", &[]any{"1001", "GLASS BALL", 12, 6.95, "13085", "United Kingdom"}))
	_, err := wb.NewSheet("Sheet2")
	require.NoError(t, err)
	require.NoError(t, wb.SetSheetRow("Sheet2", "A1", &short))
	require.NoError(t, wb.SetSheetRow("Sheet2", "A2", &[]any{"1002", "LANTERN", 6, 3.39, "France"}))
	require.NoError(t, wb.SetSheetRow("Sheet2", "A3", &[]any{"1003", "HAND WARMER", 6, 1.85, "France"}))
	path := filepath.Join(t.TempDir(), "mixed.xlsx")
	require.NoError(t, wb.SaveAs(path))

	f, err := Load(context.Background(), path, LoadOptions{Sheet: AllSheets})
	require.NoError(t, err)
	require.Equal(t, 3, f.Len())
	assert.False(t, f.Rows()[0].Missing.Has(models.ColCustomerID))
	assert.True(t, f.Rows()[1].Missing.Has(models.ColCustomerID))
	assert.True(t, f.Rows()[2].Missing.Has(models.ColCustomerID))

	counts := make(map[string]int)
	for _, mc := range f.MissingCounts() {
		counts[mc.Column] = mc.Missing
	}
	assert.Equal(t, 2, counts["Customer ID"])

	clean := f.DropMissing()
	require.Equal(t, 1, clean.Len())
	assert.Equal(t, "1001", clean.Rows()[0].Invoice)
}

func TestEncodings(t *testing.T) {
	names := Encodings()
	assert.Contains(t, names, "cp1252")
	assert.Contains(t, names, "utf8")
	assert.Contains(t, names, DefaultEncoding)
	for _, name := range names {
		assert.True(t, SupportedEncoding(name), name)
		_, err := decoder(name)
		assert.NoError(t, err, name)
	}
	assert.True(t, SupportedEncoding("Windows-1252"))
	assert.False(t, SupportedEncoding("ebcdic"))

	_, err := decoder("ebcdic")
	assert.Error(t, err)
}

func TestFrame_MissingAndDrop(t *testing.T) {
	f := loadCSV(t, retailCSV)

	counts := make(map[string]int)
	for _, mc := range f.MissingCounts() {
		counts[mc.Column] = mc.Missing
	}
	assert.Equal(t, 1, counts["Customer ID"])
	assert.Equal(t, 1, counts["Description"])
	assert.Equal(t, 1, counts["Quantity"])
	assert.Equal(t, 0, counts["Invoice"])

	clean := f.DropMissing()
	assert.Equal(t, 3, clean.Len())
	for _, mc := range clean.MissingCounts() {
		assert.Zero(t, mc.Missing, mc.Column)
	}

	positive := clean.FilterPositive()
	assert.Equal(t, 2, positive.Len())
	for _, tx := range positive.Rows() {
		assert.Positive(t, tx.Quantity)
		assert.Positive(t, tx.Price)
	}
}

func TestFrame_ValueCountsAndTotals(t *testing.T) {
	f := loadCSV(t, retailCSV)

	countries := f.ValueCounts(models.ColCountry)
	require.Len(t, countries, 3)
	assert.Equal(t, models.ValueCount{Value: "United Kingdom", Count: 3}, countries[0])
	assert.Equal(t, models.ValueCount{Value: "France", Count: 2}, countries[1])

	totals := f.DropMissing().InvoiceTotals()
	require.Len(t, totals, 2)
	assert.InDelta(t, 12*6.95+12*6.75, totals[0], 1e-9)
	assert.InDelta(t, -12*2.95, totals[1], 1e-9)
}

func TestMinMaxScaler(t *testing.T) {
	f := loadCSV(t, retailCSV).DropMissing().FilterPositive()

	var s MinMaxScaler
	_, err := s.Transform(f)
	require.ErrorIs(t, err, ErrNotFitted)

	scaled, err := s.FitTransform(f)
	require.NoError(t, err)
	for _, tx := range scaled.Rows() {
		assert.GreaterOrEqual(t, tx.Quantity, 0.0)
		assert.LessOrEqual(t, tx.Quantity, 1.0)
		assert.GreaterOrEqual(t, tx.Price, 0.0)
		assert.LessOrEqual(t, tx.Price, 1.0)
	}
	// equal quantities collapse to 0, prices span the range
	assert.Equal(t, 0.0, scaled.Rows()[0].Quantity)
	assert.Equal(t, 1.0, scaled.Rows()[0].Price)
	assert.Equal(t, 0.0, scaled.Rows()[1].Price)

	lo, hi, ok := s.Range(models.ColPrice)
	require.True(t, ok)
	assert.Equal(t, 6.75, lo)
	assert.Equal(t, 6.95, hi)

	assert.Equal(t, 12.0, f.Rows()[0].Quantity, "input frame is not modified")
	assert.Error(t, new(MinMaxScaler).Fit(NewFrame(nil, nil)))
}

func TestOneHot(t *testing.T) {
	f := loadCSV(t, retailCSV)

	enc, err := OneHot(f, models.ColCountry)
	require.NoError(t, err)
	assert.Equal(t, []string{"Country_Australia", "Country_France", "Country_United Kingdom"}, enc.Columns())
	assert.Equal(t, f.Len(), enc.Len())
	assert.Equal(t, []uint8{0, 0, 1}, enc.Row(0))
	assert.Equal(t, []uint8{1, 0, 0}, enc.Row(3))
	assert.Equal(t, []int{1, 2, 3}, enc.Counts())

	m := enc.Matrix()
	require.Len(t, m, f.Len())
	assert.Equal(t, enc.Row(3), m[3])

	_, err = OneHot(f, models.ColPrice)
	assert.Error(t, err)
}

func TestBox(t *testing.T) {
	box := Box("Quantity", []float64{1, 2, 3, 4, 5, 6, 7, 8, 100})

	assert.Equal(t, 9, box.Count)
	assert.Equal(t, 1.0, box.Min)
	assert.Equal(t, 100.0, box.Max)
	assert.Equal(t, 3.0, box.Q1)
	assert.Equal(t, 5.0, box.Median)
	assert.Equal(t, 7.0, box.Q3)
	assert.Equal(t, 1.0, box.LowerWhisker)
	assert.Equal(t, 8.0, box.UpperWhisker)
	assert.Equal(t, 1, box.Outliers)

	assert.Zero(t, Box("Price", nil).Count)
}

func TestHistogram(t *testing.T) {
	bins := Histogram([]float64{0, 1, 2, 3, 4, 10}, 5)
	require.Len(t, bins, 5)
	assert.Equal(t, 0.0, bins[0].Lower)
	assert.Equal(t, 10.0, bins[4].Upper)
	assert.Equal(t, 2, bins[0].Count)
	assert.Equal(t, 2, bins[1].Count)
	assert.Equal(t, 1, bins[4].Count)

	total := 0
	for _, b := range bins {
		total += b.Count
	}
	assert.Equal(t, 6, total)

	flat := Histogram([]float64{3, 3}, 2)
	assert.Equal(t, 2, flat[0].Count+flat[1].Count)
	assert.Empty(t, Histogram(nil, 10))
}

func TestSample(t *testing.T) {
	items := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	assert.Equal(t, []int{0, 2, 4, 6, 8}, Sample(items, 5))
	assert.Equal(t, items, Sample(items, 20))
}
