package services

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Lllllllleong/datasegmentationflow/internal/models"
)

func TestReadSample_CSV(t *testing.T) {
	sample, err := ReadSample([]byte(customersCSV), "customers.csv", 5, false)
	require.NoError(t, err)

	assert.Equal(t, models.Schema{
		{Name: "id", Type: ColumnTypeInteger},
		{Name: "name", Type: ColumnTypeString},
		{Name: "age", Type: ColumnTypeInteger},
		{Name: "vip", Type: ColumnTypeBoolean},
		{Name: "balance", Type: ColumnTypeNumber},
	}, sample.Schema)
	require.Len(t, sample.Rows, 3)
	assert.Equal(t, "Grace", sample.Rows[1]["name"])
}

func TestReadSample_CapsRows(t *testing.T) {
	sample, err := ReadSample([]byte(csvWithRows(50)), "big.csv", 5, false)
	require.NoError(t, err)
	assert.Len(t, sample.Rows, 5)
}

func TestReadSample_DropsTruncatedRecord(t *testing.T) {
	data := []byte("id,region\n1,north\n2,south\n3,ea")
	sample, err := ReadSample(data, "cut.csv", 10, true)
	require.NoError(t, err)
	require.Len(t, sample.Rows, 2)
	assert.Equal(t, "south", sample.Rows[1]["region"])
}

func TestReadSample_ShortRowsArePadded(t *testing.T) {
	sample, err := ReadSample([]byte("\xef\xbb\xbfa,b,c\n1,2\n"), "bom.csv", 5, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, sample.Schema.Names())
	assert.Equal(t, "", sample.Rows[0]["c"])
}

func TestReadSample_XLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"sku", "price"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"A-1", 9.99}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{"B-2", 12.5}))
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	require.NoError(t, f.Close())

	sample, err := ReadSample(buf.Bytes(), "products.xlsx", 5, false)
	require.NoError(t, err)
	assert.Equal(t, models.Schema{
		{Name: "sku", Type: ColumnTypeString},
		{Name: "price", Type: ColumnTypeNumber},
	}, sample.Schema)
	assert.Len(t, sample.Rows, 2)
}

func TestReadSample_Rejects(t *testing.T) {
	tests := []struct {
		name      string
		data      []byte
		file      string
		truncated bool
	}{
		{"unsupported extension", []byte("%PDF-1.4"), "doc.pdf", false},
		{"empty csv", nil, "empty.csv", false},
		{"broken workbook", []byte("not a zip"), "book.xlsx", false},
		{"truncated workbook", []byte("PK"), "book.xlsx", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadSample(tt.data, tt.file, 5, tt.truncated)
			var validation *ValidationError
			assert.ErrorAs(t, err, &validation)
		})
	}
}

func TestInferType(t *testing.T) {
	assert.Equal(t, ColumnTypeInteger, inferType([]string{"1", "", "-3"}))
	assert.Equal(t, ColumnTypeNumber, inferType([]string{"1", "2.5"}))
	assert.Equal(t, ColumnTypeBoolean, inferType([]string{"TRUE", "false"}))
	assert.Equal(t, ColumnTypeString, inferType([]string{"1", "x"}))
	assert.Equal(t, ColumnTypeString, inferType([]string{"", " "}))
}
