package export

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/feichai0017/testcase-generator/internal/models"
)

func TestXLSXExportLayout(t *testing.T) {
	records := []models.TestCaseRecord{
		models.NewTestCaseRecord("TC01", "Login works", "User exists", "1. Open 2. Submit", "Dashboard shown"),
		models.NewTestCaseRecord("TC02", "Logout", "Logged in", "1. Click logout", "Login page shown"),
	}

	data, err := XLSXExporter{}.Export(records)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Test Cases"}, f.GetSheetList())

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, models.Columns, rows[0])
	assert.Equal(t, []string{"TC01", "Login works", "User exists", "1. Open 2. Submit", "Dashboard shown", "Not yet executed", "-"}, rows[1])
	assert.Equal(t, "TC02", rows[2][0])
}

func TestXLSXExportEmpty(t *testing.T) {
	data, err := XLSXExporter{}.Export(nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestJSONExport(t *testing.T) {
	data, err := JSONExporter{}.Export([]models.TestCaseRecord{models.NewTestCaseRecord("TC01", "a", "b", "c", "d")})
	require.NoError(t, err)

	var doc Document
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "Test Cases", doc.Sheet)
	assert.Equal(t, 1, doc.Count)
	assert.Equal(t, "Not yet executed", doc.TestCases[0].Status)
}

func TestNewExporter(t *testing.T) {
	e, err := NewExporter("")
	require.NoError(t, err)
	assert.Equal(t, ".xlsx", e.Extension())

	e, err = NewExporter("json")
	require.NoError(t, err)
	assert.Equal(t, "application/json", e.ContentType())

	_, err = NewExporter("csv")
	assert.Error(t, err)
}
