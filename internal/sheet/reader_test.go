package sheet

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestReadCSV(t *testing.T) {
	in := "\xef\xbb\xbfParty Code,party_name,Phone\nP-1, Acme ,\nP-2,Beta\n"
	rows, err := Read("parties.csv", strings.NewReader(in), 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "P-1", rows[0].Get("party_code"))
	assert.Equal(t, "Acme", rows[0].Get("party_name"))
	assert.Nil(t, rows[0].Ptr("phone"))
	assert.Equal(t, "", rows[1].Get("phone"))
}

func TestReadCSV_RowLimit(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("a\n1\n2\n3\n"), 2)
	require.Error(t, err)
}

func TestRead_Unsupported(t *testing.T) {
	_, err := Read("parties.pdf", strings.NewReader(""), 0)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestReadXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheetName := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheetName, "A1", &[]any{"Cylinder Code", "Cylinder Family Code"}))
	require.NoError(t, f.SetSheetRow(sheetName, "A2", &[]any{"CYL-1", "B-47L"}))
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	rows, err := Read("cylinders.xlsx", &buf, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "CYL-1", rows[0].Get("cylinder_code"))
	assert.Equal(t, "B-47L", rows[0].Get("cylinder_family_code"))
}

func TestRow_Empty(t *testing.T) {
	assert.True(t, Row{"a": " ", "b": ""}.Empty())
	assert.False(t, Row{"a": "x"}.Empty())
}
