package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Title:   "Week 3 study plan",
		Headers: []string{"Day", "From", "To", "Subject"},
		Rows: []map[string]string{
			{"Day": "Monday", "From": "06:00", "To": "07:30", "Subject": "Math"},
			{"Day": "Saturday", "From": "06:00", "To": "07:30", "Subject": "Revision, light"},
		},
		Notes: []string{"Focus: Math"},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)

	assert.Equal(t, "Day,From,To,Subject\nMonday,06:00,07:30,Math\nSaturday,06:00,07:30,\"Revision, light\"\n", string(out))
}

func TestCSVExporterLeavesMissingCellsEmpty(t *testing.T) {
	data := Dataset{
		Headers: []string{"Day", "Subject"},
		Rows:    []map[string]string{{"Day": "Sunday"}},
	}

	out, err := NewCSVExporter().Render(data)
	require.NoError(t, err)

	assert.Equal(t, "Day,Subject\nSunday,\n", string(out))
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset())
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestRenderersRequireHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
	_, err = NewPDFExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, f)

	f, err = ParseFormat("csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", f.ContentType())
	assert.IsType(t, &CSVExporter{}, RendererFor(f))

	_, err = ParseFormat("xlsx")
	assert.Error(t, err)
}
