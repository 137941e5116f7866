package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/billus/billus-server/internal/billing"
)

func TestWriteGroupedTotalsCSV(t *testing.T) {
	var buf bytes.Buffer
	err := WriteGroupedTotalsCSV(&buf, "202406", []billing.GroupTotal{
		{Label: "acme", Total: 3000},
		{Label: "globex", Total: 1500},
	})
	require.NoError(t, err)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"Period", "Label", "Total"}, records[0])
	assert.Equal(t, []string{"202406", "acme", "3000"}, records[1])
	assert.Equal(t, []string{"202406", "globex", "1500"}, records[2])
}

func TestWritePivotCSV(t *testing.T) {
	pivot := billing.Pivot{Month: "202406", GrandTotal: 3000}
	for i := range pivot.Days {
		pivot.Days[i] = fmt.Sprintf("%02d", i+1)
	}
	row := billing.PivotRow{Label: "kim", Count: 3, Amount: 3000}
	row.Cells[0] = 1
	row.Cells[1] = 2
	pivot.Rows = []billing.PivotRow{row}

	var buf bytes.Buffer
	require.NoError(t, WritePivotCSV(&buf, pivot))
	out := buf.String()

	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	header := records[0]
	require.Len(t, header, billing.PivotDays+3)
	assert.Equal(t, "Label", header[0])
	assert.Equal(t, "01", header[1])
	assert.Equal(t, "31", header[billing.PivotDays])
	assert.Equal(t, "Amount", header[len(header)-1])

	line := records[1]
	assert.Equal(t, "kim", line[0])
	assert.Equal(t, "1", line[1])
	assert.Equal(t, "2", line[2])
	assert.Equal(t, "0", line[3])
	assert.Equal(t, "3", line[len(line)-2])
	assert.Equal(t, "3000", line[len(line)-1])

	footer := records[2]
	assert.Equal(t, "Grand Total", footer[0])
	assert.Equal(t, "3000", footer[len(footer)-1])
	assert.True(t, strings.HasPrefix(out, "Label,"))
}
