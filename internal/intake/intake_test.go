package intake

import (
	"strings"
	"testing"

	"github.com/leapstack-labs/manifestkit/pkg/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

func rowNumbers(rows []manifest.RawRow) []int {
	out := make([]int, len(rows))
	for i, r := range rows {
		out[i] = r.RowNumber
	}
	return out
}

func TestParse(t *testing.T) {
	data := "Qty, Description ,Cost\n2,USB cable,4.99\n1,\"Lamp, brass\",19.00\n"

	m, err := Parse([]byte(data))
	require.NoError(t, err)

	assert.Equal(t, []string{"Qty", "Description", "Cost"}, m.Headers)
	assert.Equal(t, manifest.HeaderSignature([]string{"qty", "description", "cost"}), m.Signature)
	assert.Equal(t, EncodingUTF8, m.Encoding)
	assert.Empty(t, m.Warnings)

	require.Len(t, m.Rows, 2)
	assert.Equal(t, manifest.RawRow{RowNumber: 1, Raw: manifest.Row{"Qty": "2", "Description": "USB cable", "Cost": "4.99"}}, m.Rows[0])
	assert.Equal(t, "Lamp, brass", m.Rows[1].Raw["Description"])
	assert.Equal(t, 2, m.Rows[1].RowNumber)
}

func TestParseBlankRowsKeepNumbering(t *testing.T) {
	tests := []struct {
		name string
		data string
		want []int
	}{
		{
			name: "empty cells",
			data: "A,B\nx,1\n,\ny,2\n",
			want: []int{1, 3},
		},
		{
			name: "empty line",
			data: "A,B\nx,1\n\ny,2\n",
			want: []int{1, 3},
		},
		{
			name: "several empty lines with CRLF",
			data: "A,B\r\nx,1\r\n\r\n\r\ny,2\r\n",
			want: []int{1, 4},
		},
		{
			name: "multi-line quoted cell",
			data: "A,B\n\"line one\nline two\",1\ny,2\n",
			want: []int{1, 2},
		},
		{
			name: "whitespace cells are kept",
			data: "A,B\n  ,\t\nz,3\n",
			want: []int{1, 2},
		},
		{
			name: "whitespace row between empty rows",
			data: "Qty,Desc\n1,a\n  ,  \n\n2,b\n",
			want: []int{1, 2, 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Parse([]byte(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.want, rowNumbers(m.Rows))
		})
	}
}

func TestParseRaggedRows(t *testing.T) {
	m, err := Parse([]byte("A,B,C\n1\n1,2,3,4\n"))
	require.NoError(t, err)

	require.Len(t, m.Rows, 2)
	assert.Equal(t, manifest.Row{"A": "1", "B": "", "C": ""}, m.Rows[0].Raw)
	assert.Equal(t, manifest.Row{"A": "1", "B": "2", "C": "3"}, m.Rows[1].Raw)

	require.Len(t, m.Warnings, 2)
	assert.Equal(t, 1, m.Warnings[0].Row)
	assert.Contains(t, m.Warnings[0].Message, "padding")
	assert.Equal(t, 2, m.Warnings[1].Row)
	assert.Contains(t, m.Warnings[1].Message, "truncating")
}

func TestParseErrors(t *testing.T) {
	_, err := Parse(nil)
	assert.ErrorIs(t, err, ErrNoHeader)

	_, err = Parse([]byte("SKU,Title,sku2,Title\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate header "Title"`)
}

func TestParseHeaderOnly(t *testing.T) {
	m, err := Parse([]byte("A,B\n"))
	require.NoError(t, err)
	assert.Empty(t, m.Rows)
	assert.Empty(t, m.Preview(0))
}

func TestParseEncodings(t *testing.T) {
	const text = "Brand,Title\nCafé,Crème brûlée torch\n"

	utf16le, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().String(text)
	require.NoError(t, err)
	utf16be, err := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder().String(text)
	require.NoError(t, err)
	cp1252, err := charmap.Windows1252.NewEncoder().String(text)
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
		want Encoding
	}{
		{"utf-8", []byte(text), EncodingUTF8},
		{"utf-8 bom", append([]byte{0xEF, 0xBB, 0xBF}, text...), EncodingUTF8BOM},
		{"utf-16le", []byte(utf16le), EncodingUTF16LE},
		{"utf-16be", []byte(utf16be), EncodingUTF16BE},
		{"windows-1252", []byte(cp1252), EncodingWindows1252},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Parse(tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Encoding)
			assert.Equal(t, []string{"Brand", "Title"}, m.Headers)
			require.Len(t, m.Rows, 1)
			assert.Equal(t, "Café", m.Rows[0].Raw["Brand"])
			assert.Equal(t, "Crème brûlée torch", m.Rows[0].Raw["Title"])
		})
	}
}

func TestPreview(t *testing.T) {
	var b strings.Builder
	b.WriteString("N\n")
	for i := range 30 {
		b.WriteString(strings.Repeat("x", i+1))
		b.WriteString("\n")
	}

	m, err := Read(strings.NewReader(b.String()))
	require.NoError(t, err)
	require.Len(t, m.Rows, 30)

	assert.Len(t, m.Preview(0), DefaultPreviewRows)
	assert.Len(t, m.Preview(5), 5)
	assert.Len(t, m.Preview(100), 30)
	assert.Equal(t, 1, m.Preview(1)[0].RowNumber)
}

func TestSearch(t *testing.T) {
	m, err := Parse([]byte(`Brand,Title
Anker,USB cable
IKEA,Desk lamp
anker,HDMI cable
`))
	require.NoError(t, err)

	assert.Equal(t, []int{1, 3}, rowNumbers(m.Search("ANKER")))
	assert.Equal(t, []int{2}, rowNumbers(m.Search(" lamp ")))
	assert.Empty(t, m.Search("sofa"))
	assert.Len(t, m.Search(""), 3)

	matched := m.Search("cable")
	assert.Equal(t, []int{1}, rowNumbers(Preview(matched, 1)))
	assert.Len(t, Preview(matched, 0), 2)
}
