package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMode(t *testing.T) {
	assert.Equal(t, ModeJSON, Mode("JSON"))
	assert.Equal(t, ModeMarkdown, Mode(" markdown "))
	assert.Equal(t, ModeText, Mode("text"))
	assert.Equal(t, ModeAuto, Mode(""))
	assert.Equal(t, ModeAuto, Mode("yaml"))
}

func TestEffectiveMode(t *testing.T) {
	var out bytes.Buffer
	assert.Equal(t, ModeText, NewRendererWithTTY(&out, &out, true, ModeAuto).EffectiveMode())
	assert.Equal(t, ModeMarkdown, NewRendererWithTTY(&out, &out, false, ModeAuto).EffectiveMode())
	assert.Equal(t, ModeJSON, NewRendererWithTTY(&out, &out, true, ModeJSON).EffectiveMode())

	// Buffers are never terminals.
	assert.False(t, NewRenderer(&out, &out, ModeAuto).IsTTY())
}

func TestTable(t *testing.T) {
	tests := []struct {
		name string
		mode OutputMode
		want []string
	}{
		{"markdown", ModeMarkdown, []string{"| row | title |", "| 2 | lamp |"}},
		{"text", ModeText, []string{"row", "title", "lamp", "│"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			r := NewRendererWithTTY(&out, &out, false, tt.mode)
			r.Table([]string{"Row", "Title"}, [][]string{{"1", "Cable"}, {"2", "Lamp"}})
			got := strings.ToLower(out.String())
			for _, want := range tt.want {
				assert.Contains(t, got, want)
			}
		})
	}
}

func TestEmptyTable(t *testing.T) {
	var out bytes.Buffer
	NewRendererWithTTY(&out, &out, false, ModeMarkdown).Table([]string{"A"}, nil)
	assert.Equal(t, "(0 rows)\n", out.String())
}

func TestMarkdownHelpers(t *testing.T) {
	var out, errOut bytes.Buffer
	r := NewRendererWithTTY(&out, &errOut, false, ModeAuto)

	r.Header(2, "Mappings")
	r.KeyValue("Signature", "abc")
	r.Warning("column missing")

	assert.True(t, strings.HasPrefix(out.String(), "## Mappings\n\n"))
	assert.Contains(t, out.String(), "- **Signature:** abc")
	assert.Equal(t, "warning: column missing\n", errOut.String())
	assert.NotContains(t, out.String(), "\x1b[")
}

func TestJSON(t *testing.T) {
	var out bytes.Buffer
	r := NewRendererWithTTY(&out, &out, false, ModeJSON)
	require.NoError(t, r.JSON(map[string]int{"rows": 3}))
	assert.JSONEq(t, `{"rows": 3}`, out.String())
}
