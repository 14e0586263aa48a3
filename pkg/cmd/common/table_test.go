package common

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderTable(t *testing.T) {
	out := RenderTable(
		[]string{"Pos", "Pilot"},
		[][]string{{"1", "alice"}, {"2"}},
		[]ColumnAlignment{AlignRight})
	assert.Contains(t, out, "Pos")
	assert.Contains(t, out, "alice")
	// header, separator lines and two rows
	assert.GreaterOrEqual(t, len(strings.Split(out, "\n")), 4)
}

func TestRenderTableWithoutColumns(t *testing.T) {
	assert.Empty(t, RenderTable(nil, [][]string{{"x"}}, nil))
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, "warn", ParseLogLevel("warn", 0).String())
	assert.Equal(t, "error", ParseLogLevel("nonsense", 2).String())
}
