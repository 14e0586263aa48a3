package bracket

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/fpv-racedash/pkg/bracket"
)

const brokenFormat = `
name: broken
nodes:
  - order: 1
    code: A
    label: Heat A
    round: r1
    stage: winners
    slots: 2
    rules:
      - position: 1
        to: 7
rounds:
  - id: r1
    label: Round 1
    nodes: [1]
`

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte(brokenFormat), 0o600))

	var buf bytes.Buffer
	err := validate(&buf, []string{broken})
	require.Error(t, err)
	assert.Contains(t, buf.String(), "broken.yaml: invalid")
	assert.Contains(t, buf.String(), "unknown node order 7")
}

func TestRenderFormat(t *testing.T) {
	f, err := bracket.Builtin(bracket.DefaultFormat)
	require.NoError(t, err)
	out := RenderFormat(f)
	for _, n := range f.Nodes {
		assert.Contains(t, out, n.Code)
	}
	assert.Contains(t, out, "final")
}
