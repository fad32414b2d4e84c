package console

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplayWidth(t *testing.T) {
	assert.Equal(t, 5, DisplayWidth("hello"))
	assert.Equal(t, 4, DisplayWidth("伺服"))
	assert.Equal(t, 6, DisplayWidth("ab伺服"))
	assert.Equal(t, 2, DisplayWidth("Ａ"), "fullwidth latin")
}

func TestStatPadsToLineWidth(t *testing.T) {
	var buf bytes.Buffer
	old := Out
	Out = &buf
	defer func() { Out = old }()

	Stat("systems", 6)
	Stat("系統", 6)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
	dots := func(s string) int { return strings.Count(s, "·") }
	// "系統" fills four columns against seven for "systems".
	assert.Equal(t, dots(lines[0])+3, dots(lines[1]))
	assert.Equal(t, 34, dots(lines[0]))
}

func TestCenter(t *testing.T) {
	assert.Equal(t, "  ab  ", center("ab", 6))
	assert.Equal(t, "toolong", center("toolong", 3))
}
