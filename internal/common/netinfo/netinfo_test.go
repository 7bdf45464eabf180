package netinfo

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebugAddressesBoundHost(t *testing.T) {
	a := DebugAddresses("127.0.0.1", 9464)
	assert.Equal(t, "http://127.0.0.1:9464", a.Local)
	assert.Empty(t, a.LAN)
	require.Len(t, a.Notes, 1)
	assert.Contains(t, a.Notes[0], "127.0.0.1")
}

func TestDebugAddressesAllInterfaces(t *testing.T) {
	a := DebugAddresses("", 9464)
	assert.Equal(t, "http://127.0.0.1:9464", a.Local)
	if a.LAN == "" {
		assert.NotEmpty(t, a.Notes)
	} else {
		assert.True(t, strings.HasSuffix(a.LAN, ":9464"))
	}
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "chattie-sync", Addresses{
		Local: "http://127.0.0.1:9464",
		Notes: []string{strings.Repeat("x", 100)},
	}, map[string]string{"User": "u1", "Version": ""}, []string{"User", "Version"})

	out := buf.String()
	assert.Contains(t, out, "chattie-sync")
	assert.Contains(t, out, "User:   u1")
	assert.NotContains(t, out, "Version:")

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	// Header, title, divider, debug, user, two wrapped note lines, footer.
	assert.Len(t, lines, 8)
	width := len([]rune(lines[0]))
	for _, l := range lines {
		assert.Equal(t, width, len([]rune(l)), l)
	}
}

func TestWrapText(t *testing.T) {
	assert.Equal(t, []string{"short"}, wrapText("short", 10))
	assert.Equal(t, []string{"abcd", "efgh", "ij"}, wrapText("abcdefghij", 4))
}
