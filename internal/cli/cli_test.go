package cli

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/typelog/internal/identity"
	"github.com/runnerr0/typelog/internal/remote"
)

func TestVersionFlag(t *testing.T) {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	err := RunWithArgs("0.1.0-test", []string{"--version"})

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	buf.ReadFrom(r)
	output := buf.String()

	assert.NoError(t, err)
	assert.Contains(t, output, "typelog 0.1.0-test")
}

func TestVersionOutputFormat(t *testing.T) {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	_ = RunWithArgs("1.2.3", []string{"--version"})

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	buf.ReadFrom(r)
	output := strings.TrimSpace(buf.String())

	assert.Equal(t, "typelog 1.2.3", output)
}

func TestAllSubcommandsExist(t *testing.T) {
	expected := []string{"status", "chapters", "sync", "recompute", "purge"}
	parser, _, _ := buildParser("test")

	for _, name := range expected {
		cmd := parser.Find(name)
		assert.NotNil(t, cmd, "subcommand %q should exist", name)
	}
}

func TestChaptersRequiresDict(t *testing.T) {
	err := RunWithArgs("test", []string{"chapters", "--chapters", "5"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--dict is required")
}

func TestChaptersRequiresChapterCount(t *testing.T) {
	err := RunWithArgs("test", []string{"chapters", "--dict", "cet4"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--chapters")
}

func TestSyncRejectsPullAndPush(t *testing.T) {
	err := RunWithArgs("test", []string{"sync", "--pull", "--push"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestPurgeRequiresAll(t *testing.T) {
	err := RunWithArgs("test", []string{"purge"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--all flag")
}

func TestPurgeForceFlag(t *testing.T) {
	p, _, c := buildParser("test")
	c.Purge.store = openTestStore(t)

	output := captureOutput(t, func() {
		_, err := p.ParseArgs([]string{"purge", "--all", "--force"})
		require.NoError(t, err)
	})
	assert.True(t, c.Purge.All)
	assert.True(t, c.Purge.Force)
	assert.Contains(t, output, "Purged all data")
}

func TestChaptersFlagDefaults(t *testing.T) {
	p, _, c := buildParser("test")
	c.Chapters.store = openTestStore(t)

	_ = captureOutput(t, func() {
		_, err := p.ParseArgs([]string{"chapters", "--dict", "cet4", "--chapters", "10"})
		require.NoError(t, err)
	})
	assert.Equal(t, "cet4", c.Chapters.Dict)
	assert.Equal(t, 10, c.Chapters.Chapters)
	assert.Equal(t, -1, c.Chapters.Current)
	assert.False(t, c.Chapters.Next)
}

func TestSyncTableFlag(t *testing.T) {
	p, _, c := buildParser("test")
	c.Sync.store = openTestStore(t)
	c.Sync.gateway = remote.NewMemory(&identity.Static{ID: "u1"})

	_ = captureOutput(t, func() {
		_, err := p.ParseArgs([]string{"sync", "--table", "wordRecords"})
		require.NoError(t, err)
	})
	assert.Equal(t, "wordRecords", c.Sync.Table)
}

func TestGlobalFlagsJSON(t *testing.T) {
	parser, globals, c := buildParser("test")
	c.Recompute.store = openTestStore(t)

	_ = captureOutput(t, func() {
		_, err := parser.ParseArgs([]string{"--json", "recompute"})
		require.NoError(t, err)
	})
	assert.True(t, globals.JSON)
}

func TestGlobalFlagsConfig(t *testing.T) {
	parser, globals, c := buildParser("test")
	c.Recompute.store = openTestStore(t)

	_ = captureOutput(t, func() {
		_, _ = parser.ParseArgs([]string{"--config", "/tmp/test.yaml", "recompute"})
	})
	assert.Equal(t, "/tmp/test.yaml", globals.Config)
}

func TestUnknownSubcommandFails(t *testing.T) {
	parser, _, _ := buildParser("test")
	_, err := parser.ParseArgs([]string{"nonexistent"})
	require.Error(t, err)
}

func TestHelpFlagDoesNotError(t *testing.T) {
	err := RunWithArgs("test", []string{"--help"})
	assert.NoError(t, err)
}
