package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/webvoca/internal/config"
)

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "webvoca.yaml")
	content := fmt.Sprintf(`database:
  driver: sqlite
  dsn: %s
scheduler:
  enabled: false
logging:
  level: error
`, filepath.Join(dir, "data", "webvoca.db"))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func run(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommands(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)

	out, err := run(t, cfgPath, "add", "Serendipity", "--url", "https://a.test", "--context", "Pure serendipity.")
	require.NoError(t, err)
	assert.Equal(t, "Saved serendipity::https://a.test\n", out)

	_, err = run(t, cfgPath, "add", "laconic", "--url", "https://a.test", "--context", "")
	require.NoError(t, err)

	out, err = run(t, cfgPath, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "serendipity::https://a.test")
	assert.Contains(t, out, "laconic::https://a.test")

	out, err = run(t, cfgPath, "review", "serendipity::https://a.test", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "interval: 1 days")
	assert.Contains(t, out, "repetitions: 1")

	_, err = run(t, cfgPath, "review", "serendipity::https://a.test", "six")
	assert.Error(t, err)

	out, err = run(t, cfgPath, "due")
	require.NoError(t, err)
	assert.Equal(t, "No words.\n", out)

	page := filepath.Join(dir, "page.txt")
	require.NoError(t, os.WriteFile(page, []byte("Serendipity and a laconic reply. Serendipity again."), 0o644))
	out, err = run(t, cfgPath, "rank", "--file", page, "--marks")
	require.NoError(t, err)
	assert.Contains(t, out, "serendipity")
	assert.Contains(t, out, "laconic")
	assert.Contains(t, out, "0-11\tserendipity")

	csvPath := filepath.Join(dir, "words.csv")
	_, err = run(t, cfgPath, "export", "--format", "csv", "-o", csvPath)
	require.NoError(t, err)
	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "\ufeffword,context,url,createdAt"))

	_, err = run(t, cfgPath, "delete", "laconic::https://a.test")
	require.NoError(t, err)

	out, err = run(t, cfgPath, "import", csvPath)
	require.NoError(t, err)
	assert.Contains(t, out, "processed: 2, created: 1, updated: 1, skipped: 0")

	snapPath := filepath.Join(dir, "snapshot.json")
	_, err = run(t, cfgPath, "export", "--format", "json", "-o", snapPath)
	require.NoError(t, err)

	_, err = run(t, cfgPath, "import", snapPath)
	assert.ErrorContains(t, err, "--replace")

	out, err = run(t, cfgPath, "import", snapPath, "--replace")
	require.NoError(t, err)
	assert.Equal(t, "restored 2 words\n", out)

	out, err = run(t, cfgPath, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, `"total_words": 2`)
	assert.Contains(t, out, `"reviewed_words": 1`)

	out, err = run(t, cfgPath, "drain")
	require.NoError(t, err)
	assert.Equal(t, "stored: 0, failed: 0\n", out)

	_, err = run(t, cfgPath, "known", "missing::https://a.test")
	assert.Error(t, err)
}

func TestEngineFromKeepsPassThreshold(t *testing.T) {
	sm := engineFrom(config.ReviewConfig{InitialEaseFactor: 2.1})
	assert.Equal(t, 3, sm.PassThreshold)
	assert.InDelta(t, 2.1, sm.InitialEaseFactor, 1e-9)
}
