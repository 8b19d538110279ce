package excel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/webvoca/internal/database"
	"github.com/example/webvoca/pkg/models"
)

var created = time.Date(2024, 2, 29, 13, 45, 0, 0, time.UTC)

func sampleWords() []models.WordEntry {
	return []models.WordEntry{
		{
			Word:        "serendipity",
			Context:     `She called it "pure serendipity", nothing more.`,
			URL:         "https://a.test/story",
			SourceTitle: "Story",
			Language:    "en",
			IsFavorite:  true,
			Note:        "happy accident",
			CreatedAt:   models.Millis(created),
		},
		{
			Word:      "laconic",
			URL:       "https://b.test",
			CreatedAt: models.Millis(created.Add(time.Hour)),
		},
	}
}

func TestRow(t *testing.T) {
	row := Row(sampleWords()[0])
	assert.Equal(t, []string{
		"serendipity",
		`She called it "pure serendipity", nothing more.`,
		"https://a.test/story",
		"2024-02-29T13:45:00Z",
		"Story",
		"en",
		"1",
		"happy accident",
	}, row)
	assert.Equal(t, "0", Row(sampleWords()[1])[6])
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleWords()))

	out := buf.String()
	require.True(t, strings.HasPrefix(out, "\ufeff"))
	lines := strings.Split(strings.TrimSuffix(strings.TrimPrefix(out, "\ufeff"), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "word,context,url,createdAt,sourceTitle,language,isFavorite,note", lines[0])
	assert.Equal(t, `serendipity,"She called it ""pure serendipity"", nothing more.",https://a.test/story,2024-02-29T13:45:00Z,Story,en,1,happy accident`, lines[1])
	assert.Equal(t, "laconic,,https://b.test,2024-02-29T14:45:00Z,,,0,", lines[2])
}

func TestCSVRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleWords()))

	records, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, 2, first.Line)
	assert.Equal(t, "serendipity", first.Selection.Word)
	assert.Equal(t, `She called it "pure serendipity", nothing more.`, first.Selection.Context)
	assert.Equal(t, "Story", first.Selection.Title)
	require.NotNil(t, first.Selection.IsFavorite)
	assert.True(t, *first.Selection.IsFavorite)
	require.NotNil(t, first.Selection.Note)
	assert.Equal(t, "happy accident", *first.Selection.Note)

	second := records[1]
	require.NotNil(t, second.Selection.IsFavorite)
	assert.False(t, *second.Selection.IsFavorite)
}

func TestReadCSVMatchesHeaderNames(t *testing.T) {
	in := "URL,Word,Extra\nhttps://c.test,go (went; gone),x\n,,\n"
	records, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "go", records[0].Selection.Word)
	assert.Equal(t, "https://c.test", records[0].Selection.URL)
	assert.Nil(t, records[0].Selection.IsFavorite)
	assert.Nil(t, records[0].Selection.Note)

	_, err = ReadCSV(strings.NewReader("url,context\nhttps://c.test,x\n"))
	assert.ErrorIs(t, err, ErrNoWordColumn)
}

func TestXLSXFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.xlsx")
	require.NoError(t, ExportFile(path, sampleWords()))

	records, err := ReadFile(path, "")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "serendipity", records[0].Selection.Word)
	assert.Equal(t, "https://a.test/story", records[0].Selection.URL)
	assert.Equal(t, "laconic", records[1].Selection.Word)
}

func TestExportFileRejectsUnknownExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.txt")
	assert.Error(t, ExportFile(path, sampleWords()))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

type fakeRegistrar struct {
	stored map[string]models.WordEntry
	fail   string
}

func (f *fakeRegistrar) Get(_ context.Context, id string) (models.WordEntry, error) {
	w, ok := f.stored[id]
	if !ok {
		return models.WordEntry{}, fmt.Errorf("word %q: %w", id, database.ErrNotFound)
	}
	return w, nil
}

func (f *fakeRegistrar) Register(_ context.Context, sel models.Selection) (models.WordEntry, error) {
	if sel.Word == f.fail {
		return models.WordEntry{}, errors.New("disk full")
	}
	id := models.WordEntryID(sel.Word, sel.URL)
	w := models.WordEntry{ID: id, Word: sel.Word, URL: sel.URL}
	f.stored[id] = w
	return w, nil
}

func TestImport(t *testing.T) {
	reg := &fakeRegistrar{stored: map[string]models.WordEntry{}, fail: "broken"}
	records := []Record{
		{Line: 2, Selection: models.Selection{Word: "ephemeral", URL: "https://a.test"}},
		{Line: 3, Selection: models.Selection{Word: "Ephemeral", URL: "https://a.test"}},
		{Line: 4, Selection: models.Selection{Word: "  "}},
		{Line: 5, Selection: models.Selection{Word: "broken"}},
		{Line: 6, Selection: models.Selection{Word: "laconic"}},
	}

	calls := 0
	res, err := Import(context.Background(), records, reg, func() { calls++ })
	require.NoError(t, err)
	assert.Equal(t, 5, calls)
	assert.Equal(t, 5, res.TotalProcessed)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "Row 5")
}

func TestImportStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := Import(ctx, []Record{{Line: 2, Selection: models.Selection{Word: "x"}}},
		&fakeRegistrar{stored: map[string]models.WordEntry{}}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, res.TotalProcessed)
}
