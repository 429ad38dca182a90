package report

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aayushbajaj/trigcap/internal/capture"
	"github.com/aayushbajaj/trigcap/internal/storage"
	"github.com/aayushbajaj/trigcap/internal/trigger"
)

func sampleData() Data {
	day1 := time.Date(2026, 4, 2, 10, 0, 0, 0, time.Local)
	day2 := day1.AddDate(0, 0, -1)
	return Data{
		Title:     "This week",
		Generated: day1.Add(time.Hour),
		Captures: []capture.Record{
			{ID: "1", Kind: trigger.KindNote, Content: "read **Dune**", Started: day1, Finished: day1},
			{ID: "2", Kind: trigger.KindTimer, Content: "standup", Tags: []string{"work"}, App: "com.tinyspeck.slackmacgap",
				Started: day1.Add(-time.Hour), Finished: day1.Add(-15 * time.Minute)},
			{ID: "3", Kind: trigger.KindTask, Content: "<script>alert(1)</script>", Started: day2, Finished: day2},
		},
		Days: []storage.DayStats{
			{Date: "2026-04-01", Tasks: 1},
			{Date: "2026-04-02", Notes: 1, Timers: 1},
		},
	}
}

func TestRender(t *testing.T) {
	out, err := Render(sampleData())
	require.NoError(t, err)
	html := string(out)

	assert.Contains(t, html, "<title>This week</title>")
	assert.Contains(t, html, "<strong>Dune</strong>")
	assert.Contains(t, html, "Notes: 1")
	assert.Contains(t, html, "Timers: 1 (45m)")
	assert.Contains(t, html, "#work")
	assert.Contains(t, html, "in com.tinyspeck.slackmacgap")
	assert.Equal(t, 2, strings.Count(html, "<h2>"), "one heading per day")
	assert.NotContains(t, html, "<script>alert(1)</script>")
	assert.Contains(t, html, "height: 100%")
}

func TestRenderEmpty(t *testing.T) {
	out, err := Render(Data{})
	require.NoError(t, err)
	assert.Contains(t, string(out), "No captures.")
	assert.Contains(t, string(out), "<title>Captures</title>")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0m", formatDuration(10*time.Second))
	assert.Equal(t, "45m", formatDuration(45*time.Minute))
	assert.Equal(t, "2h 05m", formatDuration(2*time.Hour+5*time.Minute))
}

func TestWriteAndOpen(t *testing.T) {
	orig := openFunc
	t.Cleanup(func() { openFunc = orig })

	var opened string
	openFunc = func(p string) error { opened = p; return nil }

	path := filepath.Join(t.TempDir(), "report")
	got, err := WriteAndOpen(sampleData(), path)
	require.NoError(t, err)
	assert.Equal(t, path+".html", got)
	assert.Equal(t, got, opened)

	data, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Contains(t, string(data), "This week")

	openFunc = func(string) error { return errors.New("no browser") }
	got, err = WriteAndOpen(sampleData(), filepath.Join(t.TempDir(), "r.html"))
	assert.Error(t, err)
	assert.FileExists(t, got, "file is still written")
}
