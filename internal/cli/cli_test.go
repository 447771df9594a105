package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"

	"confguide/internal/agenda"
	"confguide/internal/config"
	"confguide/internal/model"
	"confguide/internal/store"
)

var t0 = time.Date(2025, 6, 12, 9, 0, 0, 0, time.UTC)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func TestParseAt(t *testing.T) {
	kst := time.FixedZone("KST", 9*3600)

	got, err := parseAt("2025-06-12T09:00:00Z", kst)
	require.NoError(t, err)
	require.True(t, got.Equal(t0))

	got, err = parseAt("2025-06-12 18:00", kst)
	require.NoError(t, err)
	require.True(t, got.Equal(t0))

	_, err = parseAt("tomorrow", kst)
	require.Error(t, err)
}

func TestWriteAgenda(t *testing.T) {
	items := []model.AgendaItem{
		{ID: "b", Start: t0, End: t0.Add(time.Hour), Topic: "Keynote", Location: "Hall A"},
		{ID: "c", Start: t0.Add(24 * time.Hour), End: t0.Add(25 * time.Hour), Topic: "Day two"},
	}
	var buf bytes.Buffer
	writeAgenda(&buf, agenda.Organize(items, time.UTC), time.UTC, map[string]bool{"c": true})

	require.Equal(t,
		"Thursday, June 12\n"+
			" 09:00-10:00\n"+
			"    Keynote  @ Hall A  [b]\n"+
			"Friday, June 13\n"+
			" 09:00-10:00\n"+
			"  ♥ Day two  [c]\n",
		buf.String())

	buf.Reset()
	writeAgenda(&buf, nil, time.UTC, nil)
	require.Equal(t, "No sessions.\n", buf.String())
}

func TestWriteGroups(t *testing.T) {
	groups := agenda.HappeningNow([]model.AgendaItem{
		{ID: "a", Start: t0, End: t0.Add(time.Hour), Topic: "Talk"},
	}, t0.Add(time.Minute))

	var buf bytes.Buffer
	writeGroups(&buf, "Happening now", groups, time.FixedZone("CEST", 2*3600), nil)
	require.Equal(t, "Happening now\n 11:00-12:00\n    Talk  [a]\n", buf.String())

	buf.Reset()
	writeGroups(&buf, "Up next", nil, time.UTC, nil)
	require.Equal(t, "Up next\n  nothing scheduled\n", buf.String())
}

func TestItemMarkdown(t *testing.T) {
	it := model.AgendaItem{ID: "a", Start: t0, End: t0.Add(time.Hour), Topic: "Talk", Location: "Room 1", Description: "About *Go*."}
	doc := itemMarkdown(it, []model.Speaker{{Name: "Ada", Company: "Analytical"}}, true, time.UTC)

	require.Contains(t, doc, "# Talk\n")
	require.Contains(t, doc, "**When:** Thu Jun 12, 09:00-10:00")
	require.Contains(t, doc, "**Where:** Room 1")
	require.Contains(t, doc, "- **Ada** (Analytical)")
	require.Contains(t, doc, "About *Go*.")
}

// setupApp writes a config pointing at a temp data dir and seeds the store.
func setupApp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.DataDir = filepath.Join(dir, "data")
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, config.Save(path, cfg))

	st, err := store.Open(cfg.DBPath())
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.ReplaceSnapshot(context.Background(), model.Snapshot{
		Items: []model.AgendaItem{
			{ID: "keynote", Start: t0, End: t0.Add(time.Hour), Topic: "Keynote", SpeakerIDs: []string{"p1"}},
			{ID: "lunch", Start: t0.Add(2 * time.Hour), End: t0.Add(3 * time.Hour), Topic: "Lunch"},
		},
		Speakers: []model.Speaker{{ID: "p1", Name: "Ada"}},
	}))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd("test", &out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCommands(t *testing.T) {
	path := setupApp(t)
	at := "--at=" + t0.Add(30*time.Minute).Format(time.RFC3339)

	out, err := run(t, "--config", path, at, "now")
	require.NoError(t, err)
	require.Contains(t, out, "Keynote")
	require.NotContains(t, out, "Lunch")

	out, err = run(t, "--config", path, at, "next", "--ahead", "3h")
	require.NoError(t, err)
	require.Contains(t, out, "Lunch")

	out, err = run(t, "--config", path, at, "next", "--ahead", "1h")
	require.NoError(t, err)
	require.Contains(t, out, "nothing scheduled")

	_, err = run(t, "--config", path, "favorite", "add", "lunch", "gone")
	require.NoError(t, err)

	out, err = run(t, "--config", path, "favorite", "ls")
	require.NoError(t, err)
	require.Contains(t, out, "Lunch")
	require.Contains(t, out, "gone (not in current agenda)")

	out, err = run(t, "--config", path, "agenda", "--favorites")
	require.NoError(t, err)
	require.Contains(t, out, "♥ Lunch")
	require.NotContains(t, out, "Keynote")

	_, err = run(t, "--config", path, "favorite", "rm", "gone")
	require.NoError(t, err)

	out, err = run(t, "--config", path, "show", "--raw", "keynote")
	require.NoError(t, err)
	require.Contains(t, out, "# Keynote")
	require.Contains(t, out, "**Ada**")

	_, err = run(t, "--config", path, "show", "nope")
	require.ErrorContains(t, err, "no session")

	out, err = run(t, "--config", path, "feedback", "keynote", "--rating", "4", "--comment", "solid")
	require.NoError(t, err)
	require.Contains(t, out, "feedback recorded")

	_, err = run(t, "--config", path, "feedback", "keynote", "--rating", "7")
	require.ErrorContains(t, err, "between 1 and 5")

	_, err = run(t, "--config", path, "--at", "whenever", "now")
	require.ErrorContains(t, err, "invalid --at")
}

func TestSyncWithoutSources(t *testing.T) {
	path := setupApp(t)
	_, err := run(t, "--config", path, "sync")
	require.Error(t, err)
}
