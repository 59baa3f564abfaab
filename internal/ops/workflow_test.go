package ops

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/cap2cal/internal/errors"
	"github.com/hpungsan/cap2cal/internal/event"
)

// TestFullWorkflow exercises the complete event lifecycle:
// capture → list → favorite → calendar → export → delete → purge → import
func TestFullWorkflow(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	dir := t.TempDir()
	cfg := testConfig(dir)

	// 1. Capture and save a two-day festival
	captureOut, err := Capture(ctx, database, nil, CaptureInput{
		RawText: `{"status":"success","data":{"items":[
			{"title":"Festival Day 1","kind":"festival","dateTimeFrom":{"date":"2025-08-01","time":"14:00"},
			 "location":{"city":"Berlin"}},
			{"title":"Festival Day 2","dateTimeFrom":{"date":"2025-08-02"},
			 "ticketDirectLink":"https://tix.example/day2"}
		]}}`,
		Save:       true,
		CapturedAt: testCapturedAt,
	})
	require.NoError(t, err)
	require.Equal(t, event.ResultMulti, captureOut.Type)
	require.Len(t, captureOut.SavedIDs, 2)
	day1, day2 := captureOut.SavedIDs[0], captureOut.SavedIDs[1]

	// 2. List
	listOut, err := List(ctx, database, ListInput{})
	require.NoError(t, err)
	require.Equal(t, 2, listOut.Pagination.Total)

	// 3. Favorite day 2 and fetch it back
	favOut, err := SetFavorite(ctx, database, FavoriteInput{ID: day2, Favorite: boolPtr(true)})
	require.NoError(t, err)
	require.True(t, favOut.IsFavorite)

	fetchOut, err := Fetch(ctx, database, FetchInput{ID: day2})
	require.NoError(t, err)
	require.True(t, fetchOut.IsFavorite)
	require.Equal(t, "https://tix.example/day2", fetchOut.TicketLink)

	// 4. Calendar of favorites
	calOut, err := ExportCalendar(ctx, database, cfg, CalendarInput{
		Path:          filepath.Join(dir, "favorites.ics"),
		FavoritesOnly: true,
	})
	require.NoError(t, err)
	require.Equal(t, 1, calOut.Count)
	ics, err := os.ReadFile(calOut.Path)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(ics), "SUMMARY:Festival Day 2"))

	// 5. Export everything
	exportPath := filepath.Join(dir, "backup.jsonl")
	exportOut, err := Export(ctx, database, cfg, ExportInput{Path: exportPath})
	require.NoError(t, err)
	require.Equal(t, 2, exportOut.Count)

	// 6. Delete and purge day 1
	_, err = Delete(ctx, database, DeleteInput{ID: day1})
	require.NoError(t, err)
	purgeOut, err := Purge(ctx, database, PurgeInput{})
	require.NoError(t, err)
	require.Equal(t, 1, purgeOut.Purged)

	_, err = Fetch(ctx, database, FetchInput{ID: day1, IncludeDeleted: true})
	require.Error(t, err)
	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, errors.ErrNotFound, appErr.Code)

	// 7. Import in error mode collides on day 2
	importOut, err := Import(ctx, database, cfg, ImportInput{Path: exportPath})
	require.NoError(t, err)
	require.Equal(t, 0, importOut.Imported)
	require.Len(t, importOut.Errors, 1)
	require.Equal(t, "ID_COLLISION", importOut.Errors[0].Code)

	// 8. Replace mode restores day 1
	importOut, err = Import(ctx, database, cfg, ImportInput{Path: exportPath, Mode: ImportModeReplace})
	require.NoError(t, err)
	require.Equal(t, 2, importOut.Imported)

	restored, err := Fetch(ctx, database, FetchInput{ID: day1})
	require.NoError(t, err)
	require.Equal(t, "Festival Day 1", restored.Title)
	require.Equal(t, "festival", restored.Kind)
	require.Equal(t, testCapturedAt.UnixMilli(), restored.Timestamp)
}
