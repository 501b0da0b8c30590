package telemetry

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppendWritesHeaderOnceThenRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "moves.csv")

	w, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, w.Append(Row{GameName: "pennies", Step: 1, Role: "agent", ChosenMove: "heads"}))
	require.NoError(t, w.Append(Row{GameName: "pennies", Step: 2, Role: "agent", ChosenMove: "tails"}))
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, Header, records[0])
	require.Equal(t, "heads", records[1][9])
	require.Equal(t, "tails", records[2][9])
	require.NotEmpty(t, records[1][0], "match_id is auto-minted when unset")
	require.Equal(t, records[1][0], records[2][0], "both rows from the same Writer share a match_id")
}

func TestAppendDoesNotRewriteHeaderOnReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "moves.csv")

	w1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, w1.Append(Row{GameName: "pennies", Step: 1}))
	require.NoError(t, w1.Close())

	w2, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, w2.Append(Row{GameName: "pennies", Step: 2}))
	require.NoError(t, w2.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3, "header written exactly once across two Writer lifetimes")
}
