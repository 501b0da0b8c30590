// Package telemetry writes a per-move, append-only CSV output log, one row
// per move rather than a batched end-of-run write.
package telemetry

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/google/uuid"
)

// Header is the CSV column order.
var Header = []string{
	"match_id", "game_name", "step", "role", "player_name",
	"population_size", "rollout_depth", "update_ms", "select_ms",
	"chosen_move", "was_illegal_last_turn", "simulations_run", "forward_calls",
}

// Row is one turn's worth of telemetry. MatchID is minted with google/uuid
// when left empty, so a Controller that never supplies its own match
// identifier still gets a stable one for the lifetime of the Writer.
type Row struct {
	MatchID          string
	GameName         string
	Step             int
	Role             string
	PlayerName       string
	PopulationSize   int
	RolloutDepth     int
	UpdateMillis     int64
	SelectMillis     int64
	ChosenMove       string
	WasIllegalLastTurn bool
	SimulationsRun   int
	ForwardCalls     int
}

// Writer appends Rows to a single CSV file, writing the header once on
// first use.
type Writer struct {
	f           *os.File
	csv         *csv.Writer
	matchID     string
	wroteHeader bool
}

// Open creates or appends to path, writing the header if the file is new.
func Open(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("telemetry: open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("telemetry: stat %s: %w", path, err)
	}

	w := &Writer{f: f, csv: csv.NewWriter(f), matchID: uuid.NewString(), wroteHeader: info.Size() > 0}
	return w, nil
}

// Close flushes buffered rows and closes the underlying file.
func (w *Writer) Close() error {
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		w.f.Close()
		return fmt.Errorf("telemetry: flush: %w", err)
	}
	return w.f.Close()
}

// Append writes one row, minting MatchID from this Writer's process-lifetime
// uuid if row.MatchID is empty.
func (w *Writer) Append(row Row) error {
	if !w.wroteHeader {
		if err := w.csv.Write(Header); err != nil {
			return fmt.Errorf("telemetry: write header: %w", err)
		}
		w.wroteHeader = true
	}
	if row.MatchID == "" {
		row.MatchID = w.matchID
	}

	record := []string{
		row.MatchID,
		row.GameName,
		strconv.Itoa(row.Step),
		row.Role,
		row.PlayerName,
		strconv.Itoa(row.PopulationSize),
		strconv.Itoa(row.RolloutDepth),
		strconv.FormatInt(row.UpdateMillis, 10),
		strconv.FormatInt(row.SelectMillis, 10),
		row.ChosenMove,
		strconv.FormatBool(row.WasIllegalLastTurn),
		strconv.Itoa(row.SimulationsRun),
		strconv.Itoa(row.ForwardCalls),
	}
	if err := w.csv.Write(record); err != nil {
		return fmt.Errorf("telemetry: write row: %w", err)
	}
	w.csv.Flush()
	return w.csv.Error()
}
