package schedule_test

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"

	"github.com/warp/schedule-engine/schedule"
)

// gatedSource answers FetchBlock per subsection, optionally blocking each
// fetch until released so tests can force a deterministic arrival order.
type gatedSource struct {
	blocks map[string][]schedule.Row
	errs   map[string]error
	gates  map[string]chan struct{}
	calls  atomic.Int64
}

func (s *gatedSource) FetchBlock(_ context.Context, q schedule.BlockQuery) ([]schedule.Row, error) {
	s.calls.Add(1)
	if gate, ok := s.gates[q.Subsection]; ok {
		<-gate
	}
	if err, ok := s.errs[q.Subsection]; ok {
		return nil, err
	}
	return s.blocks[q.Subsection], nil
}

func TestMergeBlocks_PreservesBlockOrder(t *testing.T) {
	a := []schedule.Row{{ID: 1, Subsection: "A"}, {ID: 2, Subsection: "A"}}
	b := []schedule.Row{{ID: 5, Subsection: "B"}}

	rs := schedule.MergeBlocks(a, b)

	if got, want := rs.RowIDs(), []int64{1, 2, 5}; !reflect.DeepEqual(got, want) {
		t.Errorf("row order: got %v, want %v", got, want)
	}
	if len(rs.Collisions) != 0 {
		t.Errorf("unexpected collisions: %+v", rs.Collisions)
	}
}

func TestMergeBlocks_CollisionLaterWinsAndIsSurfaced(t *testing.T) {
	// GIVEN: row id 2 appears in both blocks
	// THEN: the later arrival's data wins, the original position is kept,
	// and the collision is recorded with both subsection tags

	taskA := "old"
	taskB := "new"
	a := []schedule.Row{
		{ID: 1, Subsection: "A"},
		{ID: 2, Subsection: "A", Cells: map[int]schedule.Cell{1: {Task: &taskA}}},
	}
	b := []schedule.Row{
		{ID: 2, Subsection: "B", Cells: map[int]schedule.Cell{1: {Task: &taskB}}},
		{ID: 3, Subsection: "B"},
	}

	rs := schedule.MergeBlocks(a, b)

	if got, want := rs.RowIDs(), []int64{1, 2, 3}; !reflect.DeepEqual(got, want) {
		t.Errorf("row order: got %v, want %v", got, want)
	}
	row, _ := rs.Get(2)
	if row.Subsection != "B" || *row.Cell(1).Task != "new" {
		t.Errorf("later arrival should win: %+v", row)
	}
	if len(rs.Collisions) != 1 {
		t.Fatalf("expected 1 collision, got %d", len(rs.Collisions))
	}
	col := rs.Collisions[0]
	if col.RowID != 2 || col.Kept != "B" || col.Dropped != "A" {
		t.Errorf("collision record wrong: %+v", col)
	}
}

func TestLoadBlock_InvalidWindowWithholdsFetch(t *testing.T) {
	src := &gatedSource{}
	l := schedule.Loader{Source: src}

	_, err := l.LoadBlock(context.Background(), 1, "Roof", nil, schedule.DayWindow{})
	if !errors.Is(err, schedule.ErrWindowNotReady) {
		t.Errorf("expected ErrWindowNotReady, got %v", err)
	}
	if src.calls.Load() != 0 {
		t.Errorf("fetch must not run without a valid window, got %d calls", src.calls.Load())
	}
}

func TestLoadBlock_NoSubsectionSelectsWholeSection(t *testing.T) {
	src := &gatedSource{blocks: map[string][]schedule.Row{
		"": {{ID: 1, Section: "Roof"}},
	}}
	l := schedule.Loader{Source: src}

	rs, err := l.LoadBlock(context.Background(), 1, "Roof", nil, schedule.DayWindow{Start: 1, End: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rs.Len() != 1 || src.calls.Load() != 1 {
		t.Errorf("expected one fetch of the unfiltered section, got %d rows / %d calls", rs.Len(), src.calls.Load())
	}
}

func TestLoadBlock_MultiSubsectionFoldsInArrivalOrder(t *testing.T) {
	// GIVEN: subsections A and B both carry row id 2, with A's fetch gated
	// WHEN: B completes first and A is released afterwards
	// THEN: A's data overwrites B's, and the collision names both

	taskA := "from-a"
	taskB := "from-b"
	gateA := make(chan struct{})
	src := &gatedSource{
		blocks: map[string][]schedule.Row{
			"A": {{ID: 2, Subsection: "A", Cells: map[int]schedule.Cell{1: {Task: &taskA}}}},
			"B": {{ID: 2, Subsection: "B", Cells: map[int]schedule.Cell{1: {Task: &taskB}}}},
		},
		gates: map[string]chan struct{}{"A": gateA},
	}
	l := schedule.Loader{Source: src}

	done := make(chan struct{})
	var rs *schedule.RowSet
	var err error
	go func() {
		rs, err = l.LoadBlock(context.Background(), 1, "Ground Floor", []string{"A", "B"}, schedule.DayWindow{Start: 1, End: 3})
		close(done)
	}()

	close(gateA)
	<-done

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	row, _ := rs.Get(2)
	if row.Subsection != "A" || *row.Cell(1).Task != "from-a" {
		t.Errorf("later arrival should win: %+v", row)
	}
	if len(rs.Collisions) != 1 || rs.Collisions[0].Kept != "A" || rs.Collisions[0].Dropped != "B" {
		t.Errorf("collision not surfaced as expected: %+v", rs.Collisions)
	}
}

func TestLoadBlock_FetchFailureAbortsMerge(t *testing.T) {
	boom := errors.New("connection reset")
	src := &gatedSource{
		blocks: map[string][]schedule.Row{"A": {{ID: 1}}},
		errs:   map[string]error{"B": boom},
	}
	l := schedule.Loader{Source: src}

	rs, err := l.LoadBlock(context.Background(), 1, "Outside", []string{"A", "B"}, schedule.DayWindow{Start: 1, End: 3})
	if rs != nil {
		t.Error("no partial row set on failure")
	}
	var fe *schedule.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %v", err)
	}
	if fe.Section != "Outside" || fe.Subsection != "B" {
		t.Errorf("fetch error missing selection context: %+v", fe)
	}
	if !errors.Is(err, boom) {
		t.Errorf("underlying cause not preserved: %v", err)
	}
	if src.calls.Load() != 2 {
		t.Errorf("all fetches should run before the abort, got %d calls", src.calls.Load())
	}
}
