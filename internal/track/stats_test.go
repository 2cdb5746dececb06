package track

import "testing"

func TestStatsLifecycle(t *testing.T) {
	s := NewStats(nil)

	for i := 0; i < 4; i++ {
		s.StartProcessing()
	}
	if snap := s.Snapshot(); snap.Processing != 4 || snap.Total != 0 {
		t.Fatalf("after detection: %+v", snap)
	}

	s.FinishFlagged()
	s.FinishSafe()
	s.FinishError()

	snap := s.Snapshot()
	if snap.Processing != 1 {
		t.Fatalf("processing = %d, want 1", snap.Processing)
	}
	if snap.Total != 3 || snap.Flagged != 1 || snap.Safe != 1 || snap.Errors != 1 {
		t.Fatalf("counters: %+v", snap)
	}
}
