package track

import "testing"

type stubOrigin struct{}

func (stubOrigin) Alive() bool                         { return true }
func (stubOrigin) MarkStatus(string)                   {}
func (stubOrigin) MarkOutcome(string, string, float64) {}

func TestRegistryTakeRemoves(t *testing.T) {
	r := NewRegistry()
	r.Add("b1", []Entry{{ID: "i1", Origin: stubOrigin{}}})

	entries, ok := r.Take("b1")
	if !ok || len(entries) != 1 || entries[0].ID != "i1" {
		t.Fatalf("first Take = (%v, %v)", entries, ok)
	}

	if _, ok := r.Take("b1"); ok {
		t.Fatal("second Take for the same batch must report unknown")
	}
}

func TestRegistryUnknownBatch(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Take("never-dispatched"); ok {
		t.Fatal("Take of unknown batch must report unknown")
	}
}

func TestRegistryAbandon(t *testing.T) {
	r := NewRegistry()
	r.Add("b1", []Entry{{ID: "i1", Origin: stubOrigin{}}})
	r.Add("b2", []Entry{{ID: "i2", Origin: stubOrigin{}}})

	r.Abandon("b1")
	if r.Len() != 1 {
		t.Fatalf("Len = %d after abandon, want 1", r.Len())
	}
	if _, ok := r.Take("b1"); ok {
		t.Fatal("abandoned batch must be unknown")
	}
	if _, ok := r.Take("b2"); !ok {
		t.Fatal("unrelated batch must survive abandon")
	}
}
