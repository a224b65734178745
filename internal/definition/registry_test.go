package definition

import (
	"sync"
	"testing"

	"github.com/pitabwire/jiramcp/model"
)

func testDefs() []model.WorkflowDefinition {
	return []model.WorkflowDefinition{
		{ID: "first", Name: "First", Trigger: "get_issue", Checksum: "abc123"},
		{ID: "second", Name: "Second", Trigger: "get_issue", Checksum: "def456"},
		{ID: "third", Name: "Third", Trigger: "get_bugs", Checksum: "ghi789"},
	}
}

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry(testDefs()...)

	d, ok := r.Get("second")
	if !ok {
		t.Fatal("Get(second) not found")
	}
	if d.Name != "Second" {
		t.Errorf("Name = %q, want Second", d.Name)
	}

	if _, ok := r.Get("unknown"); ok {
		t.Error("Get(unknown) should return false")
	}
}

func TestRegistry_FindByTrigger_first_registered_wins(t *testing.T) {
	r := NewRegistry(testDefs()...)

	d, ok := r.FindByTrigger("get_issue")
	if !ok {
		t.Fatal("FindByTrigger(get_issue) not found")
	}
	if d.ID != "first" {
		t.Errorf("ID = %q, want first", d.ID)
	}

	d, ok = r.FindByTrigger("get_bugs")
	if !ok || d.ID != "third" {
		t.Errorf("FindByTrigger(get_bugs) = %q, %v; want third", d.ID, ok)
	}

	if _, ok := r.FindByTrigger("get_tasks"); ok {
		t.Error("FindByTrigger(get_tasks) should return false")
	}
}

func TestRegistry_FindByTrigger_every_definition_resolves(t *testing.T) {
	defs := testDefs()
	r := NewRegistry(defs...)

	for i, def := range defs {
		got, ok := r.FindByTrigger(def.Trigger)
		if !ok {
			t.Fatalf("FindByTrigger(%q) not found", def.Trigger)
		}
		// The match is def itself or an earlier definition with the same trigger.
		idx := -1
		for j, d := range defs {
			if d.ID == got.ID {
				idx = j
			}
		}
		if idx > i || defs[idx].Trigger != def.Trigger {
			t.Errorf("FindByTrigger(%q) = %q, not def or an earlier match", def.Trigger, got.ID)
		}
	}
}

func TestRegistry_Register_replace_keeps_position(t *testing.T) {
	r := NewRegistry(testDefs()...)

	r.Register(model.WorkflowDefinition{ID: "first", Name: "First v2", Trigger: "get_issue"})

	all := r.All()
	if len(all) != 3 {
		t.Fatalf("All() = %d entries, want 3", len(all))
	}
	if all[0].ID != "first" || all[0].Name != "First v2" {
		t.Errorf("All()[0] = %+v, want replaced first", all[0])
	}
	d, _ := r.FindByTrigger("get_issue")
	if d.Name != "First v2" {
		t.Errorf("FindByTrigger returned %q, want replaced definition", d.Name)
	}
}

func TestRegistry_Register_appends(t *testing.T) {
	r := NewRegistry()
	r.Register(model.WorkflowDefinition{ID: "a", Trigger: "x"})
	r.Register(model.WorkflowDefinition{ID: "b", Trigger: "x"})

	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", r.Len())
	}
	d, _ := r.FindByTrigger("x")
	if d.ID != "a" {
		t.Errorf("FindByTrigger(x) = %q, want a", d.ID)
	}
}

func TestRegistry_Deregister(t *testing.T) {
	r := NewRegistry(testDefs()...)

	if !r.Deregister("first") {
		t.Fatal("Deregister(first) = false, want true")
	}
	if r.Deregister("first") {
		t.Error("second Deregister(first) = true, want false")
	}
	d, ok := r.FindByTrigger("get_issue")
	if !ok || d.ID != "second" {
		t.Errorf("FindByTrigger(get_issue) = %q, %v; want second", d.ID, ok)
	}
}

func TestRegistry_Checksum(t *testing.T) {
	r := NewRegistry(testDefs()...)
	cs := r.Checksum()
	if cs == "" {
		t.Error("Checksum() should not be empty")
	}

	r2 := NewRegistry(testDefs()...)
	if r2.Checksum() != cs {
		t.Error("same definitions should produce same checksum")
	}

	r.Replace([]model.WorkflowDefinition{{ID: "other", Checksum: "zzz"}})
	if r.Checksum() == cs {
		t.Error("Replace() should change checksum")
	}
}

func TestRegistry_zero_value(t *testing.T) {
	var r Registry
	if _, ok := r.Get("x"); ok {
		t.Error("zero Registry Get() should return false")
	}
	if len(r.All()) != 0 {
		t.Error("zero Registry All() should be empty")
	}
}

func TestRegistry_concurrent_access(t *testing.T) {
	r := NewRegistry(testDefs()...)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.FindByTrigger("get_issue")
			r.All()
		}()
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				r.Register(model.WorkflowDefinition{ID: "extra", Trigger: "get_tasks"})
			} else {
				r.Deregister("extra")
			}
		}()
	}
	wg.Wait()

	if _, ok := r.Get("first"); !ok {
		t.Error("first definition lost under concurrent writes")
	}
}
