package model

import (
	"encoding/json"
	"testing"
)

func TestData_accessors(t *testing.T) {
	d := Data{
		"get_filename": TextValue("my-tests.md"),
		"issue":        RecordValue{"key": "PROJ-1"},
		"gen_result":   ResultValue{"success": true},
	}

	if s, ok := d.Text("get_filename"); !ok || s != "my-tests.md" {
		t.Errorf("Text(get_filename) = %q, %v", s, ok)
	}
	if _, ok := d.Text("issue"); ok {
		t.Error("Text(issue) ok = true, want false for a record")
	}
	if rec, ok := d.Record("issue"); !ok || rec.String("key") != "PROJ-1" {
		t.Errorf("Record(issue) = %v, %v", rec, ok)
	}
	if res, ok := d.Result("gen_result"); !ok || res["success"] != true {
		t.Errorf("Result(gen_result) = %v, %v", res, ok)
	}
}

func TestData_Clone_isolated(t *testing.T) {
	orig := Data{"issue": RecordValue{"key": "PROJ-1"}}
	clone := orig.Clone()
	clone["extra"] = TextValue("x")
	rec, _ := clone.Record("issue")
	rec["key"] = "PROJ-2"

	if _, ok := orig["extra"]; ok {
		t.Error("adding to clone mutated original")
	}
	origRec, _ := orig.Record("issue")
	if origRec.String("key") != "PROJ-1" {
		t.Errorf("original record key = %q, want PROJ-1", origRec.String("key"))
	}
}

func TestData_Clone_nil(t *testing.T) {
	var d Data
	if c := d.Clone(); c == nil {
		t.Error("Clone() of nil Data returned nil map")
	}
}

func TestDataFromMap(t *testing.T) {
	d := DataFromMap(map[string]any{
		"name":  "alice",
		"issue": map[string]any{"key": "PROJ-1"},
		"count": 3,
	})
	if _, ok := d.Text("name"); !ok {
		t.Error("string was not converted to TextValue")
	}
	if _, ok := d.Record("issue"); !ok {
		t.Error("object was not converted to RecordValue")
	}
	rec, ok := d.Record("count")
	if !ok || rec["value"] != 3 {
		t.Errorf("scalar = %v, want wrapped record", d["count"])
	}
}

func TestNewRecord(t *testing.T) {
	issue := Issue{Key: "PROJ-7", Fields: IssueFields{Summary: "Login fails"}}
	rec, err := NewRecord(issue)
	if err != nil {
		t.Fatalf("NewRecord() error: %v", err)
	}
	if rec.String("key") != "PROJ-7" {
		t.Errorf("key = %q, want PROJ-7", rec.String("key"))
	}
	if got := rec.Nested("fields").String("summary"); got != "Login fails" {
		t.Errorf("fields.summary = %q, want %q", got, "Login fails")
	}
}

func TestNewRecord_not_object(t *testing.T) {
	if _, err := NewRecord([]string{"a"}); err == nil {
		t.Error("NewRecord(slice) error = nil, want error")
	}
}

func TestData_JSON_restores_results(t *testing.T) {
	d := Data{
		"step":        TextValue("Yes"),
		"step_result": ResultValue{"ok": true},
	}
	raw, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var back Data
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if _, ok := back.Result("step_result"); !ok {
		t.Error("step_result was not restored as ResultValue")
	}
	if s, _ := back.Text("step"); s != "Yes" {
		t.Errorf("step = %q, want Yes", s)
	}
}

func TestWorkflowDefinition_Step(t *testing.T) {
	def := WorkflowDefinition{
		ID: "wf",
		Steps: []WorkflowStep{
			{ID: "a", Kind: StepQuestion, Next: "b"},
			{ID: "b", Kind: StepInput},
		},
	}
	entry, ok := def.EntryStep()
	if !ok || entry.ID != "a" {
		t.Errorf("EntryStep() = %v, %v", entry.ID, ok)
	}
	if s, ok := def.Step("b"); !ok || !s.Terminal() {
		t.Errorf("Step(b) = %+v, %v; want terminal", s, ok)
	}
	if _, ok := def.Step("zz"); ok {
		t.Error("Step(zz) ok = true, want false")
	}
	if _, ok := (WorkflowDefinition{}).EntryStep(); ok {
		t.Error("EntryStep() on empty definition ok = true")
	}
}

func TestStepKind_Valid(t *testing.T) {
	for _, k := range []StepKind{StepQuestion, StepInput, StepAction} {
		if !k.Valid() {
			t.Errorf("%q.Valid() = false", k)
		}
	}
	if StepKind("branch").Valid() {
		t.Error(`"branch".Valid() = true`)
	}
}
