package invoker

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/pitabwire/jiramcp/model"
)

func echoAction(_ context.Context, data model.Data) (model.ResultValue, error) {
	name, _ := data.Text("name")
	return model.ResultValue{"echo": name}, nil
}

func TestActionRegistry_RegisterAndGet(t *testing.T) {
	r := NewActionRegistry()
	r.Register("echo", ActionFunc(echoAction))

	h, ok := r.Get("echo")
	if !ok {
		t.Fatal("Get(echo) returned false")
	}
	res, err := h.Execute(context.Background(), model.Data{"name": model.TextValue("bob")})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res["echo"] != "bob" {
		t.Errorf("echo = %v, want bob", res["echo"])
	}
	if !r.Has("echo") {
		t.Error("Has(echo) = false, want true")
	}
}

func TestActionRegistry_GetNotFound(t *testing.T) {
	r := NewActionRegistry()
	if _, ok := r.Get("nonexistent"); ok {
		t.Error("Get(nonexistent) = true, want false")
	}
	if r.Has("nonexistent") {
		t.Error("Has(nonexistent) = true, want false")
	}
}

func TestActionRegistry_RegisterDuplicatePanics(t *testing.T) {
	r := NewActionRegistry()
	r.Register("dup", ActionFunc(echoAction))

	defer func() {
		if rec := recover(); rec == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	r.Register("dup", ActionFunc(echoAction))
}

func TestActionRegistry_Names_sorted(t *testing.T) {
	r := NewActionRegistry()
	r.Register("zeta", ActionFunc(echoAction))
	r.Register("alpha", ActionFunc(echoAction))
	r.Register("mid", ActionFunc(echoAction))

	want := []string{"alpha", "mid", "zeta"}
	if got := r.Names(); !slices.Equal(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestActionRegistry_Execute(t *testing.T) {
	r := NewActionRegistry()
	boom := errors.New("boom")
	r.Register("fail", ActionFunc(func(context.Context, model.Data) (model.ResultValue, error) {
		return nil, boom
	}))

	if _, err := r.Execute(context.Background(), "fail", nil); !errors.Is(err, boom) {
		t.Errorf("Execute(fail) error = %v, want boom", err)
	}
	if _, err := r.Execute(context.Background(), "missing", nil); err == nil {
		t.Error("Execute(missing) error = nil, want not found")
	}
}
