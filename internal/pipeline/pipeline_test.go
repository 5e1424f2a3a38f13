package pipeline

import (
	"errors"
	"testing"
)

var testLayout = Layout{
	Inputs:  []string{"id", "x", "y"},
	Globals: []string{"g"},
	Outputs: []string{"dx", "dy"},
}

func TestLayoutValidation(t *testing.T) {
	tests := []struct {
		name   string
		layout Layout
		ok     bool
	}{
		{"valid", testLayout, true},
		{"no inputs", Layout{Outputs: []string{"o"}}, false},
		{"duplicate", Layout{Inputs: []string{"a"}, Outputs: []string{"a"}}, false},
		{"empty name", Layout{Inputs: []string{""}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New("p", tt.layout, 4)
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrLayout) {
				t.Fatalf("expected ErrLayout, got %v", err)
			}
		})
	}

	if _, err := New("p", testLayout, 0); !errors.Is(err, ErrCapacity) {
		t.Errorf("expected ErrCapacity, got %v", err)
	}
}

func TestStrideAndFields(t *testing.T) {
	p, _ := New("p", testLayout, 4)
	if p.Stride() != 5 || testLayout.BlockLength() != 3 {
		t.Fatalf("stride %d block %d", p.Stride(), testLayout.BlockLength())
	}
	if off, _ := p.Field("dy"); off != 4 {
		t.Errorf("dy offset = %d, want 4", off)
	}
	if _, err := p.Field("nope"); !errors.Is(err, ErrUnknownField) {
		t.Errorf("expected ErrUnknownField, got %v", err)
	}
	if err := p.SetGlobal("g", 9.8); err != nil {
		t.Fatal(err)
	}
	if g, ok := p.Global("g"); !ok || g != 9.8 {
		t.Errorf("global = %v", g)
	}
}

func TestAppendChainsBuffers(t *testing.T) {
	p, _ := New("p", testLayout, 2)
	for i := 0; i < 5; i++ {
		if err := p.Write(float32(i), 1, 2); err != nil {
			t.Fatal(err)
		}
	}
	if p.NumBuffers() != 3 || p.Records() != 5 {
		t.Fatalf("buffers %d records %d", p.NumBuffers(), p.Records())
	}
	if p.Buffer(2).Len != 1 {
		t.Errorf("last buffer len = %d", p.Buffer(2).Len)
	}

	var ids []float32
	p.EachRecord(func(rec []float32) bool {
		ids = append(ids, rec[0])
		return true
	})
	for i, id := range ids {
		if id != float32(i) {
			t.Fatalf("records out of order: %v", ids)
		}
	}
}

func TestResetReusesBuffers(t *testing.T) {
	p, _ := New("p", testLayout, 2)
	for i := 0; i < 4; i++ {
		p.Write(1, 2, 3)
	}
	first := p.Buffer(0)
	p.Reset()
	if p.Records() != 0 || p.NumBuffers() != 2 || p.Buffer(0) != first {
		t.Fatal("reset should empty and keep buffers")
	}
	if len(p.NonEmpty()) != 0 {
		t.Error("no buffer should hold records after reset")
	}
}

func TestAppendClearsOutputs(t *testing.T) {
	p, _ := New("p", testLayout, 1)
	p.Write(1, 2, 3)
	b := p.Buffer(0)
	b.Data[3], b.Data[4] = 7, 7
	p.Reset()
	p.Write(1, 2, 3)
	if b.Data[3] != 0 || b.Data[4] != 0 {
		t.Errorf("stale outputs: %v", b.Data)
	}
}

func TestDetachAttach(t *testing.T) {
	p, _ := New("p", testLayout, 1)
	p.Write(1, 2, 3)

	b, err := p.Detach(0)
	if err != nil {
		t.Fatal(err)
	}
	if p.Buffer(0) != nil || !p.Detached() {
		t.Fatal("slot should be empty after detach")
	}
	if _, err := p.Detach(0); !errors.Is(err, ErrDetached) {
		t.Errorf("double detach: %v", err)
	}
	if _, err := p.Append(); !errors.Is(err, ErrDetached) {
		t.Errorf("append into detached slot: %v", err)
	}

	if err := p.Attach(0, b); err != nil {
		t.Fatal(err)
	}
	if err := p.Attach(0, b); err == nil {
		t.Error("attach into occupied slot should fail")
	}
	if p.Detached() {
		t.Error("pipeline should own all buffers")
	}
}

func TestResetReplacesLostBuffers(t *testing.T) {
	p, _ := New("p", testLayout, 1)
	p.Write(1, 2, 3)
	lost, _ := p.Detach(0)
	p.Reset()
	if p.Buffer(0) == nil || p.Buffer(0) == lost {
		t.Fatal("reset should allocate a fresh buffer for a lost slot")
	}
	if err := p.Write(4, 5, 6); err != nil {
		t.Fatal(err)
	}
}
