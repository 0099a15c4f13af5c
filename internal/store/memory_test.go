package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStatusLifecycle(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, err := m.GetStatus(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	start := time.Now()
	if err := m.SetStatus(ctx, "b1", Status{State: StateRunning, Done: 2, Total: 10, Start: &start}); err != nil {
		t.Fatal(err)
	}
	st, err := m.GetStatus(ctx, "b1")
	if err != nil {
		t.Fatal(err)
	}
	if st.State != StateRunning || st.Done != 2 || st.Total != 10 {
		t.Errorf("status = %+v", st)
	}

	if err := m.SetStatus(ctx, "b1", Status{State: StateCompleted, Done: 10, Total: 10}); err != nil {
		t.Fatal(err)
	}
	st, _ = m.GetStatus(ctx, "b1")
	if st.State != StateCompleted {
		t.Errorf("state = %q after overwrite", st.State)
	}
}

func TestMemoryReportIsCopied(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	src := []byte(`{"total":3}`)
	if err := m.SetReport(ctx, "b1", src); err != nil {
		t.Fatal(err)
	}
	src[0] = 'X'

	got, err := m.GetReport(ctx, "b1")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"total":3}` {
		t.Errorf("stored report mutated: %s", got)
	}

	if _, err := m.GetReport(ctx, "b2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
