package inbox

import (
	"context"
	"testing"
)

func TestMemoryRecordDedupes(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	if ok, err := m.Record(ctx, "e1", "appointment.booked.v1"); err != nil || !ok {
		t.Fatalf("first record: %v %v", ok, err)
	}
	if ok, _ := m.Record(ctx, "e1", "appointment.booked.v1"); ok {
		t.Fatalf("duplicate should report false")
	}
	if ok, _ := m.Record(ctx, "e2", "appointment.booked.v1"); !ok {
		t.Fatalf("new id should be recorded")
	}
}
