package cpudevice

import (
	"bytes"
	"testing"
)

func TestCopyDataRoundTrip(t *testing.T) {
	d := New()
	if err := d.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if !d.IsCPU() {
		t.Fatal("IsCPU() = false, want true")
	}
	if err := d.CopyData(0, []byte{1, 2, 3}); err != nil {
		t.Fatalf("CopyData: %v", err)
	}
	if err := d.CopyData(1, []byte{4, 5}); err != nil {
		t.Fatalf("CopyData: %v", err)
	}
	got0 := make([]byte, 3)
	got1 := make([]byte, 2)
	if err := d.CopyDataBack(0, got0); err != nil {
		t.Fatalf("CopyDataBack: %v", err)
	}
	if err := d.CopyDataBack(1, got1); err != nil {
		t.Fatalf("CopyDataBack: %v", err)
	}
	if !bytes.Equal(got0, []byte{1, 2, 3}) {
		t.Fatalf("slot 0 = %v, want [1 2 3]", got0)
	}
	if !bytes.Equal(got1, []byte{4, 5}) {
		t.Fatalf("slot 1 = %v, want [4 5]", got1)
	}
}

func TestCopyMetaStoredPerSlot(t *testing.T) {
	d := New()
	if err := d.CopyMeta(0, []int32{7, 8, 9}); err != nil {
		t.Fatalf("CopyMeta: %v", err)
	}
	got := d.Meta(0)
	if len(got) != 3 || got[0] != 7 || got[1] != 8 || got[2] != 9 {
		t.Fatalf("Meta(0) = %v, want [7 8 9]", got)
	}
	if len(d.Meta(1)) != 0 {
		t.Fatalf("Meta(1) = %v, want empty", d.Meta(1))
	}
}
