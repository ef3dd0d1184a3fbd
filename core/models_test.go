package core

import (
	"testing"
)

func TestChecksum(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{
			name: "simple content",
			data: []byte("test content"),
		},
		{
			name: "empty input",
			data: []byte{},
		},
		{
			name: "binary content",
			data: []byte{0x00, 0xff, 0x10, 0x20, 0x00},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c1 := Checksum(tt.data)
			c2 := Checksum(tt.data)

			if c1 != c2 {
				t.Errorf("Checksum() produced different digests for same bytes: %s vs %s", c1, c2)
			}
			if len(c1) != 64 {
				t.Errorf("Checksum() length = %d, want 64 hex chars", len(c1))
			}
		})
	}
}

func TestChecksum_Different(t *testing.T) {
	c1 := Checksum([]byte("content1"))
	c2 := Checksum([]byte("content2"))

	if c1 == c2 {
		t.Errorf("Checksum() produced same digest for different bytes")
	}
}

func TestNewAssetID_Unique(t *testing.T) {
	seen := make(map[AssetID]bool)
	for i := 0; i < 1000; i++ {
		id := NewAssetID()
		if id == "" {
			t.Fatal("NewAssetID() returned empty ID")
		}
		if seen[id] {
			t.Fatalf("NewAssetID() returned duplicate ID %s", id)
		}
		seen[id] = true
	}
}

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusIngested, "ingested"},
		{StatusProcessing, "processing"},
		{StatusLabeled, "labeled"},
		{StatusShipped, "shipped"},
		{StatusFailed, "failed"},
		{Status(42), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.status.String(); got != tt.want {
				t.Errorf("Status.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizeVector(t *testing.T) {
	v := NormalizeVector([]float32{3, 4})
	var mag float32
	for _, x := range v {
		mag += x * x
	}
	if mag < 0.999 || mag > 1.001 {
		t.Errorf("NormalizeVector() magnitude = %v, want 1.0", mag)
	}

	zero := NormalizeVector([]float32{0, 0, 0})
	for i, x := range zero {
		if x != 0 {
			t.Errorf("NormalizeVector(zero)[%d] = %v, want 0", i, x)
		}
	}

	if got := NormalizeVector(nil); len(got) != 0 {
		t.Errorf("NormalizeVector(nil) = %v, want empty", got)
	}
}

func TestDotProduct(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{1, 0, 0}
	if got := DotProduct(a, b); got != 1 {
		t.Errorf("DotProduct(identical unit vectors) = %v, want 1", got)
	}

	c := []float32{0, 1, 0}
	if got := DotProduct(a, c); got != 0 {
		t.Errorf("DotProduct(orthogonal vectors) = %v, want 0", got)
	}

	// Mismatched lengths use the shorter vector
	if got := DotProduct([]float32{2, 3}, []float32{4}); got != 8 {
		t.Errorf("DotProduct(mismatched lengths) = %v, want 8", got)
	}
}
