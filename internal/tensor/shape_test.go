package tensor

import (
	"testing"
)

func TestShape_NumElements(t *testing.T) {
	tests := []struct {
		shape Shape
		want  int
	}{
		{Shape{}, 1},
		{Shape{5}, 5},
		{Shape{2, 3}, 6},
		{Shape{2, 3, 4}, 24},
	}
	for _, tt := range tests {
		if got := tt.shape.NumElements(); got != tt.want {
			t.Errorf("Shape%v.NumElements() = %d, want %d", tt.shape, got, tt.want)
		}
	}
}

func TestShape_Validate(t *testing.T) {
	if err := (Shape{2, 3}).Validate(); err != nil {
		t.Errorf("valid shape rejected: %v", err)
	}
	if err := (Shape{2, 0}).Validate(); err == nil {
		t.Error("expected error for zero dimension")
	}
	if err := (Shape{-1, 3}).Validate(); err == nil {
		t.Error("expected error for negative dimension")
	}
}

func TestShape_Equal(t *testing.T) {
	if !(Shape{2, 3}).Equal(Shape{2, 3}) {
		t.Error("equal shapes reported unequal")
	}
	if (Shape{2, 3}).Equal(Shape{3, 2}) {
		t.Error("unequal shapes reported equal")
	}
	if (Shape{2, 3}).Equal(Shape{2, 3, 1}) {
		t.Error("shapes of different rank reported equal")
	}
}

func TestShape_ComputeStrides(t *testing.T) {
	strides := Shape{2, 3, 4}.ComputeStrides()
	want := []int{12, 4, 1}
	for i := range want {
		if strides[i] != want[i] {
			t.Errorf("strides = %v, want %v", strides, want)
			break
		}
	}
}

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		a, b Shape
		want Shape
	}{
		{Shape{2, 3}, Shape{2, 3}, Shape{2, 3}},
		{Shape{2, 3}, Shape{3}, Shape{2, 3}},
		{Shape{2, 1}, Shape{1, 3}, Shape{2, 3}},
		{Shape{4, 1, 3}, Shape{2, 3}, Shape{4, 2, 3}},
	}
	for _, tt := range tests {
		got, _, err := BroadcastShapes(tt.a, tt.b)
		if err != nil {
			t.Errorf("BroadcastShapes(%v, %v) error: %v", tt.a, tt.b, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("BroadcastShapes(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}

	if _, _, err := BroadcastShapes(Shape{2, 3}, Shape{4, 3}); err == nil {
		t.Error("expected error for incompatible shapes")
	}
}
