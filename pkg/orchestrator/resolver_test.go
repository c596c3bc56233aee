package orchestrator

import (
	"reflect"
	"testing"
)

func TestFlatten(t *testing.T) {
	tests := []struct {
		name  string
		roots []*ContainerConfig
		want  []string
	}{
		{
			name:  "empty tree",
			roots: nil,
			want:  []string{},
		},
		{
			name: "flat list",
			roots: []*ContainerConfig{
				{Name: "a"}, {Name: "b"}, {Name: "c"},
			},
			want: []string{"a", "b", "c"},
		},
		{
			name: "nested tree in depth-first order",
			roots: []*ContainerConfig{
				{Name: "shell", MicroFrontEnds: []*ContainerConfig{
					{Name: "nav"},
					{Name: "content", MicroFrontEnds: []*ContainerConfig{
						{Name: "product-list"},
					}},
				}},
				{Name: "footer"},
			},
			want: []string{"shell", "nav", "content", "product-list", "footer"},
		},
		{
			name: "duplicate names keep first occurrence",
			roots: []*ContainerConfig{
				{Name: "a", MicroFrontEnds: []*ContainerConfig{
					{Name: "shared"},
				}},
				{Name: "b", MicroFrontEnds: []*ContainerConfig{
					{Name: "shared"},
					{Name: "b"},
				}},
			},
			want: []string{"a", "shared", "b"},
		},
		{
			name: "nil and unnamed nodes skipped",
			roots: []*ContainerConfig{
				nil,
				{Name: ""},
				{Name: "a"},
			},
			want: []string{"a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Flatten(tt.roots)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Flatten() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFlattenIdempotent(t *testing.T) {
	roots := []*ContainerConfig{
		{Name: "a", MicroFrontEnds: []*ContainerConfig{{Name: "b"}}},
		{Name: "c"},
	}

	first := Flatten(roots)
	second := Flatten(roots)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Flatten is not idempotent: %v != %v", first, second)
	}
}
