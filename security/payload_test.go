package security

import (
	"testing"
)

func TestPayloadValidator(t *testing.T) {
	v := NewPayloadValidator(nil, nil)

	tests := []struct {
		name string
		data map[string]any
		want bool
	}{
		{
			name: "clean scalar fields",
			data: map[string]any{"name": "John Doe", "age": 25},
			want: true,
		},
		{
			name: "script tag in value",
			data: map[string]any{"name": "a<script>alert(1)</script>"},
			want: false,
		},
		{
			name: "sql injection in value",
			data: map[string]any{"comment": "x' OR 1=1 --"},
			want: false,
		},
		{
			name: "traversal in nested map",
			data: map[string]any{
				"profile": map[string]any{
					"avatar": "../../etc/passwd",
				},
			},
			want: false,
		},
		{
			name: "xss in slice element",
			data: map[string]any{
				"tags": []any{"golang", "<img onerror=alert(1) src=x>"},
			},
			want: false,
		},
		{
			name: "xss in string slice",
			data: map[string]any{
				"tags": []string{"a", "javascript:void(0)"},
			},
			want: false,
		},
		{
			name: "hostile field name",
			data: map[string]any{"<script>": "value"},
			want: false,
		},
		{
			name: "non-string leaves never trigger",
			data: map[string]any{
				"count":   42,
				"active":  true,
				"ratio":   3.14,
				"novalue": nil,
				"nested":  map[string]any{"flags": []any{1, 2, 3}},
			},
			want: true,
		},
		{
			name: "empty payload",
			data: map[string]any{},
			want: true,
		},
		{
			name: "deeply nested clean structure",
			data: map[string]any{
				"form": map[string]any{
					"fields": []any{
						map[string]any{"label": "Email", "value": "a@b.example"},
					},
				},
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := v.Validate(tt.data); got != tt.want {
				t.Errorf("Validate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPayloadValidatorInspect(t *testing.T) {
	v := NewPayloadValidator(nil, nil)

	field, group, ok := v.Inspect(map[string]any{
		"profile": map[string]any{
			"bio": "<script>steal()</script>",
		},
	})
	if ok {
		t.Fatal("Inspect() should deny payload with script tag")
	}
	if field != "profile.bio" {
		t.Errorf("Inspect() field = %q, want %q", field, "profile.bio")
	}
	if group != PatternGroupXSS {
		t.Errorf("Inspect() group = %q, want %q", group, PatternGroupXSS)
	}
}
