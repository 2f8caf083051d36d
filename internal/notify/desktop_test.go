package notify

import "testing"

func TestDesktop_DisabledIsNoOp(t *testing.T) {
	var d Desktop
	if err := d.Post("Actions recorded", "3 actions"); err != nil {
		t.Errorf("disabled Post must not fail: %v", err)
	}
}

func TestEscapeAppleScript(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`plain`, `plain`},
		{`with "quotes"`, `with \"quotes\"`},
		{`back\slash`, `back\\slash`},
	}
	for _, tt := range tests {
		if got := escapeAppleScript(tt.in); got != tt.want {
			t.Errorf("escapeAppleScript(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
