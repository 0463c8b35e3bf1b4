package version

import "testing"

func TestGet(t *testing.T) {
	v := Get()
	if v == "" {
		t.Fatal("expected non-empty version")
	}
	if v != "0.1.0" {
		t.Errorf("Get() = %q, want %q", v, "0.1.0")
	}
}

func TestString(t *testing.T) {
	old := Commit
	t.Cleanup(func() { Commit = old })

	Commit = ""
	if got := String(); got != Get() {
		t.Errorf("String() = %q, want %q", got, Get())
	}
	Commit = "abc123"
	if got := String(); got != Get()+" (abc123)" {
		t.Errorf("String() = %q", got)
	}
}
