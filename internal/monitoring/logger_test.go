package monitoring

import (
	"fmt"
	"testing"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got string
	SetLogger(func(format string, v ...interface{}) {
		got = fmt.Sprintf(format, v...)
	})
	Logf("job %s failed", "abc")
	if got != "job abc failed" {
		t.Errorf("logged %q", got)
	}

	// nil installs a no-op, not a nil function.
	got = ""
	SetLogger(nil)
	Logf("dropped")
	if got != "" {
		t.Errorf("no-op logger produced %q", got)
	}
	if Logf == nil {
		t.Error("Logf is nil after SetLogger(nil)")
	}
}

func TestLogfDefault(t *testing.T) {
	if Logf == nil {
		t.Fatal("Logf is nil by default")
	}
	Logf("startup check: %s", "ok")
}
