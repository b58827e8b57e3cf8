package i3block

import (
	"errors"
	"syscall"
	"testing"
)

func TestParsePgrepOutput(t *testing.T) {
	tests := []struct {
		output  string
		want    int
		wantErr bool
	}{
		{"1234\n", 1234, false},
		{"1234\n5678\n", 1234, false},
		{"\n", -1, true},
		{"abc\n", -1, true},
	}
	for _, tt := range tests {
		got, err := parsePgrepOutput(tt.output)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parsePgrepOutput(%q) = %d, %v", tt.output, got, err)
		}
	}
}

func TestParsePsOutput(t *testing.T) {
	output := `    PID COMMAND
      1 systemd
    812 i3blocks-extra
    813 i3blocks
`
	pid, err := parsePsOutput(output, "i3blocks")
	if err != nil || pid != 813 {
		t.Errorf("Expected 813, got %d (%v)", pid, err)
	}
	if _, err := parsePsOutput(output, "polybar"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSignal(t *testing.T) {
	c := NewController("i3blocks", 21)
	c.findPID = func(string) (int, error) { return 42, nil }

	var gotPID int
	var gotSig syscall.Signal
	c.kill = func(pid int, sig syscall.Signal) error {
		gotPID, gotSig = pid, sig
		return nil
	}

	if err := c.Signal(); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound before PID is known, got %v", err)
	}

	if err := c.RefreshPID(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := c.Signal(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if gotPID != 42 || gotSig != syscall.Signal(55) {
		t.Errorf("Expected signal 55 to pid 42, got %d to %d", gotSig, gotPID)
	}
}

func TestSignalFailureForgetsPID(t *testing.T) {
	c := NewController("i3blocks", 10)
	c.findPID = func(string) (int, error) { return 42, nil }
	c.kill = func(int, syscall.Signal) error { return syscall.ESRCH }

	c.RefreshPID()
	if err := c.Signal(); !errors.Is(err, syscall.ESRCH) {
		t.Errorf("Expected ESRCH, got %v", err)
	}
	if pid := c.GetPID(); pid != -1 {
		t.Errorf("Expected PID to be cleared, got %d", pid)
	}
}

func TestRefreshPIDNotFound(t *testing.T) {
	c := NewController("i3blocks", 10)
	c.findPID = func(string) (int, error) { return 42, nil }
	c.RefreshPID()

	c.findPID = func(string) (int, error) { return -1, ErrNotFound }
	if err := c.RefreshPID(); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if pid := c.GetPID(); pid != -1 {
		t.Errorf("Expected PID reset, got %d", pid)
	}
}
