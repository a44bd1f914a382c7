package packaging

import (
	"errors"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// recordingRunner stands in for the systemctl binary.
type recordingRunner struct {
	calls [][]string
	out   string
	err   error
}

func (r *recordingRunner) run(args ...string) ([]byte, error) {
	r.calls = append(r.calls, args)
	return []byte(r.out), r.err
}

func newTestSystemctl(r *recordingRunner) *Systemctl {
	return &Systemctl{runtimeDir: systemdRuntimeDir, run: r.run}
}

func TestSystemctl_Commands(t *testing.T) {
	r := &recordingRunner{}
	s := newTestSystemctl(r)

	if err := s.Reload(); err != nil {
		t.Fatalf("Reload() = %v", err)
	}
	if err := s.Enable("dockerfw"); err != nil {
		t.Fatalf("Enable() = %v", err)
	}
	if err := s.Remove("dockerfw.service"); err != nil {
		t.Fatalf("Remove() = %v", err)
	}

	want := [][]string{
		{"daemon-reload"},
		{"enable", "dockerfw.service"},
		{"disable", "--now", "dockerfw.service"},
	}
	if diff := cmp.Diff(want, r.calls); diff != "" {
		t.Errorf("systemctl calls mismatch (-want +got):\n%s", diff)
	}
}

func TestSystemctl_ErrorCarriesOutput(t *testing.T) {
	r := &recordingRunner{out: "Failed to enable unit: Access denied\n", err: errors.New("exit status 1")}

	err := newTestSystemctl(r).Enable("dockerfw")
	if err == nil {
		t.Fatal("Enable() = nil, want error")
	}
	for _, want := range []string{"systemctl enable dockerfw.service", "Access denied", "exit status 1"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestSystemctl_RemoveMissingUnit(t *testing.T) {
	r := &recordingRunner{
		out: "Failed to disable unit: Unit file dockerfw.service does not exist.\n",
		err: errors.New("exit status 1"),
	}
	if err := newTestSystemctl(r).Remove("dockerfw"); err != nil {
		t.Errorf("Remove() = %v, want nil for a missing unit", err)
	}
}

func TestSystemctl_NotInstalled(t *testing.T) {
	r := &recordingRunner{err: &exec.Error{Name: "systemctl", Err: exec.ErrNotFound}}
	err := newTestSystemctl(r).Reload()
	if !errors.Is(err, exec.ErrNotFound) {
		t.Errorf("Reload() = %v, want exec.ErrNotFound", err)
	}
}

func TestSystemctl_Booted(t *testing.T) {
	dir := t.TempDir()
	s := &Systemctl{runtimeDir: dir}
	if !s.Booted() {
		t.Error("Booted() = false with runtime dir present")
	}
	s.runtimeDir = filepath.Join(dir, "missing")
	if s.Booted() {
		t.Error("Booted() = true with runtime dir absent")
	}
}
