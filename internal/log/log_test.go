package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestBuild_Level(t *testing.T) {
	tests := []struct {
		level string
		want  logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"warn", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
		{"", logrus.InfoLevel},
		{"loud", logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l := build(Options{Level: tt.level, NoColors: true})
			if l.GetLevel() != tt.want {
				t.Errorf("level = %v, want %v", l.GetLevel(), tt.want)
			}
		})
	}
}

func TestBuild_FileOutput(t *testing.T) {
	dir := t.TempDir()
	l := build(Options{Level: "info", Dir: dir, NoColors: true})

	l.WithField("component", "test").Info("camera opened")

	files, err := filepath.Glob(filepath.Join(dir, "kundan-*.log"))
	if err != nil || len(files) != 1 {
		t.Fatalf("log files = %v, %v; want one", files, err)
	}
	data, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "camera opened") {
		t.Errorf("log file missing message: %q", data)
	}
}

func TestDiscard(t *testing.T) {
	e := Discard()
	e.WithField("k", "v").Error("dropped")
	if e.Logger == L() {
		t.Error("Discard should not share the global logger")
	}
}
