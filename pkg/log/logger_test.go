package log

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetSink(&buf)
	t.Cleanup(func() {
		SetSink(os.Stdout)
		SetLevel(Notice)
	})

	logger := New("logtest")

	SetLevel(Info)
	logger.Infof("visible %d", 1)
	if !strings.Contains(buf.String(), "visible 1") {
		t.Errorf("Expected info message in output, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), "[logtest]") {
		t.Errorf("Expected module name in output, got %q", buf.String())
	}

	buf.Reset()
	SetLevel(Error)
	logger.Infof("hidden")
	logger.Warningf("hidden too")
	if buf.Len() != 0 {
		t.Errorf("Expected no output below error level, got %q", buf.String())
	}
}

func TestPrintf_WritesAtInfo(t *testing.T) {
	var buf bytes.Buffer
	SetSink(&buf)
	t.Cleanup(func() {
		SetSink(os.Stdout)
		SetLevel(Notice)
	})

	SetLevel(Info)
	Printf{Logger: New("adapter")}.Printf("pass %d done", 3)
	if !strings.Contains(buf.String(), "pass 3 done") {
		t.Errorf("Expected adapted message, got %q", buf.String())
	}
}
