package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)
	logger.SetLevel(Error)

	logger.Warn("should not appear")
	logger.Error("should appear")

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Fatalf("warn entry logged below configured level: %s", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Fatalf("error entry missing from output: %s", out)
	}
}

func TestWithFieldsAttachesContext(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)
	logger.WithFields(map[string]interface{}{"space": "repo1"}).Info("card created")

	if !strings.Contains(buf.String(), `"space":"repo1"`) {
		t.Fatalf("expected field to be present in output: %s", buf.String())
	}
}

func TestGetLevelReflectsSetLevel(t *testing.T) {
	logger := New()
	if logger.GetLevel() != Info {
		t.Fatalf("default level = %v, want Info", logger.GetLevel())
	}
	logger.SetLevel(Debug)
	if logger.GetLevel() != Debug {
		t.Fatalf("level after SetLevel(Debug) = %v, want Debug", logger.GetLevel())
	}
}
