package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestLogStats_RespectsDebugFlag(t *testing.T) {
	stats := map[string]interface{}{
		"session": map[string]interface{}{"tick": uint64(42), "rig_z": float32(-7.5), "projectiles": 3},
		"ticker":  map[string]interface{}{"actual_fps": 59.9},
	}
	transport := map[string]interface{}{"clients": 2}

	var quiet bytes.Buffer
	logStats(newLogger(&quiet, false), stats, transport)
	if quiet.Len() != 0 {
		t.Errorf("Без -debug сводка не должна выводиться, получили %q", quiet.String())
	}

	var verbose bytes.Buffer
	logStats(newLogger(&verbose, true), stats, transport)
	out := verbose.String()
	for _, want := range []string{"Состояние", "tick", "42", "projectiles", "clients"} {
		if !strings.Contains(out, want) {
			t.Errorf("В выводе нет %q: %q", want, out)
		}
	}
}

func TestLogStats_ToleratesMissingSections(t *testing.T) {
	var buf bytes.Buffer
	logStats(newLogger(&buf, true), map[string]interface{}{}, map[string]interface{}{})
	if !strings.Contains(buf.String(), "Состояние") {
		t.Errorf("Ожидали строку сводки, получили %q", buf.String())
	}
}
