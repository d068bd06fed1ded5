package process

import (
	"fmt"
	"testing"
	"time"

	"github.com/sabachan/sabachan/internal/types"
)

func TestLogBufferPushAndQuery(t *testing.T) {
	b := NewLogBuffer()

	for i := 0; i < 5; i++ {
		b.Push(types.LogLine{Text: fmt.Sprintf("line %d", i), Timestamp: time.Now()})
	}

	recent := b.GetRecent(3)
	if len(recent) != 3 {
		t.Fatalf("GetRecent(3) = %d lines, want 3", len(recent))
	}
	if recent[0].Text != "line 2" || recent[2].Text != "line 4" {
		t.Errorf("GetRecent(3) = %+v, unexpected contents", recent)
	}

	since := b.GetSince(2)
	if len(since) != 3 {
		t.Fatalf("GetSince(2) = %d lines, want 3", len(since))
	}
	if since[0].Text != "line 2" {
		t.Errorf("GetSince(2)[0] = %q, want %q", since[0].Text, "line 2")
	}

	all := b.GetSince(0)
	if len(all) != 5 {
		t.Fatalf("GetSince(0) = %d lines, want 5", len(all))
	}
}

func TestLogBufferRing(t *testing.T) {
	b := NewLogBuffer()

	total := MaxLogBuffer + 100
	for i := 0; i < total; i++ {
		b.Push(types.LogLine{Text: fmt.Sprintf("line %d", i)})
	}

	all := b.GetSince(0)
	if len(all) != MaxLogBuffer {
		t.Fatalf("buffer holds %d lines, want exactly %d", len(all), MaxLogBuffer)
	}

	first := all[0]
	wantFirstText := fmt.Sprintf("line %d", total-MaxLogBuffer)
	if first.Text != wantFirstText {
		t.Errorf("oldest surviving line = %q, want %q", first.Text, wantFirstText)
	}

	last := all[len(all)-1]
	if last.Text != fmt.Sprintf("line %d", total-1) {
		t.Errorf("newest line = %q, want last pushed", last.Text)
	}
}

func TestParseMinecraftLogLevel(t *testing.T) {
	tests := []struct {
		line string
		want types.LogLevel
	}{
		{"[12:34:56] [Server thread/INFO]: Done (3.2s)!", types.LogLevelInfo},
		{"[12:34:56] [Server thread/WARN]: Cannot keep up!", types.LogLevelWarn},
		{"[12:34:56] [Server thread/ERROR]: Exception", types.LogLevelError},
		{"[12:34:56] [Server thread/FATAL]: crash", types.LogLevelFatal},
		{"[12:34:56] [Server thread/DEBUG]: tick", types.LogLevelDebug},
		{"[12:34:56] [Server thread/TRACE]: deep", types.LogLevelTrace},
		{"plain unstructured output", types.LogLevelInfo},
	}

	for _, tt := range tests {
		if got := parseMinecraftLogLevel(tt.line); got != tt.want {
			t.Errorf("parseMinecraftLogLevel(%q) = %q, want %q", tt.line, got, tt.want)
		}
	}
}
