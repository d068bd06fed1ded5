package process

import (
	"strings"
	"sync"

	"github.com/sabachan/sabachan/internal/types"
)

// MaxLogBuffer bounds how many console lines a ManagedProcess keeps in
// memory; older lines are evicted once the buffer is full.
const MaxLogBuffer = 10_000

// LogBuffer is a capacity-bounded ring buffer of console lines with
// monotonically increasing IDs, so a client can page forward from any
// previously-seen ID without re-reading lines it already has.
type LogBuffer struct {
	mu      sync.RWMutex
	lines   []types.LogLine
	nextID  uint64
	evicted uint64 // count of lines dropped off the front, oldest ID still present = evicted+1
}

// NewLogBuffer creates an empty ring buffer.
func NewLogBuffer() *LogBuffer {
	return &LogBuffer{lines: make([]types.LogLine, 0, 256)}
}

// Push appends a line, assigning it the next ID, and evicts the oldest
// line if the buffer is at capacity.
func (b *LogBuffer) Push(line types.LogLine) types.LogLine {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	line.ID = b.nextID
	b.lines = append(b.lines, line)

	if len(b.lines) > MaxLogBuffer {
		overflow := len(b.lines) - MaxLogBuffer
		b.lines = b.lines[overflow:]
		b.evicted += uint64(overflow)
	}
	return line
}

// GetSince returns all lines with ID strictly greater than sinceID.
func (b *LogBuffer) GetSince(sinceID uint64) []types.LogLine {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.lines) == 0 {
		return nil
	}
	// lines[0].ID is the oldest surviving ID.
	oldest := b.lines[0].ID
	if sinceID < oldest-1 {
		sinceID = oldest - 1
	}
	offset := int(sinceID - (oldest - 1))
	if offset >= len(b.lines) {
		return nil
	}
	out := make([]types.LogLine, len(b.lines)-offset)
	copy(out, b.lines[offset:])
	return out
}

// GetRecent returns up to count of the most recent lines, oldest first.
func (b *LogBuffer) GetRecent(count int) []types.LogLine {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if count <= 0 || count > len(b.lines) {
		count = len(b.lines)
	}
	start := len(b.lines) - count
	out := make([]types.LogLine, count)
	copy(out, b.lines[start:])
	return out
}

// parseMinecraftLogLevel extracts a severity from a Minecraft-style
// "[HH:MM:SS] [Thread/LEVEL]: message" console line. Lines that don't
// match the bracket convention default to info.
func parseMinecraftLogLevel(line string) types.LogLevel {
	switch {
	case strings.Contains(line, "/FATAL]"):
		return types.LogLevelFatal
	case strings.Contains(line, "/ERROR]"):
		return types.LogLevelError
	case strings.Contains(line, "/WARN]"):
		return types.LogLevelWarn
	case strings.Contains(line, "/DEBUG]"):
		return types.LogLevelDebug
	case strings.Contains(line, "/TRACE]"):
		return types.LogLevelTrace
	default:
		return types.LogLevelInfo
	}
}

var logLevelSeverity = map[types.LogLevel]int{
	types.LogLevelTrace: 0,
	types.LogLevelDebug: 1,
	types.LogLevelInfo:  2,
	types.LogLevelWarn:  3,
	types.LogLevelError: 4,
	types.LogLevelFatal: 5,
}

// raiseToWarn bumps level up to at least warn. A process writing to
// stderr is signalling a problem even when the line itself carries no
// recognizable severity tag.
func raiseToWarn(level types.LogLevel) types.LogLevel {
	if logLevelSeverity[level] < logLevelSeverity[types.LogLevelWarn] {
		return types.LogLevelWarn
	}
	return level
}
