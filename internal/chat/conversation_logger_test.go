package chat

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestConversationLoggerWritesPerSessionNDJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger, err := NewConversationLogger(ConversationLogConfig{
		Enabled:   true,
		Dir:       dir,
		QueueSize: 16,
	}, slog.Default())
	if err != nil {
		t.Fatalf("NewConversationLogger failed: %v", err)
	}
	defer func() { _ = logger.Close() }()

	logger.Log(ConversationLogEvent{
		UserID:     "user-1",
		SessionID:  "sess-1",
		Channel:    "chat_http",
		Direction:  "inbound",
		EventType:  "chat_user_message",
		ContentRaw: "build me a crawler",
	})

	path := filepath.Join(dir, "user-1", "sess-1.ndjson")
	line := waitForLogLine(t, path)
	var got ConversationLogEvent
	if err := json.Unmarshal([]byte(line), &got); err != nil {
		t.Fatalf("failed to unmarshal log line: %v", err)
	}
	if got.ContentRaw != "build me a crawler" {
		t.Fatalf("unexpected ContentRaw: %q", got.ContentRaw)
	}
	if got.Content == "" {
		t.Fatal("expected cleaned content to be populated")
	}
}

func TestConversationLoggerGlobalFileAndClose(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	global := filepath.Join(dir, "all", "conversations.ndjson")
	logger, err := NewConversationLogger(ConversationLogConfig{
		Enabled:       true,
		Dir:           filepath.Join(dir, "sessions"),
		GlobalEnabled: true,
		GlobalPath:    global,
		QueueSize:     16,
	}, slog.Default())
	if err != nil {
		t.Fatalf("NewConversationLogger failed: %v", err)
	}

	logger.Log(ConversationLogEvent{UserID: "u", SessionID: "a", ContentRaw: "one"})
	logger.Log(ConversationLogEvent{UserID: "u", SessionID: "b", ContentRaw: "two"})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	logger.Log(ConversationLogEvent{UserID: "u", SessionID: "a", ContentRaw: "after close"})

	data, err := os.ReadFile(global)
	if err != nil {
		t.Fatalf("read global log: %v", err)
	}
	if n := len(strings.Split(strings.TrimSpace(string(data)), "\n")); n != 2 {
		t.Errorf("Expected 2 global lines, got %d", n)
	}
}

func TestConversationLoggerSanitizesPathElements(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger, err := NewConversationLogger(ConversationLogConfig{Enabled: true, Dir: dir}, slog.Default())
	if err != nil {
		t.Fatalf("NewConversationLogger failed: %v", err)
	}
	logger.Log(ConversationLogEvent{UserID: "..", SessionID: "../../x", ContentRaw: "hi"})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "*", "*.ndjson"))
	if len(matches) != 1 {
		t.Fatalf("Expected log file inside %s, got %v", dir, matches)
	}
}

func TestConversationLoggerBoundsOpenFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger, err := NewConversationLogger(ConversationLogConfig{
		Enabled:      true,
		Dir:          dir,
		QueueSize:    1,
		MaxOpenFiles: 8,
	}, slog.Default())
	if err != nil {
		t.Fatalf("NewConversationLogger failed: %v", err)
	}
	l := logger.(*fileConversationLogger)

	// Stop the background writer so write can be driven directly.
	close(l.queue)
	<-l.done

	for i := 0; i < 200; i++ {
		l.write(ConversationLogEvent{UserID: "u", SessionID: fmt.Sprintf("s%d", i), ContentRaw: "hi"})
		if n := l.lru.Len(); n > 8 || len(l.files) != n {
			t.Fatalf("Open files not bounded after %d sessions: lru=%d map=%d", i+1, n, len(l.files))
		}
	}
	// An evicted session is reopened in append mode.
	l.write(ConversationLogEvent{UserID: "u", SessionID: "s0", ContentRaw: "again"})

	data, err := os.ReadFile(filepath.Join(dir, "u", "s0.ndjson"))
	if err != nil {
		t.Fatalf("read session log: %v", err)
	}
	if n := len(strings.Split(strings.TrimSpace(string(data)), "\n")); n != 2 {
		t.Errorf("Expected 2 lines in reopened log, got %d", n)
	}

	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	for l.lru.Len() > 0 {
		if err := l.evict(); err != nil {
			t.Errorf("evict failed: %v", err)
		}
	}
}

func TestConversationLoggerLogRacingClose(t *testing.T) {
	t.Parallel()

	for i := 0; i < 50; i++ {
		logger, err := NewConversationLogger(ConversationLogConfig{Enabled: true, Dir: t.TempDir(), QueueSize: 4}, slog.Default())
		if err != nil {
			t.Fatalf("NewConversationLogger failed: %v", err)
		}

		var wg sync.WaitGroup
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 50; j++ {
					logger.Log(ConversationLogEvent{UserID: "u", SessionID: "s", ContentRaw: "x"})
				}
			}()
		}
		if err := logger.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
		wg.Wait()
		if err := logger.Close(); err != nil {
			t.Fatalf("second Close failed: %v", err)
		}
	}
}

func TestDisabledConversationLoggerIsNoop(t *testing.T) {
	t.Parallel()

	logger, err := NewConversationLogger(ConversationLogConfig{}, nil)
	if err != nil {
		t.Fatalf("NewConversationLogger failed: %v", err)
	}
	if _, ok := logger.(noopConversationLogger); !ok {
		t.Errorf("Expected noop logger, got %T", logger)
	}
}

func TestCleanForReadabilityStripsANSI(t *testing.T) {
	t.Parallel()

	raw := "\x1b[31merror\x1b[0m plain\r\n"
	clean := cleanForReadability(raw)
	if strings.Contains(clean, "\x1b[31m") {
		t.Fatalf("expected ANSI sequence to be stripped: %q", clean)
	}
	if clean != "error plain" {
		t.Fatalf("expected readable text to remain: %q", clean)
	}
}

func waitForLogLine(t *testing.T, path string) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		data, err := os.ReadFile(path)
		if err == nil && len(data) > 0 {
			lines := strings.Split(strings.TrimSpace(string(data)), "\n")
			if len(lines) > 0 {
				return lines[len(lines)-1]
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for log file %s", path)
	return ""
}
