package tradelog

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"ai-trading-challenge/internal/types"
)

var mu sync.Mutex

const dateLayout = "2006-01-02"

// Entry is one instruction outcome as written to the daily JSONL file.
type Entry struct {
	Time  string `json:"time"`
	RunID string `json:"run_id"`
	Model string `json:"model"`
	types.Outcome
}

// Transcript is the ordered, human-readable execution log of one run. Lines
// are echoed to Out as they are recorded.
type Transcript struct {
	mu    sync.Mutex
	lines []string
	Out   io.Writer
}

func NewTranscript(out io.Writer) *Transcript {
	return &Transcript{Out: out}
}

// Printf records one line (or several, if the format contains newlines).
func (t *Transcript) Printf(format string, args ...any) {
	if t == nil {
		return
	}
	line := fmt.Sprintf(format, args...)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
	if t.Out != nil {
		fmt.Fprintln(t.Out, line)
	}
}

func (t *Transcript) Lines() []string {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.lines...)
}

// TranscriptPath is <dir>/trades/<date>/<model>.md.
func TranscriptPath(dir, model string, day time.Time) string {
	name := strings.ReplaceAll(strings.ToLower(model), " ", "_") + ".md"
	return filepath.Join(dir, "trades", day.Format(dateLayout), name)
}

// Save writes the transcript as Markdown and returns the path. An empty
// transcript is not written.
func (t *Transcript) Save(dir, model string, day time.Time) (string, error) {
	lines := t.Lines()
	if len(lines) == 0 {
		return "", nil
	}
	p := TranscriptPath(dir, model, day)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("# Trade Execution Log\n\n")
	fmt.Fprintf(&b, "**Model:** %s\n", model)
	fmt.Fprintf(&b, "**Date:** %s\n\n", day.Format(dateLayout))
	b.WriteString("```text\n")
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n```\n")

	if err := os.WriteFile(p, []byte(b.String()), 0o644); err != nil {
		return "", err
	}
	return p, nil
}

// OutcomesPath is the daily JSONL file the end-of-run summary reads.
func OutcomesPath(dir string, day time.Time) string {
	return filepath.Join(dir, "outcomes", day.Format(dateLayout)+".txt")
}

// Append writes one outcome line to the day's JSONL file.
func Append(dir string, e Entry) error {
	mu.Lock()
	defer mu.Unlock()
	now := time.Now()
	if e.Time == "" {
		e.Time = now.Format("2006-01-02 15:04:05")
	}
	p := OutcomesPath(dir, now)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(f, string(b))
	return err
}

// CompressOlder gzips transcripts and outcome files whose modification time
// is older than retentionDays. Files that cannot be read are left alone.
func CompressOlder(dir string, retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	return filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if ext := filepath.Ext(p); ext != ".txt" && ext != ".md" {
			return nil
		}
		info, err := d.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		gz := p + ".gz"
		// if already gz exists, remove original
		if _, err := os.Stat(gz); err == nil {
			_ = os.Remove(p)
			return nil
		}
		if err := gzipFile(p, gz); err == nil {
			_ = os.Remove(p)
		}
		return nil
	})
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(out)
	_, copyErr := io.Copy(gw, in)
	closeErr := gw.Close()
	if err := out.Close(); err != nil && closeErr == nil {
		closeErr = err
	}
	if copyErr != nil {
		_ = os.Remove(dst)
		return copyErr
	}
	return closeErr
}
