package eventlog

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"algo-dashboard/internal/interfaces"
	"algo-dashboard/internal/types"
)

var ist = time.FixedZone("IST", 19800)

// Journal appends one JSON line per event to a daily file named after the
// IST calendar date.
type Journal struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

var _ interfaces.Journal = (*Journal)(nil)

func New(dir string) *Journal {
	if dir == "" {
		dir = "logs"
	}
	return &Journal{dir: dir, now: time.Now}
}

// Dir returns the journal root.
func (j *Journal) Dir() string {
	return j.dir
}

func (j *Journal) dailyFilepath(t time.Time) string {
	d := t.In(ist).Format("2006-01-02")
	return filepath.Join(j.dir, d+".txt")
}

func (j *Journal) Append(e types.JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	now := j.now().In(ist)
	if e.Time == "" {
		e.Time = now.Format("2006-01-02 15:04:05")
	}
	p := j.dailyFilepath(now)
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
		return fmt.Errorf("failed to encode journal entry: %w", err)
	}
	_, err = fmt.Fprintln(f, string(b))
	return err
}

// CompressOlder gzips daily files last modified more than retentionDays ago
// and removes the originals. It returns how many files were compressed.
func (j *Journal) CompressOlder(retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	cutoff := j.now().AddDate(0, 0, -retentionDays)
	compressed := 0
	err := filepath.WalkDir(j.dir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(p) != ".txt" {
			return nil
		}
		info, err := d.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		gz := p + ".gz"
		// a previous run got as far as writing the archive
		if archived(gz, info.Size()) {
			return os.Remove(p)
		}
		if err := gzipFile(p, gz); err != nil {
			return fmt.Errorf("failed to compress %s: %w", p, err)
		}
		compressed++
		return os.Remove(p)
	})
	return compressed, err
}

// archived reports whether gz is a complete archive of size bytes.
func archived(gz string, size int64) bool {
	f, err := os.Open(gz)
	if err != nil {
		return false
	}
	defer f.Close()
	gr, err := gzip.NewReader(f)
	if err != nil {
		return false
	}
	n, err := io.Copy(io.Discard, gr)
	return err == nil && n == size
}

// gzipFile writes dst through a temporary file so a crash never leaves a
// truncated archive under the final name.
func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := out.Name()
	fail := func(err error) error {
		_ = out.Close()
		_ = os.Remove(tmp)
		return err
	}

	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		_ = gw.Close()
		return fail(err)
	}
	if err := gw.Close(); err != nil {
		return fail(err)
	}
	if err := out.Sync(); err != nil {
		return fail(err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
