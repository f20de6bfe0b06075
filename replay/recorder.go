package replay

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"sairedis/sai"
)

// Recorder appends capture lines to a file and, optionally, a SQL table.
// It satisfies the recorder interfaces of the client and the daemon.
type Recorder struct {
	mu   sync.Mutex
	path string
	f    *os.File
	w    *bufio.Writer
	sink *SQLSink
	now  func() time.Time
}

// NewRecorder opens path for appending.
func NewRecorder(path string) (*Recorder, error) {
	r := &Recorder{path: path, now: time.Now}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Recorder) open() error {
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open capture: %w", err)
	}
	r.f = f
	r.w = bufio.NewWriter(f)
	return nil
}

// WithSQL mirrors every line to s.
func (r *Recorder) WithSQL(s *SQLSink) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sink = s
	return r
}

// Record writes one line. Write errors are logged; capture never fails
// the call being captured.
func (r *Recorder) Record(op byte, key string, fields []sai.FieldValue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l := Line{Time: r.now(), Op: op, Key: key, Fields: fields}
	if r.w != nil {
		if _, err := io.WriteString(r.w, l.String()+"\n"); err != nil {
			log.Errorf("capture %s: %v", r.path, err)
		}
		// lines must survive a crash of the caller
		if err := r.w.Flush(); err != nil {
			log.Errorf("capture %s: %v", r.path, err)
		}
	}
	if r.sink != nil {
		if err := r.sink.Write(l); err != nil {
			log.Errorf("capture sql: %v", err)
		}
	}
}

// Reopen closes and reopens the file, for use after log rotation moved it.
func (r *Recorder) Reopen() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.closeFile(); err != nil {
		log.Warnf("close capture %s: %v", r.path, err)
	}
	return r.open()
}

func (r *Recorder) closeFile() error {
	if r.f == nil {
		return nil
	}
	err := r.w.Flush()
	if cerr := r.f.Close(); err == nil {
		err = cerr
	}
	r.f, r.w = nil, nil
	return err
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.closeFile()
	if r.sink != nil {
		if serr := r.sink.Close(); err == nil {
			err = serr
		}
		r.sink = nil
	}
	return err
}

// ReadFile parses a capture file. Blank lines are skipped.
func ReadFile(path string) ([]Line, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

func Read(rd io.Reader) ([]Line, error) {
	var res []Line
	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	n := 0
	for sc.Scan() {
		n++
		if len(sc.Bytes()) == 0 {
			continue
		}
		l, err := ParseLine(sc.Text())
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		res = append(res, l)
	}
	return res, sc.Err()
}
