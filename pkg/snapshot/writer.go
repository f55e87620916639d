package snapshot

import (
	"bufio"
	"encoding/json"
	"os"
)

// Writer writes records (or plain lines, for title listings) to a file,
// or to stdout when path is empty.
type Writer struct {
	w *bufio.Writer
	f *os.File
}

func Create(path string) (*Writer, error) {
	if path == "" {
		return &Writer{w: bufio.NewWriter(os.Stdout)}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &Writer{w: bufio.NewWriter(f), f: f}, nil
}

func (w *Writer) Write(rec Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

func (w *Writer) WriteLine(s string) error {
	if _, err := w.w.WriteString(s); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

func (w *Writer) Close() error {
	if err := w.w.Flush(); err != nil {
		return err
	}
	if w.f != nil {
		return w.f.Close()
	}
	return nil
}
