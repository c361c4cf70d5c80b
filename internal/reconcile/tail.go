package reconcile

import (
	"io"
	"strings"

	"github.com/spf13/afero"
)

// tailWindow bounds how much of a log is read for a tail.
const tailWindow = 64 * 1024

// TailLog returns the last n lines of the file at path. A missing file yields
// an empty tail and the error.
func TailLog(fs afero.Fs, path string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	offset := int64(0)
	if info.Size() > tailWindow {
		offset = info.Size() - tailWindow
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	text := strings.TrimRight(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	if text == "" {
		return nil, nil
	}
	lines := strings.Split(text, "\n")
	if offset > 0 && len(lines) > 1 {
		// first line is probably cut mid-way
		lines = lines[1:]
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}
