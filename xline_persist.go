package dircd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const xlineFileVersion = "1"

// SavePersistent writes every XLine to path in a simple line-oriented
// format, one XLine per line:
//
//	VERSION 1
//	LINE <type> <mask> <setter> <setat> <duration> :<reason>
//
// Duration is in seconds, 0 for a permanent entry; the absolute expiry
// is recomputed from setat on load.
//
// The file is written to a temp file in the same directory and renamed
// into place, so a crash mid-write never leaves a truncated file behind.
func (r *XLineRegistry) SavePersistent(path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".xlines-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	w := bufio.NewWriter(tmp)
	fmt.Fprintf(w, "VERSION %s\n", xlineFileVersion)

	r.mu.RLock()
	for _, lines := range r.lines {
		for _, line := range lines {
			duration := int64(0)
			if line.Expires != 0 {
				duration = line.Expires - line.SetAt
			}
			fmt.Fprintf(w, "LINE %c %s %s %d %d :%s\n",
				line.Type, line.Mask, line.Setter, line.SetAt, duration, line.Reason)
		}
	}
	r.mu.RUnlock()

	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	return os.Rename(tmpName, path)
}

// LoadPersistent replaces the registry's contents with the XLines
// recorded in path. A missing file is not an error; it's treated as an
// empty registry (the normal case on first startup).
func (r *XLineRegistry) LoadPersistent(path string) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	loaded := make(map[XLineType][]*XLine)
	scanner := bufio.NewScanner(f)

	for scanner.Scan() {
		fields := strings.SplitN(scanner.Text(), " ", 7)
		if len(fields) < 7 || fields[0] != "LINE" || len(fields[1]) != 1 {
			continue
		}

		setAt, _ := strconv.ParseInt(fields[4], 10, 64)
		duration, _ := strconv.ParseInt(fields[5], 10, 64)
		reason := strings.TrimPrefix(fields[6], ":")

		line := &XLine{
			Type:   XLineType(fields[1][0]),
			Mask:   fields[2],
			Setter: fields[3],
			SetAt:  setAt,
			Reason: reason,
		}
		if duration > 0 {
			line.Expires = setAt + duration
		}
		loaded[line.Type] = append(loaded[line.Type], line)
	}

	if err := scanner.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	r.lines = loaded
	r.mu.Unlock()

	return nil
}
