package docker

import (
	"bufio"
	"io"
	"strings"

	"github.com/docker/docker/pkg/stdcopy"
)

// ForEachLine reads a container log (or exec output) stream line by line,
// invoking fn for each non-empty line. Streams from containers without a TTY
// carry stdcopy multiplexing headers and are demuxed first; TTY streams are
// raw text.
//
// fn runs on the calling goroutine. The function returns when the stream
// ends or errors; closing the underlying reader is the caller's job and is
// also how a follow stream is interrupted.
func ForEachLine(reader io.Reader, tty bool, fn func(line string)) error {
	if tty {
		return scanLines(reader, fn)
	}

	// Demux stdout/stderr into a single ordered stream
	pr, pw := io.Pipe()
	go func() {
		_, err := stdcopy.StdCopy(pw, pw, reader)
		pw.CloseWithError(err)
	}()
	return scanLines(pr, fn)
}

func scanLines(r io.Reader, fn func(line string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fn(line)
	}
	return scanner.Err()
}
