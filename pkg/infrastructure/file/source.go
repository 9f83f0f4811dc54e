package file

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"iter"
	"os"

	"github.com/pkg/errors"

	"gitea.xscloud.ru/xscloud/eventingest/pkg/application/ingest"
)

const (
	maxLineSize    = 1 << 20
	readBufferSize = 64 * 1024
)

// Source reads newline-delimited records from a local file. Records need no
// acknowledgement: rerunning over the same file is safe because writes are idempotent.
type Source struct {
	path string
}

// NewSource fails fast when the file cannot be opened, before any processing starts.
func NewSource(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "input file %q is not readable", path)
	}
	if err = f.Close(); err != nil {
		return nil, errors.WithStack(err)
	}
	return &Source{path: path}, nil
}

func (s *Source) Records(ctx context.Context) iter.Seq2[ingest.Record, error] {
	return func(yield func(ingest.Record, error) bool) {
		f, err := os.Open(s.path)
		if err != nil {
			yield(ingest.Record{}, errors.WithStack(err))
			return
		}
		defer f.Close()

		reader := bufio.NewReaderSize(f, readBufferSize)
		for line := 1; ; line++ {
			if ctx.Err() != nil {
				return
			}
			body, tooLong, err := readLine(reader)
			if err != nil && err != io.EOF {
				yield(ingest.Record{}, errors.Wrapf(err, "failed to read %q", s.path))
				return
			}
			if err == io.EOF && len(body) == 0 && !tooLong {
				return
			}

			record := ingest.Record{
				Body:     body,
				Position: fmt.Sprintf("%s:%d", s.path, line),
			}
			if tooLong {
				record.Err = errors.Errorf("line exceeds %d bytes", maxLineSize)
			}
			if !yield(record, nil) || err == io.EOF {
				return
			}
		}
	}
}

// readLine returns the next line without its terminator. A line longer than maxLineSize
// is consumed to its end and reported as too long with no body.
func readLine(reader *bufio.Reader) (line []byte, tooLong bool, err error) {
	for {
		chunk, readErr := reader.ReadSlice('\n')
		if !tooLong {
			if len(line)+len(dropLineEnd(chunk)) > maxLineSize {
				tooLong = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}
		if readErr == bufio.ErrBufferFull {
			continue
		}
		return dropLineEnd(line), tooLong, readErr
	}
}

func dropLineEnd(line []byte) []byte {
	line = bytes.TrimSuffix(line, []byte{'\n'})
	return bytes.TrimSuffix(line, []byte{'\r'})
}
