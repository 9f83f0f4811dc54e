package file

import (
	"context"
	"os"
	"sync"

	"github.com/pkg/errors"

	"gitea.xscloud.ru/xscloud/eventingest/pkg/application/ingest"
)

// DeadLetterFile appends one JSON document per line.
type DeadLetterFile struct {
	mu sync.Mutex
	f  *os.File
}

func OpenDeadLetterFile(path string) (*DeadLetterFile, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open dead-letter file %q", path)
	}
	return &DeadLetterFile{f: f}, nil
}

func (d *DeadLetterFile) Put(_ context.Context, letter ingest.DeadLetter) error {
	data, err := ingest.EncodeDeadLetter(letter)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err = d.f.Write(data); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(d.f.Sync())
}

func (d *DeadLetterFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.f.Close()
}
