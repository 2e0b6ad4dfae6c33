package download

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/mineroot/lanshare/pkg/event"
	"github.com/mineroot/lanshare/pkg/peer"
)

var (
	ErrIncomplete     = errors.New("download incomplete")
	errInvalidWorkers = errors.New("download: at least one worker is required")
)

// Target is a file resolved to the peer that shares it.
type Target struct {
	Address  string
	Port     uint16
	Filename string
	Size     int64
}

// TargetFor resolves filename against the first peer that shares it.
func TargetFor(peers peer.Peers, filename string) (Target, bool) {
	p, size, ok := peers.FindFile(filename)
	if !ok {
		return Target{}, false
	}
	return Target{Address: p.Address, Port: p.Port, Filename: filename, Size: size}, true
}

func (t Target) Endpoint() string {
	return net.JoinHostPort(t.Address, strconv.Itoa(int(t.Port)))
}

// RangeError records why one range could not be fetched.
// Bytes already received stay in the destination file.
type RangeError struct {
	Range    Range
	Received int64
	Err      error
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("range %s: %s", e.Range, e.Err)
}

func (e *RangeError) Unwrap() error {
	return e.Err
}

type Result struct {
	JobID  uuid.UUID
	Ranges []Range
	Failed []*RangeError
}

func (r *Result) Complete() bool {
	return len(r.Failed) == 0
}

// Err returns nil for a complete download, otherwise an ErrIncomplete
// wrapping every range failure.
func (r *Result) Err() error {
	if r.Complete() {
		return nil
	}
	errs := make([]error, 0, len(r.Failed)+1)
	errs = append(errs, fmt.Errorf("%w: %d of %d ranges failed", ErrIncomplete, len(r.Failed), len(r.Ranges)))
	for _, e := range r.Failed {
		errs = append(errs, e)
	}
	return errors.Join(errs...)
}

type Downloader struct {
	fs       afero.Fs
	dialer   ContextDialer
	progress chan<- *event.ProgressRangeRead
}

// NewDownloader creates a downloader writing into fs. progress may be nil;
// events are dropped rather than stalling a transfer when it is full.
func NewDownloader(fs afero.Fs, dialer ContextDialer, progress chan<- *event.ProgressRangeRead) *Downloader {
	return &Downloader{
		fs:       fs,
		dialer:   dialer,
		progress: progress,
	}
}

// Download fetches target into dest using workers concurrent connections,
// one per range. Range failures never cancel siblings and are reported in
// the result; the returned error covers only setting up the destination.
func (d *Downloader) Download(ctx context.Context, target Target, dest string, workers int) (*Result, error) {
	if workers < 1 {
		return nil, errInvalidWorkers
	}
	jobID := uuid.New()
	l := log.Ctx(ctx).With().
		Str("component", "download").
		Str("job_id", jobID.String()).
		Str("file", target.Filename).
		Str("remote_peer", target.Endpoint()).
		Logger()

	if err := d.allocate(dest, target.Size); err != nil {
		return nil, err
	}

	ranges := Partition(target.Size, workers)
	failures := make([]*RangeError, len(ranges))
	g := new(errgroup.Group)
	for _, r := range ranges {
		r := r
		if r.Empty() {
			continue
		}
		g.Go(func() error {
			failures[r.Index] = d.fetch(ctx, jobID, target, dest, r)
			if failures[r.Index] != nil {
				l.Warn().Err(failures[r.Index].Err).Stringer("range", r).Int64("received", failures[r.Index].Received).Msg("range failed")
			} else {
				l.Debug().Stringer("range", r).Msg("range completed")
			}
			return nil
		})
	}
	_ = g.Wait()

	res := &Result{JobID: jobID, Ranges: ranges}
	for _, f := range failures {
		if f != nil {
			res.Failed = append(res.Failed, f)
		}
	}
	l.Info().Int64("size", target.Size).Int("ranges", len(ranges)).Int("failed", len(res.Failed)).Msg("download finished")
	return res, nil
}

// allocate creates or truncates dest and sizes it to its final length, so
// workers only ever overwrite bytes.
func (d *Downloader) allocate(dest string, size int64) error {
	if err := d.fs.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("download: unable to create directory: %w", err)
	}
	f, err := d.fs.OpenFile(dest, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("download: unable to create destination: %w", err)
	}
	if err = f.Truncate(size); err != nil {
		f.Close()
		return fmt.Errorf("download: unable to allocate destination: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("download: unable to close destination: %w", err)
	}
	return nil
}

func (d *Downloader) fetch(ctx context.Context, jobID uuid.UUID, target Target, dest string, r Range) *RangeError {
	f, err := d.fs.OpenFile(dest, os.O_WRONLY, 0)
	if err != nil {
		return &RangeError{Range: r, Err: fmt.Errorf("unable to open destination: %w", err)}
	}
	received, err := fetchRange(ctx, d.dialer, target.Endpoint(), target.Filename, r, f, func(n int) {
		d.emit(event.NewProgressRangeRead(jobID, r.Index, n))
	})
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("unable to close destination: %w", cerr)
	}
	if err != nil {
		return &RangeError{Range: r, Received: received, Err: err}
	}
	return nil
}

func (d *Downloader) emit(e *event.ProgressRangeRead) {
	if d.progress == nil {
		return
	}
	select {
	case d.progress <- e:
	default:
	}
}
