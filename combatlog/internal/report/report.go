// Package report defines the generator contract shared by every game's report
// builders and the finished Report files they hand to the publisher.
package report

import (
	"errors"
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"

	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/codec"
)

// Report is a finished report file. Ownership moves to whoever receives it
// from Reports; Close releases and deletes the backing temp file.
type Report struct {
	KeyName       string
	CanonicalType int
	File          *os.File
}

// FromWriter closes w and wraps the resulting file.
func FromWriter(key string, canonical int, w codec.Writer) (*Report, error) {
	f, err := w.Close()
	if err != nil {
		return nil, fmt.Errorf("report %s: %w", key, err)
	}
	return &Report{KeyName: key, CanonicalType: canonical, File: f}, nil
}

// Size returns the file size in bytes.
func (r *Report) Size() (int64, error) {
	st, err := r.File.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat report %s: %w", r.KeyName, err)
	}
	return st.Size(), nil
}

// Close closes and removes the backing file.
func (r *Report) Close() error {
	if r.File == nil {
		return nil
	}
	name := r.File.Name()
	err := r.File.Close()
	r.File = nil
	if rmErr := os.Remove(name); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		err = errors.Join(err, rmErr)
	}
	return err
}

// CloseAll closes every report, collecting errors.
func CloseAll(reports []*Report) error {
	var result *multierror.Error
	for _, r := range reports {
		if err := r.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// Source hands out finished reports.
type Source interface {
	Reports() ([]*Report, error)
}

// Generator consumes an ordered event stream and turns it into reports.
// InitializeWorkDir is called once before the first Handle, Finalize once
// after the last, and Reports once after Finalize.
type Generator[T any] interface {
	Source
	InitializeWorkDir(dir string) error
	Handle(event T) error
	Finalize() error
}

// Composite fans every call out to its children in order.
type Composite[T any] struct {
	children []Generator[T]
}

// NewComposite returns a generator wrapping children.
func NewComposite[T any](children ...Generator[T]) *Composite[T] {
	return &Composite[T]{children: children}
}

// Add appends a child generator.
func (c *Composite[T]) Add(g Generator[T]) {
	c.children = append(c.children, g)
}

func (c *Composite[T]) InitializeWorkDir(dir string) error {
	for i, g := range c.children {
		if err := g.InitializeWorkDir(dir); err != nil {
			return fmt.Errorf("initialize generator %d: %w", i, err)
		}
	}
	return nil
}

// Handle stops at the first failing child.
func (c *Composite[T]) Handle(event T) error {
	for i, g := range c.children {
		if err := g.Handle(event); err != nil {
			return fmt.Errorf("generator %d: %w", i, err)
		}
	}
	return nil
}

// Finalize finalizes every child even when some fail.
func (c *Composite[T]) Finalize() error {
	var result *multierror.Error
	for i, g := range c.children {
		if err := g.Finalize(); err != nil {
			result = multierror.Append(result, fmt.Errorf("finalize generator %d: %w", i, err))
		}
	}
	return result.ErrorOrNil()
}

// Reports concatenates the children's reports. On error any reports already
// collected are closed.
func (c *Composite[T]) Reports() ([]*Report, error) {
	var all []*Report
	for i, g := range c.children {
		reports, err := g.Reports()
		if err != nil {
			_ = CloseAll(all)
			return nil, fmt.Errorf("reports of generator %d: %w", i, err)
		}
		all = append(all, reports...)
	}
	return all, nil
}

// Static is a fixed set of rows known before any event arrives, written on
// Finalize.
type Static[T any] struct {
	key       string
	canonical int
	rows      []any
	newWriter func(dir string) (codec.Writer, error)

	dir    string
	report *Report
}

// NewStaticJSON returns a generator that writes rows as JSON lines and
// ignores every event.
func NewStaticJSON[T any](key string, canonical int, rows ...any) *Static[T] {
	return &Static[T]{
		key:       key,
		canonical: canonical,
		rows:      rows,
		newWriter: func(dir string) (codec.Writer, error) { return codec.NewJSONWriter(dir) },
	}
}

// Append adds rows discovered after construction.
func (s *Static[T]) Append(rows ...any) {
	s.rows = append(s.rows, rows...)
}

func (s *Static[T]) InitializeWorkDir(dir string) error {
	s.dir = dir
	return nil
}

func (s *Static[T]) Handle(T) error { return nil }

func (s *Static[T]) Finalize() error {
	w, err := s.newWriter(s.dir)
	if err != nil {
		return err
	}
	for _, row := range s.rows {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	s.report, err = FromWriter(s.key, s.canonical, w)
	return err
}

func (s *Static[T]) Reports() ([]*Report, error) {
	if s.report == nil {
		return nil, nil
	}
	r := s.report
	s.report = nil
	return []*Report{r}, nil
}
