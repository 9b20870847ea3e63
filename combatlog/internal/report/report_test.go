package report

import (
	"errors"
	"io"
	"os"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/codec"
)

type recorder struct {
	dir         string
	seen        []int
	handleErr   error
	finalizeErr error
	finalized   bool
	key         string
}

func (r *recorder) InitializeWorkDir(dir string) error {
	r.dir = dir
	return nil
}

func (r *recorder) Handle(v int) error {
	if r.handleErr != nil {
		return r.handleErr
	}
	r.seen = append(r.seen, v)
	return nil
}

func (r *recorder) Finalize() error {
	r.finalized = true
	return r.finalizeErr
}

func (r *recorder) Reports() ([]*Report, error) {
	w, err := codec.NewJSONWriter(r.dir)
	if err != nil {
		return nil, err
	}
	for _, v := range r.seen {
		if err := w.Write(v); err != nil {
			return nil, err
		}
	}
	rep, err := FromWriter(r.key, 2, w)
	if err != nil {
		return nil, err
	}
	return []*Report{rep}, nil
}

func TestCompositeFansOut(t *testing.T) {
	a, b := &recorder{key: "a.json"}, &recorder{key: "b.json"}
	c := NewComposite[int](a, b)

	require.NoError(t, c.InitializeWorkDir(t.TempDir()))
	for i := range 3 {
		require.NoError(t, c.Handle(i))
	}
	require.NoError(t, c.Finalize())

	assert.Equal(t, []int{0, 1, 2}, a.seen)
	assert.Equal(t, []int{0, 1, 2}, b.seen)

	reports, err := c.Reports()
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "a.json", reports[0].KeyName)
	assert.Equal(t, "b.json", reports[1].KeyName)

	got, err := codec.DecodeJSON[int](reports[1].File)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, got)

	name := reports[0].File.Name()
	require.NoError(t, CloseAll(reports))
	_, err = os.Stat(name)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestCompositeHandleStopsAtFirstError(t *testing.T) {
	boom := errors.New("boom")
	a, b := &recorder{handleErr: boom}, &recorder{}
	c := NewComposite[int](a, b)

	err := c.Handle(1)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, b.seen)
}

func TestCompositeFinalizeCollectsErrors(t *testing.T) {
	e1, e2 := errors.New("first"), errors.New("second")
	a, b, d := &recorder{finalizeErr: e1}, &recorder{}, &recorder{finalizeErr: e2}
	c := NewComposite[int](a, b)
	c.Add(d)

	err := c.Finalize()
	require.Error(t, err)
	assert.ErrorIs(t, err, e1)
	assert.ErrorIs(t, err, e2)

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 2)
	assert.True(t, b.finalized)
}

func TestStaticJSON(t *testing.T) {
	s := NewStaticJSON[int]("classes.json", 1, map[string]int{"a": 1}, map[string]int{"b": 2})
	require.NoError(t, s.InitializeWorkDir(t.TempDir()))
	require.NoError(t, s.Handle(7))
	require.NoError(t, s.Finalize())

	reports, err := s.Reports()
	require.NoError(t, err)
	require.Len(t, reports, 1)
	defer CloseAll(reports)

	size, err := reports[0].Size()
	require.NoError(t, err)
	assert.Positive(t, size)

	data, err := io.ReadAll(reports[0].File)
	require.NoError(t, err)
	assert.Equal(t, "{\"a\":1}\n{\"b\":2}\n", string(data))

	again, err := s.Reports()
	require.NoError(t, err)
	assert.Empty(t, again)
}
