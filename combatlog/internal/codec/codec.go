// Package codec writes report rows to temporary files as Snappy-compressed
// Avro object container files or newline-delimited JSON, and reads them back.
package codec

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hamba/avro/v2"
	"github.com/hamba/avro/v2/ocf"
)

// Schema is an Avro record schema validated once when the package holding it
// is initialized.
type Schema struct {
	raw    string
	parsed avro.Schema
}

// MustSchema parses raw and panics if it is not a valid Avro schema. It is
// meant for package-level vars.
func MustSchema(raw string) Schema {
	return Schema{raw: raw, parsed: avro.MustParse(raw)}
}

// Name returns the fully qualified record name.
func (s Schema) Name() string {
	if n, ok := s.parsed.(avro.NamedSchema); ok {
		return n.FullName()
	}
	return string(s.parsed.Type())
}

// Writer appends rows to a temp file. Close flushes buffered output and
// returns the file rewound to its start; the caller owns it from then on.
type Writer interface {
	Write(v any) error
	Close() (*os.File, error)
}

// AvroWriter encodes rows into an OCF file with the Snappy block codec.
type AvroWriter struct {
	file *os.File
	enc  *ocf.Encoder
	rows int
}

// NewAvroWriter creates a temp file in dir and writes the OCF header.
func NewAvroWriter(dir string, schema Schema) (*AvroWriter, error) {
	f, err := os.CreateTemp(dir, "report-*.avro")
	if err != nil {
		return nil, fmt.Errorf("create avro temp file: %w", err)
	}
	enc, err := ocf.NewEncoder(schema.raw, f, ocf.WithCodec(ocf.Snappy))
	if err != nil {
		_ = discard(f)
		return nil, fmt.Errorf("create avro encoder for %s: %w", schema.Name(), err)
	}
	return &AvroWriter{file: f, enc: enc}, nil
}

func (w *AvroWriter) Write(v any) error {
	if err := w.enc.Encode(v); err != nil {
		return fmt.Errorf("encode avro row: %w", err)
	}
	w.rows++
	return nil
}

// Rows returns the number of rows written so far.
func (w *AvroWriter) Rows() int {
	return w.rows
}

func (w *AvroWriter) Close() (*os.File, error) {
	if err := w.enc.Close(); err != nil {
		_ = discard(w.file)
		return nil, fmt.Errorf("close avro encoder: %w", err)
	}
	return rewind(w.file)
}

// JSONWriter writes one JSON document per line.
type JSONWriter struct {
	file *os.File
	buf  *bufio.Writer
	enc  *json.Encoder
	rows int
}

// NewJSONWriter creates a temp file in dir.
func NewJSONWriter(dir string) (*JSONWriter, error) {
	f, err := os.CreateTemp(dir, "report-*.json")
	if err != nil {
		return nil, fmt.Errorf("create json temp file: %w", err)
	}
	buf := bufio.NewWriter(f)
	return &JSONWriter{file: f, buf: buf, enc: json.NewEncoder(buf)}, nil
}

func (w *JSONWriter) Write(v any) error {
	if err := w.enc.Encode(v); err != nil {
		return fmt.Errorf("encode json row: %w", err)
	}
	w.rows++
	return nil
}

// Rows returns the number of rows written so far.
func (w *JSONWriter) Rows() int {
	return w.rows
}

func (w *JSONWriter) Close() (*os.File, error) {
	if err := w.buf.Flush(); err != nil {
		_ = discard(w.file)
		return nil, fmt.Errorf("flush json rows: %w", err)
	}
	return rewind(w.file)
}

// DecodeAvro reads every row of an OCF stream.
func DecodeAvro[T any](r io.Reader) ([]T, error) {
	dec, err := ocf.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("open avro container: %w", err)
	}
	var rows []T
	for dec.HasNext() {
		var row T
		if err := dec.Decode(&row); err != nil {
			return nil, fmt.Errorf("decode avro row %d: %w", len(rows), err)
		}
		rows = append(rows, row)
	}
	if err := dec.Error(); err != nil {
		return nil, fmt.Errorf("read avro container: %w", err)
	}
	return rows, nil
}

// DecodeJSON reads a stream of concatenated or newline-delimited JSON values.
func DecodeJSON[T any](r io.Reader) ([]T, error) {
	dec := json.NewDecoder(r)
	var rows []T
	for {
		var row T
		err := dec.Decode(&row)
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decode json row %d: %w", len(rows), err)
		}
		rows = append(rows, row)
	}
}

func rewind(f *os.File) (*os.File, error) {
	if err := f.Sync(); err != nil {
		_ = discard(f)
		return nil, fmt.Errorf("sync %s: %w", f.Name(), err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		_ = discard(f)
		return nil, fmt.Errorf("rewind %s: %w", f.Name(), err)
	}
	return f, nil
}

// discard closes and removes a temp file that will never be handed out.
func discard(f *os.File) error {
	return errors.Join(f.Close(), os.Remove(f.Name()))
}
