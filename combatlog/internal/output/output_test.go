package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	Name  string `json:"name" yaml:"name"`
	Count int    `json:"count" yaml:"count"`
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"table", FormatTable, false},
		{"JSON", FormatJSON, false},
		{"yaml", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrint(t *testing.T) {
	rows := []row{{"deaths.avro", 2}, {"limit_break.avro", 10}}
	table := func() *Table {
		tbl := NewTable("NAME", "COUNT")
		for _, r := range rows {
			tbl.AddRow(r.Name, "x")
		}
		return tbl
	}

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewPrinter(&buf, FormatJSON).Print(rows, table))
		assert.JSONEq(t, `[{"name":"deaths.avro","count":2},{"name":"limit_break.avro","count":10}]`, buf.String())
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewPrinter(&buf, FormatYAML).Print(rows, table))
		assert.Equal(t, "- name: deaths.avro\n  count: 2\n- name: limit_break.avro\n  count: 10\n", buf.String())
	})

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewPrinter(&buf, FormatTable).Print(rows, table))
		assert.Equal(t, "NAME              COUNT\n----------------  -----\ndeaths.avro       x\nlimit_break.avro  x\n", buf.String())
	})

	t.Run("table without layout", func(t *testing.T) {
		var buf bytes.Buffer
		assert.Error(t, NewPrinter(&buf, FormatTable).Print(rows, nil))
	})
}

func TestInfoOnlyForTables(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, FormatJSON).Info("hello %d", 1)
	assert.Empty(t, buf.String())

	NewPrinter(&buf, FormatTable).Info("hello %d", 1)
	assert.Equal(t, "hello 1\n", buf.String())
}
