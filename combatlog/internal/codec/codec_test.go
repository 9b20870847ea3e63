package codec

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type deathRow struct {
	EventID int64     `avro:"eventId" json:"eventId"`
	GUID    string    `avro:"guid" json:"guid"`
	Killer  *string   `avro:"killer" json:"killer,omitempty"`
	Tm      time.Time `avro:"tm" json:"tm"`
}

var testSchema = MustSchema(`{
	"type": "record",
	"name": "test_deaths",
	"namespace": "combatlog",
	"fields": [
		{"name": "eventId", "type": "long"},
		{"name": "guid", "type": "string"},
		{"name": "killer", "type": ["null", "string"], "default": null},
		{"name": "tm", "type": {"type": "long", "logicalType": "timestamp-millis"}}
	]
}`)

func rows() []deathRow {
	killer := "Creature-0-1"
	tm := time.Date(2021, 4, 21, 19, 20, 25, 123_000_000, time.UTC)
	return []deathRow{
		{EventID: 0, GUID: "Player-1", Killer: &killer, Tm: tm},
		{EventID: 1, GUID: "Player-2", Tm: tm.Add(time.Second)},
	}
}

func TestAvroWriter(t *testing.T) {
	dir := t.TempDir()
	w, err := NewAvroWriter(dir, testSchema)
	require.NoError(t, err)

	for _, r := range rows() {
		require.NoError(t, w.Write(r))
	}
	assert.Equal(t, 2, w.Rows())

	f, err := w.Close()
	require.NoError(t, err)
	defer f.Close()

	got, err := DecodeAvro[deathRow](f)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Player-1", got[0].GUID)
	require.NotNil(t, got[0].Killer)
	assert.Equal(t, "Creature-0-1", *got[0].Killer)
	assert.Nil(t, got[1].Killer)
	assert.True(t, rows()[1].Tm.Equal(got[1].Tm))
}

func TestAvroWriterEmpty(t *testing.T) {
	w, err := NewAvroWriter(t.TempDir(), testSchema)
	require.NoError(t, err)

	f, err := w.Close()
	require.NoError(t, err)
	defer f.Close()

	got, err := DecodeAvro[deathRow](f)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAvroWriterRejectsMismatchedRow(t *testing.T) {
	w, err := NewAvroWriter(t.TempDir(), testSchema)
	require.NoError(t, err)
	assert.Error(t, w.Write(struct {
		GUID int `avro:"guid"`
	}{GUID: 1}))
}

func TestJSONWriter(t *testing.T) {
	w, err := NewJSONWriter(t.TempDir())
	require.NoError(t, err)
	for _, r := range rows() {
		require.NoError(t, w.Write(r))
	}

	f, err := w.Close()
	require.NoError(t, err)
	defer f.Close()

	got, err := DecodeJSON[deathRow](f)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[1].EventID)
}

func TestSchemaName(t *testing.T) {
	assert.Equal(t, "combatlog.test_deaths", testSchema.Name())
	assert.Panics(t, func() { MustSchema(`{"type": "record"}`) })
}

func TestWriterFilesLiveInWorkDir(t *testing.T) {
	dir := t.TempDir()
	w, err := NewJSONWriter(dir)
	require.NoError(t, err)
	f, err := w.Close()
	require.NoError(t, err)
	defer f.Close()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
