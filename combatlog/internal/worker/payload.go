package worker

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// BatchMessage is the body of a message on combatlog.batches.<game>.
type BatchMessage struct {
	PartitionID string `json:"partition_id"`
	BatchID     string `json:"batch_id"`
	OwnerID     string `json:"owner_id,omitempty"`
	// Data is BASE64(GZIP(JSON{"logs": [...]})).
	Data  string `json:"data"`
	Final bool   `json:"final"`
}

type payload struct {
	Logs []string `json:"logs"`
}

// maxPayloadBytes bounds a decompressed batch.
const maxPayloadBytes = 64 << 20

// EncodeLines packs lines into the Data field format.
func EncodeLines(lines []string) (string, error) {
	if lines == nil {
		lines = []string{}
	}
	raw, err := json.Marshal(payload{Logs: lines})
	if err != nil {
		return "", fmt.Errorf("encode logs: %w", err)
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return "", fmt.Errorf("compress logs: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("compress logs: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeLines unpacks the Data field of a batch.
func DecodeLines(data string) ([]string, error) {
	compressed, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("open gzip: %w", err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(io.LimitReader(zr, maxPayloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	if len(raw) > maxPayloadBytes {
		return nil, fmt.Errorf("decompressed batch exceeds %d bytes", maxPayloadBytes)
	}

	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode logs: %w", err)
	}
	return p.Logs, nil
}
