package audit

import (
	"bytes"
	"fmt"
	"time"

	"github.com/parquet-go/parquet-go"
)

type EncodeResult struct {
	Data          []byte
	RecordCount   int64
	MinExecutedAt time.Time
	MaxExecutedAt time.Time
}

func EncodeRecords(records []Record) (EncodeResult, error) {
	if len(records) == 0 {
		return EncodeResult{}, fmt.Errorf("records are required")
	}

	var minTime, maxTime time.Time
	for i, record := range records {
		executedAt := record.ExecutedAt()
		if i == 0 || executedAt.Before(minTime) {
			minTime = executedAt
		}
		if i == 0 || executedAt.After(maxTime) {
			maxTime = executedAt
		}
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[Record](buf)
	if _, err := writer.Write(records); err != nil {
		return EncodeResult{}, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return EncodeResult{}, fmt.Errorf("close parquet writer: %w", err)
	}

	return EncodeResult{
		Data:          buf.Bytes(),
		RecordCount:   int64(len(records)),
		MinExecutedAt: minTime,
		MaxExecutedAt: maxTime,
	}, nil
}

// DecodeRecords reads a batch written by EncodeRecords.
func DecodeRecords(data []byte) ([]Record, error) {
	file := bytes.NewReader(data)
	reader := parquet.NewGenericReader[Record](file)
	defer func() { _ = reader.Close() }()

	records := make([]Record, reader.NumRows())
	if len(records) == 0 {
		return nil, nil
	}
	count, err := reader.Read(records)
	if err != nil && count != len(records) {
		return nil, fmt.Errorf("read parquet rows: %w", err)
	}
	return records[:count], nil
}
