package indexer

import (
	"context"
	"fmt"
	"os"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

const exportBatch = 500

type parquetRow struct {
	ID         int64  `parquet:"name=id, type=INT64"`
	TxSeq      int64  `parquet:"name=tx_seq, type=INT64"`
	Op         string `parquet:"name=op, type=BYTE_ARRAY, convertedtype=UTF8"`
	Type       string `parquet:"name=type, type=BYTE_ARRAY, convertedtype=UTF8"`
	Subject    string `parquet:"name=subject, type=BYTE_ARRAY, convertedtype=UTF8"`
	BlockTime  int64  `parquet:"name=block_time, type=INT64"`
	Attributes string `parquet:"name=attributes, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// ExportParquet writes every event matching filter to path in id order and
// returns the number of rows written. The filter limit is ignored.
func (ix *Indexer) ExportParquet(ctx context.Context, path string, filter Filter) (int, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("indexer: create parquet: %w", err)
	}
	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, new(parquetRow), 1)
	if err != nil {
		file.Close()
		return 0, fmt.Errorf("indexer: parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	written := 0
	var lastID uint64
	for {
		var batch []EventRecord
		if err := ix.scope(ctx, filter).Where("id > ?", lastID).Order("id ASC").Limit(exportBatch).Find(&batch).Error; err != nil {
			pw.WriteStop()
			file.Close()
			return written, err
		}
		for _, rec := range batch {
			row := &parquetRow{
				ID:         int64(rec.ID),
				TxSeq:      int64(rec.TxSeq),
				Op:         rec.Op,
				Type:       rec.Type,
				Subject:    rec.Subject,
				BlockTime:  int64(rec.BlockTime),
				Attributes: rec.Attributes,
			}
			if err := pw.Write(row); err != nil {
				pw.WriteStop()
				file.Close()
				return written, fmt.Errorf("indexer: parquet write: %w", err)
			}
			written++
			lastID = rec.ID
		}
		if len(batch) < exportBatch {
			break
		}
	}
	if err := pw.WriteStop(); err != nil {
		file.Close()
		return written, fmt.Errorf("indexer: parquet flush: %w", err)
	}
	if err := file.Close(); err != nil {
		return written, fmt.Errorf("indexer: close parquet file: %w", err)
	}
	return written, nil
}
