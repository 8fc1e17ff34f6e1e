// Package export writes imputation audit logs to Parquet files in the blob
// store, partitioned Hive-style by day, so downstream analytics can read the
// imputation history without touching the operational database.
package export

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/mapstructure"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	storage "github.com/tigerroll/gapfill/pkg/impute/adapter/storage"
	config "github.com/tigerroll/gapfill/pkg/impute/core/config"
	model "github.com/tigerroll/gapfill/pkg/impute/core/domain/model"
	repository "github.com/tigerroll/gapfill/pkg/impute/core/domain/repository"
	exception "github.com/tigerroll/gapfill/pkg/impute/support/util/exception"
	logger "github.com/tigerroll/gapfill/pkg/impute/support/util/logger"
)

const moduleName = "export"

// imputationRecord is the flat Parquet row shape of one imputation log entry.
type imputationRecord struct {
	ID           string  `parquet:"name=id, type=BYTE_ARRAY, convertedtype=UTF8"`
	StationID    string  `parquet:"name=station_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Timestamp    int64   `parquet:"name=ts, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	Parameter    string  `parquet:"name=parameter, type=BYTE_ARRAY, convertedtype=UTF8"`
	Value        float64 `parquet:"name=value, type=DOUBLE"`
	Method       string  `parquet:"name=method, type=BYTE_ARRAY, convertedtype=UTF8"`
	WindowStart  int64   `parquet:"name=window_start, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	WindowEnd    int64   `parquet:"name=window_end, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	ModelVersion int32   `parquet:"name=model_version, type=INT32"`
	ErrorBound   float64 `parquet:"name=error_bound, type=DOUBLE"`
	Clamped      bool    `parquet:"name=clamped, type=BOOLEAN"`
	ModelStatus  string  `parquet:"name=model_status, type=BYTE_ARRAY, convertedtype=UTF8"`
	Superseded   bool    `parquet:"name=superseded, type=BOOLEAN"`
	CreatedAt    int64   `parquet:"name=created_at, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
}

func toRecord(e *model.ImputationLog) imputationRecord {
	rec := imputationRecord{
		ID:           e.ID,
		StationID:    e.StationID,
		Timestamp:    e.Timestamp.UnixMilli(),
		Parameter:    e.Parameter,
		Value:        e.Value,
		Method:       e.Method,
		WindowStart:  e.WindowStart.UnixMilli(),
		WindowEnd:    e.WindowEnd.UnixMilli(),
		ModelVersion: int32(e.ModelVersion),
		Clamped:      e.Clamped,
		ModelStatus:  e.ModelStatus,
		Superseded:   e.SupersededAt != nil,
		CreatedAt:    e.CreatedAt.UnixMilli(),
	}
	if e.ErrorBound != nil {
		rec.ErrorBound = *e.ErrorBound
	}
	return rec
}

// ExporterConfig holds the typed exporter settings decoded from the untyped
// export properties of the application configuration.
type ExporterConfig struct {
	// OutputBaseDir is the base path within the storage bucket for exports.
	OutputBaseDir string `mapstructure:"output_base_dir"`
	// Compression is the Parquet compression codec ("SNAPPY", "GZIP", "NONE").
	Compression string `mapstructure:"compression"`
}

// AuditExporter reads imputation audit rows and uploads them as Parquet
// files to the configured blob store.
type AuditExporter struct {
	audits   repository.AuditRepository
	stations repository.StationRepository
	store    storage.ObjectStore
	cfg      ExporterConfig
}

// NewAuditExporter creates a new instance of AuditExporter.
func NewAuditExporter(
	audits repository.AuditRepository,
	stations repository.StationRepository,
	store storage.ObjectStore,
	cfg *config.Config,
) (*AuditExporter, error) {
	var ecfg ExporterConfig
	if err := mapstructure.Decode(cfg.Gapfill.Export, &ecfg); err != nil {
		return nil, exception.NewEngineError(exception.KindInternal, moduleName, "failed to decode export properties", err)
	}
	if ecfg.OutputBaseDir == "" {
		ecfg.OutputBaseDir = "audit"
	}
	if ecfg.Compression == "" {
		ecfg.Compression = "SNAPPY"
	}
	if _, err := compressionCodec(ecfg.Compression); err != nil {
		return nil, exception.NewEngineError(exception.KindInternal, moduleName,
			fmt.Sprintf("invalid compression type '%s'", ecfg.Compression), err)
	}
	return &AuditExporter{audits: audits, stations: stations, store: store, cfg: ecfg}, nil
}

// ExportStation writes all imputation log rows of one station created at or
// after since into day-partitioned Parquet objects. It returns the number of
// exported rows.
func (x *AuditExporter) ExportStation(ctx context.Context, stationID string, since time.Time) (int, error) {
	entries, err := x.audits.ListImputations(ctx, stationID, since)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		logger.Debugf("Export: no imputation log rows for station '%s', skipping.", stationID)
		return 0, nil
	}

	codec, err := compressionCodec(x.cfg.Compression)
	if err != nil {
		return 0, exception.NewEngineError(exception.KindInternal, moduleName,
			fmt.Sprintf("invalid compression type '%s'", x.cfg.Compression), err)
	}

	// Group rows Hive-style by creation day.
	partitions := make(map[string][]imputationRecord)
	for i := range entries {
		key := "dt=" + entries[i].CreatedAt.UTC().Format("2006-01-02")
		partitions[key] = append(partitions[key], toRecord(&entries[i]))
	}

	exported := 0
	var merr error
	for key, records := range partitions {
		data, err := x.encodePartition(records, codec)
		if err != nil {
			merr = multierror.Append(merr, err)
			continue
		}

		fileName := fmt.Sprintf("imputations_%s_%s.parquet",
			time.Now().UTC().Format("20060102150405"), uuid.NewString()[:8])
		objectName := path.Join(x.cfg.OutputBaseDir, stationID, key, fileName)
		if err := x.store.Put(ctx, objectName, data); err != nil {
			merr = multierror.Append(merr, err)
			continue
		}
		logger.Infof("Export: wrote %d imputation log rows for station '%s' to %s", len(records), stationID, objectName)
		exported += len(records)
	}
	return exported, merr
}

// Export runs ExportStation for every registered station, aggregating
// per-station failures so one bad station does not abort the export.
func (x *AuditExporter) Export(ctx context.Context, since time.Time) (int, error) {
	stations, err := x.stations.List(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	var merr error
	for _, st := range stations {
		if err := ctx.Err(); err != nil {
			return total, multierror.Append(merr, err)
		}
		n, err := x.ExportStation(ctx, st.ID, since)
		if err != nil {
			merr = multierror.Append(merr, err)
			continue
		}
		total += n
	}
	return total, merr
}

// encodePartition serializes one partition's rows into a Parquet file image.
func (x *AuditExporter) encodePartition(records []imputationRecord, codec parquet.CompressionCodec) (data []byte, err error) {
	// The library panics on some schema errors, so finalize under a recover.
	defer func() {
		if r := recover(); r != nil {
			err = exception.NewEngineErrorf(exception.KindInternal, moduleName, "parquet writer panicked: %v", r)
		}
	}()

	buf := new(bytes.Buffer)
	pw, err := writer.NewParquetWriterFromWriter(buf, new(imputationRecord), int64(len(records)))
	if err != nil {
		return nil, exception.NewEngineError(exception.KindInternal, moduleName, "failed to create parquet writer", err)
	}
	pw.CompressionType = codec

	for i := range records {
		if err := pw.Write(records[i]); err != nil {
			return nil, exception.NewEngineError(exception.KindInternal, moduleName, "failed to write parquet row", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, exception.NewEngineError(exception.KindInternal, moduleName, "failed to finalize parquet file", err)
	}
	return buf.Bytes(), nil
}

// compressionCodec maps a configuration string to a Parquet codec.
func compressionCodec(compressionType string) (parquet.CompressionCodec, error) {
	switch strings.ToUpper(compressionType) {
	case "SNAPPY":
		return parquet.CompressionCodec_SNAPPY, nil
	case "GZIP":
		return parquet.CompressionCodec_GZIP, nil
	case "NONE", "":
		return parquet.CompressionCodec_UNCOMPRESSED, nil
	default:
		return 0, fmt.Errorf("unsupported compression type: %s", compressionType)
	}
}
