package pipeline

import (
	"compress/flate"
	"compress/gzip"
	"errors"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Extractor decompresses one gzip snapshot to plain text.
type Extractor struct {
	logger *zap.Logger
}

func NewExtractor(logger *zap.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract decompresses the gzip file at inputPath to outputPath, creating
// parent directories as needed, and returns outputPath. Data is streamed
// through io.Copy rather than loaded fully into memory. A failed
// extraction may leave a truncated output file behind; cleanup is not
// this layer's job.
func (e *Extractor) Extract(inputPath, outputPath string) (string, error) {
	e.logger.Info("extracting file",
		zap.String("input", inputPath),
		zap.String("output", outputPath))

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		e.logger.Error("failed to create output directory", zap.String("output", outputPath), zap.Error(err))
		return "", wrapf(ErrStorage, err, "create directory for %s", outputPath)
	}

	in, err := os.Open(inputPath)
	if err != nil {
		e.logger.Error("failed to open input", zap.String("input", inputPath), zap.Error(err))
		return "", wrapf(ErrStorage, err, "open %s", inputPath)
	}
	defer in.Close()

	gzReader, err := gzip.NewReader(in)
	if err != nil {
		e.logger.Error("invalid gzip input", zap.String("input", inputPath), zap.Error(err))
		return "", wrapf(ErrFormat, err, "read gzip header of %s", inputPath)
	}
	defer gzReader.Close()

	out, err := os.Create(outputPath)
	if err != nil {
		e.logger.Error("failed to create output", zap.String("output", outputPath), zap.Error(err))
		return "", wrapf(ErrStorage, err, "create %s", outputPath)
	}

	written, err := io.Copy(out, gzReader)
	if err != nil {
		out.Close()
		e.logger.Error("extraction failed", zap.String("input", inputPath), zap.Error(err))
		if isCorruptGzip(err) {
			return "", wrapf(ErrFormat, err, "decompress %s", inputPath)
		}
		return "", wrapf(ErrStorage, err, "extract %s to %s", inputPath, outputPath)
	}
	if err := out.Close(); err != nil {
		return "", wrapf(ErrStorage, err, "close %s", outputPath)
	}

	e.logger.Info("extraction completed",
		zap.String("output", outputPath),
		zap.Int64("bytes", written))
	return outputPath, nil
}

// isCorruptGzip distinguishes malformed compressed data from plain I/O
// failures surfaced by the same copy.
func isCorruptGzip(err error) bool {
	var corrupt flate.CorruptInputError
	return errors.Is(err, gzip.ErrHeader) ||
		errors.Is(err, gzip.ErrChecksum) ||
		errors.As(err, &corrupt) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}
