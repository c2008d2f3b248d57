package compression

import (
	"encoding/binary"
	"fmt"

	"github.com/mnohosten/laura-db/pkg/storage"
)

// FrameHeaderSize is the size of a compressed frame snapshot's header:
// [1-byte algorithm][4-byte page id][4-byte original size][4-byte compressed size].
const FrameHeaderSize = 13

// CompressedFrame compresses raw PageSize frame snapshots for the admin
// export surface (SPEC_FULL.md §6, §11). It is never used on the
// buffer pool's hot read/write path: the disk manager addresses pages at a
// fixed pageID*PageSize offset, which is incompatible with the variable
// length of compressed output.
type CompressedFrame struct {
	compressor *Compressor
}

// NewCompressedFrame creates a frame snapshot compressor with the given
// configuration (nil selects DefaultConfig, zstd level 3).
func NewCompressedFrame(config *Config) (*CompressedFrame, error) {
	compressor, err := NewCompressor(config)
	if err != nil {
		return nil, err
	}
	return &CompressedFrame{compressor: compressor}, nil
}

// CompressFrame compresses a frame's full PageSize byte image, tagging the
// result with pageID so DecompressFrame can report what it reconstructed.
func (cf *CompressedFrame) CompressFrame(pageID storage.PageID, data []byte) ([]byte, error) {
	if len(data) != storage.PageSize {
		return nil, fmt.Errorf("compression: frame snapshot must be %d bytes, got %d", storage.PageSize, len(data))
	}

	compressed, err := cf.compressor.Compress(data)
	if err != nil {
		return nil, fmt.Errorf("failed to compress frame: %w", err)
	}

	result := make([]byte, FrameHeaderSize+len(compressed))
	result[0] = byte(cf.compressor.config.Algorithm)
	binary.LittleEndian.PutUint32(result[1:5], uint32(pageID))
	binary.LittleEndian.PutUint32(result[5:9], uint32(len(data)))
	binary.LittleEndian.PutUint32(result[9:13], uint32(len(compressed)))
	copy(result[FrameHeaderSize:], compressed)
	return result, nil
}

// DecompressFrame reverses CompressFrame, returning the page id it was
// tagged with and the reconstructed PageSize byte image.
func (cf *CompressedFrame) DecompressFrame(data []byte) (storage.PageID, []byte, error) {
	if len(data) < FrameHeaderSize {
		return storage.InvalidPageID, nil, fmt.Errorf("compression: invalid frame snapshot: too short")
	}

	algorithm := Algorithm(data[0])
	pageID := storage.PageID(int32(binary.LittleEndian.Uint32(data[1:5])))
	originalSize := binary.LittleEndian.Uint32(data[5:9])
	compressedSize := binary.LittleEndian.Uint32(data[9:13])

	if algorithm != cf.compressor.config.Algorithm {
		return storage.InvalidPageID, nil, fmt.Errorf("compression: algorithm mismatch: expected %v, got %v",
			cf.compressor.config.Algorithm, algorithm)
	}
	if len(data)-FrameHeaderSize != int(compressedSize) {
		return storage.InvalidPageID, nil, fmt.Errorf("compression: compressed size mismatch: expected %d, got %d",
			compressedSize, len(data)-FrameHeaderSize)
	}

	decompressed, err := cf.compressor.Decompress(data[FrameHeaderSize:])
	if err != nil {
		return storage.InvalidPageID, nil, fmt.Errorf("failed to decompress frame: %w", err)
	}
	if len(decompressed) != int(originalSize) {
		return storage.InvalidPageID, nil, fmt.Errorf("compression: decompressed size mismatch: expected %d, got %d",
			originalSize, len(decompressed))
	}

	return pageID, decompressed, nil
}

// Close releases the underlying compressor's resources.
func (cf *CompressedFrame) Close() error {
	return cf.compressor.Close()
}

// FrameCompressionStats holds compression statistics for one frame,
// surfaced by the admin diagnostics endpoint.
type FrameCompressionStats struct {
	PageID         storage.PageID
	OriginalSize   int
	CompressedSize int
	Ratio          float64
	SpaceSavings   float64
	Algorithm      string
}

// GetFrameCompressionStats compresses data to report its ratio without
// returning the compressed bytes themselves.
func (cf *CompressedFrame) GetFrameCompressionStats(pageID storage.PageID, data []byte) (*FrameCompressionStats, error) {
	compressed, err := cf.compressor.Compress(data)
	if err != nil {
		return nil, fmt.Errorf("failed to compress frame: %w", err)
	}

	originalSize := len(data)
	compressedSize := len(compressed)

	return &FrameCompressionStats{
		PageID:         pageID,
		OriginalSize:   originalSize,
		CompressedSize: compressedSize,
		Ratio:          CompressionRatio(originalSize, compressedSize),
		SpaceSavings:   SpaceSavings(originalSize, compressedSize),
		Algorithm:      cf.compressor.config.Algorithm.String(),
	}, nil
}
