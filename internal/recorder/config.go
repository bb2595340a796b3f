package recorder

import (
	"strings"
	"time"

	"mdingest/pkg/exception"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"
	"github.com/yanun0323/errors"
)

const (
	defaultFilePrefix  = "consol_feeds"
	defaultCompression = "snappy"
	fileExt            = ".parquet"
	fileTimeLayout     = "20060102_150405"
)

// Config controls batch file output.
type Config struct {
	Dir         string
	FilePrefix  string
	Compression string
	// Location is the zone of the flush timestamp in file names. Defaults to the exchange zone.
	Location *time.Location
}

// DefaultConfig returns a baseline configuration for the batch writer.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:         dir,
		FilePrefix:  defaultFilePrefix,
		Compression: defaultCompression,
	}
}

func (c Config) withDefaults() Config {
	if c.FilePrefix == "" {
		c.FilePrefix = defaultFilePrefix
	}
	if c.Compression == "" {
		c.Compression = defaultCompression
	}
	c.Compression = strings.ToLower(strings.TrimSpace(c.Compression))
	return c
}

// Validate checks if the configuration is usable.
func (c Config) Validate() error {
	if c.Dir == "" {
		return errors.Wrap(exception.ErrInvalidConfig, "recorder: Dir is empty")
	}
	if c.FilePrefix == "" {
		return errors.Wrap(exception.ErrInvalidConfig, "recorder: FilePrefix is empty")
	}
	if strings.ContainsAny(c.FilePrefix, `/\`) {
		return errors.Wrapf(exception.ErrInvalidConfig, "recorder: FilePrefix %q contains a path separator", c.FilePrefix)
	}
	if _, err := codecOf(c.Compression); err != nil {
		return err
	}
	return nil
}

func codecOf(name string) (compress.Codec, error) {
	switch name {
	case "snappy":
		return &parquet.Snappy, nil
	case "zstd":
		return &parquet.Zstd, nil
	case "gzip":
		return &parquet.Gzip, nil
	case "none", "uncompressed":
		return &parquet.Uncompressed, nil
	default:
		return nil, errors.Wrapf(exception.ErrStorageUnsupported, "compression %q", name)
	}
}
