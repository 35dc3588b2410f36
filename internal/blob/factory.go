package blob

import (
	"context"
	"fmt"

	"bizdesk/internal/infra/blob/fs"
	"bizdesk/internal/infra/blob/memory"
	"bizdesk/internal/infra/blob/s3"
)

// Config selects and parameterizes a blob backend.
type Config struct {
	Driver Driver
	FSRoot string
	S3     s3.Config
}

// Open builds the configured store. An empty driver means fs.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverFilesystem:
		return fs.New(cfg.FSRoot)
	case DriverS3:
		return s3.New(ctx, cfg.S3)
	case DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", cfg.Driver)
	}
}
