package main

import (
	"github.com/BurntSushi/toml"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

// config holds the settings for a build. They can come from a TOML file,
// and the command line overrides any of them.
type config struct {
	Output     string `toml:"output"`
	VolumeSize string `toml:"volume_size"`
	ChunkSize  string `toml:"chunk_size"`
	Mmap       bool   `toml:"mmap"`
	SentryDSN  string `toml:"sentry_dsn"`
}

func defaultConfig() config {
	return config{
		VolumeSize: "650MB",
		ChunkSize:  "1MiB",
	}
}

func loadConfig(path string, c *config) error {
	_, err := toml.DecodeFile(path, c)
	return errors.Wrapf(err, "reading config %s", path)
}

// sizes parses the volume and chunk sizes, e.g. "650MB" or "4 GiB".
func (c config) sizes() (volume, chunk int64, err error) {
	v, err := humanize.ParseBytes(c.VolumeSize)
	if err != nil {
		return 0, 0, errors.Wrap(err, "volume size")
	}
	ch, err := humanize.ParseBytes(c.ChunkSize)
	if err != nil {
		return 0, 0, errors.Wrap(err, "chunk size")
	}
	if ch == 0 || v > 1<<62 || ch > 1<<62 {
		return 0, 0, errors.Errorf("unusable sizes %s and %s", c.VolumeSize, c.ChunkSize)
	}
	return int64(v), int64(ch), nil
}
