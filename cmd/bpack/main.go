package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/facebookgo/stats"
	raven "github.com/getsentry/raven-go"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/ndlib/bpack/builder"
	"github.com/ndlib/bpack/pack"
)

const usage = `bpack [flags] <archive name> <file or folder>...

Packs the given files and folders into the volumes <archive name>.001.bpk,
<archive name>.002.bpk and so on. The output location may be a directory,
"file:<dir>", "s3:/bucket/prefix" or "s3://host:port/bucket/prefix". Without
one nothing is saved.

`

func main() {
	var (
		configFile = pflag.StringP("config", "c", "", "TOML file with default settings")
		output     = pflag.StringP("output", "o", "", "where to write the volumes")
		volumeSize = pflag.StringP("volume-size", "s", "", "maximum size of one volume, e.g. 650MB")
		chunkSize  = pflag.String("chunk-size", "", "maximum payload of one block, e.g. 1MiB")
		useMmap    = pflag.Bool("mmap", false, "read files through a memory map")
	)
	pflag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		pflag.PrintDefaults()
	}
	pflag.Parse()

	cfg := defaultConfig()
	if *configFile != "" {
		if err := loadConfig(*configFile, &cfg); err != nil {
			log.Fatalln(err)
		}
	}
	// flags given on the command line win over the config file
	pflag.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "output":
			cfg.Output = *output
		case "volume-size":
			cfg.VolumeSize = *volumeSize
		case "chunk-size":
			cfg.ChunkSize = *chunkSize
		case "mmap":
			cfg.Mmap = *useMmap
		}
	})

	args := pflag.Args()
	if len(args) < 2 {
		pflag.Usage()
		os.Exit(2)
	}
	if cfg.SentryDSN != "" {
		raven.SetDSN(cfg.SentryDSN)
	}
	if err := run(cfg, args[0], args[1:], os.Stdout); err != nil {
		log.Println(err)
		raven.CaptureErrorAndWait(err, map[string]string{"archive": args[0]})
		os.Exit(1)
	}
}

// announcer prints a line for every volume as it is started.
type announcer struct {
	*pack.StoreProvider
	name string
	out  io.Writer
}

func (a announcer) Volume(number int64) (io.WriteCloser, error) {
	fmt.Fprintln(a.out, "Creating volume", pack.VolumeName(a.name, number))
	return a.StoreProvider.Volume(number)
}

// run builds the archive name from paths. If anything goes wrong the
// volumes created so far are deleted.
func run(cfg config, name string, paths []string, out io.Writer) (err error) {
	volumeSize, chunkSize, err := cfg.sizes()
	if err != nil {
		return err
	}
	s := parselocation(cfg.Output, "")
	if s == nil {
		return errors.Errorf("cannot use output location %q", cfg.Output)
	}
	p := pack.NewStoreProvider(s, name, volumeSize)
	existing, err := p.Existing()
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return errors.Errorf("archive %s already exists: %s", name, existing[0])
	}

	fmt.Fprintln(out, "Starting")
	var written float64
	b := builder.New(announcer{p, name, out})
	b.UseMmap = cfg.Mmap
	b.Writer().MaxChunkSize = chunkSize
	b.Writer().Stats = &stats.HookClient{
		BumpSumHook: func(key string, val float64) {
			if key == "bpack.bytes" {
				written += val
			}
		},
	}
	defer func() {
		if err != nil {
			if err2 := p.Cleanup(); err2 != nil {
				log.Println("cleanup:", err2)
			}
		}
	}()

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		switch {
		case info.IsDir():
			err = b.AddTree(path)
		case info.Mode().IsRegular():
			err = b.AddFile(path, filepath.Base(path), info)
		default:
			err = errors.Errorf("not a file or folder: %s", path)
		}
		if err != nil {
			return err
		}
	}
	if _, err = b.Complete(); err != nil {
		return err
	}
	fmt.Fprintf(out, "Done: %d objects in %d volumes, %s\n",
		len(b.Entries()), b.Writer().Volumes(), humanize.Bytes(uint64(written)))
	return nil
}
