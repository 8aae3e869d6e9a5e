// Package main provides regionbench, a sequential write/read benchmark for
// regionmap mappers.
package main

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	flag "github.com/spf13/pflag"

	"github.com/hupe1980/regionmap"
	"github.com/hupe1980/regionmap/blobstore"
	miniostore "github.com/hupe1980/regionmap/blobstore/minio"
	s3store "github.com/hupe1980/regionmap/blobstore/s3"
)

var errUsage = errors.New("usage")

type benchOptions struct {
	configPath string
	records    int64
	recordSize int64
	archive    string
	verify     bool
	prune      bool
	logLevel   string
	jsonOut    bool
	keep       bool

	cfg regionmap.Config
}

// Report is the result of one benchmark run.
type Report struct {
	Kind          string          `json:"kind"`
	Path          string          `json:"path"`
	Records       int64           `json:"records"`
	RecordSize    int64           `json:"record_size"`
	WriteDuration time.Duration   `json:"write_ns"`
	ReadDuration  time.Duration   `json:"read_ns"`
	SearchProbes  int64           `json:"search_probes"`
	LastRecord    int64           `json:"last_record"`
	Verified      int             `json:"verified,omitempty"`
	Pruned        int             `json:"pruned,omitempty"`
	WriteMBps     float64         `json:"write_mbps"`
	ReadMBps      float64         `json:"read_mbps"`
	Stats         regionmap.Stats `json:"stats"`

	Metrics regionmap.BasicMetricsStats `json:"metrics"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out, errOut io.Writer) int {
	opts, err := parseFlags(args, errOut)
	if err != nil {
		if errors.Is(err, errUsage) {
			return 0
		}
		fmt.Fprintln(errOut, "error:", err)
		return 2
	}

	report, err := bench(context.Background(), opts, errOut)
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}

	if opts.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			fmt.Fprintln(errOut, "error:", err)
			return 1
		}
		return 0
	}
	printReport(out, report)
	return 0
}

func parseFlags(args []string, errOut io.Writer) (*benchOptions, error) {
	fs := flag.NewFlagSet("regionbench", flag.ContinueOnError)
	fs.SetOutput(errOut)

	o := &benchOptions{}
	def := regionmap.DefaultConfig()

	fs.StringVarP(&o.configPath, "config", "c", "", "JSONC config file; flags given explicitly override it")
	kind := fs.String("kind", def.Kind, "file kind: fixed, expandable or rolled")
	path := fs.StringP("path", "p", "", "file or rolled prefix (default: a temporary directory)")
	mode := fs.String("mode", "rw-clear", "access mode: rw or rw-clear")
	regionSize := fs.Int64("region-size", def.RegionSize, "region size in bytes")
	fileSize := fs.Int64("file-size", 64<<20, "fixed file size, rolled file size or expandable limit")
	cacheSize := fs.Int("cache-size", def.CacheSize, "number of region slots")
	mapAhead := fs.Int("map-ahead", regionmap.DefaultMapAhead, "regions mapped ahead")
	async := fs.Bool("async", false, "map regions on a runtime goroutine")
	maxWait := fs.String("max-wait", "", "async waiting policy; 0 never waits")
	advice := fs.String("advice", "", "access pattern hint")
	memoryLimit := fs.Int64("memory-limit", 0, "cap on mapped bytes")
	ioLimit := fs.Int64("io-limit", 0, "pretouch and archive bytes per second")

	fs.Int64VarP(&o.records, "records", "n", 1<<20, "records to write")
	fs.Int64Var(&o.recordSize, "record-size", 64, "record size in bytes, at least 8")
	fs.StringVar(&o.archive, "archive", "", "archive sealed rolled files: dir:<path>, s3://bucket/prefix or minio://host/bucket/prefix")
	fs.BoolVar(&o.verify, "verify-archive", false, "compare every archived blob with its sealed file")
	fs.BoolVar(&o.prune, "prune-archive", false, "delete the archived blobs after the run")
	fs.StringVar(&o.logLevel, "log-level", "warn", "debug, info, warn or error")
	fs.BoolVar(&o.jsonOut, "json", false, "print the report as JSON")
	fs.BoolVar(&o.keep, "keep", false, "keep the temporary directory")

	fs.Usage = func() {
		fmt.Fprint(errOut, "Usage: regionbench [flags]\n\n")
		fmt.Fprint(errOut, "Writes numbered records through a regionmap Mapper, reads them back,\n")
		fmt.Fprint(errOut, "and finds the last record with a binary search.\n\nFlags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, errUsage
		}
		return nil, err
	}

	cfg := def
	if o.configPath != "" {
		loaded, err := regionmap.LoadConfig(o.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	// Flags override the config only when set.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "kind":
			cfg.Kind = *kind
		case "path":
			cfg.Path = *path
		case "mode":
			cfg.Mode = *mode
		case "region-size":
			cfg.RegionSize = *regionSize
		case "file-size":
			cfg.FileSize = *fileSize
		case "cache-size":
			cfg.CacheSize = *cacheSize
		case "map-ahead":
			cfg.MapAhead = mapAhead
		case "async":
			cfg.Async = *async
		case "max-wait":
			cfg.MaxWait = *maxWait
		case "advice":
			cfg.Advice = *advice
		case "memory-limit":
			cfg.MemoryLimit = *memoryLimit
		case "io-limit":
			cfg.IOLimit = *ioLimit
		}
	})
	if o.configPath == "" {
		if cfg.Mode == "" {
			cfg.Mode = *mode
		}
		if cfg.FileSize == 0 && cfg.Kind != regionmap.KindExpandable {
			cfg.FileSize = *fileSize
		}
	}

	if cfg.Kind == regionmap.KindReadOnly {
		return nil, fmt.Errorf("kind %s cannot be benchmarked: the benchmark writes", cfg.Kind)
	}
	if o.recordSize < 8 || cfg.RegionSize <= 0 || cfg.RegionSize%o.recordSize != 0 {
		return nil, fmt.Errorf("record size %d must be at least 8 and divide the region size", o.recordSize)
	}
	if o.records <= 0 {
		return nil, fmt.Errorf("records %d must be positive", o.records)
	}
	if o.archive != "" && cfg.Kind != regionmap.KindRolled {
		return nil, errors.New("--archive needs --kind rolled")
	}
	if (o.verify || o.prune) && o.archive == "" {
		return nil, errors.New("--verify-archive and --prune-archive need --archive")
	}
	o.cfg = cfg
	return o, nil
}

func bench(ctx context.Context, o *benchOptions, errOut io.Writer) (*Report, error) {
	cfg := o.cfg
	if cfg.Path == "" {
		dir, err := os.MkdirTemp("", "regionbench")
		if err != nil {
			return nil, err
		}
		if o.keep {
			fmt.Fprintln(errOut, "data in", dir)
		} else {
			defer os.RemoveAll(dir)
		}
		cfg.Path = filepath.Join(dir, "bench")
	}
	if cfg.Kind == regionmap.KindFixed {
		if need := o.records * o.recordSize; cfg.FileSize < need {
			return nil, fmt.Errorf("file size %d holds fewer than %d records", cfg.FileSize, o.records)
		}
	}

	level := slog.LevelWarn
	if err := level.UnmarshalText([]byte(o.logLevel)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	mc := &regionmap.BasicMetricsCollector{}
	opts := []regionmap.Option{
		regionmap.WithLogger(regionmap.NewTextLogger(level)),
		regionmap.WithMetricsCollector(mc),
	}
	var store blobstore.Store
	if o.archive != "" {
		var err error
		if store, err = openStore(ctx, o.archive); err != nil {
			return nil, err
		}
		opts = append(opts, regionmap.WithArchive(store, 2))
	}

	m, err := regionmap.FromConfig(cfg, opts...)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Kind:       cfg.Kind,
		Path:       cfg.Path,
		Records:    o.records,
		RecordSize: o.recordSize,
	}

	om := m.NewOffsetMapping()
	start := time.Now()
	for i := int64(0); i < o.records; i++ {
		if !om.MoveTo(i * o.recordSize) {
			_ = m.Close()
			return nil, fmt.Errorf("write record %d: %w", i, om.Err())
		}
		binary.LittleEndian.PutUint64(om.Buffer(), uint64(i+1))
	}
	report.WriteDuration = time.Since(start)

	start = time.Now()
	for i := int64(0); i < o.records; i++ {
		if !om.MoveTo(i * o.recordSize) {
			_ = m.Close()
			return nil, fmt.Errorf("read record %d: %w", i, om.Err())
		}
		if got := binary.LittleEndian.Uint64(om.Buffer()); got != uint64(i+1) {
			_ = m.Close()
			return nil, fmt.Errorf("record %d holds %d", i, got)
		}
	}
	report.ReadDuration = time.Since(start)

	last := om.BinarySearchLast(0, o.recordSize, func(buf []byte) bool {
		report.SearchProbes++
		return binary.LittleEndian.Uint64(buf) != 0
	})
	report.LastRecord = last / o.recordSize
	if report.LastRecord != o.records-1 {
		_ = m.Close()
		return nil, fmt.Errorf("search found record %d, want %d", report.LastRecord, o.records-1)
	}

	report.Stats = m.Stats()
	if err := m.Close(); err != nil {
		return nil, err
	}
	report.Stats.Archived, report.Stats.ArchiveFailures = mc.ArchiveCount.Load(), mc.ArchiveErrors.Load()
	report.Metrics = mc.GetStats()

	if o.verify {
		n, err := regionmap.VerifyArchive(ctx, store, cfg.Path)
		if err != nil {
			return nil, err
		}
		report.Verified = n
	}
	if o.prune {
		n, err := regionmap.PruneArchive(ctx, store, cfg.Path)
		if err != nil {
			return nil, err
		}
		report.Pruned = n
	}

	mb := float64(o.records*o.recordSize) / (1 << 20)
	report.WriteMBps = mb / report.WriteDuration.Seconds()
	report.ReadMBps = mb / report.ReadDuration.Seconds()
	return report, nil
}

// openStore builds the archive store named by target.
func openStore(ctx context.Context, target string) (blobstore.Store, error) {
	if dir, ok := strings.CutPrefix(target, "dir:"); ok {
		return blobstore.NewLocalStore(dir), nil
	}

	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("archive %q: %w", target, err)
	}
	switch u.Scheme {
	case "s3":
		return s3store.New(ctx, u.Host, s3store.WithPrefix(strings.TrimPrefix(u.Path, "/")))
	case "minio":
		bucket, prefix, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
		if bucket == "" {
			return nil, fmt.Errorf("archive %q: missing bucket", target)
		}
		client, err := minio.New(u.Host, &minio.Options{
			Creds:  credentials.NewStaticV4(os.Getenv("MINIO_ACCESS_KEY"), os.Getenv("MINIO_SECRET_KEY"), ""),
			Secure: u.Query().Get("insecure") == "",
		})
		if err != nil {
			return nil, fmt.Errorf("archive %q: %w", target, err)
		}
		return miniostore.NewStore(client, bucket, prefix), nil
	default:
		return nil, fmt.Errorf("archive %q: unknown scheme", target)
	}
}

func printReport(w io.Writer, r *Report) {
	fmt.Fprintf(w, "kind          %s\n", r.Kind)
	fmt.Fprintf(w, "records       %d x %d bytes\n", r.Records, r.RecordSize)
	fmt.Fprintf(w, "region size   %d, %d slots, map-ahead %d, async %t\n",
		r.Stats.RegionSize, r.Stats.CacheSize, r.Stats.MapAhead, r.Stats.Async)
	fmt.Fprintf(w, "write         %s (%.1f MiB/s)\n", r.WriteDuration.Round(time.Microsecond), r.WriteMBps)
	fmt.Fprintf(w, "read+verify   %s (%.1f MiB/s)\n", r.ReadDuration.Round(time.Microsecond), r.ReadMBps)
	fmt.Fprintf(w, "search        record %d in %d probes\n", r.LastRecord, r.SearchProbes)
	fmt.Fprintf(w, "maps          %d (%d errors, avg %s), %d ahead\n",
		r.Metrics.MapCount, r.Metrics.MapErrors, time.Duration(r.Metrics.MapAvgNanos), r.Metrics.MapAheadRegions)
	fmt.Fprintf(w, "unmaps        %d\n", r.Metrics.UnmapCount)
	fmt.Fprintf(w, "peak mapped   %d bytes\n", r.Stats.PeakMappedBytes)
	if r.Stats.Async {
		fmt.Fprintf(w, "waits         %d (%d timeouts)\n", r.Metrics.WaitCount, r.Metrics.WaitTimeouts)
	}
	if r.Kind == regionmap.KindRolled {
		fmt.Fprintf(w, "archived      %d (%d failed), %d verified, %d pruned\n",
			r.Stats.Archived, r.Stats.ArchiveFailures, r.Verified, r.Pruned)
	}
}
