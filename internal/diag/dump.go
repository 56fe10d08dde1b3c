package diag

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/softbus/internal/shared/types"
)

// Kind selects what a dump contains.
type Kind string

const (
	KindPipes  Kind = "pipes"
	KindRoutes Kind = "routes"
	KindMap    Kind = "map"
	KindStats  Kind = "stats"
)

// Format selects the dump encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Compression selects the dump file compression.
type Compression string

const (
	CompressNone Compression = "none"
	CompressGzip Compression = "gzip"
	CompressZstd Compression = "zstd"
)

// ParseKind validates a dump kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(s)); k {
	case KindPipes, KindRoutes, KindMap, KindStats:
		return k, nil
	}
	return "", fmt.Errorf("dump kind %q: %w", s, types.ErrBadArgument)
}

// ParseFormat validates a dump format. Empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatYAML:
		return f, nil
	}
	return "", fmt.Errorf("dump format %q: %w", s, types.ErrBadArgument)
}

// ParseCompression validates a compression name. Empty means none.
func ParseCompression(s string) (Compression, error) {
	switch c := Compression(strings.ToLower(s)); c {
	case "":
		return CompressNone, nil
	case CompressNone, CompressGzip, CompressZstd:
		return c, nil
	}
	return "", fmt.Errorf("dump compression %q: %w", s, types.ErrBadArgument)
}

// Source is what a dump is taken from. *sb.Bus implements it.
type Source interface {
	Stats() types.BusStats
	PipeInfo() []types.PipeInfo
	RoutingInfo() []types.RouteInfo
	MapInfo() []types.MapInfo
}

// Dump is one diagnostic snapshot. Only the section named by Kind is set.
type Dump struct {
	Kind   Kind              `json:"kind" yaml:"kind"`
	BusID  string            `json:"bus_id" yaml:"bus_id"`
	Taken  time.Time         `json:"taken" yaml:"taken"`
	Pipes  []types.PipeInfo  `json:"pipes,omitempty" yaml:"pipes,omitempty"`
	Routes []types.RouteInfo `json:"routes,omitempty" yaml:"routes,omitempty"`
	Map    []types.MapInfo   `json:"map,omitempty" yaml:"map,omitempty"`
	Stats  *types.BusStats   `json:"stats,omitempty" yaml:"stats,omitempty"`
}

// Collect takes a dump of kind from src.
func Collect(src Source, kind Kind, now time.Time) (Dump, error) {
	st := src.Stats()
	d := Dump{Kind: kind, BusID: st.BusID, Taken: now.UTC()}
	switch kind {
	case KindPipes:
		d.Pipes = src.PipeInfo()
	case KindRoutes:
		d.Routes = src.RoutingInfo()
	case KindMap:
		d.Map = src.MapInfo()
	case KindStats:
		d.Stats = &st
	default:
		return Dump{}, fmt.Errorf("dump kind %q: %w", kind, types.ErrBadArgument)
	}
	return d, nil
}

// Encode serializes d.
func Encode(d Dump, f Format) ([]byte, error) {
	switch f {
	case FormatJSON:
		return sonic.ConfigStd.MarshalIndent(d, "", "  ")
	case FormatYAML:
		return yaml.Marshal(d)
	}
	return nil, fmt.Errorf("dump format %q: %w", f, types.ErrBadArgument)
}

// Decode parses an encoded dump.
func Decode(data []byte, f Format) (Dump, error) {
	var d Dump
	var err error
	switch f {
	case FormatJSON:
		err = sonic.Unmarshal(data, &d)
	case FormatYAML:
		err = yaml.Unmarshal(data, &d)
	default:
		return Dump{}, fmt.Errorf("dump format %q: %w", f, types.ErrBadArgument)
	}
	if err != nil {
		return Dump{}, fmt.Errorf("decode %s dump: %w", f, err)
	}
	return d, nil
}

// Writer writes dumps to files under one directory.
type Writer struct {
	dir         string
	compression Compression
	log         *zap.Logger
	now         func() time.Time
}

// NewWriter creates a Writer. The directory is created on first write.
func NewWriter(dir string, compression Compression, log *zap.Logger) *Writer {
	if log == nil {
		log = zap.NewNop()
	}
	if compression == "" {
		compression = CompressNone
	}
	return &Writer{dir: dir, compression: compression, log: log, now: time.Now}
}

// Write collects a dump of kind from src and writes it to a new file,
// returning the file path.
func (w *Writer) Write(src Source, kind Kind, f Format) (string, error) {
	d, err := Collect(src, kind, w.now())
	if err != nil {
		return "", err
	}
	data, err := Encode(d, f)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create dump dir: %w", err)
	}
	name := fmt.Sprintf("%s-%s.%s%s", kind, d.Taken.Format("20060102T150405.000"), f, w.extension())
	path := filepath.Join(w.dir, name)

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create dump file: %w", err)
	}
	if err := w.compress(file, data); err != nil {
		file.Close()
		os.Remove(path)
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("close dump file: %w", err)
	}

	w.log.Info("diagnostic dump written",
		zap.String("kind", string(kind)),
		zap.String("path", path),
		zap.Int("bytes", len(data)))
	return path, nil
}

func (w *Writer) extension() string {
	switch w.compression {
	case CompressGzip:
		return ".gz"
	case CompressZstd:
		return ".zst"
	}
	return ""
}

func (w *Writer) compress(dst io.Writer, data []byte) error {
	switch w.compression {
	case CompressGzip:
		gz := gzip.NewWriter(dst)
		if _, err := gz.Write(data); err != nil {
			gz.Close()
			return fmt.Errorf("gzip dump: %w", err)
		}
		return gz.Close()
	case CompressZstd:
		zw, err := zstd.NewWriter(dst)
		if err != nil {
			return fmt.Errorf("zstd dump: %w", err)
		}
		if _, err := zw.Write(data); err != nil {
			zw.Close()
			return fmt.Errorf("zstd dump: %w", err)
		}
		return zw.Close()
	default:
		_, err := dst.Write(data)
		return err
	}
}

// ReadFile loads a dump written by Writer, detecting compression and
// format from the file name.
func ReadFile(path string) (Dump, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Dump{}, err
	}

	name := path
	switch {
	case strings.HasSuffix(name, ".gz"):
		name = strings.TrimSuffix(name, ".gz")
		gz, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return Dump{}, fmt.Errorf("gzip dump: %w", err)
		}
		defer gz.Close()
		if raw, err = io.ReadAll(gz); err != nil {
			return Dump{}, fmt.Errorf("gzip dump: %w", err)
		}
	case strings.HasSuffix(name, ".zst"):
		name = strings.TrimSuffix(name, ".zst")
		zr, err := zstd.NewReader(nil)
		if err != nil {
			return Dump{}, fmt.Errorf("zstd dump: %w", err)
		}
		defer zr.Close()
		if raw, err = zr.DecodeAll(raw, nil); err != nil {
			return Dump{}, fmt.Errorf("zstd dump: %w", err)
		}
	}

	f, err := ParseFormat(strings.TrimPrefix(filepath.Ext(name), "."))
	if err != nil {
		return Dump{}, err
	}
	return Decode(raw, f)
}
