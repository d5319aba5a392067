package clam

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/clamgo/clam/codec"
	"github.com/clamgo/clam/dataset"
	"github.com/clamgo/clam/metric"
)

// Snapshots persist the cluster tree, not the points: loading requires the
// same point collection the manifold was built from. The file is
// self-describing — a fixed header records the codec name and compression
// algorithm, so older snapshots stay readable as defaults change.

var snapshotMagic = [8]byte{'c', 'l', 'a', 'm', 's', 'n', 'a', 'p'}

const snapshotVersion = 1

// ErrInvalidSnapshot indicates data that is not a readable snapshot.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// CompressionType defines the compression algorithm used for the snapshot
// payload.
type CompressionType uint8

const (
	// CompressionNone indicates no compression.
	CompressionNone CompressionType = 0
	// CompressionLZ4 indicates LZ4 frame compression (fast).
	CompressionLZ4 CompressionType = 1
	// CompressionZSTD indicates ZSTD compression (better ratio).
	CompressionZSTD CompressionType = 2
)

// SaveOptions configures snapshot writing.
type SaveOptions struct {
	// Codec encodes the tree payload. Defaults to codec.Default.
	Codec codec.Codec
	// Compression selects the payload compression. Defaults to ZSTD.
	Compression CompressionType
}

type snapshotFile struct {
	Metric string          `json:"metric,omitempty"`
	Points int             `json:"points"`
	Root   snapshotCluster `json:"root"`
}

type snapshotCluster struct {
	Name     string            `json:"name"`
	Indices  []int             `json:"indices,omitempty"` // leaves only
	Children []snapshotCluster `json:"children,omitempty"`

	// Lazily computed geometry is persisted only when already cached, so
	// loading seeds the caches without forcing computation.
	ArgMedoid *int     `json:"arg_medoid,omitempty"`
	ArgRadius *int     `json:"arg_radius,omitempty"`
	Radius    *float64 `json:"radius,omitempty"`
	LFD       *float64 `json:"lfd,omitempty"`
}

// Save writes the manifold's tree to w.
func (m *Manifold[P]) Save(w io.Writer, optFns ...func(*SaveOptions)) error {
	opts := SaveOptions{
		Codec:       codec.Default,
		Compression: CompressionZSTD,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Codec == nil {
		opts.Codec = codec.Default
	}

	file := snapshotFile{
		Metric: m.metricName,
		Points: m.ds.Size(),
		Root:   snapshotOf(m.root),
	}
	payload, err := opts.Codec.Marshal(file)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	payload, err = compressPayload(payload, opts.Compression)
	if err != nil {
		return err
	}

	if _, err := w.Write(snapshotMagic[:]); err != nil {
		return err
	}
	name := opts.Codec.Name()
	header := []byte{snapshotVersion, byte(opts.Compression), byte(len(name))}
	if _, err := w.Write(header); err != nil {
		return err
	}
	if _, err := io.WriteString(w, name); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint64(len(payload))); err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}

func snapshotOf(c *Cluster) snapshotCluster {
	sc := snapshotCluster{Name: c.name}
	if c.children == nil {
		sc.Indices = c.Indices()
	} else {
		sc.Children = make([]snapshotCluster, len(c.children))
		for i, child := range c.children {
			sc.Children[i] = snapshotOf(child)
		}
	}

	c.mu.Lock()
	if c.hasMedoid {
		v := c.argMedoid
		sc.ArgMedoid = &v
	}
	if c.hasRadius {
		a, r := c.argRadius, c.radius
		sc.ArgRadius, sc.Radius = &a, &r
	}
	if c.hasLFD {
		v := c.lfd
		sc.LFD = &v
	}
	c.mu.Unlock()
	return sc
}

// Load reads a snapshot from r and rebuilds the manifold over the given
// points with an explicit metric function. points must be the collection
// the snapshot was built from, in the same order.
func Load[P any](r io.Reader, points []P, metricFn dataset.Metric[P], optFns ...Option) (*Manifold[P], error) {
	return load(r, points, metricFn, "", optFns)
}

// LoadVectors reads a snapshot from r and rebuilds the manifold over
// float64 vectors, resolving the metric by the name stored in the
// snapshot.
func LoadVectors(r io.Reader, points [][]float64, optFns ...Option) (*Manifold[[]float64], error) {
	return load[[]float64](r, points, nil, "", optFns)
}

func load[P any](r io.Reader, points []P, metricFn dataset.Metric[P], metricName string, optFns []Option) (*Manifold[P], error) {
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}
	if len(points) == 0 {
		return nil, ErrEmptyDataset
	}

	file, err := readSnapshot(r)
	if err != nil {
		return nil, err
	}
	if file.Points != len(points) {
		return nil, fmt.Errorf("%w: snapshot built over %d points, got %d", ErrInvalidSnapshot, file.Points, len(points))
	}

	if metricFn == nil {
		fn, err := metric.ByName(file.Metric)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
		}
		mf, ok := any(dataset.Metric[[]float64](fn)).(dataset.Metric[P])
		if !ok {
			return nil, fmt.Errorf("%w: named metric requires []float64 points", ErrInvalidSnapshot)
		}
		metricFn = mf
	}
	if metricName == "" {
		metricName = file.Metric
	}

	ds := dataset.New(points, metricFn)
	root, err := rebuildCluster(ds, file.Root)
	if err != nil {
		return nil, err
	}
	if root.Cardinality() != len(points) {
		return nil, fmt.Errorf("%w: root owns %d of %d points", ErrInvalidSnapshot, root.Cardinality(), len(points))
	}
	return &Manifold[P]{ds: ds, metricName: metricName, root: root, opts: o}, nil
}

func readSnapshot(r io.Reader) (*snapshotFile, error) {
	var magic [8]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	if magic != snapshotMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrInvalidSnapshot)
	}
	var header [3]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	if header[0] != snapshotVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidSnapshot, header[0])
	}
	compression := CompressionType(header[1])

	nameBytes := make([]byte, header[2])
	if _, err := io.ReadFull(r, nameBytes); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	c, ok := codec.ByName(string(nameBytes))
	if !ok {
		return nil, fmt.Errorf("%w: unknown codec %q", ErrInvalidSnapshot, nameBytes)
	}

	var payloadLen uint64
	if err := binary.Read(r, binary.BigEndian, &payloadLen); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	payload, err := decompressPayload(payload, compression)
	if err != nil {
		return nil, err
	}

	var file snapshotFile
	if err := c.Unmarshal(payload, &file); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	return &file, nil
}

func rebuildCluster(src Source, sc snapshotCluster) (*Cluster, error) {
	c := &Cluster{src: src, name: sc.Name}
	if len(sc.Children) > 0 {
		if len(sc.Children) != BranchFactor {
			return nil, fmt.Errorf("%w: cluster %q has %d children", ErrInvalidSnapshot, sc.Name, len(sc.Children))
		}
		c.children = make([]*Cluster, len(sc.Children))
		for i, childSC := range sc.Children {
			child, err := rebuildCluster(src, childSC)
			if err != nil {
				return nil, err
			}
			c.children[i] = child
			c.indices = append(c.indices, child.indices...)
		}
		slices.Sort(c.indices)
	} else {
		c.indices = slices.Clone(sc.Indices)
		slices.Sort(c.indices)
	}
	if len(c.indices) == 0 {
		return nil, fmt.Errorf("%w: cluster %q owns no points", ErrInvalidSnapshot, sc.Name)
	}

	if sc.ArgMedoid != nil {
		c.argMedoid, c.hasMedoid = *sc.ArgMedoid, true
	}
	if sc.ArgRadius != nil && sc.Radius != nil {
		c.argRadius, c.radius, c.hasRadius = *sc.ArgRadius, *sc.Radius, true
	}
	if sc.LFD != nil {
		c.lfd, c.hasLFD = *sc.LFD, true
	}
	return c, nil
}

func compressPayload(payload []byte, compression CompressionType) ([]byte, error) {
	switch compression {
	case CompressionNone:
		return payload, nil
	case CompressionLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(payload); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case CompressionZSTD:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		return enc.EncodeAll(payload, nil), nil
	default:
		return nil, fmt.Errorf("%w: unknown compression %d", ErrInvalidSnapshot, compression)
	}
}

func decompressPayload(payload []byte, compression CompressionType) ([]byte, error) {
	switch compression {
	case CompressionNone:
		return payload, nil
	case CompressionLZ4:
		return io.ReadAll(lz4.NewReader(bytes.NewReader(payload)))
	case CompressionZSTD:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		return dec.DecodeAll(payload, nil)
	default:
		return nil, fmt.Errorf("%w: unknown compression %d", ErrInvalidSnapshot, compression)
	}
}
