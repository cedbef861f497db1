package scene

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/df07/go-progressive-bpt/pkg/core"
	"github.com/df07/go-progressive-bpt/pkg/log"
)

var logger = log.New("scene")

// ErrInvalidPLY is returned for malformed or unsupported PLY files
var ErrInvalidPLY = errors.New("invalid ply")

// plyProperty is a property line of the PLY header
type plyProperty struct {
	name      string
	dataType  string
	isList    bool
	countType string // type of the list length, for list properties
}

// plyElement is an element declaration with its properties in file order
type plyElement struct {
	name  string
	count int
	props []plyProperty
}

type plyHeader struct {
	format   string // "ascii", "binary_little_endian" or "binary_big_endian"
	elements []plyElement
}

// LoadPLY reads a triangle mesh from a PLY file
func LoadPLY(filename string) (*TriangleMesh, error) {
	start := time.Now()

	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	mesh, err := ReadPLY(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	logger.Infof("loaded %s: %d vertices, %d triangles in %v", filename, mesh.NumVertices(), mesh.NumFaces(), time.Since(start))
	return mesh, nil
}

// ReadPLY decodes vertex positions and faces from PLY data in any of the three standard
// formats. Polygons are fan triangulated and degenerate triangles are dropped. All other
// properties and elements are skipped.
func ReadPLY(r io.Reader) (*TriangleMesh, error) {
	br := bufio.NewReader(r)
	header, err := parsePLYHeader(br)
	if err != nil {
		return nil, err
	}

	var values plyValueReader
	switch header.format {
	case "ascii":
		scanner := bufio.NewScanner(br)
		scanner.Split(bufio.ScanWords)
		values = &plyASCIIReader{scanner: scanner}
	case "binary_little_endian":
		values = &plyBinaryReader{r: br, order: binary.LittleEndian}
	case "binary_big_endian":
		values = &plyBinaryReader{r: br, order: binary.BigEndian}
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", ErrInvalidPLY, header.format)
	}

	var vertices []core.Vec3
	var faces []int
	for _, elem := range header.elements {
		switch elem.name {
		case "vertex":
			vertices, err = readPLYVertices(values, elem)
		case "face":
			faces, err = readPLYFaces(values, elem, vertices)
		default:
			err = skipPLYElement(values, elem)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: element %q: %v", ErrInvalidPLY, elem.name, err)
		}
	}

	if len(faces) == 0 {
		return nil, fmt.Errorf("%w: no faces", ErrInvalidPLY)
	}
	return NewTriangleMesh(vertices, faces)
}

func parsePLYHeader(r *bufio.Reader) (*plyHeader, error) {
	header := &plyHeader{}
	first := true
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("%w: truncated header", ErrInvalidPLY)
		}
		parts := strings.Fields(line)
		if first {
			if len(parts) != 1 || parts[0] != "ply" {
				return nil, fmt.Errorf("%w: missing magic number", ErrInvalidPLY)
			}
			first = false
			continue
		}
		if len(parts) == 0 {
			continue
		}

		switch parts[0] {
		case "end_header":
			if header.format == "" {
				return nil, fmt.Errorf("%w: missing format", ErrInvalidPLY)
			}
			return header, nil
		case "format":
			if len(parts) < 2 {
				return nil, fmt.Errorf("%w: bad format line %q", ErrInvalidPLY, strings.TrimSpace(line))
			}
			header.format = parts[1]
		case "comment", "obj_info":
		case "element":
			if len(parts) != 3 {
				return nil, fmt.Errorf("%w: bad element line %q", ErrInvalidPLY, strings.TrimSpace(line))
			}
			count, err := strconv.Atoi(parts[2])
			if err != nil || count < 0 {
				return nil, fmt.Errorf("%w: invalid element count %q", ErrInvalidPLY, parts[2])
			}
			header.elements = append(header.elements, plyElement{name: parts[1], count: count})
		case "property":
			if len(header.elements) == 0 {
				return nil, fmt.Errorf("%w: property before element", ErrInvalidPLY)
			}
			prop, err := parsePLYProperty(parts[1:])
			if err != nil {
				return nil, err
			}
			elem := &header.elements[len(header.elements)-1]
			elem.props = append(elem.props, prop)
		default:
			return nil, fmt.Errorf("%w: unknown header keyword %q", ErrInvalidPLY, parts[0])
		}
	}
}

func parsePLYProperty(parts []string) (plyProperty, error) {
	if len(parts) == 4 && parts[0] == "list" {
		if plyTypeSize(parts[1]) == 0 || plyTypeSize(parts[2]) == 0 {
			return plyProperty{}, fmt.Errorf("%w: unknown list type %q %q", ErrInvalidPLY, parts[1], parts[2])
		}
		return plyProperty{name: parts[3], dataType: parts[2], isList: true, countType: parts[1]}, nil
	}
	if len(parts) == 2 {
		if plyTypeSize(parts[0]) == 0 {
			return plyProperty{}, fmt.Errorf("%w: unknown property type %q", ErrInvalidPLY, parts[0])
		}
		return plyProperty{name: parts[1], dataType: parts[0]}, nil
	}
	return plyProperty{}, fmt.Errorf("%w: bad property %q", ErrInvalidPLY, strings.Join(parts, " "))
}

// plyTypeSize returns the binary size of a scalar type, or 0 for unknown types
func plyTypeSize(dataType string) int {
	switch dataType {
	case "char", "int8", "uchar", "uint8":
		return 1
	case "short", "int16", "ushort", "uint16":
		return 2
	case "int", "int32", "uint", "uint32", "float", "float32":
		return 4
	case "double", "float64":
		return 8
	}
	return 0
}

// maxPLYListLength bounds the length of a single list property
const maxPLYListLength = 1 << 16

// maxPLYPrealloc bounds allocations sized from header counts before the body is read
const maxPLYPrealloc = 1 << 20

// plyListLength validates a list length read from the body
func plyListLength(n float64, least int) (int, error) {
	if n != math.Trunc(n) || n < float64(least) || n > maxPLYListLength {
		return 0, fmt.Errorf("invalid list length %v", n)
	}
	return int(n), nil
}

func readPLYVertices(values plyValueReader, elem plyElement) ([]core.Vec3, error) {
	axis := map[string]int{"x": 0, "y": 1, "z": 2}
	found := 0
	for _, p := range elem.props {
		if _, ok := axis[p.name]; ok && !p.isList {
			found++
		}
	}
	if found != 3 {
		return nil, errors.New("vertex needs x, y and z properties")
	}

	vertices := make([]core.Vec3, 0, min(elem.count, maxPLYPrealloc))
	for i := 0; i < elem.count; i++ {
		var pos [3]float64
		for _, p := range elem.props {
			if p.isList {
				if err := skipPLYList(values, p); err != nil {
					return nil, err
				}
				continue
			}
			v, err := values.next(p.dataType)
			if err != nil {
				return nil, err
			}
			if a, ok := axis[p.name]; ok {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					return nil, fmt.Errorf("vertex %d has non-finite coordinate %v", i, v)
				}
				pos[a] = v
			}
		}
		vertices = append(vertices, core.NewVec3(pos[0], pos[1], pos[2]))
	}
	return vertices, nil
}

func readPLYFaces(values plyValueReader, elem plyElement, vertices []core.Vec3) ([]int, error) {
	if len(elem.props) == 0 {
		return nil, nil
	}

	faces := make([]int, 0, min(elem.count, maxPLYPrealloc)*3)
	for i := 0; i < elem.count; i++ {
		for _, p := range elem.props {
			if !p.isList || (p.name != "vertex_indices" && p.name != "vertex_index") {
				if p.isList {
					if err := skipPLYList(values, p); err != nil {
						return nil, err
					}
				} else if _, err := values.next(p.dataType); err != nil {
					return nil, err
				}
				continue
			}

			count, err := values.next(p.countType)
			if err != nil {
				return nil, err
			}
			n, err := plyListLength(count, 3)
			if err != nil {
				return nil, fmt.Errorf("face %d: %v", i, err)
			}
			polygon := make([]int, n)
			for j := range polygon {
				idx, err := values.next(p.dataType)
				if err != nil {
					return nil, err
				}
				if idx != math.Trunc(idx) || idx < 0 || idx >= float64(len(vertices)) {
					return nil, fmt.Errorf("face %d index %v out of bounds", i, idx)
				}
				polygon[j] = int(idx)
			}

			a := vertices[polygon[0]]
			for j := 1; j+1 < len(polygon); j++ {
				b, c := vertices[polygon[j]], vertices[polygon[j+1]]
				if b.Subtract(a).Cross(c.Subtract(a)).Length() == 0 {
					continue
				}
				faces = append(faces, polygon[0], polygon[j], polygon[j+1])
			}
		}
	}
	return faces, nil
}

func skipPLYElement(values plyValueReader, elem plyElement) error {
	if len(elem.props) == 0 {
		return nil
	}
	for i := 0; i < elem.count; i++ {
		for _, p := range elem.props {
			var err error
			if p.isList {
				err = skipPLYList(values, p)
			} else {
				_, err = values.next(p.dataType)
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func skipPLYList(values plyValueReader, p plyProperty) error {
	count, err := values.next(p.countType)
	if err != nil {
		return err
	}
	n, err := plyListLength(count, 0)
	if err != nil {
		return err
	}
	for j := 0; j < n; j++ {
		if _, err := values.next(p.dataType); err != nil {
			return err
		}
	}
	return nil
}

// plyValueReader reads the next scalar of the body as a float64
type plyValueReader interface {
	next(dataType string) (float64, error)
}

type plyASCIIReader struct {
	scanner *bufio.Scanner
}

func (a *plyASCIIReader) next(dataType string) (float64, error) {
	if !a.scanner.Scan() {
		if err := a.scanner.Err(); err != nil {
			return 0, err
		}
		return 0, io.ErrUnexpectedEOF
	}
	return strconv.ParseFloat(a.scanner.Text(), 64)
}

type plyBinaryReader struct {
	r     io.Reader
	order binary.ByteOrder
	buf   [8]byte
}

func (b *plyBinaryReader) next(dataType string) (float64, error) {
	size := plyTypeSize(dataType)
	if _, err := io.ReadFull(b.r, b.buf[:size]); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return 0, err
	}
	raw := b.buf[:size]
	switch dataType {
	case "char", "int8":
		return float64(int8(raw[0])), nil
	case "uchar", "uint8":
		return float64(raw[0]), nil
	case "short", "int16":
		return float64(int16(b.order.Uint16(raw))), nil
	case "ushort", "uint16":
		return float64(b.order.Uint16(raw)), nil
	case "int", "int32":
		return float64(int32(b.order.Uint32(raw))), nil
	case "uint", "uint32":
		return float64(b.order.Uint32(raw)), nil
	case "float", "float32":
		return float64(math.Float32frombits(b.order.Uint32(raw))), nil
	default:
		return math.Float64frombits(b.order.Uint64(raw)), nil
	}
}
