package mesh

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// su2Element maps an SU2 VTK element code to our type and node count.
func su2Element(code int) (etype ElementType, numNodes int, ok bool) {
	switch code {
	case 3:
		return Line, 2, true
	case 5:
		return Triangle, 3, true
	case 9:
		return Quad, 4, true
	case 10:
		return Tet, 4, true
	case 12:
		return Hex, 8, true
	case 13:
		return Prism, 6, true
	case 14:
		return Pyramid, 5, true
	}
	return
}

func elementDim(t ElementType) int {
	switch t {
	case Line:
		return 1
	case Triangle, Quad:
		return 2
	}
	return 3
}

// ReadSU2 reads an SU2 native format file, 2-D or 3-D, including the
// MARKER sections as boundary regions.
func ReadSU2(filename string) (m *Mesh, err error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if m, err = ParseSU2(file); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return
}

type su2Scanner struct {
	*bufio.Scanner
	line int
}

// next returns the next line that is neither blank nor a comment.
func (s *su2Scanner) next() (line string, err error) {
	for s.Scan() {
		s.line++
		line = strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "%") {
			continue
		}
		return
	}
	if err = s.Err(); err == nil {
		err = io.ErrUnexpectedEOF
	}
	return
}

// keyword splits "KEY= value" lines.
func keyword(line string) (key, value string, ok bool) {
	i := strings.Index(line, "=")
	if i < 0 {
		return
	}
	return strings.TrimSpace(line[:i]), strings.TrimSpace(line[i+1:]), true
}

func atoiField(s *su2Scanner, value string) (n int, err error) {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return 0, fmt.Errorf("line %d: missing value", s.line)
	}
	if n, err = strconv.Atoi(fields[0]); err != nil {
		err = fmt.Errorf("line %d: %w", s.line, err)
	}
	return
}

// maxSU2Count bounds the counts read from a section header. Storage for a
// section grows with the lines actually read, never with the declared count.
const (
	maxSU2Count = math.MaxInt32
	su2Prealloc = 1 << 12
)

func countField(s *su2Scanner, key, value string) (n int, err error) {
	if n, err = atoiField(s, value); err != nil {
		return
	}
	if n < 0 || n > maxSU2Count {
		return 0, fmt.Errorf("line %d: %s=%d out of range", s.line, key, n)
	}
	return
}

func ParseSU2(r io.Reader) (m *Mesh, err error) {
	var (
		s    = &su2Scanner{Scanner: bufio.NewScanner(r)}
		line string
		ndim int
	)
	m = NewMesh(0)
	for {
		if line, err = s.next(); err != nil {
			if err == io.ErrUnexpectedEOF {
				err = nil
				break
			}
			return nil, err
		}
		key, value, ok := keyword(line)
		if !ok {
			return nil, fmt.Errorf("line %d: unexpected %q", s.line, line)
		}
		switch key {
		case "NDIME":
			if ndim, err = atoiField(s, value); err != nil {
				return nil, err
			}
			if ndim != 2 && ndim != 3 {
				return nil, fmt.Errorf("line %d: NDIME=%d, want 2 or 3", s.line, ndim)
			}
			m.Dim = ndim
		case "NELEM":
			var nelem int
			if nelem, err = countField(s, key, value); err != nil {
				return nil, err
			}
			m.Elements = make([][]int, 0, min(nelem, su2Prealloc))
			m.ElementTypes = make([]ElementType, 0, min(nelem, su2Prealloc))
			for i := 0; i < nelem; i++ {
				var (
					etype ElementType
					verts []int
				)
				if line, err = s.next(); err != nil {
					return nil, fmt.Errorf("element %d: %w", i, err)
				}
				if etype, verts, err = parseCell(s, line); err != nil {
					return nil, err
				}
				if ndim != 0 && elementDim(etype) != ndim {
					return nil, fmt.Errorf("line %d: %s element in a %d-D mesh", s.line, etype, ndim)
				}
				m.Elements = append(m.Elements, verts)
				m.ElementTypes = append(m.ElementTypes, etype)
			}
		case "NPOIN":
			var npoin int
			if npoin, err = countField(s, key, value); err != nil {
				return nil, err
			}
			if ndim == 0 {
				return nil, fmt.Errorf("line %d: NPOIN before NDIME", s.line)
			}
			var (
				points = make([][]float64, 0, min(npoin, su2Prealloc))
				ids    = make([]int, 0, min(npoin, su2Prealloc))
			)
			for i := 0; i < npoin; i++ {
				if line, err = s.next(); err != nil {
					return nil, fmt.Errorf("point %d: %w", i, err)
				}
				fields := strings.Fields(line)
				if len(fields) < ndim {
					return nil, fmt.Errorf("line %d: %d coordinates, want %d", s.line, len(fields), ndim)
				}
				coords := make([]float64, 3)
				for j := 0; j < ndim; j++ {
					if coords[j], err = strconv.ParseFloat(fields[j], 64); err != nil {
						return nil, fmt.Errorf("line %d: %w", s.line, err)
					}
				}
				// An optional trailing field is the point ID
				ptID := i
				if len(fields) > ndim {
					if ptID, err = strconv.Atoi(fields[len(fields)-1]); err != nil || ptID < 0 || ptID >= npoin {
						return nil, fmt.Errorf("line %d: bad point ID %q", s.line, fields[len(fields)-1])
					}
				}
				points = append(points, coords)
				ids = append(ids, ptID)
			}
			m.Vertices = make([][]float64, npoin)
			for i, id := range ids {
				m.Vertices[id] = points[i]
			}
		case "NMARK":
			var nmark int
			if nmark, err = countField(s, key, value); err != nil {
				return nil, err
			}
			for i := 0; i < nmark; i++ {
				var mk Marker
				if mk, err = parseMarker(s, ndim); err != nil {
					return nil, err
				}
				m.Markers = append(m.Markers, mk)
			}
		default:
			// Unused sections such as NZONE are skipped line by line
		}
	}
	if m.Dim == 0 {
		return nil, fmt.Errorf("missing NDIME")
	}
	for e, verts := range m.Elements {
		for _, v := range verts {
			if v < 0 || v >= len(m.Vertices) {
				return nil, fmt.Errorf("element %d references vertex %d of %d", e, v, len(m.Vertices))
			}
		}
	}
	if err = m.BuildConnectivity(); err != nil {
		return nil, err
	}
	return
}

func parseCell(s *su2Scanner, line string) (etype ElementType, verts []int, err error) {
	var (
		fields   = strings.Fields(line)
		code     int
		numNodes int
		ok       bool
	)
	if len(fields) < 2 {
		err = fmt.Errorf("line %d: short element line %q", s.line, line)
		return
	}
	if code, err = strconv.Atoi(fields[0]); err != nil {
		err = fmt.Errorf("line %d: %w", s.line, err)
		return
	}
	if etype, numNodes, ok = su2Element(code); !ok {
		err = fmt.Errorf("line %d: unsupported SU2 element type %d", s.line, code)
		return
	}
	if len(fields) < numNodes+1 {
		err = fmt.Errorf("line %d: %s needs %d nodes, have %d", s.line, etype, numNodes, len(fields)-1)
		return
	}
	verts = make([]int, numNodes)
	for j := 0; j < numNodes; j++ {
		if verts[j], err = strconv.Atoi(fields[1+j]); err != nil {
			err = fmt.Errorf("line %d: %w", s.line, err)
			return
		}
	}
	return
}

func parseMarker(s *su2Scanner, ndim int) (mk Marker, err error) {
	var line string
	if line, err = s.next(); err != nil {
		return
	}
	key, value, ok := keyword(line)
	if !ok || key != "MARKER_TAG" {
		err = fmt.Errorf("line %d: want MARKER_TAG, have %q", s.line, line)
		return
	}
	mk.Name = value
	if line, err = s.next(); err != nil {
		return
	}
	key, value, ok = keyword(line)
	if !ok || key != "MARKER_ELEMS" {
		err = fmt.Errorf("line %d: want MARKER_ELEMS, have %q", s.line, line)
		return
	}
	var n int
	if n, err = countField(s, key, value); err != nil {
		return
	}
	mk.Faces = make([][]int, 0, min(n, su2Prealloc))
	for f := 0; f < n; f++ {
		var (
			etype ElementType
			face  []int
		)
		if line, err = s.next(); err != nil {
			return
		}
		if etype, face, err = parseCell(s, line); err != nil {
			return
		}
		mk.Faces = append(mk.Faces, face)
		if elementDim(etype) != ndim-1 {
			err = fmt.Errorf("line %d: marker %s has a %s face in a %d-D mesh", s.line, mk.Name, etype, ndim)
			return
		}
	}
	return
}
