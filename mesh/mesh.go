// Package mesh reads and generates unstructured meshes and derives the
// element connectivity graph the solver core is built on.
package mesh

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/denMaier/solids4foam-sub001/addressing"
)

// ElementType represents different element types
type ElementType int

const (
	Line ElementType = iota
	Triangle
	Quad
	Tet
	Hex
	Prism
	Pyramid
)

func (e ElementType) String() string {
	return [...]string{"Line", "Triangle", "Quad", "Tet", "Hex", "Prism", "Pyramid"}[e]
}

// Face is a face shared by at most two elements. Element is the first
// element seen with it.
type Face struct {
	Vertices []int // Sorted vertex indices
	Element  int
	LocalID  int // Local face ID within Element
}

// Marker is a named set of boundary faces, each given by its vertices, in
// file order.
type Marker struct {
	Name  string
	Faces [][]int
	// Elements holds the element owning each face, filled by BuildConnectivity.
	Elements []int
}

// Mesh is an unstructured mesh with its face connectivity.
type Mesh struct {
	Dim      int
	Vertices [][]float64 // [nvertices][3]

	Elements     [][]int // element to vertex connectivity
	ElementTypes []ElementType

	// Built by BuildConnectivity
	EToE    [][]int // element to neighbour element per local face, -1 on the boundary
	EToF    [][]int // element to face ID per local face
	Faces   []Face
	FaceMap map[string]int // sorted vertex key -> face ID

	Markers []Marker
}

func NewMesh(dim int) *Mesh {
	return &Mesh{
		Dim:     dim,
		FaceMap: make(map[string]int),
	}
}

// ReadMeshFile reads a mesh file based on extension
func ReadMeshFile(filename string) (*Mesh, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".su2":
		return ReadSU2(filename)
	default:
		return nil, fmt.Errorf("unsupported mesh format: %s", ext)
	}
}

func (m *Mesh) NumElements() int { return len(m.Elements) }

func faceKey(verts []int) (sorted []int, key string) {
	sorted = append([]int(nil), verts...)
	sort.Ints(sorted)
	key = fmt.Sprintf("%v", sorted)
	return
}

// BuildConnectivity matches element faces through their sorted vertex keys,
// then resolves every marker face to the element owning it.
func (m *Mesh) BuildConnectivity() (err error) {
	ne := m.NumElements()
	m.EToE = make([][]int, ne)
	m.EToF = make([][]int, ne)
	m.Faces = m.Faces[:0]
	m.FaceMap = make(map[string]int)

	for elemID := 0; elemID < ne; elemID++ {
		faceVertices := GetElementFaces(m.ElementTypes[elemID], m.Elements[elemID])
		m.EToE[elemID] = make([]int, len(faceVertices))
		m.EToF[elemID] = make([]int, len(faceVertices))

		for localFaceID, faceVerts := range faceVertices {
			m.EToE[elemID][localFaceID] = -1
			sorted, key := faceKey(faceVerts)
			if faceID, exists := m.FaceMap[key]; exists {
				face := &m.Faces[faceID]
				if m.EToE[face.Element][face.LocalID] != -1 {
					return fmt.Errorf("face %v shared by more than two elements", sorted)
				}
				m.EToE[elemID][localFaceID] = face.Element
				m.EToE[face.Element][face.LocalID] = elemID
				m.EToF[elemID][localFaceID] = faceID
			} else {
				faceID := len(m.Faces)
				m.Faces = append(m.Faces, Face{
					Vertices: sorted,
					Element:  elemID,
					LocalID:  localFaceID,
				})
				m.FaceMap[key] = faceID
				m.EToF[elemID][localFaceID] = faceID
			}
		}
	}

	for i := range m.Markers {
		mk := &m.Markers[i]
		mk.Elements = make([]int, len(mk.Faces))
		for f, verts := range mk.Faces {
			_, key := faceKey(verts)
			faceID, exists := m.FaceMap[key]
			if !exists {
				return fmt.Errorf("marker %s face %d %v matches no element face", mk.Name, f, verts)
			}
			face := m.Faces[faceID]
			if m.EToE[face.Element][face.LocalID] != -1 {
				return fmt.Errorf("marker %s face %d %v is an interior face", mk.Name, f, verts)
			}
			mk.Elements[f] = face.Element
		}
	}
	return
}

// GetElementFaces returns the face vertices for each element type. For 2-D
// elements the faces are edges, for lines they are the end points.
func GetElementFaces(elemType ElementType, vertices []int) [][]int {
	switch elemType {
	case Line:
		return [][]int{{vertices[0]}, {vertices[1]}}
	case Triangle:
		return [][]int{
			{vertices[0], vertices[1]},
			{vertices[1], vertices[2]},
			{vertices[2], vertices[0]},
		}
	case Quad:
		return [][]int{
			{vertices[0], vertices[1]},
			{vertices[1], vertices[2]},
			{vertices[2], vertices[3]},
			{vertices[3], vertices[0]},
		}
	case Tet:
		return [][]int{
			{vertices[0], vertices[2], vertices[1]}, // Face 0
			{vertices[0], vertices[1], vertices[3]}, // Face 1
			{vertices[1], vertices[2], vertices[3]}, // Face 2
			{vertices[0], vertices[3], vertices[2]}, // Face 3
		}
	case Hex:
		return [][]int{
			{vertices[0], vertices[3], vertices[2], vertices[1]}, // Face 0 (bottom)
			{vertices[4], vertices[5], vertices[6], vertices[7]}, // Face 1 (top)
			{vertices[0], vertices[1], vertices[5], vertices[4]}, // Face 2
			{vertices[1], vertices[2], vertices[6], vertices[5]}, // Face 3
			{vertices[2], vertices[3], vertices[7], vertices[6]}, // Face 4
			{vertices[3], vertices[0], vertices[4], vertices[7]}, // Face 5
		}
	case Prism:
		return [][]int{
			{vertices[0], vertices[2], vertices[1]},              // Face 0 (bottom tri)
			{vertices[3], vertices[4], vertices[5]},              // Face 1 (top tri)
			{vertices[0], vertices[1], vertices[4], vertices[3]}, // Face 2 (quad)
			{vertices[1], vertices[2], vertices[5], vertices[4]}, // Face 3 (quad)
			{vertices[2], vertices[0], vertices[3], vertices[5]}, // Face 4 (quad)
		}
	case Pyramid:
		return [][]int{
			{vertices[0], vertices[3], vertices[2], vertices[1]}, // Face 0 (base quad)
			{vertices[0], vertices[1], vertices[4]},              // Face 1 (tri)
			{vertices[1], vertices[2], vertices[4]},              // Face 2 (tri)
			{vertices[2], vertices[3], vertices[4]},              // Face 3 (tri)
			{vertices[3], vertices[0], vertices[4]},              // Face 4 (tri)
		}
	default:
		return [][]int{}
	}
}

// Bonds lists one bond per interior face, in element then local face order.
func (m *Mesh) Bonds() (bonds [][2]int) {
	for e, nbrs := range m.EToE {
		for _, n := range nbrs {
			if n > e {
				bonds = append(bonds, [2]int{e, n})
			}
		}
	}
	return
}

// BoundaryRegions returns one region per marker.
func (m *Mesh) BoundaryRegions() (regions []addressing.Region) {
	regions = make([]addressing.Region, len(m.Markers))
	for i, mk := range m.Markers {
		regions[i] = addressing.Region{Name: mk.Name, Elements: mk.Elements}
	}
	return
}

// PrintStatistics prints mesh statistics
func (m *Mesh) PrintStatistics() {
	fmt.Printf("Mesh Statistics:\n")
	fmt.Printf("  Dimension: %d\n", m.Dim)
	fmt.Printf("  Vertices: %d\n", len(m.Vertices))
	fmt.Printf("  Elements: %d\n", m.NumElements())
	fmt.Printf("  Faces: %d\n", len(m.Faces))

	typeCounts := make(map[ElementType]int)
	for _, t := range m.ElementTypes {
		typeCounts[t]++
	}
	fmt.Printf("  Element types:\n")
	for t, count := range typeCounts {
		fmt.Printf("    %s: %d\n", t, count)
	}

	boundaryFaces := 0
	for i := range m.EToE {
		for _, neighbor := range m.EToE[i] {
			if neighbor < 0 {
				boundaryFaces++
			}
		}
	}
	fmt.Printf("  Boundary faces: %d\n", boundaryFaces)
	for _, mk := range m.Markers {
		fmt.Printf("    %s: %d\n", mk.Name, len(mk.Faces))
	}
}
