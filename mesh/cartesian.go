package mesh

import "fmt"

// NewCartesian builds a structured grid of nx×ny quads (nz = 0) or nx×ny×nz
// hexes spanning lengths, with markers xmin, xmax, ymin, ymax and, in 3-D,
// zmin, zmax. Elements are numbered with x fastest.
func NewCartesian(nx, ny, nz int, lengths [3]float64) (m *Mesh, err error) {
	if nx < 1 || ny < 1 || nz < 0 {
		return nil, fmt.Errorf("invalid grid size %dx%dx%d", nx, ny, nz)
	}
	var (
		dim    = 3
		layers = nz + 1
	)
	if nz == 0 {
		dim, layers = 2, 1
	}
	m = NewMesh(dim)
	vid := func(i, j, k int) int { return i + (nx+1)*(j+(ny+1)*k) }
	for k := 0; k < layers; k++ {
		for j := 0; j <= ny; j++ {
			for i := 0; i <= nx; i++ {
				z := 0.
				if dim == 3 {
					z = lengths[2] * float64(k) / float64(nz)
				}
				m.Vertices = append(m.Vertices, []float64{
					lengths[0] * float64(i) / float64(nx),
					lengths[1] * float64(j) / float64(ny),
					z,
				})
			}
		}
	}
	markers := map[string]*Marker{}
	names := []string{"xmin", "xmax", "ymin", "ymax"}
	if dim == 3 {
		names = append(names, "zmin", "zmax")
	}
	for _, n := range names {
		markers[n] = &Marker{Name: n}
	}
	addFace := func(name string, verts ...int) {
		markers[name].Faces = append(markers[name].Faces, verts)
	}
	if dim == 2 {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				m.Elements = append(m.Elements, []int{
					vid(i, j, 0), vid(i+1, j, 0), vid(i+1, j+1, 0), vid(i, j+1, 0)})
				m.ElementTypes = append(m.ElementTypes, Quad)
			}
		}
		for j := 0; j < ny; j++ {
			addFace("xmin", vid(0, j, 0), vid(0, j+1, 0))
			addFace("xmax", vid(nx, j, 0), vid(nx, j+1, 0))
		}
		for i := 0; i < nx; i++ {
			addFace("ymin", vid(i, 0, 0), vid(i+1, 0, 0))
			addFace("ymax", vid(i, ny, 0), vid(i+1, ny, 0))
		}
	} else {
		for k := 0; k < nz; k++ {
			for j := 0; j < ny; j++ {
				for i := 0; i < nx; i++ {
					m.Elements = append(m.Elements, []int{
						vid(i, j, k), vid(i+1, j, k), vid(i+1, j+1, k), vid(i, j+1, k),
						vid(i, j, k+1), vid(i+1, j, k+1), vid(i+1, j+1, k+1), vid(i, j+1, k+1),
					})
					m.ElementTypes = append(m.ElementTypes, Hex)
				}
			}
		}
		for k := 0; k < nz; k++ {
			for j := 0; j < ny; j++ {
				addFace("xmin", vid(0, j, k), vid(0, j+1, k), vid(0, j+1, k+1), vid(0, j, k+1))
				addFace("xmax", vid(nx, j, k), vid(nx, j+1, k), vid(nx, j+1, k+1), vid(nx, j, k+1))
			}
			for i := 0; i < nx; i++ {
				addFace("ymin", vid(i, 0, k), vid(i+1, 0, k), vid(i+1, 0, k+1), vid(i, 0, k+1))
				addFace("ymax", vid(i, ny, k), vid(i+1, ny, k), vid(i+1, ny, k+1), vid(i, ny, k+1))
			}
		}
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				addFace("zmin", vid(i, j, 0), vid(i+1, j, 0), vid(i+1, j+1, 0), vid(i, j+1, 0))
				addFace("zmax", vid(i, j, nz), vid(i+1, j, nz), vid(i+1, j+1, nz), vid(i, j+1, nz))
			}
		}
	}
	for _, n := range names {
		m.Markers = append(m.Markers, *markers[n])
	}
	if err = m.BuildConnectivity(); err != nil {
		return nil, err
	}
	return
}
