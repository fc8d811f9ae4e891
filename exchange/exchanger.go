package exchange

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/denMaier/solids4foam-sub001/block"
	"github.com/denMaier/solids4foam-sub001/blockmatrix"
)

const (
	tagHalo = iota + 1
	tagGather
	tagBroadcast
)

// Interface lists the local cells coupled to one neighbouring partition, one
// entry per shared bond, in ascending global bond order. Both sides of a bond
// list their own cell at the same position.
type Interface struct {
	Neighbour int
	Cells     []int
}

// Exchanger is one partition's view of the halo exchange. It is not safe for
// concurrent use: the transport pairs calls in program order.
type Exchanger[K block.Kernel] struct {
	Part       int
	Schedule   *Schedule
	Transport  Transport
	Interfaces []Interface

	r      int
	byPeer map[int]int // neighbour partition -> index into Interfaces
	send   [][]float64
	redBuf []float64
}

// NewExchanger checks that the interfaces of part match its steps in the
// schedule, one interface per peer.
func NewExchanger[K block.Kernel](part int, sched *Schedule, tr Transport,
	ifaces []Interface) (x *Exchanger[K], err error) {
	if part < 0 || part >= sched.NParts() {
		err = fmt.Errorf("exchange: partition %d outside [0,%d)", part, sched.NParts())
		return
	}
	x = &Exchanger[K]{
		Part:       part,
		Schedule:   sched,
		Transport:  tr,
		Interfaces: ifaces,
		r:          block.RankOf[K](),
		byPeer:     make(map[int]int, len(ifaces)),
		send:       make([][]float64, len(ifaces)),
	}
	for i, iface := range ifaces {
		if _, dup := x.byPeer[iface.Neighbour]; dup {
			return nil, fmt.Errorf("exchange: partition %d has two interfaces to %d", part, iface.Neighbour)
		}
		x.byPeer[iface.Neighbour] = i
		x.send[i] = make([]float64, len(iface.Cells)*x.r)
	}
	steps := sched.Steps(part)
	if len(steps) != len(ifaces) {
		return nil, fmt.Errorf("exchange: partition %d has %d interfaces and %d scheduled exchanges",
			part, len(ifaces), len(steps))
	}
	for _, st := range steps {
		if _, ok := x.byPeer[st.Peer]; !ok {
			return nil, fmt.Errorf("exchange: partition %d has no interface to scheduled peer %d", part, st.Peer)
		}
	}
	if sched.NParts() > 1 && tr == nil {
		return nil, fmt.Errorf("exchange: partition %d: nil transport for %d partitions", part, sched.NParts())
	}
	return
}

// NewHalo allocates receive buffers matching the interfaces.
func (x *Exchanger[K]) NewHalo() (halo [][]float64) {
	halo = make([][]float64, len(x.Interfaces))
	for i, iface := range x.Interfaces {
		halo[i] = make([]float64, len(iface.Cells)*x.r)
	}
	return
}

// Exchange sends the block values of the interface cells of v to every
// neighbour and receives theirs into halo, following the schedule.
func (x *Exchanger[K]) Exchange(v []float64, halo [][]float64) (err error) {
	r := x.r
	for i, iface := range x.Interfaces {
		for k, c := range iface.Cells {
			copy(x.send[i][k*r:k*r+r], v[c*r:c*r+r])
		}
		if len(halo[i]) != len(x.send[i]) {
			return fmt.Errorf("exchange: halo %d has %d values, want %d", i, len(halo[i]), len(x.send[i]))
		}
	}
	for _, st := range x.Schedule.Steps(x.Part) {
		i := x.byPeer[st.Peer]
		if st.SendFirst {
			if err = x.Transport.Send(st.Peer, tagHalo, x.send[i]); err != nil {
				return
			}
			if err = x.Transport.Receive(st.Peer, tagHalo, halo[i]); err != nil {
				return
			}
		} else {
			if err = x.Transport.Receive(st.Peer, tagHalo, halo[i]); err != nil {
				return
			}
			if err = x.Transport.Send(st.Peer, tagHalo, x.send[i]); err != nil {
				return
			}
		}
	}
	return
}

// SumAll replaces vals by their sums over all partitions. Partition 0 adds
// the contributions in ascending partition order and broadcasts the result,
// so every partition holds bit identical sums. A single partition is left
// untouched.
func (x *Exchanger[K]) SumAll(vals []float64) (err error) {
	n := x.Schedule.NParts()
	if n == 1 {
		return
	}
	if x.Part != 0 {
		if err = x.Transport.Send(0, tagGather, vals); err != nil {
			return
		}
		return x.Transport.Receive(0, tagBroadcast, vals)
	}
	if cap(x.redBuf) < len(vals) {
		x.redBuf = make([]float64, len(vals))
	}
	buf := x.redBuf[:len(vals)]
	for p := 1; p < n; p++ {
		if err = x.Transport.Receive(p, tagGather, buf); err != nil {
			return
		}
		floats.Add(vals, buf)
	}
	for p := 1; p < n; p++ {
		if err = x.Transport.Send(p, tagBroadcast, vals); err != nil {
			return
		}
	}
	return
}

// CoupledMatrix is the local block of a decomposed matrix plus the
// coefficients coupling interface cells to the neighbour's cells. Coeffs[i]
// holds one r×r block per cell of Interfaces[i].
type CoupledMatrix[K block.Kernel] struct {
	Matrix    *blockmatrix.Matrix[K]
	Exchanger *Exchanger[K]
	Coeffs    [][]float64

	halo [][]float64
}

func NewCoupledMatrix[K block.Kernel](m *blockmatrix.Matrix[K], x *Exchanger[K],
	coeffs [][]float64) (cm *CoupledMatrix[K], err error) {
	bs := block.Size[K]()
	if len(coeffs) != len(x.Interfaces) {
		err = fmt.Errorf("exchange: %d coefficient sets for %d interfaces", len(coeffs), len(x.Interfaces))
		return
	}
	for i, iface := range x.Interfaces {
		if len(coeffs[i]) != len(iface.Cells)*bs {
			err = fmt.Errorf("exchange: interface %d: %d coefficients, want %d",
				i, len(coeffs[i]), len(iface.Cells)*bs)
			return
		}
		for _, c := range iface.Cells {
			if c < 0 || c >= m.NRows() {
				err = fmt.Errorf("exchange: interface %d: cell %d outside [0,%d)", i, c, m.NRows())
				return
			}
		}
	}
	cm = &CoupledMatrix[K]{Matrix: m, Exchanger: x, Coeffs: coeffs, halo: x.NewHalo()}
	return
}

// Multiply computes y = A·x over the whole decomposed system, restricted to
// the local rows. Every partition must call it collectively.
func (cm *CoupledMatrix[K]) Multiply(y, x []float64) (err error) {
	if err = cm.Matrix.Multiply(y, x); err != nil {
		return
	}
	if len(cm.Exchanger.Interfaces) == 0 {
		return
	}
	if err = cm.Exchanger.Exchange(x, cm.halo); err != nil {
		return
	}
	var (
		k  K
		r  = cm.Matrix.Rank()
		bs = r * r
	)
	for i, iface := range cm.Exchanger.Interfaces {
		for j, c := range iface.Cells {
			k.MulVecAdd(y[c*r:c*r+r], cm.Coeffs[i][j*bs:j*bs+bs], cm.halo[i][j*r:j*r+r])
		}
	}
	return
}
