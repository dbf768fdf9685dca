package utils

import (
	"fmt"
	"sort"
)

// Nfaces is the number of faces of a tetrahedron
const Nfaces = 4

// faceVertices lists which 3 local vertices form each tetrahedron face
var faceVertices = [Nfaces][3]int{
	{0, 1, 2}, // Face 0
	{0, 1, 3}, // Face 1
	{1, 2, 3}, // Face 2
	{0, 2, 3}, // Face 3
}

// FaceConnector manages element level pick and place indices for partitioned
// meshes. Partition p sends the elements listed in PickIndices[p][q] to
// partition q, which places them into its ghost slots PlaceIndices[q][p].
type FaceConnector struct {
	// Mesh dimensions
	NumPartitions int
	K             int // Total elements

	// Connectivity
	EToE [][Nfaces]int // Element → neighbor element per face, self on boundary faces
	EToF [][Nfaces]int // Element → neighbor's matching face
	EToP []int         // Element → partition mapping

	// Partition mappings
	ElemsPerPartition []int         // Elements per partition
	GlobalToLocalElem []map[int]int // [partition][globalElem] → localElem
	LocalToGlobalElem [][]int       // [partition][localElem] → globalElem

	// Pick/Place indices per partition
	PickIndices  [][]PickBuffer  // [sourcePartition][targetPartition]
	PlaceIndices [][]PlaceBuffer // [targetPartition][sourcePartition]
	NumGhosts    []int           // Ghost slots per partition
}

// PickBuffer contains the local elements sent to one target partition
type PickBuffer struct {
	Indices         []int // Local element indices in the source partition
	TargetPartition int
}

// PlaceBuffer contains the ghost slots filled from one source partition
type PlaceBuffer struct {
	Indices         []int // Ghost slot positions in the target partition
	SourcePartition int
}

// NewFaceConnector creates a face connector from tetrahedral connectivity and
// an element to partition map
func NewFaceConnector(EToV [][4]int, EToP []int) (*FaceConnector, error) {
	K := len(EToV)
	if K == 0 {
		return nil, fmt.Errorf("invalid dimensions: K=%d", K)
	}
	if len(EToP) != K {
		return nil, fmt.Errorf("EToP length %d does not match K=%d", len(EToP), K)
	}

	// Determine number of partitions
	numPartitions := 0
	for k, p := range EToP {
		if p < 0 {
			return nil, fmt.Errorf("element %d has negative partition %d", k, p)
		}
		if p+1 > numPartitions {
			numPartitions = p + 1
		}
	}

	fc := &FaceConnector{
		NumPartitions: numPartitions,
		K:             K,
		EToP:          EToP,
	}
	fc.EToE, fc.EToF = BuildConnectivity(EToV)

	fc.buildPartitionMappings()
	fc.initializeBuffers()
	fc.BuildIndices()

	return fc, nil
}

// BuildConnectivity matches tetrahedron faces by their sorted vertex triples.
// Unmatched (boundary) faces connect to themselves.
func BuildConnectivity(EToV [][4]int) (EToE, EToF [][Nfaces]int) {
	K := len(EToV)
	EToE = make([][Nfaces]int, K)
	EToF = make([][Nfaces]int, K)
	for e := 0; e < K; e++ {
		for f := 0; f < Nfaces; f++ {
			EToE[e][f] = e
			EToF[e][f] = f
		}
	}

	type faceRef struct {
		elem, face int
	}
	faceMap := make(map[[3]int]faceRef, 2*K)

	for e := 0; e < K; e++ {
		for f := 0; f < Nfaces; f++ {
			var v [3]int
			for i := 0; i < 3; i++ {
				v[i] = EToV[e][faceVertices[f][i]]
			}
			// Canonical face signature
			if v[0] > v[1] {
				v[0], v[1] = v[1], v[0]
			}
			if v[1] > v[2] {
				v[1], v[2] = v[2], v[1]
			}
			if v[0] > v[1] {
				v[0], v[1] = v[1], v[0]
			}

			if existing, found := faceMap[v]; found {
				EToE[e][f] = existing.elem
				EToF[e][f] = existing.face
				EToE[existing.elem][existing.face] = e
				EToF[existing.elem][existing.face] = f
				delete(faceMap, v)
			} else {
				faceMap[v] = faceRef{e, f}
			}
		}
	}
	return EToE, EToF
}

// buildPartitionMappings creates bidirectional mappings between global and local element numbering
func (fc *FaceConnector) buildPartitionMappings() {
	fc.ElemsPerPartition = make([]int, fc.NumPartitions)
	for _, p := range fc.EToP {
		fc.ElemsPerPartition[p]++
	}

	fc.GlobalToLocalElem = make([]map[int]int, fc.NumPartitions)
	fc.LocalToGlobalElem = make([][]int, fc.NumPartitions)
	for p := 0; p < fc.NumPartitions; p++ {
		fc.GlobalToLocalElem[p] = make(map[int]int, fc.ElemsPerPartition[p])
		fc.LocalToGlobalElem[p] = make([]int, 0, fc.ElemsPerPartition[p])
	}

	for globalElem := 0; globalElem < fc.K; globalElem++ {
		partition := fc.EToP[globalElem]
		localElem := len(fc.LocalToGlobalElem[partition])

		fc.GlobalToLocalElem[partition][globalElem] = localElem
		fc.LocalToGlobalElem[partition] = append(fc.LocalToGlobalElem[partition], globalElem)
	}
}

// initializeBuffers creates empty pick and place buffer structures
func (fc *FaceConnector) initializeBuffers() {
	fc.PickIndices = make([][]PickBuffer, fc.NumPartitions)
	fc.PlaceIndices = make([][]PlaceBuffer, fc.NumPartitions)
	fc.NumGhosts = make([]int, fc.NumPartitions)

	for p := 0; p < fc.NumPartitions; p++ {
		fc.PickIndices[p] = make([]PickBuffer, fc.NumPartitions)
		fc.PlaceIndices[p] = make([]PlaceBuffer, fc.NumPartitions)

		for q := 0; q < fc.NumPartitions; q++ {
			fc.PickIndices[p][q] = PickBuffer{TargetPartition: q}
			fc.PlaceIndices[p][q] = PlaceBuffer{SourcePartition: q}
		}
	}
}

// BuildIndices constructs pick and place indices for all partitions. An
// element is picked for partition q once, however many faces it shares with
// q. Ghost slots of a partition are numbered by source partition, then by
// local element order within the source.
func (fc *FaceConnector) BuildIndices() {
	for p := 0; p < fc.NumPartitions; p++ {
		for localElem, globalElem := range fc.LocalToGlobalElem[p] {
			for _, q := range fc.NeighborPartitions(globalElem) {
				fc.PickIndices[p][q].Indices = append(fc.PickIndices[p][q].Indices, localElem)
			}
		}
	}

	for q := 0; q < fc.NumPartitions; q++ {
		slot := 0
		for p := 0; p < fc.NumPartitions; p++ {
			n := len(fc.PickIndices[p][q].Indices)
			place := make([]int, n)
			for i := range place {
				place[i] = slot + i
			}
			fc.PlaceIndices[q][p].Indices = place
			slot += n
		}
		fc.NumGhosts[q] = slot
	}
}

// NeighborPartitions returns, in ascending order, the partitions other than
// its own that share a face with the global element
func (fc *FaceConnector) NeighborPartitions(globalElem int) []int {
	own := fc.EToP[globalElem]
	var parts []int
	for f := 0; f < Nfaces; f++ {
		q := fc.EToP[fc.EToE[globalElem][f]]
		if q == own {
			continue
		}
		dup := false
		for _, existing := range parts {
			if existing == q {
				dup = true
				break
			}
		}
		if !dup {
			parts = append(parts, q)
		}
	}
	sort.Ints(parts)
	return parts
}

// GhostElements returns the global ids of the elements partition p receives
// from partition q, in ghost slot order
func (fc *FaceConnector) GhostElements(p, q int) []int {
	picks := fc.GetPickIndices(q, p)
	ghosts := make([]int, len(picks))
	for i, local := range picks {
		ghosts[i] = fc.LocalToGlobalElem[q][local]
	}
	return ghosts
}

// GetPickIndices returns pick indices for sending from source to target partition
func (fc *FaceConnector) GetPickIndices(sourcePartition, targetPartition int) []int {
	if sourcePartition < 0 || sourcePartition >= fc.NumPartitions ||
		targetPartition < 0 || targetPartition >= fc.NumPartitions {
		return nil
	}
	return fc.PickIndices[sourcePartition][targetPartition].Indices
}

// GetPlaceIndices returns place indices for target partition receiving from source
func (fc *FaceConnector) GetPlaceIndices(targetPartition, sourcePartition int) []int {
	if targetPartition < 0 || targetPartition >= fc.NumPartitions ||
		sourcePartition < 0 || sourcePartition >= fc.NumPartitions {
		return nil
	}
	return fc.PlaceIndices[targetPartition][sourcePartition].Indices
}

// Verify checks index validity and conservation properties
func (fc *FaceConnector) Verify() error {
	// Verify 1: Local validity - all pick indices are within bounds
	for p := 0; p < fc.NumPartitions; p++ {
		for q := 0; q < fc.NumPartitions; q++ {
			if p == q && len(fc.PickIndices[p][q].Indices) != 0 {
				return fmt.Errorf("partition %d picks %d elements for itself",
					p, len(fc.PickIndices[p][q].Indices))
			}
			for _, idx := range fc.PickIndices[p][q].Indices {
				if idx < 0 || idx >= fc.ElemsPerPartition[p] {
					return fmt.Errorf("invalid pick index %d for partition %d (max %d)",
						idx, p, fc.ElemsPerPartition[p]-1)
				}
			}
		}
	}

	// Verify 2: Correspondence - pick and place arrays have same length
	for p := 0; p < fc.NumPartitions; p++ {
		for q := 0; q < fc.NumPartitions; q++ {
			pickLen := len(fc.PickIndices[p][q].Indices)
			placeLen := len(fc.PlaceIndices[q][p].Indices)
			if pickLen != placeLen {
				return fmt.Errorf("length mismatch: pick[%d][%d]=%d, place[%d][%d]=%d",
					p, q, pickLen, q, p, placeLen)
			}
		}
	}

	// Verify 3: Conservation - every cross-partition face is covered by a pick
	for e := 0; e < fc.K; e++ {
		p := fc.EToP[e]
		local := fc.GlobalToLocalElem[p][e]
		for f := 0; f < Nfaces; f++ {
			q := fc.EToP[fc.EToE[e][f]]
			if q == p {
				continue
			}
			picked := false
			for _, idx := range fc.PickIndices[p][q].Indices {
				if idx == local {
					picked = true
					break
				}
			}
			if !picked {
				return fmt.Errorf("element %d face %d borders partition %d but is not picked", e, f, q)
			}
		}
	}

	return nil
}
