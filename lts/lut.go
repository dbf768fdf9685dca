package lts

// Lut maps rank local mesh elements to their cells in the tree
type Lut struct {
	tree      *Tree
	meshToLts []DuplicateList
	materials []Material
}

// NumMeshCells returns the number of rank local mesh elements
func (l *Lut) NumMeshCells() int { return len(l.meshToLts) }

// LtsIDs returns every copy of a local mesh element
func (l *Lut) LtsIDs(meshID int) DuplicateList { return l.meshToLts[meshID] }

// Material returns the material of a local mesh element
func (l *Lut) Material(meshID int) Material { return l.materials[meshID] }

// NumClusters returns the number of time clusters
func (l *Lut) NumClusters() int { return l.tree.NumClusters() }

// ClusterID returns the time cluster of an LTS id
func (l *Lut) ClusterID(ltsID int) int { return l.tree.ClusterID(ltsID) }

// Cell returns the cell with the given LTS id
func (l *Lut) Cell(ltsID int) *Cell { return l.tree.Cell(ltsID) }

// Tree returns the tree the table indexes
func (l *Lut) Tree() *Tree { return l.tree }
