package neardup

// Monitor provides hooks to observe the detection process.
// Implement this interface to track intermediate steps during a scan.
type Monitor interface {
	Start(query string)
	AfterFingerprintScan(hits int)
	AfterEmbeddingSearch(hits int)
	FingerprintHit(match *Match)
	EmbeddingHit(match *Match)
	DualHit(match *Match)
	Finish(matches []*Match)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)             {}
func (n *noopMonitor) AfterFingerprintScan(_ int) {}
func (n *noopMonitor) AfterEmbeddingSearch(_ int) {}
func (n *noopMonitor) FingerprintHit(_ *Match)    {}
func (n *noopMonitor) EmbeddingHit(_ *Match)      {}
func (n *noopMonitor) DualHit(_ *Match)           {}
func (n *noopMonitor) Finish(_ []*Match)          {}
