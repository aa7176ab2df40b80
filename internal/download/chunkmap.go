package download

import (
	"encoding/json"
	"os"
	"sync"
)

// chunkMap is the sidecar recording which byte-range chunks of an in-flight
// chunked download have already landed on disk, per §4.3 step 4. It is kept
// next to the partial file as "<part>.map" so a later Fetch against the
// same DestDir/DestName can skip chunks that already completed.
type chunkMap struct {
	mu   sync.Mutex
	path string
	state chunkMapState
}

type chunkMapState struct {
	Size int64  `json:"size"`
	Done []bool `json:"done"`
}

// loadChunkMap reads an existing sidecar if one matches the current plan
// (same total size and chunk count); otherwise it starts a fresh all-pending
// map. A mismatched or corrupt sidecar is treated as absent rather than
// failing the download.
func loadChunkMap(path string, size int64, n int) *chunkMap {
	cm := &chunkMap{path: path}

	data, err := os.ReadFile(path)
	if err == nil {
		var s chunkMapState
		if json.Unmarshal(data, &s) == nil && s.Size == size && len(s.Done) == n {
			cm.state = s
			return cm
		}
	}

	cm.state = chunkMapState{Size: size, Done: make([]bool, n)}
	return cm
}

func (cm *chunkMap) isDone(i int) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.state.Done[i]
}

// markDone flips a chunk to complete and persists the sidecar. Persistence
// is best-effort: a write failure here does not fail the download, it only
// means a future resume may re-fetch this chunk.
func (cm *chunkMap) markDone(i int) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.state.Done[i] = true
	data, err := json.Marshal(cm.state)
	if err != nil {
		return
	}
	_ = os.WriteFile(cm.path, data, 0o644)
}

func (cm *chunkMap) remove() {
	_ = os.Remove(cm.path)
}
