package ring

// Stats is a point-in-time snapshot of a ring's counters, taken without
// disturbing the stream.
type Stats struct {
	WriteIndex       uint64 `json:"write_index"`
	ReadIndex        uint64 `json:"read_index"`
	ErrorCount       uint64 `json:"error_count"`
	BufferStallCount uint64 `json:"buffer_stall_count"`
	ChunkSize        uint32 `json:"chunk_size"`
	NumSlots         uint32 `json:"num_slots"`
	NumChannels      uint16 `json:"num_channels"`
	WriterDone       bool   `json:"writer_done"`
}

// Snapshot reads the ring's current counters.
func (r *Ring) Snapshot() Stats {
	return Stats{
		WriteIndex:       r.hdr.WriteIndex(),
		ReadIndex:        r.hdr.ReadIndex(),
		ErrorCount:       r.hdr.ErrorCount(),
		BufferStallCount: r.hdr.BufferStallCount(),
		ChunkSize:        r.hdr.ChunkSize(),
		NumSlots:         r.hdr.NumSlots(),
		NumChannels:      r.hdr.NumChannels(),
		WriterDone:       r.hdr.WriterDone(),
	}
}

// ReadStats opens an existing ring file, snapshots its counters, and closes
// it again.
func ReadStats(path string) (Stats, error) {
	r, err := Open(path)
	if err != nil {
		return Stats{}, err
	}
	defer r.Close()
	return r.Snapshot(), nil
}
