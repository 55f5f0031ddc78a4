package labclient

import "github.com/tidwall/gjson"

// ComputeStats is one compute node's resource snapshot parsed out of
// system_stats's nested per-compute dominfo block. The top-level shape is fixed enough for
// encoding/json, but each compute's key and dominfo sub-object vary
// enough across CML versions that gjson's path queries are a better fit
// than a rigid struct.
type ComputeStats struct {
	ComputeID      string
	AllocatedCPUs  int64
	AllocatedMemory int64
	TotalNodes     int64
	RunningNodes   int64
}

// ComputeStats extracts the per-compute dominfo entries from a
// system_stats response. Unknown/missing fields default to zero rather
// than erroring, since the sub-document shape is only loosely specified.
func (s *SystemStats) ComputeStats() []ComputeStats {
	computes := gjson.GetBytes(s.Raw, "computes")
	if !computes.Exists() {
		return nil
	}

	var out []ComputeStats
	computes.ForEach(func(key, value gjson.Result) bool {
		dominfo := value.Get("dominfo")
		out = append(out, ComputeStats{
			ComputeID:       key.String(),
			AllocatedCPUs:   dominfo.Get("allocated_cpus").Int(),
			AllocatedMemory: dominfo.Get("allocated_memory").Int(),
			TotalNodes:      dominfo.Get("total_nodes").Int(),
			RunningNodes:    dominfo.Get("running_nodes").Int(),
		})
		return true
	})
	return out
}

// AggregateCPU sums allocated_cpus across every compute.
func (s *SystemStats) AggregateCPU() int64 {
	var total int64
	for _, c := range s.ComputeStats() {
		total += c.AllocatedCPUs
	}
	return total
}
