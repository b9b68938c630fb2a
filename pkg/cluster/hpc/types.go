package hpc

// Wire types for the grid manager's management API. Field names follow the
// manager's JSON contract, not ours; the mapper owns the translation.

// jobRecord is one job as reported by GET /api/v1/jobs
type jobRecord struct {
	ID                string  `json:"id"`
	Template          string  `json:"template,omitempty"`
	State             string  `json:"state"`
	AvgCallDurationMs float64 `json:"avgCallDurationMs"`
	TotalCalls        int64   `json:"totalCalls"`
	OutstandingCalls  int64   `json:"outstandingCalls"`
	AllocatedCores    int64   `json:"allocatedCores"`
}

type jobListResponse struct {
	Jobs []jobRecord `json:"jobs"`
}

// nodeRecord is one node as reported by GET /api/v1/nodes
type nodeRecord struct {
	Name       string `json:"name"`
	Template   string `json:"template,omitempty"`
	State      string `json:"state"`
	Cores      int    `json:"cores"`
	MemoryMB   int64  `json:"memoryMb"`
	IsHeadNode bool   `json:"isHeadNode,omitempty"`
}

type nodeListResponse struct {
	Nodes []nodeRecord `json:"nodes"`
}

type activeJobsResponse struct {
	Count int `json:"count"`
}

type nodeStateRequest struct {
	Names []string `json:"names"`
	State string   `json:"state"`
}

type nodeStartRequest struct {
	Names []string `json:"names"`
	Async bool     `json:"async"`
}

type nodeStopRequest struct {
	Names []string `json:"names"`
	Force bool     `json:"force"`
	Async bool     `json:"async"`
}

// errorResponse is the manager's error envelope
type errorResponse struct {
	Message string `json:"message"`
}
