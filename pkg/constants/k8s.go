package constants

// K8s annotation keys
const (
	// AnnotationAvgCallMs carries the average call duration (milliseconds)
	// reported by the job submitter on a batch Job.
	AnnotationAvgCallMs = "gridpool.io/avg-call-ms"
)

// Node role labels marking the cluster head
const (
	LabelControlPlane = "node-role.kubernetes.io/control-plane"
	LabelMasterLegacy = "node-role.kubernetes.io/master"
)
