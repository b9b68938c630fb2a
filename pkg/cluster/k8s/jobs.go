package k8s

import (
	"context"
	"fmt"
	"strconv"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"

	"gridpool/internal/model"
	"gridpool/pkg/constants"
	"gridpool/pkg/logger"
)

// QueryJobs lists the namespace's batch Jobs and converts them into grid job
// snapshots: completions are calls, succeeded pods are completed calls,
// active pods are the allocation.
func (p *Provider) QueryJobs(ctx context.Context, templateFilter string, states []model.JobState) ([]model.Job, error) {
	opts := metav1.ListOptions{}
	if templateFilter != "" {
		opts.LabelSelector = labels.Set{p.k8sCfg.TemplateLabel: templateFilter}.AsSelector().String()
	}

	list, err := p.client.BatchV1().Jobs(p.namespace).List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	wanted := make(map[model.JobState]bool, len(states))
	for _, s := range states {
		wanted[s] = true
	}

	jobs := make([]model.Job, 0, len(list.Items))
	for i := range list.Items {
		job := p.jobFromBatch(&list.Items[i])
		if len(wanted) > 0 && !wanted[job.State] {
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// jobFromBatch maps one batch Job to a grid job snapshot
func (p *Provider) jobFromBatch(job *batchv1.Job) model.Job {
	completions := int64(1)
	if job.Spec.Completions != nil {
		completions = int64(*job.Spec.Completions)
	}

	succeeded := int64(job.Status.Succeeded)
	outstanding := completions - succeeded
	if outstanding < 0 {
		outstanding = 0
	}

	return model.Job{
		ID:               job.Name,
		Template:         job.Labels[p.k8sCfg.TemplateLabel],
		State:            batchJobState(job, outstanding),
		CallDurationMs:   avgCallDuration(job),
		TotalCalls:       completions,
		OutstandingCalls: outstanding,
		Allocation:       int64(job.Status.Active),
	}
}

// batchJobState derives the grid state: finished Jobs fall outside scaling
// interest, active pods mean Running, an unfinished Job with no pods is
// Queued.
func batchJobState(job *batchv1.Job, outstanding int64) model.JobState {
	for _, cond := range job.Status.Conditions {
		if cond.Status != corev1.ConditionTrue {
			continue
		}
		if cond.Type == batchv1.JobComplete || cond.Type == batchv1.JobFailed {
			return model.JobStateOther
		}
	}

	if job.Status.Active > 0 {
		return model.JobStateRunning
	}
	if outstanding > 0 {
		return model.JobStateQueued
	}
	return model.JobStateOther
}

// avgCallDuration reads the submitter-provided duration annotation. A
// missing or malformed value reads as 0 and the job contributes no backlog
// estimate.
func avgCallDuration(job *batchv1.Job) float64 {
	raw, ok := job.Annotations[constants.AnnotationAvgCallMs]
	if !ok {
		return 0
	}

	ms, err := strconv.ParseFloat(raw, 64)
	if err != nil || ms < 0 {
		logger.Warnf("job %s has invalid %s annotation %q, ignoring", job.Name, constants.AnnotationAvgCallMs, raw)
		return 0
	}
	return ms
}
