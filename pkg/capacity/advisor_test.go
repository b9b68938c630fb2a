package capacity

import (
	"context"
	"fmt"
	"testing"

	"gridpool/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cannedChecker serves fixed spot observations keyed by instance type.
type cannedChecker struct {
	infos map[string]*SpotInfo
	errs  map[string]error
}

func (c *cannedChecker) CheckInstanceType(ctx context.Context, instanceType string) (*SpotInfo, error) {
	if err, ok := c.errs[instanceType]; ok {
		return nil, err
	}
	info, ok := c.infos[instanceType]
	if !ok {
		return nil, fmt.Errorf("unexpected instance type %s", instanceType)
	}
	return info, nil
}

func TestAdvisor_PicksBestInstanceTypePerTemplate(t *testing.T) {
	checker := &cannedChecker{
		infos: map[string]*SpotInfo{
			"c5.4xlarge":  {InstanceType: "c5.4xlarge", Score: 4, Price: 0.32},
			"c6i.4xlarge": {InstanceType: "c6i.4xlarge", Score: 8, Price: 0.36},
			"r5.2xlarge":  {InstanceType: "r5.2xlarge", Score: 6, Price: 0.21},
			"r6i.2xlarge": {InstanceType: "r6i.2xlarge", Score: 6, Price: 0.18},
		},
	}
	advisor := NewAdvisor(checker, []config.CapacityTemplate{
		{Name: "compute", InstanceTypes: []string{"c5.4xlarge", "c6i.4xlarge"}},
		{Name: "highmem", InstanceTypes: []string{"r5.2xlarge", "r6i.2xlarge"}},
	})

	err := advisor.Refresh(context.Background())
	require.NoError(t, err)

	// Highest score wins.
	adv, ok := advisor.Advisory("compute")
	require.True(t, ok)
	assert.Equal(t, "c6i.4xlarge", adv.InstanceType)
	assert.Equal(t, 8, adv.Score)

	// Equal scores fall back to the cheaper type.
	adv, ok = advisor.Advisory("highmem")
	require.True(t, ok)
	assert.Equal(t, "r6i.2xlarge", adv.InstanceType)
	assert.InDelta(t, 0.18, adv.Price, 1e-9)
}

func TestAdvisor_SkipsFailedLookups(t *testing.T) {
	checker := &cannedChecker{
		infos: map[string]*SpotInfo{
			"c6i.4xlarge": {InstanceType: "c6i.4xlarge", Score: 7, Price: 0.36},
		},
		errs: map[string]error{
			"c5.4xlarge": fmt.Errorf("throttled"),
		},
	}
	advisor := NewAdvisor(checker, []config.CapacityTemplate{
		{Name: "compute", InstanceTypes: []string{"c5.4xlarge", "c6i.4xlarge"}},
	})

	err := advisor.Refresh(context.Background())
	require.NoError(t, err)

	adv, ok := advisor.Advisory("compute")
	require.True(t, ok)
	assert.Equal(t, "c6i.4xlarge", adv.InstanceType)
}

func TestAdvisor_AllChecksFailedIsAnError(t *testing.T) {
	checker := &cannedChecker{
		errs: map[string]error{
			"c5.4xlarge": fmt.Errorf("throttled"),
		},
	}
	advisor := NewAdvisor(checker, []config.CapacityTemplate{
		{Name: "compute", InstanceTypes: []string{"c5.4xlarge"}},
	})

	err := advisor.Refresh(context.Background())
	require.Error(t, err)

	_, ok := advisor.Advisory("compute")
	assert.False(t, ok, "failed refresh must not fabricate advisories")
}

func TestAdvisor_AllIsSortedByTemplate(t *testing.T) {
	checker := &cannedChecker{
		infos: map[string]*SpotInfo{
			"c6i.4xlarge": {InstanceType: "c6i.4xlarge", Score: 7},
			"r6i.2xlarge": {InstanceType: "r6i.2xlarge", Score: 6},
		},
	}
	advisor := NewAdvisor(checker, []config.CapacityTemplate{
		{Name: "highmem", InstanceTypes: []string{"r6i.2xlarge"}},
		{Name: "compute", InstanceTypes: []string{"c6i.4xlarge"}},
	})

	require.NoError(t, advisor.Refresh(context.Background()))

	all := advisor.All()
	require.Len(t, all, 2)
	assert.Equal(t, "compute", all[0].Template)
	assert.Equal(t, "highmem", all[1].Template)
}

func TestAdvisor_NoTemplatesIsANoop(t *testing.T) {
	advisor := NewAdvisor(&cannedChecker{}, nil)
	assert.NoError(t, advisor.Refresh(context.Background()))
	assert.Empty(t, advisor.All())
}
