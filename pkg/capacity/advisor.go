package capacity

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gridpool/pkg/config"
	"gridpool/pkg/logger"
)

// Advisory is the cached spot-market guidance for one node template: the
// instance type currently easiest to obtain among the types backing it.
// Advisory data never changes a scaling decision, it only informs operators.
type Advisory struct {
	Template     string    `json:"template"`
	InstanceType string    `json:"instance_type"`
	Score        int       `json:"score"` // 1-10, higher is easier to obtain
	Price        float64   `json:"price"` // USD/hour, 0 when unknown
	UpdatedAt    time.Time `json:"updated_at"`
}

// spotChecker is the subset of AWSSpotChecker the advisor needs; tests
// substitute a canned implementation.
type spotChecker interface {
	CheckInstanceType(ctx context.Context, instanceType string) (*SpotInfo, error)
}

// Advisor keeps a periodically refreshed advisory per configured node
// template.
type Advisor struct {
	checker   spotChecker
	templates []config.CapacityTemplate

	mu    sync.RWMutex
	cache map[string]Advisory
}

// NewAdvisor creates an advisor over the configured template mappings
func NewAdvisor(checker spotChecker, templates []config.CapacityTemplate) *Advisor {
	return &Advisor{
		checker:   checker,
		templates: templates,
		cache:     make(map[string]Advisory),
	}
}

// Refresh re-queries the spot market for every configured template and
// keeps the best instance type per template: highest score, then lowest
// price. Individual lookup failures are skipped; the refresh fails only
// when nothing could be fetched at all.
func (a *Advisor) Refresh(ctx context.Context) error {
	if len(a.templates) == 0 {
		return nil
	}

	checked := 0
	for _, tmpl := range a.templates {
		var best *SpotInfo
		for _, instanceType := range tmpl.InstanceTypes {
			info, err := a.checker.CheckInstanceType(ctx, instanceType)
			if err != nil {
				continue
			}
			checked++
			if best == nil ||
				info.Score > best.Score ||
				(info.Score == best.Score && info.Price > 0 && (best.Price == 0 || info.Price < best.Price)) {
				best = info
			}
		}

		if best == nil {
			logger.WarnCtx(ctx, "no spot data available for template %s", tmpl.Name)
			continue
		}

		advisory := Advisory{
			Template:     tmpl.Name,
			InstanceType: best.InstanceType,
			Score:        best.Score,
			Price:        best.Price,
			UpdatedAt:    time.Now(),
		}

		a.mu.Lock()
		a.cache[tmpl.Name] = advisory
		a.mu.Unlock()

		logger.DebugCtx(ctx, "capacity advisory refreshed for template %s: %s score=%d price=%.4f",
			tmpl.Name, advisory.InstanceType, advisory.Score, advisory.Price)
	}

	if checked == 0 {
		return fmt.Errorf("all spot capacity checks failed")
	}
	return nil
}

// Advisory returns the cached guidance for one template
func (a *Advisor) Advisory(template string) (Advisory, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	adv, ok := a.cache[template]
	return adv, ok
}

// All returns every cached advisory sorted by template name
func (a *Advisor) All() []Advisory {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]Advisory, 0, len(a.cache))
	for _, adv := range a.cache {
		out = append(out, adv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Template < out[j].Template })
	return out
}
