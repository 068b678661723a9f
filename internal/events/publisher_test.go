package events

import (
	"testing"

	"github.com/saan-system/routeplanner/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestPlanUpdateEventType_ReplanGetsItsOwnTopic(t *testing.T) {
	assert.Equal(t, "plan.replanned", planUpdateEventType(domain.PlanUpdate{ReplanTriggered: true}))
	assert.Equal(t, "plan.update_applied", planUpdateEventType(domain.PlanUpdate{ReplanTriggered: false}))
}
