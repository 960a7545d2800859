package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ogurasousui/personnel-backoffice/internal/core/record"
)

func TestGraph_ClosureIsTransitiveAndTerminates(t *testing.T) {
	t.Parallel()

	g := NewGraph()
	g.Declare(record.KindSanction, record.KindAbsence)
	g.Declare(record.KindSanction, record.KindAbsence)
	g.Declare(record.KindAbsence, record.KindCommission)
	g.Declare(record.KindCommission, record.KindSanction)
	g.Declare(record.KindUnit, record.KindUnit)

	assert.Equal(t, []record.Kind{record.KindAbsence}, g.Dependents(record.KindSanction))
	assert.Equal(t,
		[]record.Kind{record.KindSanction, record.KindAbsence, record.KindCommission},
		g.Closure(record.KindSanction))
	assert.Equal(t, []record.Kind{record.KindUnit}, g.Closure(record.KindUnit))
	assert.Empty(t, g.Dependents(record.KindUnit))
}

func TestGraphFromEffects(t *testing.T) {
	t.Parallel()

	g := GraphFromEffects(
		declaredEffect{source: record.KindSanction, target: record.KindAbsence},
		declaredEffect{source: record.KindDestinationChange, target: record.KindPositionAssignment},
	)

	assert.Equal(t, []record.Kind{record.KindAbsence}, g.Dependents(record.KindSanction))
	assert.Equal(t, []record.Kind{record.KindPositionAssignment}, g.Dependents(record.KindDestinationChange))
	assert.Empty(t, g.Dependents(record.KindAbsence))
}
