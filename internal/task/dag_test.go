package task

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(id string, deps ...string) WorkItem {
	return WorkItem{ID: id, Name: "Task " + id, DependsOn: deps, Priority: PriorityMedium}
}

func TestValidate_NoCycle(t *testing.T) {
	// A -> B -> C (linear, no cycle)
	items := []WorkItem{item("A"), item("B", "A"), item("C", "B")}

	g, err := Validate(items)
	require.NoError(t, err)
	assert.Equal(t, 3, g.Len())
}

func TestValidate_DuplicateID(t *testing.T) {
	_, err := Validate([]WorkItem{item("A"), item("A")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateID))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"A"}, verr.IDs)
}

func TestValidate_SlugCollision(t *testing.T) {
	_, err := Validate([]WorkItem{item("3.2"), item("3_2")})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.Contains(t, err.Error(), "3_2")
}

func TestValidate_EmptyID(t *testing.T) {
	_, err := Validate([]WorkItem{{Name: "Task with no ID"}})
	assert.ErrorIs(t, err, ErrEmptyID)
}

func TestValidate_MissingDependency(t *testing.T) {
	_, err := Validate([]WorkItem{item("A"), item("B", "Z")})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingDependency)
	assert.Contains(t, err.Error(), "Z")
}

func TestValidate_DuplicateCheckedBeforeMissing(t *testing.T) {
	_, err := Validate([]WorkItem{item("A", "Z"), item("A")})
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestValidate_CycleNamesMembers(t *testing.T) {
	// A -> C -> B -> A, with an unrelated D hanging off A
	items := []WorkItem{item("A", "C"), item("B", "A"), item("C", "B"), item("D", "A")}

	_, err := Validate(items)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCycle)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	for _, id := range []string{"A", "B", "C"} {
		assert.Contains(t, verr.IDs, id)
	}
	assert.NotContains(t, verr.IDs, "D")
}

func TestValidate_SelfLoop(t *testing.T) {
	_, err := Validate([]WorkItem{item("A", "A")})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCycle)
	assert.Contains(t, err.Error(), "A -> A")
}

func TestReadySet_EmptyCompletedIsRoots(t *testing.T) {
	items := []WorkItem{item("A"), item("B"), item("C", "A"), item("D", "B"), item("E", "C", "D")}
	g, err := Validate(items)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"A", "B"}, g.ReadySet(nil, nil))
}

func TestReadySet_ExcludesCompletedAndRunning(t *testing.T) {
	items := []WorkItem{item("A"), item("B"), item("C", "A"), item("D", "B")}
	g, err := Validate(items)
	require.NoError(t, err)

	ready := g.ReadySet(map[string]bool{"A": true}, map[string]bool{"B": true})
	assert.Equal(t, []string{"C"}, ready)
}

func TestReadySet_PriorityOrder(t *testing.T) {
	low := item("low")
	low.Priority = PriorityLow
	crit := item("crit")
	crit.Priority = PriorityCritical
	g := NewGraph([]WorkItem{low, item("mid"), crit})

	assert.Equal(t, []string{"crit", "mid", "low"}, g.ReadySet(nil, nil))
}

func TestReadySet_DoesNotMutateInputs(t *testing.T) {
	g := NewGraph([]WorkItem{item("A"), item("B", "A")})
	completed := map[string]bool{"A": true}
	_ = g.ReadySet(completed, nil)
	assert.Equal(t, map[string]bool{"A": true}, completed)
}

func TestTopologicalOrder_LinearDependencies(t *testing.T) {
	// C depends on B, B depends on A
	items := []WorkItem{item("C", "B"), item("A"), item("B", "A")}
	g, err := Validate(items)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C"}, g.TopologicalOrder())
}

func TestTopologicalOrder_Diamond(t *testing.T) {
	items := []WorkItem{item("D", "B", "C"), item("B", "A"), item("C", "A"), item("A")}
	g, err := Validate(items)
	require.NoError(t, err)

	pos := map[string]int{}
	for i, id := range g.TopologicalOrder() {
		pos[id] = i
	}
	assert.Less(t, pos["A"], pos["B"])
	assert.Less(t, pos["A"], pos["C"])
	assert.Less(t, pos["B"], pos["D"])
	assert.Less(t, pos["C"], pos["D"])
}

func TestGraph_DependentsAndTransitive(t *testing.T) {
	items := []WorkItem{item("A"), item("B"), item("C", "A"), item("D", "B"), item("E", "C", "D")}
	g, err := Validate(items)
	require.NoError(t, err)

	assert.Equal(t, []string{"C"}, g.Dependents("A"))
	assert.Equal(t, []string{"A", "B", "C", "D"}, g.TransitiveDependencies("E"))
}
