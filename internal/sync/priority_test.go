package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wc-salesforce-sync/internal/store"
)

func rel(toObject string, requires ...string) *store.Relationship {
	r := &store.Relationship{FromObject: "Order", ToObject: toObject, Active: true}
	for _, name := range requires {
		r.RequiredObjects = append(r.RequiredObjects, store.RequiredObject{Name: name, Label: name, ID: name + "Id"})
	}
	return r
}

func targets(rels []*store.Relationship) []string {
	out := make([]string, len(rels))
	for i, r := range rels {
		out[i] = r.ToObject
	}
	return out
}

func TestPrioritize_StableWithoutDependencies(t *testing.T) {
	rels := []*store.Relationship{rel("Account"), rel("Contact"), rel("Opportunity")}

	assert.Equal(t, []string{"Account", "Contact", "Opportunity"}, targets(Prioritize(rels)))

	sorted, err := PrioritizeGraph(rels)
	require.NoError(t, err)
	assert.Equal(t, []string{"Account", "Contact", "Opportunity"}, targets(sorted))
}

func TestPrioritize_SingleDependency(t *testing.T) {
	rels := []*store.Relationship{rel("Contact", "Account"), rel("Note"), rel("Account")}

	assert.Equal(t, []string{"Note", "Account", "Contact"}, targets(Prioritize(rels)))

	sorted, err := PrioritizeGraph(rels)
	require.NoError(t, err)
	assert.Equal(t, []string{"Note", "Account", "Contact"}, targets(sorted))
}

func TestPrioritize_DoesNotMutateInput(t *testing.T) {
	rels := []*store.Relationship{rel("Contact", "Account"), rel("Account")}

	Prioritize(rels)

	assert.Equal(t, []string{"Contact", "Account"}, targets(rels))
}

func TestPrioritize_RequirementWithoutRelationshipIsIgnored(t *testing.T) {
	rels := []*store.Relationship{rel("Order", "Pricebook2"), rel("Account")}

	assert.Equal(t, []string{"Order", "Account"}, targets(Prioritize(rels)))
}

// A single pass does not settle chains that are listed back to front.
func TestPrioritize_ChainIsNotFullySorted(t *testing.T) {
	rels := []*store.Relationship{rel("OrderItem", "Order"), rel("Order", "Account"), rel("Account")}

	assert.Equal(t, []string{"OrderItem", "Account", "Order"}, targets(Prioritize(rels)))

	sorted, err := PrioritizeGraph(rels)
	require.NoError(t, err)
	assert.Equal(t, []string{"Account", "Order", "OrderItem"}, targets(sorted))
}

func TestPrioritizeGraph_Cycle(t *testing.T) {
	rels := []*store.Relationship{rel("Account", "Contact"), rel("Contact", "Account"), rel("Note")}

	_, err := PrioritizeGraph(rels)
	assert.ErrorIs(t, err, ErrDependencyCycle)
	assert.Contains(t, err.Error(), "Account, Contact")

	assert.Len(t, Prioritize(rels), 3)
}

func TestOrder_SelectsMode(t *testing.T) {
	rels := []*store.Relationship{rel("OrderItem", "Order"), rel("Order", "Account"), rel("Account")}

	legacy, err := order(OrderingLegacy, rels)
	require.NoError(t, err)
	assert.Equal(t, targets(Prioritize(rels)), targets(legacy))

	graph, err := order(OrderingGraph, rels)
	require.NoError(t, err)
	assert.Equal(t, []string{"Account", "Order", "OrderItem"}, targets(graph))
}
