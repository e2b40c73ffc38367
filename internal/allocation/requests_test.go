package allocation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func named(id, first, surname string) Student {
	return Student{ID: id, FirstName: first, Surname: surname, FullName: first + " " + surname, PriorClass: "7A"}
}

func TestResolveRequestsPrefixMatch(t *testing.T) {
	alice := named("1", "Alice", "Ng")
	alice.PairRequest = "B"
	bob := named("2", "Bob", "Smith")

	ledger := ResolveRequests([]Student{alice, bob})
	require.Len(t, ledger.Pairs, 1)
	assert.Equal(t, [2]string{"Alice Ng", "Bob Smith"}, ledger.Pairs[0].Students)
	assert.Empty(t, ledger.Separations)
}

func TestResolveRequestsAmbiguousPrefixTakesPopulationOrder(t *testing.T) {
	alice := named("1", "Alice", "Ng")
	alice.PairRequest = "b"
	jones := named("2", "Bob", "Jones")
	smith := named("3", "Bob", "Smith")

	ledger := ResolveRequests([]Student{alice, smith, jones})
	require.Len(t, ledger.Pairs, 1)
	assert.Equal(t, "Bob Smith", ledger.Pairs[0].Other("Alice Ng"))

	ledger = ResolveRequests([]Student{alice, jones, smith})
	require.Len(t, ledger.Pairs, 1)
	assert.Equal(t, "Bob Jones", ledger.Pairs[0].Other("Alice Ng"))
}

func TestResolveRequestsExactBeatsPrefix(t *testing.T) {
	requester := named("1", "Zed", "Ray")
	requester.SeparateRequest = "tom lee"
	longer := named("2", "Tom", "Leeson")
	exact := named("3", "Tom", "Lee")

	ledger := ResolveRequests([]Student{requester, longer, exact})
	require.Len(t, ledger.Separations, 1)
	assert.Equal(t, "Tom Lee", ledger.Separations[0].Other("Zed Ray"))
}

func TestResolveRequestsSplitsFragments(t *testing.T) {
	a := named("1", "Ann", "Lo")
	a.PairRequest = "Ben Ho, Cat Wu & nobody here; "
	a.SeparateRequest = "Dan;Ann Lo"
	b := named("2", "Ben", "Ho")
	c := named("3", "Cat", "Wu")
	d := named("4", "Dan", "Ma")

	ledger := ResolveRequests([]Student{a, b, c, d})
	require.Len(t, ledger.Pairs, 2)
	assert.Equal(t, "Ben Ho", ledger.Pairs[0].Other("Ann Lo"))
	assert.Equal(t, "Cat Wu", ledger.Pairs[1].Other("Ann Lo"))
	require.Len(t, ledger.Separations, 1, "self reference must be dropped")
	assert.True(t, ledger.Separated("Dan Ma", "Ann Lo"))
}

func TestResolveRequestsDeduplicatesSymmetricRequests(t *testing.T) {
	a := named("1", "Ann", "Lo")
	a.PairRequest = "Ben Ho"
	a.SeparateRequest = "Ben Ho"
	b := named("2", "Ben", "Ho")
	b.PairRequest = "Ann"

	ledger := ResolveRequests([]Student{a, b})
	assert.Len(t, ledger.Pairs, 1)
	assert.Len(t, ledger.Separations, 1, "pair and separation are tracked per kind")
}

func TestLedgerIndexRebuiltAfterDecode(t *testing.T) {
	ledger := Ledger{Separations: []Request{{Kind: RequestSeparate, Students: [2]string{"A", "B"}}}}
	assert.True(t, ledger.Separated("B", "A"))
	assert.Equal(t, []string{"A"}, ledger.SeparatedFrom("B"))
}
