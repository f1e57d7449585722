package terminology

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinlab/amrclassify/internal/domain"
)

func testNormalizer(t *testing.T, oracle Oracle) *Normalizer {
	t.Helper()
	n, err := New(Config{
		OrganismCodes: map[CodeSystem]map[string]string{
			SNOMEDCT: {"112283007": "Escherichia coli"},
		},
		OrganismAliases: map[string]string{
			"e coli":  "Escherichia coli",
			"e. coli": "Escherichia coli",
		},
		AntibioticAliases: map[string]string{
			"ceftriaxone": "ceftriaxone",
		},
		Oracle:    oracle,
		CacheSize: 64,
	}, nil)
	require.NoError(t, err)
	return n
}

func TestResolveOrganism_CodedValueHit(t *testing.T) {
	n := testNormalizer(t, nil)
	key := n.ResolveOrganism(context.Background(), CodedValue{System: SNOMEDCT, Code: "112283007"})
	assert.Equal(t, domain.OrganismKey("escherichia coli"), key)
}

func TestResolveOrganism_AliasHit(t *testing.T) {
	n := testNormalizer(t, nil)
	key := n.ResolveOrganism(context.Background(), CodedValue{Display: "E. coli"})
	assert.Equal(t, domain.OrganismKey("escherichia coli"), key)
}

func TestResolveOrganism_UnresolvedWithoutOracle(t *testing.T) {
	n := testNormalizer(t, nil)
	key := n.ResolveOrganism(context.Background(), CodedValue{Display: "Unknownococcus weirdii"})
	assert.Equal(t, domain.UnresolvedOrganism, key)
}

func TestResolveOrganism_EmptyDisplayUnresolved(t *testing.T) {
	n := testNormalizer(t, nil)
	key := n.ResolveOrganism(context.Background(), CodedValue{})
	assert.Equal(t, domain.UnresolvedOrganism, key)
}

type stubOracle struct {
	canonical string
	valid     bool
	err       error
	calls     int
}

func (s *stubOracle) ValidateCode(ctx context.Context, system CodeSystem, code, display string) (string, string, bool, error) {
	s.calls++
	return s.canonical, display, s.valid, s.err
}

func TestResolveOrganism_OracleResolves(t *testing.T) {
	oracle := &stubOracle{canonical: "klebsiella pneumoniae", valid: true}
	n := testNormalizer(t, oracle)
	key := n.ResolveOrganism(context.Background(), CodedValue{Display: "Klebsiella pneumoniae ssp pneumoniae"})
	assert.Equal(t, domain.OrganismKey("klebsiella pneumoniae"), key)
	assert.Equal(t, 1, oracle.calls)
}

func TestResolveOrganism_OracleResultIsCached(t *testing.T) {
	oracle := &stubOracle{canonical: "klebsiella pneumoniae", valid: true}
	n := testNormalizer(t, oracle)
	ctx := context.Background()
	first := n.ResolveOrganism(ctx, CodedValue{Display: "Klebsiella pneumoniae ssp pneumoniae"})
	second := n.ResolveOrganism(ctx, CodedValue{Display: "Klebsiella pneumoniae ssp pneumoniae"})
	assert.Equal(t, first, second)
	assert.Equal(t, 1, oracle.calls, "second lookup must hit the cache, not the oracle")
}

func TestResolveOrganism_OracleUnresolvedIsCachedNegative(t *testing.T) {
	oracle := &stubOracle{valid: false}
	n := testNormalizer(t, oracle)
	ctx := context.Background()
	first := n.ResolveOrganism(ctx, CodedValue{Display: "Totally unknown organism"})
	second := n.ResolveOrganism(ctx, CodedValue{Display: "Totally unknown organism"})
	assert.Equal(t, domain.UnresolvedOrganism, first)
	assert.Equal(t, domain.UnresolvedOrganism, second)
	assert.Equal(t, 1, oracle.calls)
}

func TestResolveAntibiotic_AliasHit(t *testing.T) {
	n := testNormalizer(t, nil)
	key := n.ResolveAntibiotic(context.Background(), CodedValue{Display: "Ceftriaxone"})
	assert.Equal(t, domain.AntibioticKey("ceftriaxone"), key)
}
