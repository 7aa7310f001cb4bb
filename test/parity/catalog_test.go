package parity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCatalogHasNoMissingScenarios(t *testing.T) {
	s := requireSuite(t)
	c := s.Consistency()
	assert.Empty(t, c.MissingScenarios, c.MissingReport())
}

func TestCatalogHasNoOrphanScenarios(t *testing.T) {
	s := requireSuite(t)
	c := s.Consistency()
	assert.Empty(t, c.OrphanScenarios, c.OrphanReport())
}

func TestRequestedComponentsExist(t *testing.T) {
	s := requireSuite(t)
	if len(s.Components) == 0 {
		t.Skip("no components requested, running all scenarios")
	}
	c := s.Consistency()
	assert.Empty(t, c.UnknownRequested, c.UnknownReport())
}
