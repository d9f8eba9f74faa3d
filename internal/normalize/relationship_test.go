package normalize

import (
	"testing"

	"github.com/meetgraph/meetgraph/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestRelationshipTypeCanonicalizesAliases(t *testing.T) {
	cases := map[string]models.RelationshipType{
		"owner":          models.RelOwns,
		"owned_by":       models.RelOwns,
		"working_on":     models.RelWorksOn,
		"depends":        models.RelDependsOn,
		"blocking":       models.RelBlocks,
		"reports":        models.RelReportsTo,
		"contains":       models.RelIncludes,
		"works_with":     models.RelCollaboratesWith,
		"related_to":     models.RelRelatesTo,
		"referenced_in":  models.RelMentionedIn,
		"unknown-made-up": models.RelRelatesTo,
		"":               models.RelRelatesTo,
	}
	for in, want := range cases {
		assert.Equal(t, want, RelationshipType(in), "input=%q", in)
	}
}

func TestRelationshipTypeAcceptsSeparatorVariants(t *testing.T) {
	assert.Equal(t, models.RelDependsOn, RelationshipType("depends-on"))
	assert.Equal(t, models.RelDependsOn, RelationshipType("depends on"))
	assert.Equal(t, models.RelDependsOn, RelationshipType("DEPENDS_ON"))
}

func TestIsValidRelationshipTypeAlwaysTrue(t *testing.T) {
	assert.True(t, IsValidRelationshipType("nonsense"))
	assert.True(t, IsValidRelationshipType("owns"))
}
