package normalize

import (
	"strings"

	"github.com/meetgraph/meetgraph/internal/models"
)

// canonicalRelationships maps a canonical relationship type to every accepted
// input variation, ported from the source system's alias table.
var canonicalRelationships = map[models.RelationshipType][]string{
	models.RelOwns:             {"owns", "owner", "owned_by", "has_ownership"},
	models.RelWorksOn:          {"works_on", "working_on", "assigned", "assigned_to", "working"},
	models.RelAssignedTo:       {"assigned_to", "assigned", "responsible", "tasked_with"},
	models.RelResponsibleFor:   {"responsible_for", "responsible", "accountable", "in_charge_of"},
	models.RelDependsOn:        {"depends_on", "depends", "dependent_on", "requires", "needs", "prerequisite", "reliant_on"},
	models.RelBlocks:           {"blocks", "blocking", "blocker", "prevents", "impedes"},
	models.RelReportsTo:        {"reports_to", "reports", "managed_by", "supervised_by"},
	models.RelIncludes:         {"includes", "contains", "has", "comprises", "encompasses"},
	models.RelCollaboratesWith: {"collaborates_with", "collaborates", "works_with", "partners_with", "teams_with"},
	models.RelRelatesTo:        {"relates_to", "related_to", "relates", "related", "connected_to", "associated_with"},
	models.RelMentionedIn:      {"mentioned_in", "mentioned", "referenced_in", "cited_in"},
}

var relationshipMapping = buildRelationshipReverse()

func buildRelationshipReverse() map[string]models.RelationshipType {
	m := make(map[string]models.RelationshipType)
	for canonical, variants := range canonicalRelationships {
		for _, v := range variants {
			m[v] = canonical
		}
	}
	return m
}

// RelationshipType normalizes a free-text relationship label to its
// canonical enum value, defaulting to RelRelatesTo when nothing matches.
func RelationshipType(value string) models.RelationshipType {
	if value == "" {
		return models.RelRelatesTo
	}
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	normalized = strings.ReplaceAll(normalized, " ", "_")

	if models.ValidRelationshipTypes[models.RelationshipType(normalized)] {
		return models.RelationshipType(normalized)
	}
	if canon, ok := relationshipMapping[normalized]; ok {
		return canon
	}
	return models.RelRelatesTo
}

// IsValidRelationshipType reports whether a value normalizes to a member of
// the closed enum (always true given RelationshipType's default fallback,
// kept for parity with the source system's explicit validity check).
func IsValidRelationshipType(value string) bool {
	return models.ValidRelationshipTypes[RelationshipType(value)]
}
