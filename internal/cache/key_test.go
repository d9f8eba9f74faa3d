package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMakeKeyDeterministicForEqualMaps(t *testing.T) {
	a := map[string]interface{}{"status": "planned", "progress": "10%"}
	b := map[string]interface{}{"progress": "10%", "status": "planned"}
	assert.Equal(t, MakeKey("compare", a, a), MakeKey("compare", b, b))
}

func TestMakeKeyDiffersForDifferentValues(t *testing.T) {
	a := map[string]interface{}{"status": "planned"}
	b := map[string]interface{}{"status": "blocked"}
	assert.NotEqual(t, MakeKey("compare", a), MakeKey("compare", b))
}

func TestMakeKeyIsStableAcrossCalls(t *testing.T) {
	a := map[string]interface{}{"status": "planned"}
	k1 := MakeKey("compare", a)
	k2 := MakeKey("compare", a)
	assert.Equal(t, k1, k2)
}
