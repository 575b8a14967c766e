package types

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorPredicatesSeeThroughWrapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		is   func(error) bool
	}{
		{"precondition", NewPreconditionError("plugin manifest", "/src/plugin.json"), IsPreconditionError},
		{"merge conflict", NewMergeConflictError("my-panel/module.js"), IsMergeConflictError},
		{"integrity", NewIntegrityError("my-panel-1.2.3.zip", "size 120 below minimum 3000"), IsIntegrityError},
		{"version mismatch", NewVersionMismatchError("abc123", "def456"), IsVersionMismatchError},
		{"already registered", NewAlreadyRegisteredError("dev/my-panel/pr/42/17/index.json"), IsAlreadyRegisteredError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.is(tt.err))
			assert.True(t, tt.is(fmt.Errorf("package stage: %w", tt.err)))
			assert.False(t, tt.is(fmt.Errorf("some other error")))
			assert.False(t, tt.is(nil))
		})
	}
}

func TestErrorPredicatesAreDisjoint(t *testing.T) {
	err := NewMergeConflictError("my-panel/module.js")
	assert.False(t, IsPreconditionError(err))
	assert.False(t, IsIntegrityError(err))
	assert.False(t, IsAlreadyRegisteredError(err))
}

func TestErrorMessages(t *testing.T) {
	assert.EqualError(t,
		NewMergeConflictError("my-panel/module.js"),
		"duplicate files in dist folders: my-panel/module.js")
	assert.EqualError(t,
		NewAlreadyRegisteredError("dev/my-panel/pr/42/17/index.json"),
		"job already registered: dev/my-panel/pr/42/17/index.json")
}

func TestBuildInfoKind(t *testing.T) {
	assert.Equal(t, RunKindPR, BuildInfo{Branch: "feature-x", PR: 42}.Kind())
	assert.Equal(t, RunKindBranch, BuildInfo{Branch: "main"}.Kind())
	assert.False(t, BuildInfo{Branch: "main"}.IsPR())
	assert.True(t, BuildInfo{PR: 1}.IsPR())
}
