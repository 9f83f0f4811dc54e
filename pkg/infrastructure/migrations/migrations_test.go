package migrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMigrationVersionsAreUniqueAndOrdered(t *testing.T) {
	var previous int64
	for _, builder := range builderFunctions {
		migration := builder(nil)
		assert.Greater(t, migration.Version(), previous)
		assert.NotEmpty(t, migration.Description())
		previous = migration.Version()
	}
}
