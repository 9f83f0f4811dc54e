package mysql

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDriverConfig(t *testing.T) {
	t.Run("found rows mode is turned off", func(t *testing.T) {
		cfg, err := driverConfig("ingest:secret@tcp(db:3306)/events?clientFoundRows=true&parseTime=false")
		require.NoError(t, err)

		assert.False(t, cfg.ClientFoundRows)
		assert.True(t, cfg.ParseTime)
		assert.Equal(t, time.UTC, cfg.Loc)
		assert.NotContains(t, cfg.FormatDSN(), "clientFoundRows")
	})

	t.Run("unparsable dsn is rejected", func(t *testing.T) {
		_, err := driverConfig("not a dsn")
		assert.Error(t, err)
	})
}
