package repository

import (
	"strings"
	"testing"
	"time"

	"EmeraldAgent/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAttemptInsert(t *testing.T) {
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.FixedZone("ICT", 7*3600))
	recs := []models.AttemptRecord{
		{RequestID: "r1", Symbol: "BTC", Strategy: "compiled", Outcome: "non_zero_exit", ExitCode: 1, StartedAt: started, Duration: 1500 * time.Millisecond},
		{RequestID: "r1", Symbol: "BTC", Strategy: "interpreted", Outcome: "ok", StartedAt: started.Add(2 * time.Second), Duration: 3 * time.Second},
		{RequestID: "r1"}, // no strategy, skipped
	}

	q, args := buildAttemptInsert("emerald.engine_attempts", recs)

	assert.True(t, strings.HasPrefix(q, "INSERT INTO emerald.engine_attempts (started_at, request_id, symbol, strategy, outcome, exit_code, duration_ms) VALUES "))
	assert.Equal(t, 2, strings.Count(q, "(?, ?, ?, ?, ?, ?, ?)"))
	require.Len(t, args, 2*attemptColumns)
	assert.Equal(t, started.UTC(), args[0])
	assert.Equal(t, "compiled", args[3])
	assert.Equal(t, int32(1), args[5])
	assert.Equal(t, uint64(1500), args[6])
	assert.Equal(t, "ok", args[attemptColumns+4])
}

func TestBuildAttemptInsertEmpty(t *testing.T) {
	q, args := buildAttemptInsert("t", nil)
	assert.Empty(t, q)
	assert.Nil(t, args)
}

func TestTableNameIsSanitised(t *testing.T) {
	q, _ := buildAttemptInsert("attempts; DROP TABLE x", []models.AttemptRecord{{Strategy: "compiled"}})
	assert.Contains(t, q, "INSERT INTO attemptsDROPTABLEx ")
	assert.Contains(t, AttemptSchema("db.attempts")[0], "CREATE TABLE IF NOT EXISTS db.attempts")
}
