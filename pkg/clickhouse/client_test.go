package clickhouse

import (
	"testing"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildOptions(t *testing.T) {
	cfg := ClientConfig{
		Host:         "ch.local",
		Port:         8123,
		Database:     "emerald",
		User:         "agent",
		Password:     "secret",
		UseHTTP:      true,
		AsyncInsert:  true,
		WaitForAsync: true,
		MaxExecTime:  30 * time.Second,
		DialTimeout:  time.Second,
	}

	o := buildOptions(cfg)

	assert.Equal(t, []string{"ch.local:8123"}, o.Addr)
	assert.Equal(t, ch.HTTP, o.Protocol)
	assert.Equal(t, "emerald", o.Auth.Database)
	assert.Equal(t, "agent", o.Auth.Username)
	assert.Equal(t, 30, o.Settings["max_execution_time"])
	assert.Equal(t, 1, o.Settings["async_insert"])
	assert.Equal(t, 1, o.Settings["wait_for_async_insert"])
	assert.Equal(t, time.Second, o.DialTimeout)
}

func TestBuildOptionsNative(t *testing.T) {
	o := buildOptions(ClientConfig{Host: "::1", Port: 9000})
	assert.Equal(t, ch.Native, o.Protocol)
	assert.Equal(t, []string{"[::1]:9000"}, o.Addr)
	assert.Empty(t, o.Settings)
}

func TestNewClientRequiresHost(t *testing.T) {
	_, err := NewClient()
	assert.Error(t, err)
}

func TestNewClientSkipPing(t *testing.T) {
	c, err := NewClient(WithHost("127.0.0.1"), WithPort(1), WithSkipPing(true))
	require.NoError(t, err)
	require.NotNil(t, c.DB())
	assert.NoError(t, c.Close())
}
