package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLocatorConfig(root string) LocatorConfig {
	return LocatorConfig{
		RootDir:     root,
		Compiled:    Runner{Runtime: "node", Entry: "dist/agent_engine/services/decisionService.js"},
		Interpreted: Runner{Runtime: "npx", Args: []string{"ts-node"}, Entry: "agent_engine/services/decisionService.ts"},
	}
}

func TestLocatorWithoutArtifact(t *testing.T) {
	root := t.TempDir()
	strategies := NewLocator(testLocatorConfig(root)).ResolveStrategies()

	require.Len(t, strategies, 1)
	s := strategies[0]
	assert.Equal(t, StrategyInterpreted, s.Kind)
	assert.Equal(t, "npx", s.Command)
	wantEntry := filepath.Join(root, "agent_engine/services/decisionService.ts")
	assert.Equal(t, []string{"ts-node", wantEntry}, s.Args)
	assert.Equal(t, wantEntry, s.Entry)
}

func TestLocatorWithArtifact(t *testing.T) {
	root := t.TempDir()
	artifact := filepath.Join(root, "dist/agent_engine/services/decisionService.js")
	require.NoError(t, os.MkdirAll(filepath.Dir(artifact), 0o755))
	require.NoError(t, os.WriteFile(artifact, []byte("// built"), 0o644))

	strategies := NewLocator(testLocatorConfig(root)).ResolveStrategies()

	require.Len(t, strategies, 2)
	assert.Equal(t, StrategyCompiled, strategies[0].Kind)
	assert.Equal(t, "node", strategies[0].Command)
	assert.Equal(t, []string{artifact}, strategies[0].Args)
	assert.Equal(t, StrategyInterpreted, strategies[1].Kind)
}

func TestLocatorIgnoresArtifactDirectory(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "dist/agent_engine/services/decisionService.js"), 0o755))

	strategies := NewLocator(testLocatorConfig(root)).ResolveStrategies()
	require.Len(t, strategies, 1)
	assert.Equal(t, StrategyInterpreted, strategies[0].Kind)
}

func TestLocatorAbsoluteEntry(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "engine.ts")
	cfg := testLocatorConfig(t.TempDir())
	cfg.Interpreted.Entry = abs

	strategies := NewLocator(cfg).ResolveStrategies()
	require.Len(t, strategies, 1)
	assert.Equal(t, abs, strategies[0].Entry)
}

func TestCatalogAvailable(t *testing.T) {
	root := t.TempDir()
	cat := NewCatalog(NewLocator(testLocatorConfig(root)), NewInvoker(root))
	assert.Equal(t, []string{"interpreted"}, cat.Available())

	artifact := filepath.Join(root, "dist/agent_engine/services/decisionService.js")
	require.NoError(t, os.MkdirAll(filepath.Dir(artifact), 0o755))
	require.NoError(t, os.WriteFile(artifact, nil, 0o644))

	assert.Equal(t, []string{"compiled", "interpreted"}, cat.Available())
	engines := cat.Engines()
	require.Len(t, engines, 2)
	assert.Equal(t, "compiled", engines[0].Strategy())
	assert.Equal(t, "interpreted", engines[1].Strategy())
}
