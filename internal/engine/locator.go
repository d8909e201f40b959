package engine

import (
	"os"
	"path/filepath"
)

// StrategyKind identifies an execution path of the decision engine.
type StrategyKind string

const (
	StrategyCompiled    StrategyKind = "compiled"
	StrategyInterpreted StrategyKind = "interpreted"
)

// Strategy is one launchable form of the engine.
type Strategy struct {
	Kind    StrategyKind
	Command string
	Args    []string
	// Entry is the artifact or source file the command runs. Checked before launch.
	Entry string
}

// Runner describes how to start one strategy: runtime executable, its leading
// arguments and the entry file appended after them.
type Runner struct {
	Runtime string
	Args    []string
	Entry   string
}

// LocatorConfig holds the configured engine locations.
type LocatorConfig struct {
	RootDir     string
	Compiled    Runner
	Interpreted Runner
}

// Locator resolves which strategies can be attempted. It only stats files and is
// safe for concurrent use.
type Locator struct {
	cfg LocatorConfig
}

// NewLocator makes RootDir absolute so entry paths stay valid once the child
// runs with RootDir as its working directory.
func NewLocator(cfg LocatorConfig) *Locator {
	cfg.RootDir = absDir(cfg.RootDir)
	return &Locator{cfg: cfg}
}

// RootDir returns the directory engines run in.
func (l *Locator) RootDir() string { return l.cfg.RootDir }

// ResolveStrategies returns the compiled strategy when its artifact exists,
// followed by the interpreted strategy, which is always attempted.
func (l *Locator) ResolveStrategies() []Strategy {
	out := make([]Strategy, 0, 2)
	if l.cfg.Compiled.Entry != "" {
		artifact := l.resolve(l.cfg.Compiled.Entry)
		if fi, err := os.Stat(artifact); err == nil && fi.Mode().IsRegular() {
			out = append(out, l.strategy(StrategyCompiled, l.cfg.Compiled, artifact))
		}
	}
	out = append(out, l.strategy(StrategyInterpreted, l.cfg.Interpreted, l.resolve(l.cfg.Interpreted.Entry)))
	return out
}

func (l *Locator) strategy(kind StrategyKind, r Runner, entry string) Strategy {
	args := make([]string, 0, len(r.Args)+1)
	args = append(args, r.Args...)
	if entry != "" {
		args = append(args, entry)
	}
	return Strategy{Kind: kind, Command: r.Runtime, Args: args, Entry: entry}
}

func (l *Locator) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || l.cfg.RootDir == "" {
		return p
	}
	return filepath.Join(l.cfg.RootDir, p)
}

func absDir(dir string) string {
	if dir == "" {
		return dir
	}
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return dir
}
