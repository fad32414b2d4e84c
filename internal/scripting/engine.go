package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM. Single-goroutine access only.
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine loads a script file, or every .lua file of a directory in name
// order.
func NewEngine(path string, log *zap.Logger) (*Engine, error) {
	e := newEngine(log)
	info, err := os.Stat(path)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("load scripts: %w", err)
	}
	if info.IsDir() {
		err = e.loadDir(path)
	} else {
		err = e.loadFile(path)
	}
	if err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

// NewEngineFromString loads a script held in memory.
func NewEngineFromString(src string, log *zap.Logger) (*Engine, error) {
	e := newEngine(log)
	if err := e.vm.DoString(src); err != nil {
		e.Close()
		return nil, fmt.Errorf("load script: %w", err)
	}
	return e, nil
}

func newEngine(log *zap.Logger) *Engine {
	vm := lua.NewState()
	vm.SetGlobal("API_VERSION", lua.LNumber(1))
	return &Engine{vm: vm, log: log}
}

func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		if err := e.loadFile(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) loadFile(path string) error {
	if err := e.vm.DoFile(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	e.log.Debug("loaded lua script", zap.String("file", path))
	return nil
}

// HasFunction reports whether the loaded scripts define a global function.
func (e *Engine) HasFunction(name string) bool {
	_, ok := e.vm.GetGlobal(name).(*lua.LFunction)
	return ok
}

func (e *Engine) Close() {
	e.vm.Close()
}

// lNum reads a numeric field from a Lua table.
func lNum(t *lua.LTable, key string) float32 {
	return float32(lua.LVAsNumber(t.RawGetString(key)))
}

// lStr reads a string field from a Lua table.
func lStr(t *lua.LTable, key string) string {
	return lua.LVAsString(t.RawGetString(key))
}
