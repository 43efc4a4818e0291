// Package scripting hosts the optional Lua policy hook. Operators drop
// a script into scripts/ defining can_claim(ctx) to layer their own
// claim rules (VIP POIs, ban lists, schedules) on top of the built-in
// ones without rebuilding the server.
package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/poiwarden/server/internal/territory"
)

// Engine wraps a single gopher-lua VM. Calls arrive from both the
// webhook goroutines and the sweep goroutine, so the VM is guarded by
// a mutex.
type Engine struct {
	mu  sync.Mutex
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads all .lua files from the
// given directory. A missing directory is fine: every hook then
// defaults to allow.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{SkipOpenLibs: false})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}
	if err := e.loadDir(scriptsDir); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load policy scripts: %w", err)
	}
	return e, nil
}

func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vm.Close()
}

// CanClaim calls the Lua can_claim hook. The hook receives a table
// {player, display, poi, dynamic} and returns allow plus an optional
// reason. Missing hook or script error fails safe: allow.
func (e *Engine) CanClaim(pctx territory.PolicyContext) (bool, string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	fn := e.vm.GetGlobal("can_claim")
	if fn == lua.LNil {
		return true, ""
	}

	t := e.vm.NewTable()
	t.RawSetString("player", lua.LString(pctx.Identity))
	t.RawSetString("display", lua.LString(pctx.Display))
	t.RawSetString("poi", lua.LString(pctx.POIID))
	t.RawSetString("dynamic", lua.LBool(pctx.Dynamic))

	if err := e.vm.CallByParam(lua.P{Fn: fn, NRet: 2, Protect: true}, t); err != nil {
		e.log.Error("lua can_claim error", zap.Error(err))
		return true, ""
	}

	reason := lua.LVAsString(e.vm.Get(-1))
	allow := lua.LVAsBool(e.vm.Get(-2))
	e.vm.Pop(2)
	return allow, reason
}
