package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// AutopilotFunc is the global the input script must define.
const AutopilotFunc = "autopilot"

// EntityView is what a script sees of one box.
type EntityView struct {
	ID           uint64
	ClientID     uint16
	Controllable bool
	Hovered      bool
	Selected     bool
	X, Y, Z      float32
	ScreenX      float32 // cursor coordinates of the box center
	ScreenY      float32
}

// InputContext is the per-step snapshot handed to autopilot(ctx).
type InputContext struct {
	Tick        uint64
	Connected   bool
	MyClientID  uint16
	HoverKind   string // "none", "entity" or "ground"
	HoverEntity uint64
	HoverX      float32
	HoverY      float32
	Selection   uint64
	Entities    []EntityView

	// Project maps a world point to cursor coordinates. Exposed to the
	// script as ctx.project(x, y, z).
	Project func(x, y, z float32) (float32, float32)
}

// CommandKind names an input the script can issue.
type CommandKind string

const (
	CmdCursor   CommandKind = "cursor"
	CmdSelect   CommandKind = "select"
	CmdInteract CommandKind = "interact"
	CmdQuit     CommandKind = "quit"
)

// Command is one scripted input. X and Y are set for CmdCursor.
type Command struct {
	Kind CommandKind
	X, Y float32
}

// Autopilot calls the script's autopilot(ctx) and returns the commands it
// asked for, in order. Script errors are logged and yield no commands.
func (e *Engine) Autopilot(in InputContext) []Command {
	fn := e.vm.GetGlobal(AutopilotFunc)
	if fn == lua.LNil {
		e.log.Error("lua function autopilot not found")
		return nil
	}

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, e.contextTable(in)); err != nil {
		e.log.Error("lua autopilot error", zap.Error(err))
		return nil
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	rt, ok := result.(*lua.LTable)
	if !ok {
		if result != lua.LNil {
			e.log.Error("lua autopilot returned non-table")
		}
		return nil
	}

	var cmds []Command
	rt.ForEach(func(_, v lua.LValue) {
		ct, ok := v.(*lua.LTable)
		if !ok {
			return
		}
		kind := CommandKind(lStr(ct, "type"))
		switch kind {
		case CmdCursor:
			cmds = append(cmds, Command{Kind: kind, X: lNum(ct, "x"), Y: lNum(ct, "y")})
		case CmdSelect, CmdInteract, CmdQuit:
			cmds = append(cmds, Command{Kind: kind})
		default:
			e.log.Debug("unknown autopilot command", zap.String("type", string(kind)))
		}
	})
	return cmds
}

func (e *Engine) contextTable(in InputContext) *lua.LTable {
	t := e.vm.NewTable()
	t.RawSetString("tick", lua.LNumber(in.Tick))
	t.RawSetString("connected", lua.LBool(in.Connected))
	t.RawSetString("my_client_id", lua.LNumber(in.MyClientID))
	t.RawSetString("hover_kind", lua.LString(in.HoverKind))
	t.RawSetString("hover_entity", lua.LNumber(in.HoverEntity))
	t.RawSetString("hover_x", lua.LNumber(in.HoverX))
	t.RawSetString("hover_y", lua.LNumber(in.HoverY))
	t.RawSetString("selection", lua.LNumber(in.Selection))

	ents := e.vm.NewTable()
	for _, v := range in.Entities {
		et := e.vm.NewTable()
		et.RawSetString("id", lua.LNumber(v.ID))
		et.RawSetString("client_id", lua.LNumber(v.ClientID))
		et.RawSetString("controllable", lua.LBool(v.Controllable))
		et.RawSetString("hovered", lua.LBool(v.Hovered))
		et.RawSetString("selected", lua.LBool(v.Selected))
		et.RawSetString("x", lua.LNumber(v.X))
		et.RawSetString("y", lua.LNumber(v.Y))
		et.RawSetString("z", lua.LNumber(v.Z))
		et.RawSetString("sx", lua.LNumber(v.ScreenX))
		et.RawSetString("sy", lua.LNumber(v.ScreenY))
		ents.Append(et)
	}
	t.RawSetString("entities", ents)

	if in.Project != nil {
		project := in.Project
		t.RawSetString("project", e.vm.NewFunction(func(L *lua.LState) int {
			sx, sy := project(
				float32(L.CheckNumber(1)),
				float32(L.CheckNumber(2)),
				float32(L.OptNumber(3, 0)),
			)
			L.Push(lua.LNumber(sx))
			L.Push(lua.LNumber(sy))
			return 2
		}))
	}
	return t
}
