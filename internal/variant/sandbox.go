package variant

import (
	lua "github.com/yuin/gopher-lua"
)

// sandboxLuaVM configures a Lua VM to run in a restricted sandbox.
// Catalog files are declarative; they must not be able to execute system
// commands (os.execute), touch the filesystem (io.open, io.popen), or load
// external code (require, dofile, loadfile).
//
// Safe modules like string, table, and math are preserved so catalogs can
// build patterns and filenames programmatically.
func sandboxLuaVM(L *lua.LState) {
	L.SetGlobal("os", lua.LNil)
	L.SetGlobal("io", lua.LNil)
	L.SetGlobal("require", lua.LNil)
	L.SetGlobal("dofile", lua.LNil)
	L.SetGlobal("loadfile", lua.LNil)
	L.SetGlobal("load", lua.LNil)
	L.SetGlobal("loadstring", lua.LNil)
	L.SetGlobal("debug", lua.LNil)
}

// newSandboxedVM creates a new Lua VM with sandboxing applied.
// This is the only way the catalog code creates a Lua state.
func newSandboxedVM() *lua.LState {
	L := lua.NewState()
	sandboxLuaVM(L)
	return L
}
