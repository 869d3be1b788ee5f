package sema

// Mangle centralizes the module-name mangling scheme described in
// SPEC_FULL.md's design notes: every global identifier namespace is
// partitioned by prepending the declaring module's name and an
// underscore. All of parser/sema/codegen must route through this single
// function rather than building mangled names ad hoc.
func Mangle(moduleName, original string) string {
	return moduleName + "_" + original
}
