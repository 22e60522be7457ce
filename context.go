package blade

type CompileContext struct {
	Files map[string]*ParsedFile
	// Yields is a map of section names to default content
	Yields         map[string]YieldInfo
	FilledSections map[string]struct{}
	// FilledIncludes holds partials already defined in the template set
	FilledIncludes map[string]struct{}
	// DefinedPushes holds push templates already defined in the template set
	DefinedPushes map[string]struct{}
	// Extending holds the files visited along the current @extends chain
	Extending map[string]struct{}
}

func newCompileContext(files map[string]*ParsedFile) *CompileContext {
	return &CompileContext{
		Files:          files,
		Yields:         map[string]YieldInfo{},
		FilledSections: map[string]struct{}{},
		FilledIncludes: map[string]struct{}{},
		DefinedPushes:  map[string]struct{}{},
		Extending:      map[string]struct{}{},
	}
}

// YieldInfo contains information about a yield
type YieldInfo struct {
	Name     string
	FileName string
	Default  string
}
