package blade

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

type ParsedFile struct {
	Name string
	// Raw is the raw file content
	Raw string
	// Extends is the file to extend
	Extends string
	// Includes is a set of files to include
	Includes map[string]struct{}
	// Yields is a map of section names to default content
	Yields map[string]string
	// Sections is a map of section names to content
	Sections map[string]string
	// Pushes holds @push blocks in source order
	Pushes []PushBlock
	// TopLevelPushes holds push actions found outside sections.
	// They run before the parent layout when the file extends another one.
	TopLevelPushes []string
	// StandaloneBody is the body of the file without sections and includes
	StandaloneBody string
	// ParsedAt is the time when the file was parsed in unix milliseconds
	ParsedAt int64
}

// PushBlock is a @push block compiled into its own template.
type PushBlock struct {
	Stack    string
	Template string
	Content  string
	// Action is the template action that renders Template and pushes the result.
	Action string
}

// ToTemplateString converts the parsed file to template text.
// body is the text executed for the file, defs holds the {{ define }} blocks it depends on.
func (p *ParsedFile) ToTemplateString(ctx *CompileContext) (body string, defs string, err error) {
	var result strings.Builder

	for _, push := range p.Pushes {
		if _, ok := ctx.DefinedPushes[push.Template]; ok {
			continue
		}
		writeDefine(&result, push.Template, push.Content)
		ctx.DefinedPushes[push.Template] = struct{}{}
	}

	for _, name := range slices.Sorted(maps.Keys(p.Sections)) {
		if _, ok := ctx.FilledSections[name]; ok {
			continue
		}
		writeDefine(&result, sectionNamePrefix+name, p.Sections[name])
		ctx.FilledSections[name] = struct{}{}
	}

	for name, defaultValue := range p.Yields {
		if info, ok := ctx.Yields[name]; ok {
			return "", "", fmt.Errorf(`[%s] duplicate yield name "%s", already defined in file "%s"`, p.Name, name, info.FileName)
		}
		ctx.Yields[name] = YieldInfo{
			Name:     name,
			FileName: p.Name,
			Default:  defaultValue,
		}
	}

	for _, partialName := range slices.Sorted(maps.Keys(p.Includes)) {
		if _, ok := ctx.FilledIncludes[partialName]; ok {
			continue
		}
		ctx.FilledIncludes[partialName] = struct{}{}
		partial, found := ctx.Files[partialName]
		if !found {
			return "", "", fmt.Errorf(`[%s] template "%s" not found to include`, p.Name, partialName)
		}
		partialBody, partialDefs, err := partial.ToTemplateString(ctx)
		if err != nil {
			return "", "", err
		}
		result.WriteString(partialDefs)
		writeDefine(&result, partialNamePrefix+partialName, partialBody)
	}

	if p.Extends == "" {
		return p.StandaloneBody, result.String(), nil
	}

	if _, ok := ctx.Extending[p.Name]; ok {
		return "", "", fmt.Errorf(`[%s] circular @extends`, p.Name)
	}
	ctx.Extending[p.Name] = struct{}{}
	parent, found := ctx.Files[p.Extends]
	if !found {
		return "", "", fmt.Errorf(`[%s] template "%s" not found to extends`, p.Name, p.Extends)
	}
	parentBody, parentDefs, err := parent.ToTemplateString(ctx)
	if err != nil {
		return "", "", err
	}
	result.WriteString(parentDefs)

	return strings.Join(p.TopLevelPushes, "") + parentBody, result.String(), nil
}

// writeDefine appends a define block. The leading newline keeps debug output readable and is
// trimmed by the template parser.
func writeDefine(b *strings.Builder, name, content string) {
	b.WriteString("\n{{- define \"")
	b.WriteString(name)
	b.WriteString("\" }}")
	b.WriteString(content)
	b.WriteString("{{ end }}")
}
