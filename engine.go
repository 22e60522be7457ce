package blade

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var ValidFileExtensions = []string{".blade", ".tmpl", ".html", ".gohtml"}

const (
	sectionNamePrefix = "__section_"
	partialNamePrefix = "__include_"
	pushNamePrefix    = "__push_"

	stackFuncName = "bladeStack"
	pushFuncName  = "bladePush"
)

var errStacksUnbound = errors.New("stack functions can only be used through Engine.Render")

// Engine holds loaded files.
type Engine struct {
	dirPrefix       string
	fs              fs.FS
	parsedFiles     map[string]*ParsedFile
	debugTemplates  map[string]string
	templates       map[string]*template.Template
	lastCompileTime int64
	stale           bool
	mu              sync.RWMutex
	FuncMap         template.FuncMap
	Logger          *log.Logger
}

// NewEngine creates a new engine pointing to a directory with files.
func NewEngine(dir string) *Engine {
	return NewEngineFS(os.DirFS(dir))
}

// NewEngineFS creates a new engine pointing to a filesystem.
// When using embed.Fs, pass the embedded folder as prefix.
func NewEngineFS(fs fs.FS, prefix ...string) *Engine {
	var dirPrefix string
	if len(prefix) > 0 {
		dirPrefix = prefix[0]
	}
	return &Engine{
		dirPrefix:       dirPrefix,
		fs:              fs,
		parsedFiles:     map[string]*ParsedFile{},
		debugTemplates:  map[string]string{},
		templates:       make(map[string]*template.Template),
		lastCompileTime: -1,
		FuncMap:         template.FuncMap{},
		Logger:          log.NewWithOptions(io.Discard, log.Options{}),
	}
}

// Load reads all files with a valid extension from the fs.
// It will only recompile if files have been added, modified or removed since last compile.
func (e *Engine) Load() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	startedAt := time.Now()
	needCompile := e.stale
	seen := map[string]struct{}{}

	err := fs.WalkDir(e.fs, ".", func(path string, info fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !slices.Contains(ValidFileExtensions, ext) {
			return nil
		}

		name := e.nameFromPath(path)
		seen[name] = struct{}{}

		stats, err := info.Info()
		if err != nil {
			return err
		}

		if _, ok := e.parsedFiles[name]; ok && stats.ModTime().UnixMilli() <= e.lastCompileTime {
			return nil
		}

		needCompile = true

		raw, err := fs.ReadFile(e.fs, path)
		if err != nil {
			return err
		}
		parsedFile, err := e.parseFile(name, string(raw))
		if err != nil {
			return err
		}
		e.parsedFiles[name] = parsedFile
		return nil
	})
	if err != nil {
		return err
	}

	for name := range e.parsedFiles {
		if _, ok := seen[name]; !ok {
			e.Logger.Debug("template removed", "name", name)
			delete(e.parsedFiles, name)
			needCompile = true
		}
	}

	if !needCompile {
		e.Logger.Debug("templates up to date, skip compile")
		return nil
	}

	// TODO: compile only changed files and dependencies
	e.stale = true

	templates := make(map[string]*template.Template, len(e.parsedFiles))
	debugTemplates := make(map[string]string, len(e.parsedFiles))
	for name, f := range e.parsedFiles {
		ctx := newCompileContext(e.parsedFiles)
		bodyText, defText, err := f.ToTemplateString(ctx)
		if err != nil {
			return err
		}

		defText += e.buildDefaultYieldContent(ctx)
		tmplText := defText + bodyText
		debugTemplates[name] = tmplText
		templates[name], err = template.New(name).Funcs(e.FuncMap).Funcs(unboundStackFuncs()).Parse(tmplText)
		if err != nil {
			//TODO: parse template error to point to the debug template content
			return err
		}
		e.Logger.Debug("compiled template", "name", name)
	}

	e.templates = templates
	e.debugTemplates = debugTemplates
	e.lastCompileTime = startedAt.UnixMilli()
	e.stale = false
	e.Logger.Info("templates compiled", "count", len(templates), "took", time.Since(startedAt).Round(time.Millisecond))

	return nil
}

// Render executes the template identified by entry (e.g., "pages/home") into writer with data.
// Stacks are resolved once the whole document has been rendered, so nothing is written to w on error.
func (e *Engine) Render(w io.Writer, entry string, data interface{}) error {
	entry = normalizeName(entry)
	e.mu.RLock()
	tmpl, ok := e.templates[entry]
	e.mu.RUnlock()
	if !ok {
		return fmt.Errorf("template %s not loaded", entry)
	}

	out, err := execute(tmpl, data)
	if err != nil {
		return fmt.Errorf("[%s] %w", entry, err)
	}
	e.Logger.Debug("rendered template", "name", entry)
	_, err = io.WriteString(w, out)
	return err
}

// execute renders a private clone of tmpl bound to a fresh Stacks.
func execute(tmpl *template.Template, data any) (string, error) {
	clone, err := tmpl.Clone()
	if err != nil {
		return "", err
	}
	stacks := NewStacks()
	clone.Funcs(boundStackFuncs(clone, stacks))

	var buf bytes.Buffer
	if err := clone.Execute(&buf, data); err != nil {
		return "", err
	}
	if err := stacks.CheckPlaced(buf.String()); err != nil {
		return "", err
	}
	return stacks.Resolve(buf.String())
}

func boundStackFuncs(tmpl *template.Template, stacks *Stacks) template.FuncMap {
	return template.FuncMap{
		stackFuncName: func(name string) (template.HTML, error) {
			placeholder, err := stacks.Declare(name)
			if err != nil {
				return "", err
			}
			return template.HTML(placeholder), nil
		},
		pushFuncName: func(name, pushTemplate string, data any) (template.HTML, error) {
			var buf bytes.Buffer
			if err := tmpl.ExecuteTemplate(&buf, pushTemplate, data); err != nil {
				return "", err
			}
			stacks.Push(name, buf.String())
			return "", nil
		},
	}
}

// unboundStackFuncs satisfies the parser; Render replaces them on every clone.
func unboundStackFuncs() template.FuncMap {
	return template.FuncMap{
		stackFuncName: func(string) (template.HTML, error) {
			return "", errStacksUnbound
		},
		pushFuncName: func(string, string, any) (template.HTML, error) {
			return "", errStacksUnbound
		},
	}
}

// GetDebugTemplates returns a map of all loaded templates and their content.
func (e *Engine) GetDebugTemplates() map[string]string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.debugTemplates
}

var (
	reExtend       = regexp.MustCompile(`@extends\(['"]([\w\-/. ]+)['"]\)`)                      // allow slashes for dirs
	reYield        = regexp.MustCompile(`@yield\(['"]([\w\-]+)['"](?:,\s*['"]([^)]*)['"])?\)`)   // @yield('name', 'default')
	reSectionStart = regexp.MustCompile(`@section\(['"]([\w\-]+)['"](?:,\s*['"]([^)]*)['"])?\)`) // @section('content', 'value')
	reSectionEnd   = regexp.MustCompile(`@endsection`)                                           // @endsection
	reStack        = regexp.MustCompile(`@stack\(['"]([\w\-]+)['"]\)`)                           // @stack('name')
	rePushStart    = regexp.MustCompile(`@push\(['"]([\w\-]+)['"]\)`)                            // @push('stack_name')
	rePushEnd      = regexp.MustCompile(`@endpush`)                                              // @endpush
	reInclude      = regexp.MustCompile(`@include\(['"]([\w\-/. ]+)['"](?:\s*,\s*([^)]+?))?\)`)  // @include('partial', .OtherData)
)

// parseFile parses Blade-like directives
func (e *Engine) parseFile(name string, raw string) (*ParsedFile, error) {
	p := &ParsedFile{
		Name:     name,
		Raw:      raw,
		Includes: map[string]struct{}{},
		Yields:   map[string]string{},
		Sections: map[string]string{},
		ParsedAt: time.Now().UnixMilli(),
	}
	rest := raw

	if loc := reExtend.FindStringSubmatchIndex(raw); loc != nil {
		parentName := rest[loc[2]:loc[3]]
		p.Extends = normalizeName(parentName)
		rest = rest[:loc[0]] + rest[loc[1]:]
	}

	// convert @yield to template inclusion: @yield('name') => {{ template "__section_name" . }}
	rest = reYield.ReplaceAllStringFunc(rest, func(m string) string {
		sm := reYield.FindStringSubmatch(m)
		if len(sm) >= 3 {
			yieldName := normalizeName(sm[1])
			p.Yields[yieldName] = sm[2]
			return fmt.Sprintf(`{{ template "%s%s" . }}`, sectionNamePrefix, yieldName)
		}
		return m
	})

	// convert @stack to a stack declaration: @stack('name') => {{ bladeStack "name" }}
	rest = reStack.ReplaceAllStringFunc(rest, func(m string) string {
		sm := reStack.FindStringSubmatch(m)
		if len(sm) >= 2 {
			return fmt.Sprintf(`{{ %s "%s" }}`, stackFuncName, normalizeName(sm[1]))
		}
		return m
	})

	// process includes: @include('partial') -> {{ template "__include_partial" . }}
	rest = reInclude.ReplaceAllStringFunc(rest, func(m string) string {
		sm := reInclude.FindStringSubmatch(m)
		if len(sm) >= 2 {
			partialName := normalizeName(sm[1])
			pipeline := ""
			if len(sm) >= 3 {
				pipeline = strings.TrimSpace(sm[2])
			}
			if pipeline == "" {
				pipeline = "."
			}
			p.Includes[partialName] = struct{}{}
			return fmt.Sprintf(`{{ template "%s%s" %s }}`, partialNamePrefix, partialName, pipeline)
		}
		return m
	})

	// Parse push blocks before sections so pushes inside a section run when the section renders:
	// @push('name') ... @endpush => {{ bladePush "name" "__push_file_0" . }}
	for {
		loc := rePushStart.FindStringSubmatchIndex(rest)
		if loc == nil {
			break
		}
		stackName := rest[loc[2]:loc[3]]
		endIdx := rePushEnd.FindStringIndex(rest[loc[1]:])
		if endIdx == nil {
			return nil, fmt.Errorf("[%s] missing @endpush", p.Name)
		}
		contentStart := loc[1]
		contentEnd := loc[1] + endIdx[0]
		push := PushBlock{
			Stack:    stackName,
			Template: fmt.Sprintf("%s%s_%d", pushNamePrefix, p.Name, len(p.Pushes)),
			Content:  strings.TrimSpace(rest[contentStart:contentEnd]),
		}
		push.Action = fmt.Sprintf(`{{ %s "%s" "%s" . }}`, pushFuncName, push.Stack, push.Template)
		p.Pushes = append(p.Pushes, push)
		rest = rest[:loc[0]] + push.Action + rest[contentEnd+len("@endpush"):]
	}

	// Parse sections
	for {
		loc := reSectionStart.FindStringSubmatchIndex(rest)
		if loc == nil {
			break
		}
		// extract section name
		sectionName := rest[loc[2]:loc[3]] // matched name
		if loc[5] > -1 {
			// @section('name', 'content')
			p.Sections[sectionName] = rest[loc[4]:loc[5]]
			rest = rest[:loc[0]] + rest[loc[1]:]
			continue
		}
		// find end
		endIdx := reSectionEnd.FindStringIndex(rest[loc[1]:])
		if endIdx == nil {
			return nil, fmt.Errorf("[%s] missing @endsection", p.Name)
		}
		contentStart := loc[1]
		contentEnd := loc[1] + endIdx[0]
		p.Sections[sectionName] = strings.TrimSpace(rest[contentStart:contentEnd])
		// remove the section from rest by replacing with empty string
		rest = rest[:loc[0]] + rest[contentEnd+len("@endsection"):] // remove tail including @endsection
	}

	for _, push := range p.Pushes {
		if strings.Contains(rest, push.Action) {
			p.TopLevelPushes = append(p.TopLevelPushes, push.Action)
		}
	}

	p.StandaloneBody = strings.TrimSpace(rest)

	return p, nil
}

// nameFromPath converts a filesystem path to a template name, relative to engine dir.
func (e *Engine) nameFromPath(path string) string {
	rel, err := filepath.Rel(e.dirPrefix, path)
	if err != nil {
		return filepath.Base(path)
	}
	// normalize separators and drop extension
	rel = filepath.ToSlash(rel)
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	return normalizeName(rel)
}

// buildDefaultYieldContent builds default yield content for all unfilled yields.
func (e *Engine) buildDefaultYieldContent(ctx *CompileContext) string {
	var result strings.Builder
	for name, info := range ctx.Yields {
		if _, ok := ctx.FilledSections[name]; !ok {
			writeDefine(&result, sectionNamePrefix+name, info.Default)
		}
	}
	return result.String()
}

// normalizeName: remove quotes/spaces and extensions, normalize slashes
func normalizeName(n string) string {
	n = strings.TrimSpace(n)
	n = strings.Trim(n, `"' `)
	// remove ext if present
	n = strings.TrimSuffix(n, filepath.Ext(n))
	n = filepath.ToSlash(n)
	return n
}
