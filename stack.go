package blade

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

const stackPlaceholderPrefix = "@blade.stacks."

// stackSeparator joins the fragments pushed to one stack.
const stackSeparator = "\n"

// DuplicateStackError is returned when a stack is declared more than once in a render.
type DuplicateStackError struct {
	Name string
}

func (e *DuplicateStackError) Error() string {
	return fmt.Sprintf(`cannot declare stack "%s" multiple times`, e.Name)
}

// UndeclaredStackError is returned by Resolve when content was pushed to a stack
// that was never declared.
type UndeclaredStackError struct {
	Name string
}

func (e *UndeclaredStackError) Error() string {
	return fmt.Sprintf(`cannot push to non-existing stack "%s", use @stack('%s') to declare it first`, e.Name, e.Name)
}

// UnplacedStackError is returned when a declared stack's placeholder is missing from the
// rendered output, usually because it was escaped outside HTML text context.
type UnplacedStackError struct {
	Name string
}

func (e *UnplacedStackError) Error() string {
	return fmt.Sprintf(`placeholder of stack "%s" is missing from the output, @stack('%s') must be used in HTML text context`, e.Name, e.Name)
}

// Stacks collects content pushed to named stacks during a single render.
// A Stacks must not be shared between renders or used from multiple goroutines.
type Stacks struct {
	declared map[string]struct{}
	// contents holds pushed fragments in push order, keyed by stack name.
	// An entry may exist before the stack is declared.
	contents map[string][]string
}

// NewStacks returns an empty registry.
func NewStacks() *Stacks {
	return &Stacks{
		declared: map[string]struct{}{},
		contents: map[string][]string{},
	}
}

// Placeholder returns the token that stands for the stack in rendered output.
func Placeholder(name string) string {
	return "<!-- " + stackPlaceholderPrefix + name + " -->"
}

// Declare registers the stack and returns its placeholder.
func (s *Stacks) Declare(name string) (string, error) {
	if _, ok := s.declared[name]; ok {
		return "", &DuplicateStackError{Name: name}
	}
	s.declared[name] = struct{}{}
	// seed the ledger so a stack nobody pushed to still resolves to ""
	if _, ok := s.contents[name]; !ok {
		s.contents[name] = []string{}
	}
	return Placeholder(name), nil
}

// Push appends content to the stack. The stack does not need to be declared yet.
func (s *Stacks) Push(name, content string) *Stacks {
	s.contents[name] = append(s.contents[name], content)
	return s
}

// Declared reports whether the stack has been declared.
func (s *Stacks) Declared(name string) bool {
	_, ok := s.declared[name]
	return ok
}

// Contents returns a copy of the fragments pushed to the stack so far.
func (s *Stacks) Contents(name string) []string {
	return append([]string(nil), s.contents[name]...)
}

// CheckPlaced fails if the placeholder of a declared stack appears neither in document
// nor in content pushed to a stack.
func (s *Stacks) CheckPlaced(document string) error {
	for _, name := range slices.Sorted(maps.Keys(s.declared)) {
		placeholder := Placeholder(name)
		if strings.Contains(document, placeholder) {
			continue
		}
		placed := false
		for _, fragments := range s.contents {
			if slices.ContainsFunc(fragments, func(f string) bool { return strings.Contains(f, placeholder) }) {
				placed = true
				break
			}
		}
		if !placed {
			return &UnplacedStackError{Name: name}
		}
	}
	return nil
}

// Resolve replaces every stack placeholder in document with the joined stack content.
// It fails if any stack received content without being declared.
// Placeholders brought in by pushed content are resolved as well.
func (s *Stacks) Resolve(document string) (string, error) {
	names := slices.Sorted(maps.Keys(s.contents))
	for _, name := range names {
		if _, ok := s.declared[name]; !ok {
			return "", &UndeclaredStackError{Name: name}
		}
	}
	// each pass can only uncover placeholders nested one level deeper
	for range len(names) {
		replaced := false
		for _, name := range names {
			placeholder := Placeholder(name)
			if !strings.Contains(document, placeholder) {
				continue
			}
			document = strings.ReplaceAll(document, placeholder, strings.Join(s.contents[name], stackSeparator))
			replaced = true
		}
		if !replaced {
			break
		}
	}
	return document, nil
}
