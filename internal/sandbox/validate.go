package sandbox

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/scanner"
	"go/token"
	"regexp"
	"strings"
)

// denyPatterns is a conservative pattern match over the program source for
// capability-escaping constructs. It is defense-in-depth: the real boundary
// is the restricted symbol table the interpreter runs with, so a fragment
// that slips past these patterns still has nothing dangerous to call.
var denyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bimport\b`),
	regexp.MustCompile(`\bos\s*\.`),
	regexp.MustCompile(`\bexec\s*\.`),
	regexp.MustCompile(`\bsyscall\b`),
	regexp.MustCompile(`\bunsafe\b`),
	regexp.MustCompile(`\breflect\s*\.`),
	regexp.MustCompile(`\bnet\s*\.`),
	regexp.MustCompile(`\bhttp\s*\.`),
	regexp.MustCompile(`\bioutil\s*\.`),
	regexp.MustCompile(`\bbufio\s*\.`),
	regexp.MustCompile(`\bplugin\b`),
	regexp.MustCompile(`\bruntime\s*\.`),
	regexp.MustCompile(`\bdebug\s*\.`),
	regexp.MustCompile(`\bGetenv\b`),
	regexp.MustCompile(`\bSetenv\b`),
	regexp.MustCompile(`\bgo\s+func\b`),
}

// StripFences removes surrounding markdown code-fence markers. Models often
// wrap programs in them; this is cosmetic cleanup, not a security boundary.
func StripFences(code string) string {
	trimmed := strings.TrimSpace(code)
	if idx := strings.Index(trimmed, "```go"); idx >= 0 {
		trimmed = trimmed[idx+len("```go"):]
		if end := strings.Index(trimmed, "```"); end >= 0 {
			trimmed = trimmed[:end]
		}
	} else if idx := strings.Index(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[idx+len("```"):]
		if end := strings.Index(trimmed, "```"); end >= 0 {
			trimmed = trimmed[:end]
		}
	}
	return strings.TrimSpace(trimmed)
}

// validate rejects programs containing denylisted constructs and programs
// that do not parse. Returns nil when the program may proceed to execution.
func validate(code string) *Error {
	for _, pat := range denyPatterns {
		if loc := pat.FindString(code); loc != "" {
			return &Error{
				Kind:     ErrValidationBlocked,
				Message:  "program uses a blocked construct",
				Fragment: strings.TrimSpace(loc),
			}
		}
	}

	file, serr := parseProgram(code)
	if serr != nil {
		return serr
	}

	// Pattern matching cannot see statement structure; walk the AST for the
	// constructs that matter regardless of spelling.
	var blocked *Error
	ast.Inspect(file, func(n ast.Node) bool {
		if blocked != nil {
			return false
		}
		switch n.(type) {
		case *ast.GoStmt:
			blocked = &Error{
				Kind:     ErrValidationBlocked,
				Message:  "program uses a blocked construct",
				Fragment: "go statement",
			}
			return false
		case *ast.SelectStmt:
			blocked = &Error{
				Kind:     ErrValidationBlocked,
				Message:  "program uses a blocked construct",
				Fragment: "select statement",
			}
			return false
		}
		return true
	})
	return blocked
}

// wrapperHeaderLines is the number of lines parseProgram prepends before the
// program text; subtracted when reporting syntax error positions.
const wrapperHeaderLines = 2

// parseProgram parses the statement-form program by wrapping it in a
// function body, since go/parser only accepts whole files.
func parseProgram(code string) (*ast.File, *Error) {
	src := "package main\nfunc _run() {\n" + code + "\n}\n"
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "generated.go", src, 0)
	if err != nil {
		line := 0
		msg := err.Error()
		if list, ok := err.(scanner.ErrorList); ok && len(list) > 0 {
			line = list[0].Pos.Line - wrapperHeaderLines
			if line < 1 {
				line = 1
			}
			msg = list[0].Msg
		}
		return nil, &Error{
			Kind:    ErrSyntax,
			Message: fmt.Sprintf("program does not parse: %s", msg),
			Line:    line,
		}
	}
	return file, nil
}
