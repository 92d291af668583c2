package sandbox

import (
	"reflect"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// allowedPackages is the fixed whitelist of standard-library packages exposed
// to generated programs. Everything here is pure data manipulation; there is
// no import surface beyond this set.
var allowedPackages = map[string]bool{
	"fmt":          true,
	"math":         true,
	"regexp":       true,
	"sort":         true,
	"strconv":      true,
	"strings":      true,
	"time":         true,
	"unicode":      true,
	"unicode/utf8": true,
}

// blockedSymbols removes the impure corners of otherwise whitelisted
// packages: fmt writers that reach process stdout, and time functions that
// can stall or schedule work.
var blockedSymbols = map[string]map[string]bool{
	"fmt": {
		"Print":    true,
		"Printf":   true,
		"Println":  true,
		"Fprint":   true,
		"Fprintf":  true,
		"Fprintln": true,
		"Scan":     true,
		"Scanf":    true,
		"Scanln":   true,
		"Fscan":    true,
		"Fscanf":   true,
		"Fscanln":  true,
	},
	"time": {
		"Sleep":     true,
		"After":     true,
		"AfterFunc": true,
		"Tick":      true,
		"NewTicker": true,
		"NewTimer":  true,
	},
}

// restrictedSymbols filters yaegi's stdlib symbol table down to the
// whitelist. The returned map is built per call so one run can never poison
// another's symbol table.
func restrictedSymbols() interp.Exports {
	out := make(interp.Exports, len(allowedPackages))
	for key, symbols := range stdlib.Symbols {
		slash := strings.LastIndex(key, "/")
		if slash < 0 {
			continue
		}
		path := key[:slash]
		if !allowedPackages[path] {
			continue
		}
		blocked := blockedSymbols[path]
		filtered := make(map[string]reflect.Value, len(symbols))
		for name, val := range symbols {
			if blocked[name] {
				continue
			}
			filtered[name] = val
		}
		out[key] = filtered
	}
	return out
}

// envExports binds per-run copies of the two input tables under fixed names.
// The tables are exposed through accessor functions so the bound values are
// the run's private copies, never the session's originals.
func envExports(tableA, tableB []map[string]any) interp.Exports {
	return interp.Exports{
		"env/env": {
			"TableA": reflect.ValueOf(func() []map[string]any { return tableA }),
			"TableB": reflect.ValueOf(func() []map[string]any { return tableB }),
		},
	}
}

// prelude imports the whitelisted packages and binds the fixed names the
// program contract promises. Generated programs contain no import statements
// of their own; the denylist rejects them. A chunk containing imports is
// parsed at declaration level, so everything here, the table bindings
// included, must be declaration form rather than statements.
const prelude = `
import (
	"env"
	"fmt"
	"frame"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

var (
	_ = fmt.Sprintf
	_ = math.Abs
	_ = regexp.MustCompile
	_ = sort.Strings
	_ = strconv.Atoi
	_ = strings.TrimSpace
	_ = time.Parse
	_ = unicode.IsDigit
	_ = utf8.RuneCountInString
	_ = frame.Text
)

var tableA = env.TableA()
var tableB = env.TableB()
`
