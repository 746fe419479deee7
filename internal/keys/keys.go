// Package keys translates the symbolic key names a controller sends
// ("Enter", "Escape", "C-c", "ctrl+c", "alt+left") into tmux key identifiers
// suitable for `tmux send-keys`.
//
// Resolution is a pure table lookup plus a modifier pattern check. Names that
// do not resolve produce a typed error and never reach tmux, because tmux
// would otherwise type an unknown name out as literal text.
package keys

import (
	"sort"
	"strings"

	"github.com/Iron-Ham/tmux-mcp/internal/errors"
)

// named maps lower-cased key names and their common aliases to tmux key
// identifiers. Aliases cover tmux's own names (BSpace, DC, NPage), terminal
// names and the lower-case names used by Bubble Tea key strings.
var named = map[string]string{
	"enter":     "Enter",
	"return":    "Enter",
	"tab":       "Tab",
	"btab":      "BTab",
	"backtab":   "BTab",
	"shift-tab": "BTab",
	"escape":    "Escape",
	"esc":       "Escape",
	"space":     "Space",
	"bspace":    "BSpace",
	"backspace": "BSpace",
	"up":        "Up",
	"down":      "Down",
	"left":      "Left",
	"right":     "Right",
	"home":      "Home",
	"end":       "End",
	"pageup":    "PageUp",
	"pgup":      "PageUp",
	"ppage":     "PageUp",
	"pagedown":  "PageDown",
	"pgdown":    "PageDown",
	"pgdn":      "PageDown",
	"npage":     "PageDown",
	"delete":    "DC",
	"del":       "DC",
	"dc":        "DC",
	"insert":    "IC",
	"ins":       "IC",
	"ic":        "IC",
	"f1":        "F1",
	"f2":        "F2",
	"f3":        "F3",
	"f4":        "F4",
	"f5":        "F5",
	"f6":        "F6",
	"f7":        "F7",
	"f8":        "F8",
	"f9":        "F9",
	"f10":       "F10",
	"f11":       "F11",
	"f12":       "F12",
}

// modifiers maps accepted modifier prefixes to tmux's prefix syntax.
var modifiers = map[string]string{
	"c-":     "C-",
	"ctrl-":  "C-",
	"ctrl+":  "C-",
	"m-":     "M-",
	"alt-":   "M-",
	"alt+":   "M-",
	"meta-":  "M-",
	"meta+":  "M-",
	"s-":     "S-",
	"shift+": "S-",
}

// Translator resolves symbolic key names to tmux key identifiers.
// The zero value is ready to use.
type Translator struct{}

// NewTranslator returns a Translator backed by the built-in key table.
func NewTranslator() *Translator {
	return &Translator{}
}

// Resolve returns the tmux key identifier for name, or a *errors.KeyError
// wrapping errors.ErrUnknownKey.
func (t *Translator) Resolve(name string) (string, error) {
	return Resolve(name)
}

// Resolve returns the tmux key identifier for name. The result is a bare key
// name; escaping for the tmux command parser happens at the transport.
//
// Accepted forms:
//   - a named key from the table, case-insensitive ("Enter", "esc", "PgUp")
//   - a single printable ASCII character ("q", "/")
//   - one or more modifiers followed by a single printable character or a
//     named key ("C-c", "ctrl+d", "M-Left", "C-M-x", "S-Up")
func Resolve(name string) (string, error) {
	if name == "" {
		return "", errors.NewKeyError(name)
	}

	if id, ok := named[strings.ToLower(name)]; ok {
		return id, nil
	}

	prefix, base := splitModifiers(name)
	if prefix == "" {
		if isPrintable(base) {
			return base, nil
		}
		return "", errors.NewKeyError(name)
	}

	if id, ok := named[strings.ToLower(base)]; ok {
		if prefix == "S-" && id == "Tab" {
			return "BTab", nil
		}
		return prefix + id, nil
	}
	if !isPrintable(base) {
		return "", errors.NewKeyError(name)
	}
	if strings.Contains(prefix, "C-") {
		// tmux only knows lower-case control letters; C-C is not Ctrl+C.
		base = strings.ToLower(base)
	}
	return prefix + base, nil
}

// splitModifiers strips any leading modifier prefixes from name and returns
// them normalized to tmux syntax along with the remaining base key.
func splitModifiers(name string) (prefix, base string) {
	base = name
	for {
		matched := false
		lower := strings.ToLower(base)
		for p, tmuxPrefix := range modifiers {
			// len(base) > len(p) keeps "C-" itself and "-" from matching.
			if strings.HasPrefix(lower, p) && len(base) > len(p) {
				if !strings.Contains(prefix, tmuxPrefix) {
					prefix += tmuxPrefix
				}
				base = base[len(p):]
				matched = true
				break
			}
		}
		if !matched {
			return prefix, base
		}
	}
}

// isPrintable reports whether s is exactly one printable, non-space ASCII character.
func isPrintable(s string) bool {
	return len(s) == 1 && s[0] > ' ' && s[0] < 0x7f
}

// Binding pairs an accepted key name with the tmux identifier it resolves to.
type Binding struct {
	Name string
	Tmux string
}

// Bindings returns every named key in the table, sorted by tmux identifier
// and then by name. Modifier combinations are not enumerated.
func Bindings() []Binding {
	bindings := make([]Binding, 0, len(named))
	for name, id := range named {
		bindings = append(bindings, Binding{Name: name, Tmux: id})
	}
	sort.Slice(bindings, func(i, j int) bool {
		if bindings[i].Tmux != bindings[j].Tmux {
			return bindings[i].Tmux < bindings[j].Tmux
		}
		return bindings[i].Name < bindings[j].Name
	})
	return bindings
}
