package interpreter

import "sort"

// Keyword is an entry of the editor's keyword bar. Template is the text inserted
// for it; it equals Name for plain words.
type Keyword struct {
	Name     string
	Template string
}

var languageKeywords = []Keyword{
	{Name: "<-", Template: "<-"},
	{Name: "IF", Template: "IF ( )\n{\n\n}"},
	{Name: "ELSE", Template: "ELSE\n{\n\n}"},
	{Name: "NOT", Template: "NOT"},
	{Name: "AND", Template: "AND"},
	{Name: "OR", Template: "OR"},
	{Name: "REPEAT TIMES", Template: "REPEAT _ TIMES\n{\n\n}"},
	{Name: "REPEAT UNTIL", Template: "REPEAT UNTIL ( )\n{\n\n}"},
	{Name: "FOR EACH", Template: "FOR EACH item IN list\n{\n\n}"},
	{Name: "PROCEDURE", Template: "PROCEDURE name ( )\n{\n\n}"},
}

// Keywords lists the language keywords followed by every function ("NAME()") and
// then every host variable the plugins provide, each group sorted.
func Keywords(plugins ...Plugin) []Keyword {
	funcs := make(map[string]bool)
	vars := make(map[string]bool)
	for _, p := range plugins {
		for name := range p.Functions {
			funcs[name] = true
		}
		for name := range p.Vars {
			vars[name] = true
		}
	}

	out := make([]Keyword, 0, len(languageKeywords)+len(funcs)+len(vars))
	out = append(out, languageKeywords...)
	for _, name := range sortedKeys(funcs) {
		out = append(out, Keyword{Name: name + "()", Template: name + "()"})
	}
	for _, name := range sortedKeys(vars) {
		out = append(out, Keyword{Name: name, Template: name})
	}
	return out
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
