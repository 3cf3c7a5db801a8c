package header

import "strings"

// Param is a single name=value parameter of a compound header.
type Param struct {
	Name  string
	Value string
}

// Params is an ordered parameter list. Names are compared without regard
// to case and appear at most once.
type Params struct {
	list []Param
}

func (p *Params) index(name string) int {
	for i := range p.list {
		if strings.EqualFold(p.list[i].Name, name) {
			return i
		}
	}
	return -1
}

// Get returns the value of the named parameter.
func (p *Params) Get(name string) (string, bool) {
	if i := p.index(name); i >= 0 {
		return p.list[i].Value, true
	}
	return "", false
}

// Set removes any parameter with the same name and appends the new one.
// Characters that cannot appear in a parameter name are dropped; a name
// left empty is ignored.
func (p *Params) Set(name, value string) {
	name = cleanParamName(name)
	if name == "" {
		return
	}
	p.Del(name)
	p.list = append(p.list, Param{Name: name, Value: value})
}

// Del removes the named parameter and reports whether it was present.
func (p *Params) Del(name string) bool {
	i := p.index(name)
	if i < 0 {
		return false
	}
	p.list = append(p.list[:i], p.list[i+1:]...)
	return true
}

func (p *Params) Len() int {
	return len(p.list)
}

// All returns a copy of the parameters in order.
func (p *Params) All() []Param {
	return append([]Param(nil), p.list...)
}

// Map returns the parameters keyed by lower-cased name.
func (p *Params) Map() map[string]string {
	m := make(map[string]string, len(p.list))
	for _, kv := range p.list {
		m[strings.ToLower(kv.Name)] = kv.Value
	}
	return m
}

// tspecials from RFC 2045, plus the characters RFC 2231 reserves in names.
var tspecials = [128]bool{
	'(': true, ')': true, '<': true, '>': true, '@': true,
	',': true, ';': true, ':': true, '\\': true, '"': true,
	'/': true, '[': true, ']': true, '?': true, '=': true,
}

func isTokenChar(c byte) bool {
	return c > ' ' && c < 0x7F && !tspecials[c]
}

func cleanParamName(name string) string {
	var sb strings.Builder
	for i := 0; i < len(name); i++ {
		if c := name[i]; isTokenChar(c) && c != '*' && c != '\'' && c != '%' {
			sb.WriteByte(c)
		}
	}
	return sb.String()
}
