package xsd

import (
	"fmt"
	"strings"
)

// XSDNamespace is the XML Schema namespace
const XSDNamespace = "http://www.w3.org/2001/XMLSchema"

// XSINamespace is the XML Schema instance namespace (xsi:type, xsi:nil)
const XSINamespace = "http://www.w3.org/2001/XMLSchema-instance"

// xmlnsNamespace is the namespace xmldom reports for xmlns attributes
const xmlnsNamespace = "http://www.w3.org/2000/xmlns/"

// xmlNamespace is bound to the xml prefix in every document
const xmlNamespace = "http://www.w3.org/XML/1998/namespace"

// QName represents a qualified XML name
type QName struct {
	Namespace string
	Local     string
}

// String returns {namespace}local, or the bare local name when there is
// no namespace.
func (q QName) String() string {
	if q.Namespace == "" {
		return q.Local
	}
	return fmt.Sprintf("{%s}%s", q.Namespace, q.Local)
}

// Clark returns the Clark notation key, always braced so that names in no
// namespace cannot collide with a local name that contains braces.
func (q QName) Clark() string {
	return "{" + q.Namespace + "}" + q.Local
}

// IsZero reports whether the name is unset.
func (q QName) IsZero() bool {
	return q.Local == "" && q.Namespace == ""
}

// ParseClark parses "{ns}local" or a bare local name.
func ParseClark(s string) (QName, bool) {
	if !strings.HasPrefix(s, "{") {
		return QName{Local: s}, s != ""
	}
	end := strings.Index(s, "}")
	if end < 0 || end == len(s)-1 {
		return QName{}, false
	}
	return QName{Namespace: s[1:end], Local: s[end+1:]}, true
}

// splitPrefixed splits "p:local" into prefix and local part.
func splitPrefixed(name string) (prefix, local string) {
	if idx := strings.IndexByte(name, ':'); idx >= 0 {
		return name[:idx], name[idx+1:]
	}
	return "", name
}
