package xsd

import (
	"fmt"
	"strings"
)

// ProcessContentsMode defines how wildcard content should be processed
type ProcessContentsMode string

const (
	// StrictProcess requires a declaration for the matched item
	StrictProcess ProcessContentsMode = "strict"
	// LaxProcess validates when a declaration is found, otherwise allows it
	LaxProcess ProcessContentsMode = "lax"
	// SkipProcess allows the item without validation
	SkipProcess ProcessContentsMode = "skip"
)

// Valid reports whether m is one of the three processContents values.
func (m ProcessContentsMode) Valid() bool {
	return m == StrictProcess || m == LaxProcess || m == SkipProcess
}

// NamespaceConstraint is the parsed namespace attribute of a wildcard.
type NamespaceConstraint struct {
	// Mode is "##any", "##other" or "list".
	Mode string
	// Namespaces holds the list members; "##targetNamespace" and "##local"
	// are kept as written and expanded by Allows.
	Namespaces []string
}

// ParseNamespaceConstraint parses a namespace attribute value.
func ParseNamespaceConstraint(value string) NamespaceConstraint {
	value = strings.TrimSpace(value)
	switch value {
	case "", "##any":
		return NamespaceConstraint{Mode: "##any"}
	case "##other":
		return NamespaceConstraint{Mode: "##other"}
	}
	return NamespaceConstraint{Mode: "list", Namespaces: strings.Fields(value)}
}

// Allows reports whether namespace is permitted, with targetNamespace the
// target namespace of the schema that declared the wildcard.
func (c NamespaceConstraint) Allows(namespace, targetNamespace string) bool {
	switch c.Mode {
	case "##any":
		return true
	case "##other":
		return namespace != targetNamespace && namespace != ""
	}
	for _, ns := range c.Namespaces {
		switch ns {
		case "##targetNamespace":
			if namespace == targetNamespace {
				return true
			}
		case "##local":
			if namespace == "" {
				return true
			}
		default:
			if ns == namespace {
				return true
			}
		}
	}
	return false
}

// Allows reports whether the wildcard admits an item in namespace.
func (w *Wildcard) Allows(namespace string) bool {
	return ParseNamespaceConstraint(w.Namespace).Allows(namespace, w.TargetNamespace)
}

// Mode returns the processContents mode, strict when unset.
func (w *Wildcard) Mode() ProcessContentsMode {
	if w.ProcessContents == "" {
		return StrictProcess
	}
	return w.ProcessContents
}

// wildcardDecision is what a validation job does with an item that a
// wildcard admitted.
type wildcardDecision int

const (
	wildcardSkip wildcardDecision = iota
	wildcardValidate
	wildcardUndeclared
)

// processWildcard decides how an admitted item is assessed. found reports
// whether a global declaration exists for it. Lax wildcards behave like
// strict ones when strict is set.
func processWildcard(w *Wildcard, found, strict bool) wildcardDecision {
	mode := w.Mode()
	if strict && mode == LaxProcess {
		mode = StrictProcess
	}
	switch mode {
	case SkipProcess:
		return wildcardSkip
	case LaxProcess:
		if found {
			return wildcardValidate
		}
		return wildcardSkip
	default:
		if found {
			return wildcardValidate
		}
		return wildcardUndeclared
	}
}

// wildcardNamespaceMessage describes a namespace rejected by a wildcard.
func wildcardNamespaceMessage(kind string, name QName, w *Wildcard) string {
	ns := w.Namespace
	if ns == "" {
		ns = "##any"
	}
	return fmt.Sprintf("%s '%s' is not allowed by the namespace constraint '%s'", kind, name.Clark(), ns)
}
