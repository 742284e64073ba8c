package xsd

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"github.com/agentflare-ai/go-xmldom"
)

// Phase is one step of a validation job.
type Phase string

const (
	PhaseParseXML    Phase = "parse_xml"
	PhaseStructure   Phase = "validate_structure"
	PhaseTypes       Phase = "validate_types"
	PhaseConstraints Phase = "validate_constraints"
)

// Phases lists the job phases in execution order.
var Phases = []Phase{PhaseParseXML, PhaseStructure, PhaseTypes, PhaseConstraints}

// phaseCategories maps each rule-running phase to its categories.
var phaseCategories = map[Phase][]RuleCategory{
	PhaseStructure:   {RuleStructure, RuleContentModel, RuleOccurrence},
	PhaseTypes:       {RuleAttribute, RuleType},
	PhaseConstraints: {RuleIdentity},
}

// nodeState is what the structure phase learned about one instance element.
type nodeState struct {
	decl    *Element
	typ     TypeDefinition
	xsiNil  bool // xsi:nil="true" present
	nilled  bool // xsiNil on a nillable declaration
	match   *contentMatch
	xsiType string // set when xsi:type named an unknown type

	// wildcard is set for elements a wildcard admitted; undeclared marks
	// a strict wildcard without a matching global declaration.
	wildcard   *Wildcard
	undeclared bool
}

// ValidationJob validates one document. It is created per call and owns
// every piece of mutable state the validation needs.
type ValidationJob struct {
	repo   *Repository
	cfg    *Configuration
	rules  []Rule
	logger *slog.Logger
	root   QName

	collector *ResultCollector
	ctx       *RuleContext
	states    map[*XMLElement]*nodeState
	order     []*XMLElement
	values    *valueChecker
	identity  *identityTables
	ids       *idTable
}

func newValidationJob(repo *Repository, cfg *Configuration, rules []Rule, logger *slog.Logger, root QName) *ValidationJob {
	j := &ValidationJob{
		repo:      repo,
		cfg:       cfg,
		rules:     rules,
		logger:    logger,
		root:      root,
		collector: NewResultCollector(cfg.StopOnFirstError),
		states:    make(map[*XMLElement]*nodeState),
		values:    newValueChecker(repo, cfg.FeatureEnabled(FeatureFacets), cfg.StrictMode),
		identity:  newIdentityTables(),
		ids:       newIDTable(),
	}
	j.ctx = &RuleContext{ResultCollector: j.collector, Repository: repo, Config: cfg, job: j}
	return j
}

// Run validates content and returns the collected findings.
func (j *ValidationJob) Run(content []byte) *ValidationResult {
	if len(bytes.TrimSpace(content)) == 0 {
		j.collector.Error(nil, CodeInvalidInput, "XML content is empty")
		return j.collector.Result()
	}

	j.logger.Debug("validation phase", "phase", PhaseParseXML)
	doc, err := xmldom.Decode(bytes.NewReader(content))
	if err != nil {
		j.collector.Error(nil, CodeXMLParseError, fmt.Sprintf("Malformed XML: %v", err))
		return j.collector.Result()
	}
	if doc == nil || doc.DocumentElement() == nil {
		j.collector.Error(nil, CodeXMLParseError, "Document has no root element")
		return j.collector.Result()
	}
	return j.RunDocument(doc)
}

// RunDocument validates an already parsed document.
func (j *ValidationJob) RunDocument(doc xmldom.Document) *ValidationResult {
	root := NewXMLNavigator(doc).Root()

	j.logger.Debug("validation phase", "phase", PhaseStructure)
	if j.pairRoot(root) {
		j.structure(root, j.phaseRules(PhaseStructure))
	}
	if j.halted(PhaseStructure) {
		return j.collector.Result()
	}

	j.logger.Debug("validation phase", "phase", PhaseTypes)
	typeRules := j.phaseRules(PhaseTypes)
	for _, node := range j.order {
		if j.runRules(node, typeRules) {
			break
		}
	}
	if j.halted(PhaseTypes) {
		return j.collector.Result()
	}

	// Constraint rules run one at a time over the whole document, so every
	// key and unique table is complete before any keyref is checked.
	j.logger.Debug("validation phase", "phase", PhaseConstraints)
	for _, rule := range j.phaseRules(PhaseConstraints) {
		for _, node := range j.order {
			if j.runRules(node, []Rule{rule}) {
				break
			}
		}
		if j.collector.Halted() {
			break
		}
	}
	j.halted(PhaseConstraints)
	return j.collector.Result()
}

func (j *ValidationJob) halted(phase Phase) bool {
	if j.collector.Halted() {
		j.logger.Debug("validation aborted", "phase", phase, "reason", "stop_on_first_error")
		return true
	}
	return false
}

func (j *ValidationJob) phaseRules(phase Phase) []Rule {
	var out []Rule
	for _, rule := range j.rules {
		for _, c := range phaseCategories[phase] {
			if rule.Category() == c {
				out = append(out, rule)
				break
			}
		}
	}
	return out
}

// runRules runs rules on node and reports whether the job halted.
func (j *ValidationJob) runRules(node *XMLElement, rules []Rule) bool {
	st := j.states[node]
	for _, rule := range rules {
		rule.Validate(node, st.decl, j.ctx)
		if j.collector.Halted() {
			return true
		}
	}
	return false
}

// pairRoot binds the document element to a global declaration.
func (j *ValidationJob) pairRoot(root *XMLElement) bool {
	name := root.Name()
	if !j.root.IsZero() && name != j.root {
		code, msg := CodeElementNameMismatch,
			fmt.Sprintf("Root element '%s' does not match the expected root '%s'", name.Clark(), j.root.Clark())
		if name.Local == j.root.Local {
			code, msg = CodeNamespaceMismatch,
				fmt.Sprintf("Root element '%s' has namespace '%s', expected '%s'", name.Local, name.Namespace, j.root.Namespace)
		}
		j.collector.Error(root, code, msg,
			WithContextValue("element", name.Clark()),
			WithContextValue("expected_element", j.root.Clark()))
		return false
	}

	decl, ok := j.repo.LookupElement(name)
	if !ok {
		opts := []FindingOption{WithContextValue("element", name.Clark())}
		if s := j.repo.suggest(name.Local); len(s) > 0 {
			opts = append(opts, WithSuggestion("Did you mean: "+strings.Join(s, ", ")+"?"))
		}
		j.collector.Error(root, CodeElementNotAllowed,
			fmt.Sprintf("Element '%s' is not declared as a global element", name.Clark()), opts...)
		return false
	}
	j.bind(root, decl)
	return true
}

// bind records the declaration and type governing node.
func (j *ValidationJob) bind(node *XMLElement, decl *Element) *nodeState {
	st := &nodeState{decl: decl, typ: decl.ResolvedType()}
	if st.typ == nil {
		st.typ = j.repo.anyType
	}
	if value, ok := node.XSIAttribute("type"); ok {
		qname, resolved := node.ResolveQName(strings.TrimSpace(value))
		if t, found := j.repo.LookupType(qname); resolved && found {
			st.typ = t
		} else {
			st.xsiType = value
		}
	}
	if value, ok := node.XSIAttribute("nil"); ok {
		v := strings.TrimSpace(value)
		st.xsiNil = v == "true" || v == "1"
		st.nilled = st.xsiNil && decl.Nillable
	}
	j.states[node] = st
	return st
}

// structure walks the document depth-first, pairing children with
// declarations before the rules of node run.
func (j *ValidationJob) structure(node *XMLElement, rules []Rule) {
	j.order = append(j.order, node)
	st := j.states[node]
	j.pairChildren(node, st)
	if j.runRules(node, rules) {
		return
	}
	for _, child := range node.Children() {
		cst := j.states[child]
		switch {
		case cst == nil:
			continue
		case cst.undeclared:
			// reported, never descended into
			j.order = append(j.order, child)
			j.runRules(child, rules)
		default:
			j.structure(child, rules)
		}
		if j.collector.Halted() {
			return
		}
	}
}

func (j *ValidationJob) pairChildren(node *XMLElement, st *nodeState) {
	ct, ok := st.typ.(*ComplexType)
	if !ok || st.nilled || ct.Effective() == nil {
		return
	}
	ec := ct.Effective()
	if ec.Kind == ContentSimple {
		return
	}
	st.match = matchContent(j.repo, node, ec.Particle, matchOptions{
		substitutions: j.cfg.FeatureEnabled(FeatureSubstitutionGroups),
		wildcards:     j.cfg.FeatureEnabled(FeatureWildcards),
	})
	for _, child := range node.Children() {
		b, ok := st.match.bindings[child]
		if !ok {
			continue
		}
		if b.decl != nil {
			j.bind(child, b.decl)
			continue
		}
		decl, found := j.repo.LookupElement(child.Name())
		switch processWildcard(b.wildcard, found, j.cfg.StrictMode) {
		case wildcardValidate:
			j.bind(child, decl).wildcard = b.wildcard
		case wildcardUndeclared:
			j.states[child] = &nodeState{wildcard: b.wildcard, undeclared: true, typ: j.repo.anyType}
		}
	}
}
