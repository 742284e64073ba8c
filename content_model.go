package xsd

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// binding pairs an instance element with the particle that admitted it.
type binding struct {
	decl     *Element  // nil when a wildcard admitted the element
	wildcard *Wildcard // nil when an element particle matched
}

// contentFinding is a problem met while matching children. The category
// decides which rule reports it.
type contentFinding struct {
	category RuleCategory
	at       Locatable
	code     string
	message  string
	opts     []FindingOption
}

// contentMatch is the outcome of matching the children of one element.
type contentMatch struct {
	bindings map[*XMLElement]binding
	findings []contentFinding
}

type matchOptions struct {
	substitutions bool
	wildcards     bool
}

// contentMatcher is a single-pass greedy matcher over the element children
// of one instance element. It never backtracks: each particle consumes as
// many consecutive children as its bounds allow before the next particle
// is tried.
type contentMatcher struct {
	repo     *Repository
	opts     matchOptions
	parent   *XMLElement
	children []*XMLElement
	pos      int
	result   *contentMatch

	known     map[QName]bool
	expected  []QName
	wildcards []*Wildcard
	members   map[QName][]*Element
}

// matchContent matches the children of parent against model. A nil model
// stands for empty content: every child is unexpected.
func matchContent(repo *Repository, parent *XMLElement, model *ModelGroup, opts matchOptions) *contentMatch {
	m := &contentMatcher{
		repo:     repo,
		opts:     opts,
		parent:   parent,
		children: parent.Children(),
		result:   &contentMatch{bindings: make(map[*XMLElement]binding)},
		known:    make(map[QName]bool),
		members:  make(map[QName][]*Element),
	}
	if model != nil {
		m.collect(model, make(map[*ModelGroup]bool))
		m.group(model, model.Occurs, nil)
	}
	for _, child := range m.children[m.pos:] {
		m.unexpected(child)
	}
	return m.result
}

// collect gathers every element name and wildcard reachable in the model.
func (m *contentMatcher) collect(mg *ModelGroup, seen map[*ModelGroup]bool) {
	if seen[mg] {
		return
	}
	seen[mg] = true
	for _, p := range mg.Particles {
		switch particle := p.(type) {
		case *Element:
			name := particle.QName()
			if !m.known[name] {
				m.known[name] = true
				m.expected = append(m.expected, name)
			}
			for _, member := range m.substitutes(particle) {
				m.known[member.Name] = true
			}
		case *Wildcard:
			m.wildcards = append(m.wildcards, particle)
		case *ModelGroup:
			m.collect(particle, seen)
		case *Group:
			if model := particle.ModelGroup(); model != nil {
				m.collect(model, seen)
			}
		}
	}
}

func (m *contentMatcher) substitutes(el *Element) []*Element {
	if !m.opts.substitutions {
		return nil
	}
	decl := el.Declaration()
	if !decl.Global {
		return nil
	}
	members, ok := m.members[decl.Name]
	if !ok {
		members = m.repo.SubstitutionMembers(decl.Name)
		m.members[decl.Name] = members
	}
	return members
}

// matchElement reports whether child satisfies the element particle and
// returns the declaration that governs it.
func (m *contentMatcher) matchElement(child *XMLElement, el *Element) (*Element, bool) {
	name := child.Name()
	if name == el.QName() {
		return el.Declaration(), true
	}
	for _, member := range m.substitutes(el) {
		if member.Name == name {
			return member, true
		}
	}
	return nil, false
}

func (m *contentMatcher) wildcardAllows(w *Wildcard, child *XMLElement) bool {
	return !m.opts.wildcards || w.Allows(child.Namespace())
}

// isKnown reports whether any particle of the model could admit child.
func (m *contentMatcher) isKnown(child *XMLElement) bool {
	if m.known[child.Name()] {
		return true
	}
	for _, w := range m.wildcards {
		if m.wildcardAllows(w, child) {
			return true
		}
	}
	return false
}

// skipUnknown reports and consumes children that no particle of the model
// could ever admit, so one stray element costs exactly one finding.
func (m *contentMatcher) skipUnknown() {
	for m.pos < len(m.children) && !m.isKnown(m.children[m.pos]) {
		m.unexpected(m.children[m.pos])
		m.pos++
	}
}

func (m *contentMatcher) current() *XMLElement {
	m.skipUnknown()
	if m.pos < len(m.children) {
		return m.children[m.pos]
	}
	return nil
}

func (m *contentMatcher) bind(child *XMLElement, decl *Element, w *Wildcard) {
	m.result.bindings[child] = binding{decl: decl, wildcard: w}
	m.pos++
}

func (m *contentMatcher) report(category RuleCategory, at Locatable, code, message string, opts ...FindingOption) {
	m.result.findings = append(m.result.findings, contentFinding{
		category: category, at: at, code: code, message: message, opts: opts,
	})
}

func (m *contentMatcher) unexpected(child *XMLElement) {
	clark := child.Name().Clark()
	opts := []FindingOption{WithContextValue("element", clark)}
	if suggestion := m.suggestFor(child); suggestion != "" {
		opts = append(opts, WithSuggestion(suggestion))
	}
	m.report(RuleContentModel, child, CodeElementNotAllowed,
		fmt.Sprintf("Element '%s' is not allowed here", clark), opts...)
}

// suggestFor proposes a declared name differing only in case or
// namespace, or else lists the expected elements.
func (m *contentMatcher) suggestFor(child *XMLElement) string {
	fold := cases.Fold()
	local := fold.String(child.LocalName())
	for _, name := range m.expected {
		if name.Local == child.LocalName() && name.Namespace != child.Namespace() {
			return fmt.Sprintf("Element '%s' is declared in namespace '%s'", name.Local, name.Namespace)
		}
		if fold.String(name.Local) == local {
			return fmt.Sprintf("Did you mean '%s'?", name.Local)
		}
	}
	if len(m.expected) == 0 {
		return ""
	}
	names := make([]string, 0, len(m.expected))
	for _, name := range m.expected {
		names = append(names, name.Local)
	}
	sort.Strings(names)
	if len(names) > DefaultMaxSuggestions {
		names = names[:DefaultMaxSuggestions]
	}
	return "Expected one of: " + strings.Join(names, ", ")
}

func (m *contentMatcher) particle(p Particle, follow []Particle) {
	switch particle := p.(type) {
	case *Element:
		m.element(particle, follow)
	case *Wildcard:
		m.wildcard(particle, follow)
	case *ModelGroup:
		m.group(particle, particle.Occurs, follow)
	case *Group:
		if model := particle.ModelGroup(); model != nil {
			m.group(model, particle.Occurs, follow)
		}
	}
}

func (m *contentMatcher) element(el *Element, follow []Particle) {
	count := 0
	var firstExcess *XMLElement
	for child := m.current(); child != nil; child = m.current() {
		decl, ok := m.matchElement(child, el)
		if !ok {
			break
		}
		if el.Occurs.Exceeded(count + 1) {
			if m.startsAny(child, follow) {
				break
			}
			if firstExcess == nil {
				firstExcess = child
			}
		}
		m.bind(child, decl, nil)
		count++
	}
	m.occurrences(el.QName().Clark(), el.Occurs, count, firstExcess)
}

func (m *contentMatcher) wildcard(w *Wildcard, follow []Particle) {
	count := 0
	var firstExcess *XMLElement
	for child := m.current(); child != nil; child = m.current() {
		if !m.wildcardAllows(w, child) {
			break
		}
		// Explicit particles that follow take precedence over the wildcard.
		if count >= w.Occurs.Min && m.startsAny(child, follow) {
			break
		}
		if w.Occurs.Exceeded(count+1) && firstExcess == nil {
			firstExcess = child
		}
		m.bind(child, nil, w)
		count++
	}
	m.occurrences("wildcard "+w.Namespace, w.Occurs, count, firstExcess)
}

// occurrences reports bound violations for a particle. A required particle
// that never occurred is a structural problem, not an occurrence one.
func (m *contentMatcher) occurrences(label string, occurs Occurs, count int, firstExcess *XMLElement) {
	switch {
	case count == 0 && occurs.Min > 0:
		m.report(RuleContentModel, m.parent, CodeElementNotAllowed,
			fmt.Sprintf("Expected element '%s' is missing", label),
			WithContextValue("expected_element", label),
			WithContextValue("min_occurs", occurs.Min),
			WithSuggestion(fmt.Sprintf("Add element '%s'", label)))
	case count < occurs.Min:
		m.report(RuleOccurrence, m.parent, CodeMinOccurs,
			fmt.Sprintf("Element '%s' must occur at least %d time(s), found %d", label, occurs.Min, count),
			WithContextValue("element", label),
			WithContextValue("min_occurs", occurs.Min),
			WithContextValue("actual_occurs", count))
	case firstExcess != nil:
		m.report(RuleOccurrence, firstExcess, CodeMaxOccurs,
			fmt.Sprintf("Element '%s' must occur at most %s time(s), found %d", label, occurs.MaxString(), count),
			WithContextValue("element", label),
			WithContextValue("max_occurs", occurs.Max),
			WithContextValue("actual_occurs", count))
	}
}

// group repeats a model group within its bounds. Iterations beyond the
// minimum are entered only when the current child can start one. While
// another iteration fits, the group itself follows its last particle, so
// a particle at its maximum hands the next child to a fresh iteration.
func (m *contentMatcher) group(mg *ModelGroup, occurs Occurs, follow []Particle) {
	count := 0
	var chosen Particle
	restart := joinFollow([]Particle{mg}, follow)
	for !occurs.Exceeded(count + 1) {
		child := m.current()
		if count >= occurs.Min && (child == nil || !m.canStart(mg, child)) {
			break
		}
		next := follow
		if !occurs.Exceeded(count + 2) {
			next = restart
		}
		start := m.pos
		chosen = m.once(mg, next, count < occurs.Min)
		count++
		if m.pos == start {
			break
		}
	}
	if mg.Compositor == Choice && chosen != nil {
		m.ambiguous(mg, chosen, follow)
	}
}

// once matches a single iteration of a model group and returns the
// alternative taken when the group is a choice.
func (m *contentMatcher) once(mg *ModelGroup, follow []Particle, required bool) Particle {
	switch mg.Compositor {
	case Choice:
		return m.choice(mg, follow, required)
	case All:
		m.all(mg, follow)
	default:
		for i, p := range mg.Particles {
			m.particle(p, joinFollow(mg.Particles[i+1:], follow))
		}
	}
	return nil
}

func joinFollow(rest, follow []Particle) []Particle {
	if len(rest) == 0 {
		return follow
	}
	out := make([]Particle, 0, len(rest)+len(follow))
	out = append(out, rest...)
	return append(out, follow...)
}

func (m *contentMatcher) choice(mg *ModelGroup, follow []Particle, required bool) Particle {
	child := m.current()
	if child != nil {
		for _, alt := range mg.Particles {
			if m.canStart(alt, child) {
				m.particle(alt, follow)
				return alt
			}
		}
	}
	if !required {
		return nil
	}
	for _, alt := range mg.Particles {
		if emptiable(alt) {
			return nil
		}
	}
	labels := particleLabels(mg.Particles)
	m.report(RuleContentModel, m.parent, CodeChoiceNotSatisfied,
		"None of the choice alternatives is present",
		WithContextValue("alternatives", labels),
		WithSuggestion("Add one of: "+strings.Join(labels, ", ")))
	return nil
}

// ambiguous reports children that start a different alternative of a
// choice that was already satisfied, then consumes them.
func (m *contentMatcher) ambiguous(mg *ModelGroup, chosen Particle, follow []Particle) {
	reported := false
	for child := m.current(); child != nil; child = m.current() {
		if m.startsAny(child, follow) {
			return
		}
		var other Particle
		for _, alt := range mg.Particles {
			if alt != chosen && m.canStart(alt, child) {
				other = alt
				break
			}
		}
		if other == nil {
			return
		}
		if !reported {
			labels := particleLabels([]Particle{chosen, other})
			m.report(RuleContentModel, child, CodeChoiceAmbiguous,
				fmt.Sprintf("Choice allows only one alternative, but both %s and %s are present", labels[0], labels[1]),
				WithContextValue("alternatives", labels),
				WithSuggestion("Keep only one of: "+strings.Join(particleLabels(mg.Particles), ", ")))
			reported = true
		}
		start := m.pos
		m.particle(other, follow)
		if m.pos == start {
			return
		}
	}
}

func (m *contentMatcher) all(mg *ModelGroup, follow []Particle) {
	counts := make([]int, len(mg.Particles))
	excess := make([]*XMLElement, len(mg.Particles))
	for child := m.current(); child != nil; child = m.current() {
		idx := -1
		var decl *Element
		for i, p := range mg.Particles {
			el, ok := p.(*Element)
			if !ok {
				continue
			}
			if d, ok := m.matchElement(child, el); ok {
				idx, decl = i, d
				break
			}
		}
		if idx < 0 {
			break
		}
		occurs := mg.Particles[idx].Occurrence()
		if occurs.Exceeded(counts[idx] + 1) {
			if m.startsAny(child, follow) {
				break
			}
			if excess[idx] == nil {
				excess[idx] = child
			}
		}
		m.bind(child, decl, nil)
		counts[idx]++
	}
	for i, p := range mg.Particles {
		el, ok := p.(*Element)
		if !ok {
			continue
		}
		m.occurrences(el.QName().Clark(), el.Occurs, counts[i], excess[i])
	}
}

// canStart reports whether child can be the first element matched by p.
func (m *contentMatcher) canStart(p Particle, child *XMLElement) bool {
	return m.canStartDepth(p, child, 0)
}

func (m *contentMatcher) canStartDepth(p Particle, child *XMLElement, depth int) bool {
	if depth > maxDerivationDepth {
		return false
	}
	switch particle := p.(type) {
	case *Element:
		_, ok := m.matchElement(child, particle)
		return ok
	case *Wildcard:
		return m.wildcardAllows(particle, child)
	case *Group:
		model := particle.ModelGroup()
		return model != nil && m.canStartDepth(model, child, depth+1)
	case *ModelGroup:
		if particle.Compositor == Sequence {
			for _, inner := range particle.Particles {
				if m.canStartDepth(inner, child, depth+1) {
					return true
				}
				if !emptiable(inner) {
					return false
				}
			}
			return false
		}
		for _, inner := range particle.Particles {
			if m.canStartDepth(inner, child, depth+1) {
				return true
			}
		}
	}
	return false
}

// startsAny reports whether child can be matched by the particles that
// follow, skipping over the ones that may be empty.
func (m *contentMatcher) startsAny(child *XMLElement, follow []Particle) bool {
	for _, p := range follow {
		if m.canStart(p, child) {
			return true
		}
		if !emptiable(p) {
			return false
		}
	}
	return false
}

// emptiable reports whether p can match zero elements.
func emptiable(p Particle) bool {
	return emptiableDepth(p, 0)
}

func emptiableDepth(p Particle, depth int) bool {
	if p.Occurrence().Min == 0 {
		return true
	}
	if depth > maxDerivationDepth {
		return true
	}
	var mg *ModelGroup
	switch particle := p.(type) {
	case *ModelGroup:
		mg = particle
	case *Group:
		mg = particle.ModelGroup()
	default:
		return false
	}
	if mg == nil {
		return true
	}
	if mg.Compositor == Choice {
		for _, inner := range mg.Particles {
			if emptiableDepth(inner, depth+1) {
				return true
			}
		}
		return len(mg.Particles) == 0
	}
	for _, inner := range mg.Particles {
		if !emptiableDepth(inner, depth+1) {
			return false
		}
	}
	return true
}

func particleLabels(particles []Particle) []string {
	out := make([]string, 0, len(particles))
	for _, p := range particles {
		switch particle := p.(type) {
		case *Element:
			out = append(out, "'"+particle.QName().Clark()+"'")
		case *Wildcard:
			out = append(out, "any element ("+particle.Namespace+")")
		case *Group:
			if !particle.Ref.IsZero() {
				out = append(out, "group '"+particle.Ref.Local+"'")
			} else {
				out = append(out, "group")
			}
		case *ModelGroup:
			out = append(out, particle.Compositor.String())
		}
	}
	return out
}
