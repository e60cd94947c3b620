package anchor

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/medkg/medkg/internal/domain/drug"
)

// evaluation is the per-candidate state threaded through the gates.
type evaluation struct {
	en, ko         string
	enBase, koBase string
	count          int
	context        string
	hasHint        bool
	decision       *Decision
}

func (ev *evaluation) decide(v Verdict, reasons ...string) bool {
	ev.decision.Verdict = v
	ev.decision.Reasons = append(ev.decision.Reasons, reasons...)
	return true
}

func (ev *evaluation) tag(reason string) {
	ev.decision.Reasons = append(ev.decision.Reasons, reason)
}

// gate inspects an evaluation and reports whether it reached a terminal
// verdict.
type gate struct {
	name  string
	apply func(f *Filters, ev *evaluation) bool
}

func defaultGates() []gate {
	return []gate{
		{name: "empty", apply: emptyGate},
		{name: "routing", apply: routingGate},
		{name: "form-term", apply: formTermGate},
		{name: "conditional-form", apply: conditionalFormGate},
		{name: "ingredient-hint", apply: ingredientHintGate},
		{name: "suffix", apply: suffixGate},
		{name: "phonetic", apply: phoneticGate},
		{name: "pass", apply: passGate},
	}
}

// Refiner classifies candidate pairs through the ordered gate chain.
type Refiner struct {
	filters *Filters
	gates   []gate
	log     zerolog.Logger
}

// NewRefiner creates a Refiner over compiled filters.
func NewRefiner(f *Filters, log zerolog.Logger) *Refiner {
	return &Refiner{filters: f, gates: defaultGates(), log: log}
}

// Evaluate runs one candidate through the chain. It always returns exactly
// one verdict; a panic inside a gate becomes a pending decision.
func (r *Refiner) Evaluate(c Candidate) (d Decision) {
	d = Decision{Candidate: c}
	defer func() {
		if rec := recover(); rec != nil {
			reason := fmt.Sprintf("%s%T", ReasonExceptionPrefix, rec)
			r.log.Warn().
				Str("en", c.EN).
				Str("ko", c.KO).
				Interface("panic", rec).
				Msg("anchor candidate raised during evaluation")
			d.Verdict = VerdictPending
			d.Reasons = []string{reason}
			d.Score = nil
		}
	}()

	d.EN = NormalizeEN(c.EN)
	d.KO = NormalizeText(c.KO)
	ev := &evaluation{
		en:       d.EN,
		ko:       d.KO,
		enBase:   enBase(d.EN),
		koBase:   koBase(d.KO),
		count:    c.Count,
		context:  NormalizeText(c.Context),
		decision: &d,
	}
	for _, g := range r.gates {
		if g.apply(r.filters, ev) {
			break
		}
	}
	if d.Verdict == "" {
		d.Verdict = VerdictPending
	}
	return d
}

func emptyGate(_ *Filters, ev *evaluation) bool {
	if ev.en == "" || ev.ko == "" {
		return ev.decide(VerdictDrop, ReasonEmptyTerm)
	}
	return false
}

func routingGate(f *Filters, ev *evaluation) bool {
	switch {
	case matchAny(f.regimen, ev.en) || matchAny(f.regimen, ev.ko):
		return ev.decide(VerdictRouteRegimen, ReasonRouteRegimen)
	case matchAny(f.biomarker, ev.en) || matchAny(f.biomarker, ev.ko):
		return ev.decide(VerdictRouteBiomarker, ReasonRouteBiomarker)
	case matchAny(f.disease, ev.en) || matchAny(f.disease, ev.ko):
		return ev.decide(VerdictRouteDisease, ReasonRouteDisease)
	}
	return false
}

func formTermGate(f *Filters, ev *evaluation) bool {
	for _, term := range f.Config.FormTerms.Hard {
		if term != "" && strings.Contains(ev.ko, term) {
			return ev.decide(VerdictDrop, ReasonFormTerm)
		}
	}
	return false
}

func conditionalFormGate(f *Filters, ev *evaluation) bool {
	if matchAny(f.conditional, ev.ko) {
		return ev.decide(VerdictDrop, ReasonFormConditional)
	}
	return false
}

// ingredientHintGate records whether the context carries a hint word. The
// tag itself is only applied once a later gate sends the pair to pending.
func ingredientHintGate(f *Filters, ev *evaluation) bool {
	for _, h := range f.Config.IngredientHints {
		if h != "" && strings.Contains(ev.context, h) {
			ev.hasHint = true
			break
		}
	}
	return false
}

func (ev *evaluation) pending(reason string) bool {
	ev.decide(VerdictPending, reason)
	if !ev.hasHint {
		ev.tag(ReasonNoIngredientHint)
	}
	return true
}

func suffixGate(f *Filters, ev *evaluation) bool {
	rule, ok := f.suffixRule(ev.enBase)
	if !ok || !rule.Strict {
		return false
	}
	for _, suf := range rule.KO {
		if strings.Contains(ev.ko, suf) {
			return false
		}
	}
	return ev.pending(ReasonSuffixMismatch)
}

func phoneticGate(f *Filters, ev *evaluation) bool {
	if !hasHangul(ev.koBase) && !hasLatin(ev.koBase) {
		return ev.pending(ReasonUntranslatable)
	}
	score, ok := PhoneticScore(ev.enBase, ev.koBase)
	if !ok {
		return ev.pending(ReasonUntranslatable)
	}
	ev.decision.Score = &score
	if score < f.threshold(ev.count) {
		return ev.pending(ReasonPhoneticFail)
	}
	return false
}

func passGate(_ *Filters, ev *evaluation) bool {
	return ev.decide(VerdictActive, ReasonPassAll)
}

func enBase(en string) string {
	if base, _ := drug.SplitSaltEn(en); base != "" {
		return base
	}
	return en
}

func koBase(ko string) string {
	base, _ := drug.SplitSaltKo(ko)
	return base
}

func hasLatin(s string) bool {
	for i := 0; i < len(s); i++ {
		if c := s[i] | 0x20; c >= 'a' && c <= 'z' {
			return true
		}
	}
	return false
}
