package gdp

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainModel     = "gdplbb/model/v1"
	DomainDecisions = "gdplbb/decisions/v1"
)

// CanonicalName trims and NFC-normalises a component name so visually equal
// names written with different Unicode compositions refer to one component.
func CanonicalName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Hash returns a stable content hash of the model structure: variables,
// constraints, objectives and disjunctions with their indicators. Variable
// values are excluded.
func (m *Model) Hash() string {
	var b strings.Builder
	b.WriteString("name=" + m.name + "\n")
	for _, v := range m.vars {
		b.WriteString("var " + v.Name + " " + v.Domain.String() + " [" +
			formatFloat(v.Lower) + "," + formatFloat(v.Upper) + "]")
		if v.Fixed {
			b.WriteString(" fixed=" + formatFloat(v.Value))
		}
		b.WriteString("\n")
	}
	for _, c := range m.constraints {
		b.WriteString("con " + c.String() + "\n")
	}
	for _, o := range m.objectives {
		b.WriteString("obj " + o.Name + " " + o.Sense.String() + " " + o.Expr.String())
		if !o.Active {
			b.WriteString(" inactive")
		}
		b.WriteString("\n")
	}
	for _, d := range m.disjunctions {
		b.WriteString("disjunction " + d.Name)
		if d.Xor {
			b.WriteString(" xor")
		}
		if !d.Active {
			b.WriteString(" inactive")
		}
		b.WriteString("\n")
		for _, dj := range d.Disjuncts {
			b.WriteString("  disjunct " + dj.Name + " indicator=" + formatFloat(float64(dj.Indicator.Value)))
			if dj.Indicator.Fixed {
				b.WriteString(" fixed")
			}
			b.WriteString("\n")
			for _, c := range dj.Constraints {
				b.WriteString("    con " + c.String() + "\n")
			}
		}
	}
	return hashWithDomain(DomainModel, []byte(b.String()))
}

// DecisionsID returns the content-addressed identity of a decision vector
// (disjunction -> selected disjunct). Key order does not matter.
func DecisionsID(decisions map[string]string) string {
	keys := make([]string, 0, len(decisions))
	for k := range decisions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(norm.NFC.String(k))
		b.WriteByte(0x00)
		b.WriteString(norm.NFC.String(decisions[k]))
		b.WriteByte(0x00)
	}
	return hashWithDomain(DomainDecisions, []byte(b.String()))
}
