package projection

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// Constraint は項目に対する絞り込み条件です。
// ゼロ値は NoConstraint と同じく制約なしを表します。
type Constraint struct {
	constrained bool
	values      []string
}

// NoConstraint は制約なしの条件を返します。
func NoConstraint() Constraint {
	return Constraint{}
}

// Equals は値が v と一致する条件を返します。
func Equals(v string) Constraint {
	return Constraint{constrained: true, values: []string{v}}
}

// OneOf は値がいずれかと一致する条件を返します。候補が空の場合は何にも一致しません。
func OneOf(values ...string) Constraint {
	return Constraint{constrained: true, values: append([]string(nil), values...)}
}

// Unconstrained は制約なしかどうかを返します。
func (c Constraint) Unconstrained() bool {
	return !c.constrained
}

// Values は受け入れる値の一覧を返します。
func (c Constraint) Values() []string {
	return append([]string(nil), c.values...)
}

func (c Constraint) matches(v value, fold cases.Caser) bool {
	if !c.constrained {
		return true
	}
	if !v.present {
		return false
	}
	for _, candidate := range c.values {
		if matchValue(v, candidate, fold) {
			return true
		}
	}
	return false
}

// matchValue は候補値を項目の型で解釈して比較します。解釈できない候補は一致しません。
func matchValue(v value, candidate string, fold cases.Caser) bool {
	switch v.typ {
	case typeString:
		return fold.String(v.str) == fold.String(strings.TrimSpace(candidate))
	case typeTime:
		t, ok := parseDate(candidate)
		return ok && sameDay(v.t, t)
	case typeBool:
		b, err := strconv.ParseBool(strings.TrimSpace(candidate))
		return err == nil && b == v.b
	case typeNumber:
		n, err := strconv.ParseFloat(strings.TrimSpace(candidate), 64)
		return err == nil && n == v.n
	default:
		return false
	}
}
