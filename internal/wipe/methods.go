package wipe

import (
	"fmt"

	cerr "github.com/cockroachdb/errors"
)

// WipeMethod определяет метод затирания
type WipeMethod string

const (
	MethodGutmann  WipeMethod = "gutmann"
	MethodRandom   WipeMethod = "random"
	MethodSchneier WipeMethod = "schneier"
	MethodDoD      WipeMethod = "dod"
)

// GetMethodPasses возвращает количество проходов для метода
func GetMethodPasses(method WipeMethod) int {
	switch method {
	case MethodRandom:
		return 7
	case MethodSchneier:
		return 7
	case MethodDoD:
		return 3
	default:
		return 35
	}
}

// ValidateMethod проверяет корректность метода
func ValidateMethod(method string) (WipeMethod, error) {
	m := WipeMethod(method)
	switch m {
	case MethodGutmann, MethodRandom, MethodSchneier, MethodDoD:
		return m, nil
	default:
		return "", cerr.Newf("неподдерживаемый метод затирания: %s", method)
	}
}

// PassPlan число проходов и выбор случайных проходов. Строится один раз
// при запуске и дальше не меняется.
type PassPlan struct {
	Method   WipeMethod
	Passes   int
	ZeroPass bool
}

// NewPassPlan строит план для метода. Положительный override заменяет
// число проходов метода.
func NewPassPlan(method WipeMethod, override int, zeroPass bool) PassPlan {
	n := GetMethodPasses(method)
	if override > 0 {
		n = override
	}
	return PassPlan{Method: method, Passes: n, ZeroPass: zeroPass}
}

// Total число проходов вместе с завершающим нулевым
func (p PassPlan) Total() int {
	if p.ZeroPass {
		return p.Passes + 1
	}
	return p.Passes
}

// IsRandom сообщает, пишет ли проход pass новое случайное значение.
// Нулевой проход случайным не бывает.
func (p PassPlan) IsRandom(pass int) bool {
	if pass < 0 || pass >= p.Passes {
		return false
	}
	n := p.Passes
	switch p.Method {
	case MethodRandom:
		return pass%2 == 0
	case MethodSchneier:
		return pass >= 2
	case MethodDoD:
		return pass%3 == 2
	default:
		return pass < 4 || pass == n/2 || pass >= n-4
	}
}

// IsZero сообщает, является ли pass завершающим проходом нулями
func (p PassPlan) IsZero(pass int) bool {
	return p.ZeroPass && pass == p.Passes
}

func (p PassPlan) String() string {
	if p.ZeroPass {
		return fmt.Sprintf("%s/%d+zero", p.Method, p.Passes)
	}
	return fmt.Sprintf("%s/%d", p.Method, p.Passes)
}
