package wipe

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
)

// Pattern 12-битное значение, разворачиваемое в тройку байт
type Pattern uint16

const patternMask = 0xFFF

// Таблицы фиксированных шаблонов по методам
var (
	gutmannTable = []Pattern{
		0x000, 0x111, 0x222, 0x333, 0x444, 0x555, 0x666, 0x777,
		0x888, 0x999, 0xAAA, 0xBBB, 0xCCC, 0xDDD, 0xEEE, 0xFFF,
		0x924, 0x492, 0x249, 0x6DB, 0xB6D, 0xDB6,
	}
	randomTable   = []Pattern{0x555, 0xAAA}
	schneierTable = []Pattern{0xFFF, 0x000}
	dodTable      = []Pattern{0x000, 0xFFF}
)

// maxTableSize размер самой большой таблицы
const maxTableSize = 22

// Triple разворачивает значение v в байты (v>>4, (v&0xF)<<4 | v>>8, v&0xFF).
// Повторение тройки дает периодическую запись 12-битного значения.
func (p Pattern) Triple() [3]byte {
	v := uint16(p) & patternMask
	return [3]byte{
		byte(v >> 4),
		byte((v&0xF)<<4 | v>>8),
		byte(v & 0xFF),
	}
}

func tableFor(method WipeMethod) []Pattern {
	switch method {
	case MethodRandom:
		return randomTable
	case MethodSchneier:
		return schneierTable
	case MethodDoD:
		return dodTable
	default:
		return gutmannTable
	}
}

// positional сообщает, выбирается ли фиксированный шаблон по номеру прохода
func positional(method WipeMethod) bool {
	return method == MethodSchneier || method == MethodDoD
}

// Selection состояние выбора фиксированных шаблонов в рамках одной операции
type Selection struct {
	used [maxTableSize]bool
}

// Reset сбрасывает все отметки
func (s *Selection) Reset() {
	s.used = [maxTableSize]bool{}
}

func (s *Selection) exhausted(n int) bool {
	for i := 0; i < n; i++ {
		if !s.used[i] {
			return false
		}
	}
	return true
}

// Used число использованных записей таблицы
func (s *Selection) Used() int {
	n := 0
	for _, u := range s.used {
		if u {
			n++
		}
	}
	return n
}

// Generator заполняет буферы проходов по плану
type Generator struct {
	plan PassPlan
	rng  *rand.Rand
}

// NewGenerator создает генератор. Если rng == nil, источник засевается из crypto/rand.
func NewGenerator(plan PassPlan, rng *rand.Rand) *Generator {
	if rng == nil {
		rng = newSeededRand()
	}
	return &Generator{plan: plan, rng: rng}
}

func newSeededRand() *rand.Rand {
	var seed [16]byte
	if _, err := crand.Read(seed[:]); err != nil {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(binary.LittleEndian.Uint64(seed[:8]), binary.LittleEndian.Uint64(seed[8:])))
}

// Plan возвращает план генератора
func (g *Generator) Plan() PassPlan {
	return g.plan
}

// Next выбирает шаблон для прохода pass и отмечает его в sel.
func (g *Generator) Next(pass int, sel *Selection) Pattern {
	if g.plan.IsZero(pass) {
		return 0
	}
	if g.plan.IsRandom(pass) {
		return Pattern(g.rng.IntN(patternMask + 1))
	}

	table := tableFor(g.plan.Method)
	if sel.exhausted(len(table)) {
		sel.Reset()
	}

	var idx int
	if positional(g.plan.Method) {
		if g.plan.Method == MethodDoD {
			idx = pass % 3
		} else {
			idx = pass
		}
		idx %= len(table)
	} else {
		free := make([]int, 0, len(table))
		for i := range table {
			if !sel.used[i] {
				free = append(free, i)
			}
		}
		idx = free[g.rng.IntN(len(free))]
	}

	sel.used[idx] = true
	return table[idx]
}

// Fill заполняет buf шаблоном прохода pass
func (g *Generator) Fill(pass int, buf []byte, sel *Selection) Pattern {
	p := g.Next(pass, sel)
	tile(buf, p.Triple())
	return p
}

// tile копирует тройку в начало буфера и удваивает заполненную часть,
// пока буфер не закончится. Хвост короче тройки обрезается.
func tile(buf []byte, triple [3]byte) {
	if len(buf) == 0 {
		return
	}
	n := copy(buf, triple[:])
	for n < len(buf) {
		n += copy(buf[n:], buf[:n])
	}
}
