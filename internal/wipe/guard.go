package wipe

import "sync/atomic"

// engineActive поднят, пока движок выполняет операцию. Вложенные вызовы
// (например, функция удаления, сама зовущая Engine) выполняют только
// обычную операцию без затирания.
var engineActive atomic.Bool

// Guard отметка активности движка. Снимается через Release.
type Guard struct {
	released atomic.Bool
}

// AcquireGuard поднимает флаг. Возвращает nil, если движок уже активен.
func AcquireGuard() *Guard {
	if !engineActive.CompareAndSwap(false, true) {
		return nil
	}
	return &Guard{}
}

// Release снимает флаг. Повторный вызов и вызов на nil безопасны.
func (g *Guard) Release() {
	if g == nil {
		return
	}
	if g.released.CompareAndSwap(false, true) {
		engineActive.Store(false)
	}
}

// GuardActive сообщает, выполняется ли сейчас операция движка
func GuardActive() bool {
	return engineActive.Load()
}
