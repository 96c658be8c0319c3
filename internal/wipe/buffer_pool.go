package wipe

import (
	"sync"
)

// BufferPool управляет пулом буферов для оптимизации памяти
type BufferPool struct {
	pools map[int]*sync.Pool
	mu    sync.RWMutex
}

var globalBufferPool = &BufferPool{
	pools: make(map[int]*sync.Pool),
}

// GetBuffer получает буфер из пула или создает новый
func GetBuffer(size int) []byte {
	if size <= 0 {
		return nil
	}
	return globalBufferPool.getBuffer(size)
}

// PutBuffer возвращает буфер в пул. Содержимое обнуляется, чтобы
// шаблоны прохода не переживали операцию.
func PutBuffer(buf []byte) {
	if cap(buf) == 0 {
		return
	}
	globalBufferPool.putBuffer(buf)
}

func (bp *BufferPool) getBuffer(size int) []byte {
	poolSize := poolSizeFor(size)

	bp.mu.RLock()
	pool, exists := bp.pools[poolSize]
	bp.mu.RUnlock()

	if !exists {
		bp.mu.Lock()
		pool, exists = bp.pools[poolSize]
		if !exists {
			pool = &sync.Pool{
				New: func() interface{} {
					b := make([]byte, poolSize)
					return &b
				},
			}
			bp.pools[poolSize] = pool
		}
		bp.mu.Unlock()
	}

	buf := *(pool.Get().(*[]byte))
	return buf[:size]
}

func (bp *BufferPool) putBuffer(buf []byte) {
	capacity := cap(buf)
	poolSize := poolSizeFor(capacity)
	if poolSize != capacity {
		// чужой буфер, не из пула
		return
	}

	bp.mu.RLock()
	pool, exists := bp.pools[poolSize]
	bp.mu.RUnlock()

	if exists {
		buf = buf[:capacity]
		clear(buf)
		pool.Put(&buf)
	}
}

// poolSizeFor определяет класс размера для буфера
func poolSizeFor(size int) int {
	sizes := []int{1024, 4096, 16384, 65536, 262144, 1048576, 4194304, 16777216}

	for _, poolSize := range sizes {
		if size <= poolSize {
			return poolSize
		}
	}

	// Округляем до 4KB
	return ((size + 4095) / 4096) * 4096
}
