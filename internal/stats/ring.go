package stats

// Ring кольцевой буфер фиксированной ёмкости: при переполнении
// вытесняется самое старое значение, память не растёт
type Ring[T any] struct {
	buf  []T
	head int // индекс самого старого элемента
	size int
}

// NewRing создает буфер на capacity элементов
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		panic("stats: ёмкость кольцевого буфера должна быть > 0")
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push добавляет значение, при необходимости вытесняя старейшее
func (r *Ring[T]) Push(v T) {
	if r.size < len(r.buf) {
		r.buf[(r.head+r.size)%len(r.buf)] = v
		r.size++
		return
	}
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
}

// Len возвращает количество удерживаемых значений
func (r *Ring[T]) Len() int {
	return r.size
}

// Do обходит значения в порядке поступления
func (r *Ring[T]) Do(fn func(v T)) {
	for i := 0; i < r.size; i++ {
		fn(r.buf[(r.head+i)%len(r.buf)])
	}
}

// Values возвращает копию содержимого в порядке поступления
func (r *Ring[T]) Values() []T {
	out := make([]T, 0, r.size)
	r.Do(func(v T) {
		out = append(out, v)
	})
	return out
}
