package dsp

// Deque is a growable ring buffer that supports pushing and popping at both
// ends and indexed access from the front.
type Deque[T any] struct {
	buffer []T
	offset int
	count  int
}

// Len returns the number of stored elements.
func (d *Deque[T]) Len() int {
	return d.count
}

// PushFront inserts v before the first element.
func (d *Deque[T]) PushFront(v T) {
	if d.count >= len(d.buffer) {
		d.expand()
	}
	d.offset = (d.offset - 1 + len(d.buffer)) % len(d.buffer)
	d.buffer[d.offset] = v
	d.count++
}

// PushBack appends v after the last element.
func (d *Deque[T]) PushBack(v T) {
	if d.count >= len(d.buffer) {
		d.expand()
	}
	d.buffer[(d.offset+d.count)%len(d.buffer)] = v
	d.count++
}

// PopFront removes and returns the first element.
func (d *Deque[T]) PopFront() T {
	if d.count <= 0 {
		panic("dsp: pop from empty deque")
	}
	var zero T
	v := d.buffer[d.offset]
	d.buffer[d.offset] = zero
	d.offset = (d.offset + 1) % len(d.buffer)
	d.count--
	return v
}

// PopBack removes and returns the last element.
func (d *Deque[T]) PopBack() T {
	if d.count <= 0 {
		panic("dsp: pop from empty deque")
	}
	var zero T
	d.count--
	i := (d.offset + d.count) % len(d.buffer)
	v := d.buffer[i]
	d.buffer[i] = zero
	return v
}

// PeekFront returns the first element without removing it.
func (d *Deque[T]) PeekFront() T {
	if d.count <= 0 {
		panic("dsp: peek into empty deque")
	}
	return d.buffer[d.offset]
}

// PeekBack returns the last element without removing it.
func (d *Deque[T]) PeekBack() T {
	if d.count <= 0 {
		panic("dsp: peek into empty deque")
	}
	return d.buffer[(d.offset+d.count-1)%len(d.buffer)]
}

// Get returns the element at index i counted from the front.
func (d *Deque[T]) Get(i int) T {
	if i < 0 || i >= d.count {
		panic("dsp: deque index out of range")
	}
	return d.buffer[(d.offset+i)%len(d.buffer)]
}

// Set replaces the element at index i counted from the front.
func (d *Deque[T]) Set(i int, v T) {
	if i < 0 || i >= d.count {
		panic("dsp: deque index out of range")
	}
	d.buffer[(d.offset+i)%len(d.buffer)] = v
}

// Remove deletes the element at index i, keeping the order of the others.
func (d *Deque[T]) Remove(i int) {
	if i < 0 || i >= d.count {
		panic("dsp: deque index out of range")
	}
	n := len(d.buffer)
	if i <= d.count>>1 {
		for j := i; j > 0; j-- {
			d.buffer[(d.offset+j)%n] = d.buffer[(d.offset+j-1)%n]
		}
		d.PopFront()
	} else {
		for j := i; j < d.count-1; j++ {
			d.buffer[(d.offset+j)%n] = d.buffer[(d.offset+j+1)%n]
		}
		d.PopBack()
	}
}

// Clear removes every element.
func (d *Deque[T]) Clear() {
	for d.count > 0 {
		d.PopFront()
	}
	d.offset = 0
}

func (d *Deque[T]) expand() {
	size := len(d.buffer) * 2
	if size < 4 {
		size = 4
	}
	buffer := make([]T, size)
	for i := 0; i < d.count; i++ {
		buffer[i] = d.buffer[(d.offset+i)%len(d.buffer)]
	}
	d.buffer = buffer
	d.offset = 0
}
