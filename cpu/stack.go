package cpu

const (
	STACK_LIMIT  = 1 << 20 // Default operand stack depth
	RETURN_LIMIT = 1 << 16 // Default return stack depth
)

// Stack is a bounded LIFO stack.
type Stack[T any] struct {
	Data  []T
	Limit int // Maximum depth. Zero is unbounded.
}

// Push a value, failing with ErrStackFull at the depth limit.
func (s *Stack[T]) Push(value T) (err error) {
	if s.Full() {
		return ErrStackFull
	}
	s.Data = append(s.Data, value)
	return
}

// Pop a value, failing with ErrStackEmpty on underflow.
func (s *Stack[T]) Pop() (value T, err error) {
	value, ok := s.Peek()
	if !ok {
		err = ErrStackEmpty
		return
	}
	s.Data = s.Data[:len(s.Data)-1]
	return
}

func (s *Stack[T]) Len() int {
	return len(s.Data)
}

func (s *Stack[T]) Empty() bool {
	return len(s.Data) == 0
}

func (s *Stack[T]) Full() bool {
	return s.Limit > 0 && len(s.Data) >= s.Limit
}

func (s *Stack[T]) Peek() (value T, ok bool) {
	if s.Empty() {
		return
	}

	return s.Data[len(s.Data)-1], true
}

func (s *Stack[T]) Reset() {
	if len(s.Data) > 0 {
		s.Data = s.Data[:0]
	}
}
