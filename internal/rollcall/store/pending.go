package store

// OpKind identifies a staged mutation.
type OpKind int

const (
	OpPut OpKind = iota
	OpErase
	OpEraseAll
)

func (k OpKind) String() string {
	switch k {
	case OpPut:
		return "put"
	case OpErase:
		return "erase"
	case OpEraseAll:
		return "erase_all"
	default:
		return "unknown"
	}
}

// Op is one staged mutation.
type Op struct {
	Kind  OpKind
	Key   string
	Value []byte
}

// Pending is the write-ahead buffer shared by the Handle implementations.
// It is not safe for concurrent use; a handle belongs to one caller.
type Pending struct {
	ops []Op
}

func (p *Pending) Put(key string, value []byte) {
	v := make([]byte, len(value))
	copy(v, value)
	p.ops = append(p.ops, Op{Kind: OpPut, Key: key, Value: v})
}

func (p *Pending) Erase(key string) {
	p.ops = append(p.ops, Op{Kind: OpErase, Key: key})
}

// EraseAll supersedes everything staged before it.
func (p *Pending) EraseAll() {
	p.ops = append(p.ops[:0], Op{Kind: OpEraseAll})
}

// Lookup resolves key against the staged operations only. decided is false
// when nothing staged affects key and the backing store must be consulted.
func (p *Pending) Lookup(key string) (value []byte, found, decided bool) {
	for i := len(p.ops) - 1; i >= 0; i-- {
		op := p.ops[i]
		switch op.Kind {
		case OpEraseAll:
			return nil, false, true
		case OpErase:
			if op.Key == key {
				return nil, false, true
			}
		case OpPut:
			if op.Key == key {
				v := make([]byte, len(op.Value))
				copy(v, op.Value)
				return v, true, true
			}
		}
	}
	return nil, false, false
}

// Ops returns the staged operations in submission order.
func (p *Pending) Ops() []Op {
	out := make([]Op, len(p.ops))
	copy(out, p.ops)
	return out
}

func (p *Pending) Len() int { return len(p.ops) }

func (p *Pending) Reset() { p.ops = p.ops[:0] }
