package dist

// envelope is the batch of messages one rank posts to another in a round.
type envelope[T any] struct {
	from int
	msgs []T
}

// MailBox holds one inbound channel per rank and one outbox per sender and
// target. The pattern per round is: Post for every message, Deliver, wait for
// every rank to deliver, Receive.
type MailBox[T any] struct {
	np     int
	chans  []chan envelope[T]
	outbox []map[int][]T // outbox[from][to]
}

func NewMailBox[T any](np int) *MailBox[T] {
	mb := &MailBox[T]{
		np:     np,
		chans:  make([]chan envelope[T], np),
		outbox: make([]map[int][]T, np),
	}
	for n := 0; n < np; n++ {
		mb.chans[n] = make(chan envelope[T], np) // worst case is all-to-all
		mb.outbox[n] = make(map[int][]T)
	}
	return mb
}

func (mb *MailBox[T]) Post(from, to int, msg ...T) {
	mb.outbox[from][to] = append(mb.outbox[from][to], msg...)
}

// Deliver sends every pending batch of rank from. It never blocks since a
// rank receives at most one batch per sender in a round.
func (mb *MailBox[T]) Deliver(from int) {
	for to, msgs := range mb.outbox[from] {
		mb.chans[to] <- envelope[T]{from: from, msgs: msgs}
	}
	mb.outbox[from] = make(map[int][]T)
}

// Receive drains the batches delivered to rank to, keyed by sender.
func (mb *MailBox[T]) Receive(to int) map[int][]T {
	in := make(map[int][]T)
	for {
		select {
		case env := <-mb.chans[to]:
			in[env.from] = append(in[env.from], env.msgs...)
		default:
			return in
		}
	}
}
