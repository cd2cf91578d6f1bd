package routes

type inflightOp struct {
	acquire bool
	key     string
	busy    chan<- bool
}

// inflight tracks keys with a request in progress. A single goroutine owns
// the set; handlers talk to it over a channel.
type inflight chan inflightOp

func newInflight() inflight {
	ops := make(inflight)
	go func() {
		keys := make(map[string]bool)
		for op := range ops {
			if op.acquire {
				op.busy <- keys[op.key]
				keys[op.key] = true
			} else {
				delete(keys, op.key)
			}
		}
	}()
	return ops
}

// acquire marks key as in progress. It reports false when key already was;
// otherwise the caller must release it.
func (ops inflight) acquire(key string) bool {
	busy := make(chan bool)
	ops <- inflightOp{acquire: true, key: key, busy: busy}
	return !<-busy
}

func (ops inflight) release(key string) {
	ops <- inflightOp{key: key}
}
