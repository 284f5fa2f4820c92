package layers

import (
	"reflect"
	"sort"
	"sync"

	"github.com/LavishGent/propkit/internal/chain"
	"github.com/LavishGent/propkit/internal/registry"
	"github.com/LavishGent/propkit/internal/types"
)

// Observe notifies subscribers when a value seen on get or set differs from
// the previous one for the same key. The first value seen counts as a change.
type Observe struct {
	chain.Nop
}

// NewObserve creates an observe layer with no subscribers.
func NewObserve() *Observe { return &Observe{} }

func (*Observe) Kind() chain.Kind { return chain.KindObserve }

type observed struct {
	value any
}

type observers struct {
	mu     sync.Mutex
	last   map[any]observed
	subs   map[int]func(types.Change)
	nextID int
}

func newObservers() any {
	return &observers{
		last: make(map[any]observed),
		subs: make(map[int]func(types.Change)),
	}
}

func (o *observers) subscribe(fn func(types.Change)) func() {
	o.mu.Lock()
	id := o.nextID
	o.nextID++
	o.subs[id] = fn
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.subs, id)
			o.mu.Unlock()
		})
	}
}

func (ob *Observe) see(a *chain.Access, v any) {
	st := a.AttrState(newObservers).(*observers)
	key, hasKey := a.Key()

	st.mu.Lock()
	prev, had := st.last[key]
	if had && reflect.DeepEqual(prev.value, v) {
		st.mu.Unlock()
		return
	}
	st.last[key] = observed{value: v}
	ids := make([]int, 0, len(st.subs))
	for id := range st.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(types.Change), len(ids))
	for i, id := range ids {
		fns[i] = st.subs[id]
	}
	st.mu.Unlock()

	change := types.Change{
		Attr:   a.Name(),
		Key:    key,
		HasKey: hasKey,
		Old:    prev.value,
		New:    v,
		HadOld: had,
	}
	for _, fn := range fns {
		fn(change)
	}
}

func (ob *Observe) AfterGet(a *chain.Access, v any) (any, error) {
	ob.see(a, v)
	return v, nil
}

func (ob *Observe) AfterSet(a *chain.Access, v any) error {
	ob.see(a, v)
	return nil
}

// Subscribe registers fn for changes of the attribute on o. The returned
// function cancels the subscription.
func Subscribe(d *chain.Descriptor, o registry.Owner, fn func(types.Change)) (func(), error) {
	st, err := d.AttrState(o, chain.KindObserve, newObservers)
	if err != nil {
		return nil, err
	}
	return st.(*observers).subscribe(fn), nil
}
