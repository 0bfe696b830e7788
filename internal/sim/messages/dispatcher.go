package messages

import "github.com/google/uuid"

// Sink delivers rendered text to a player.
type Sink interface {
	Deliver(player uuid.UUID, key, text string)
}

// Dispatcher renders a key and hands the text to a Sink.
type Dispatcher struct {
	cat  *Catalog
	sink Sink
}

func NewDispatcher(cat *Catalog, sink Sink) *Dispatcher {
	return &Dispatcher{cat: cat, sink: sink}
}

func (d *Dispatcher) Notify(player uuid.UUID, key string, vars map[string]string) {
	if d.sink == nil {
		return
	}
	d.sink.Deliver(player, key, d.cat.Render(key, vars))
}

func (d *Dispatcher) Catalog() *Catalog { return d.cat }
