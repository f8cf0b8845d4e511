package cycle

import (
	"fmt"
	"sort"
)

// Entry é um ciclo confirmado
type Entry struct {
	// Index é a posição de inserção, começando em 1
	Index int `json:"index"`

	Extremum Extremum `json:"extremum"`

	// Samples é a contagem de amostras do ciclo no momento do cruzamento
	Samples int `json:"samples"`
}

// Dataset mapeia índice de sequência → Entry. Os índices são 1..N sem lacunas.
type Dataset struct {
	entries []Entry
}

// NewDataset cria um Dataset vazio
func NewDataset() *Dataset {
	return &Dataset{}
}

// Len retorna a quantidade de ciclos confirmados
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.entries)
}

// NextIndex retorna o índice que o próximo ciclo receberá
func (d *Dataset) NextIndex() int {
	return d.Len() + 1
}

// Append insere um ciclo com o próximo índice e o retorna
func (d *Dataset) Append(ext Extremum, samples int) Entry {
	entry := Entry{
		Index:    d.NextIndex(),
		Extremum: ext,
		Samples:  samples,
	}
	d.entries = append(d.entries, entry)
	return entry
}

// Insert adiciona uma entrada já indexada. O índice precisa ser o próximo.
func (d *Dataset) Insert(entry Entry) error {
	if entry.Index != d.NextIndex() {
		return fmt.Errorf("índice fora de sequência: esperado %d, recebido %d", d.NextIndex(), entry.Index)
	}
	d.entries = append(d.entries, entry)
	return nil
}

// Get retorna o ciclo com o índice pedido
func (d *Dataset) Get(index int) (Entry, bool) {
	if index < 1 || index > d.Len() {
		return Entry{}, false
	}
	return d.entries[index-1], true
}

// Keys retorna os índices em ordem crescente
func (d *Dataset) Keys() []int {
	keys := make([]int, 0, d.Len())
	for _, e := range d.Entries() {
		keys = append(keys, e.Index)
	}
	return keys
}

// Entries retorna uma cópia das entradas ordenada por índice
func (d *Dataset) Entries() []Entry {
	if d == nil {
		return nil
	}
	out := make([]Entry, len(d.entries))
	copy(out, d.entries)
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Last retorna o último ciclo confirmado
func (d *Dataset) Last() (Entry, bool) {
	return d.Get(d.Len())
}
