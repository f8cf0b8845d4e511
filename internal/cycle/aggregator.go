// Package cycle detecta ciclos mecânicos pelo cruzamento de zero do sinal de
// deslocamento e acumula o mínimo/máximo do campo monitorado em cada ciclo.
package cycle

import (
	"bufio"
	"fmt"
	"io"
	"math"

	"tanalyzer_go/internal/record"
)

const (
	// MinCycleSamples ciclos com esta contagem ou menos são ruído
	MinCycleSamples = 150

	// CarrySamples valor do contador logo após um cruzamento. As amostras da
	// transição entram na contagem do ciclo seguinte.
	CarrySamples = 3

	// BufferSize tamanho do buffer de leitura (2^14)
	BufferSize = 1 << 14

	// MaxLineSize maior linha aceita pelo leitor
	MaxLineSize = 16 << 20

	// ProgressSteps quantidade de notificações de progresso por execução
	ProgressSteps = 20
)

// State fase da máquina de estados
type State int

const (
	// Seeking aguardando uma amostra com pressão acima do limiar
	Seeking State = iota
	// Armed existe um deslocamento anterior de referência
	Armed
)

func (s State) String() string {
	switch s {
	case Seeking:
		return "seeking"
	case Armed:
		return "armed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Thresholds nomes dos campos e limiar de pressão usados numa execução
type Thresholds struct {
	PressureField     string  `json:"pressure_field"`
	DisplacementField string  `json:"displacement_field"`
	MinMaxField       string  `json:"min_max_field"`
	PressureThreshold float32 `json:"pressure_threshold"`
}

// ProgressFunc recebe a linha atual e o total de linhas
type ProgressFunc func(line, total int)

// CycleFunc recebe cada ciclo confirmado
type CycleFunc func(entry Entry)

// DiscardFunc recebe cada ciclo descartado como ruído
type DiscardFunc func(line, samples int)

// Options observadores opcionais de uma execução
type Options struct {
	// TotalLines habilita o progresso a cada TotalLines/20 linhas
	TotalLines int

	OnProgress ProgressFunc
	OnCycle    CycleFunc
	OnDiscard  DiscardFunc
}

// Aggregator consome linhas em ordem e constrói o Dataset
type Aggregator struct {
	cfg  Thresholds
	opts Options

	state    State
	last     float32
	samples  int
	current  Extremum
	dataset  *Dataset
	line     int
	interval int

	discarded int
	err       error
}

// NewAggregator cria um agregador no estado Seeking
func NewAggregator(cfg Thresholds, opts Options) *Aggregator {
	interval := 0
	if opts.TotalLines > 0 {
		interval = opts.TotalLines / ProgressSteps
		if interval < 1 {
			interval = 1
		}
	}

	return &Aggregator{
		cfg:      cfg,
		opts:     opts,
		state:    Seeking,
		current:  NewExtremum(),
		dataset:  NewDataset(),
		interval: interval,
	}
}

// Feed processa a próxima linha. Após o primeiro erro o agregador fica
// inutilizado e devolve sempre o mesmo erro.
func (a *Aggregator) Feed(line string) error {
	if a.err != nil {
		return a.err
	}

	a.line++
	rec := record.Parse(line)

	var err error
	switch a.state {
	case Seeking:
		err = a.seek(rec)
	case Armed:
		err = a.accumulate(rec)
	}
	if err != nil {
		a.err = &ParseError{Line: a.line, Err: err}
		return a.err
	}

	if a.interval > 0 && a.opts.OnProgress != nil && a.line%a.interval == 0 {
		a.opts.OnProgress(a.line, a.opts.TotalLines)
	}

	return nil
}

// seek procura a primeira amostra com pressão acima do limiar
func (a *Aggregator) seek(rec record.Record) error {
	pressure, err := rec.Get(a.cfg.PressureField)
	if err != nil {
		return err
	}
	if !(pressure > a.cfg.PressureThreshold) {
		return nil
	}

	displacement, err := rec.Get(a.cfg.DisplacementField)
	if err != nil {
		return err
	}

	a.last = displacement
	a.state = Armed
	return nil
}

// accumulate trata uma linha no estado Armed
func (a *Aggregator) accumulate(rec record.Record) error {
	displacement, err := rec.Get(a.cfg.DisplacementField)
	if err != nil {
		return err
	}
	value, err := rec.Get(a.cfg.MinMaxField)
	if err != nil {
		return err
	}

	a.samples++
	a.current.Observe(value)

	if !signNegative(a.last) && signNegative(displacement) {
		a.closeCycle()
	}

	a.last = displacement
	return nil
}

// closeCycle confirma ou descarta o ciclo em construção
func (a *Aggregator) closeCycle() {
	if a.samples > MinCycleSamples {
		entry := a.dataset.Append(a.current, a.samples)
		if a.opts.OnCycle != nil {
			a.opts.OnCycle(entry)
		}
	} else {
		a.discarded++
		if a.opts.OnDiscard != nil {
			a.opts.OnDiscard(a.line, a.samples)
		}
	}

	a.current.Reset()
	a.samples = CarrySamples
}

// Finish encerra a execução. O ciclo incompleto é descartado.
func (a *Aggregator) Finish() (*Dataset, error) {
	if a.err != nil {
		return nil, a.err
	}
	if a.interval > 0 && a.opts.OnProgress != nil {
		a.opts.OnProgress(a.opts.TotalLines, a.opts.TotalLines)
	}
	return a.dataset, nil
}

// State retorna a fase atual
func (a *Aggregator) State() State {
	return a.state
}

// Samples retorna o contador do ciclo em construção
func (a *Aggregator) Samples() int {
	return a.samples
}

// Current retorna o Extremum do ciclo em construção
func (a *Aggregator) Current() Extremum {
	return a.current
}

// Last retorna o último deslocamento de referência (válido em Armed)
func (a *Aggregator) Last() float32 {
	return a.last
}

// Lines retorna quantas linhas foram consumidas
func (a *Aggregator) Lines() int {
	return a.line
}

// Discarded retorna quantos ciclos foram descartados como ruído
func (a *Aggregator) Discarded() int {
	return a.discarded
}

// Dataset retorna os ciclos confirmados até agora
func (a *Aggregator) Dataset() *Dataset {
	return a.dataset
}

// Aggregate lê r linha a linha e retorna os ciclos confirmados. Qualquer
// falha de leitura de campo aborta a execução com *ParseError.
func Aggregate(r io.Reader, cfg Thresholds, opts Options) (*Dataset, error) {
	agg := NewAggregator(cfg, opts)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, BufferSize), MaxLineSize)

	for scanner.Scan() {
		if err := agg.Feed(scanner.Text()); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("erro ao ler linha %d: %w", agg.Lines()+1, err)
	}

	return agg.Finish()
}

// signNegative testa o bit de sinal (-0 e NaN negativo contam como negativos)
func signNegative(v float32) bool {
	return math.Float32bits(v)&(1<<31) != 0
}
