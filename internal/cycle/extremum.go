package cycle

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Extremum acumula o mínimo e o máximo do campo monitorado dentro de um ciclo.
//
// O valor zero é a faixa [0, 0], igual a um ciclo que só viu zeros e ao que
// se lê de um registro gravado com min=0 e max=0. Não serve como acumulador
// vazio: Observe a partir dele nunca perde o 0. Use NewExtremum ou Reset.
type Extremum struct {
	Min float32 `json:"min"`
	Max float32 `json:"max"`
}

// NewExtremum retorna um acumulador vazio (+Inf, -Inf)
func NewExtremum() Extremum {
	return Extremum{
		Min: float32(math.Inf(1)),
		Max: float32(math.Inf(-1)),
	}
}

// Observe incorpora um valor ao intervalo
func (e *Extremum) Observe(v float32) {
	if v > e.Max {
		e.Max = v
	}
	if v < e.Min {
		e.Min = v
	}
}

// Reset volta ao estado vazio
func (e *Extremum) Reset() {
	*e = NewExtremum()
}

// IsEmpty indica que nenhum valor comparável foi observado
func (e Extremum) IsEmpty() bool {
	return e.Min > e.Max
}

// Range retorna (min, max, true) ou (0, 0, false) se o acumulador estiver vazio
func (e Extremum) Range() (float32, float32, bool) {
	if e.IsEmpty() {
		return 0, 0, false
	}
	return e.Min, e.Max, true
}

// jsonFloat serializa valores não finitos como texto ("+Inf", "-Inf", "NaN"),
// que o JSON não representa como número
type jsonFloat float32

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return json.Marshal(strconv.FormatFloat(v, 'f', -1, 32))
	}
	return []byte(strconv.FormatFloat(v, 'f', -1, 32)), nil
}

func (f *jsonFloat) UnmarshalJSON(data []byte) error {
	var raw string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	} else {
		raw = string(data)
	}
	v, err := strconv.ParseFloat(raw, 32)
	if err != nil {
		return fmt.Errorf("valor de extremo inválido %s: %w", data, err)
	}
	*f = jsonFloat(v)
	return nil
}

type extremumJSON struct {
	Min jsonFloat `json:"min"`
	Max jsonFloat `json:"max"`
}

// MarshalJSON implementa json.Marshaler. Um Extremum vazio sai como
// {"min":"+Inf","max":"-Inf"}.
func (e Extremum) MarshalJSON() ([]byte, error) {
	return json.Marshal(extremumJSON{Min: jsonFloat(e.Min), Max: jsonFloat(e.Max)})
}

// UnmarshalJSON implementa json.Unmarshaler
func (e *Extremum) UnmarshalJSON(data []byte) error {
	var aux extremumJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	e.Min = float32(aux.Min)
	e.Max = float32(aux.Max)
	return nil
}
