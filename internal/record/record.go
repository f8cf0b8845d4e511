// Package record lê uma linha do log de sensores no formato
// nome1;valor1;nome2;valor2;... e expõe os campos por nome.
package record

import (
	"errors"
	"strconv"
	"strings"
)

// Separator separa nomes e valores dentro de uma linha
const Separator = ";"

// pair é um par (nome, valor bruto). truncated indica que a linha acabou
// antes do valor.
type pair struct {
	name      string
	value     string
	truncated bool
}

// Record é uma linha já dividida em pares, na ordem em que aparecem
type Record struct {
	pairs []pair
}

// Parse divide a linha em pares consecutivos. Uma quantidade ímpar de
// tokens deixa o último par truncado.
func Parse(line string) Record {
	tokens := strings.Split(line, Separator)
	pairs := make([]pair, 0, (len(tokens)+1)/2)

	for i := 0; i < len(tokens); i += 2 {
		if i+1 < len(tokens) {
			pairs = append(pairs, pair{name: tokens[i], value: tokens[i+1]})
		} else {
			pairs = append(pairs, pair{name: tokens[i], truncated: true})
		}
	}

	return Record{pairs: pairs}
}

// Lookup retorna o valor bruto do primeiro par com o nome pedido
func (r Record) Lookup(field string) (string, error) {
	for _, p := range r.pairs {
		if p.name != field {
			continue
		}
		if p.truncated {
			return "", &FieldError{Field: field, Err: ErrTruncatedLine}
		}
		return p.value, nil
	}
	return "", &FieldError{Field: field, Err: ErrMissingField}
}

// Get retorna o valor do campo convertido para float32
func (r Record) Get(field string) (float32, error) {
	raw, err := r.Lookup(field)
	if err != nil {
		return 0, err
	}
	return ParseValue(field, raw)
}

// ParseValue converte um valor bruto em float32 (IEEE-754 precisão simples).
// Aceita só a notação decimal: separador "_" e hexadecimal ("0x1p3") são
// rejeitados. Valores fora da faixa viram ±Inf em vez de erro.
func ParseValue(field, raw string) (float32, error) {
	if !isDecimal(raw) {
		return 0, &FieldError{Field: field, Value: raw, Err: ErrMalformedValue}
	}
	v, err := strconv.ParseFloat(raw, 32)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return float32(v), nil
		}
		return 0, &FieldError{Field: field, Value: raw, Err: ErrMalformedValue}
	}
	return float32(v), nil
}

// isDecimal descarta as extensões de sintaxe do ParseFloat
func isDecimal(raw string) bool {
	if strings.Contains(raw, "_") {
		return false
	}
	digits := strings.TrimLeft(raw, "+-")
	if len(digits) < len(raw)-1 {
		return false
	}
	return !strings.HasPrefix(digits, "0x") && !strings.HasPrefix(digits, "0X")
}
